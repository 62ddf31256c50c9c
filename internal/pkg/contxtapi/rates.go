package contxtapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

type RatesService struct {
	api *API
}

func NewRatesService(api *API) *RatesService {
	return &RatesService{api: api}
}

func (s *RatesService) GetProviders(ctx context.Context, opts PageOptions) ([]models.UtilityProvider, error) {
	return NewPager[models.UtilityProvider](s.api, "providers", nil, opts).All(ctx)
}

func (s *RatesService) GetSchedulesForProvider(ctx context.Context, providerID int, opts PageOptions) ([]models.RateSchedule, error) {
	params := url.Values{"utility_provider_id": {strconv.Itoa(providerID)}}
	return NewPager[models.RateSchedule](s.api, "schedules", params, opts).All(ctx)
}

func (s *RatesService) GetSchedulesForFacility(ctx context.Context, facilityID int, opts PageOptions) ([]models.RateSchedule, error) {
	return NewPager[models.RateSchedule](s.api, fmt.Sprintf("facilities/%d/schedules", facilityID), nil, opts).All(ctx)
}

func (s *RatesService) GetSchedule(ctx context.Context, id int) (*models.RateSchedule, error) {
	var sched models.RateSchedule
	if err := s.api.Get(ctx, fmt.Sprintf("schedules/%d", id), nil, &sched); err != nil {
		return nil, errors.Wrapf(err, "fetching rate schedule %d", id)
	}
	return &sched, nil
}
