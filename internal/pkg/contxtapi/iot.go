package contxtapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"

	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

type IoTService struct {
	api *API
}

func NewIoTService(api *API) *IoTService {
	return &IoTService{api: api}
}

func (s *IoTService) GetFeedWithID(ctx context.Context, id int) (*models.Feed, error) {
	var feed models.Feed
	if err := s.api.Get(ctx, fmt.Sprintf("feeds/%d", id), nil, &feed); err != nil {
		return nil, errors.Wrapf(err, "fetching feed %d", id)
	}
	return &feed, nil
}

// GetFeedWithKey returns nil if no feed has the key, and an error if the key
// is not unique
func (s *IoTService) GetFeedWithKey(ctx context.Context, key string) (*models.Feed, error) {
	feeds, err := s.GetFeeds(ctx, 0, key)
	if err != nil {
		return nil, err
	}

	switch len(feeds) {
	case 0:
		return nil, nil
	case 1:
		return &feeds[0], nil
	}
	return nil, fmt.Errorf("expected a single feed with key %s, found %d", key, len(feeds))
}

// GetFeeds lists feeds, optionally filtered by facility (non-zero) and key
func (s *IoTService) GetFeeds(ctx context.Context, facilityID int, key string) ([]models.Feed, error) {
	params := url.Values{}
	if facilityID != 0 {
		params.Set("facility_id", strconv.Itoa(facilityID))
	}
	if key != "" {
		params.Set("key", key)
	}

	var feeds []models.Feed
	if err := s.api.Get(ctx, "feeds", params, &feeds); err != nil {
		return nil, errors.Wrap(err, "listing feeds")
	}
	return feeds, nil
}

func (s *IoTService) GetFieldsForFacility(ctx context.Context, facilityID int) ([]models.Field, error) {
	var fields []models.Field
	if err := s.api.Get(ctx, fmt.Sprintf("facilities/%d/fields", facilityID), nil, &fields); err != nil {
		return nil, errors.Wrapf(err, "listing fields for facility %d", facilityID)
	}
	return fields, nil
}

func (s *IoTService) GetFieldsForFeed(ctx context.Context, feedID int, limit int, offset int) ([]models.Field, error) {
	if limit <= 0 {
		limit = 1000
	}
	params := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var fields []models.Field
	if err := s.api.Get(ctx, fmt.Sprintf("feeds/%d/fields", feedID), params, &fields); err != nil {
		return nil, errors.Wrapf(err, "listing fields for feed %d", feedID)
	}
	return fields, nil
}

func (s *IoTService) GetUnprovisionedFieldsForFeed(ctx context.Context, feedID int) ([]models.UnprovisionedField, error) {
	var fields []models.UnprovisionedField
	if err := s.api.Get(ctx, fmt.Sprintf("feeds/%d/fields/unprovisioned", feedID), nil, &fields); err != nil {
		return nil, errors.Wrapf(err, "listing unprovisioned fields for feed %d", feedID)
	}
	return fields, nil
}

func (s *IoTService) GetFieldGrouping(ctx context.Context, id string) (*models.FieldGrouping, error) {
	var grouping models.FieldGrouping
	if err := s.api.Get(ctx, "groupings/"+url.PathEscape(id), nil, &grouping); err != nil {
		return nil, errors.Wrapf(err, "fetching grouping %s", id)
	}
	return &grouping, nil
}

func (s *IoTService) GetFieldGroupingsForFacility(ctx context.Context, facilityID int) ([]models.FieldGrouping, error) {
	var groupings []models.FieldGrouping
	if err := s.api.Get(ctx, fmt.Sprintf("facilities/%d/groupings", facilityID), nil, &groupings); err != nil {
		return nil, errors.Wrapf(err, "listing groupings for facility %d", facilityID)
	}
	return groupings, nil
}

// GetFieldData fetches samples for a field starting at start; a zero end
// leaves the range open
func (s *IoTService) GetFieldData(ctx context.Context, field models.Field, start time.Time, end time.Time, window models.Window, limit int) (*models.FieldData, error) {
	if err := field.Validate(strfmt.Default); err != nil {
		return nil, errors.Wrap(err, "field cannot address data")
	}
	if limit <= 0 {
		limit = 1000
	}

	params := url.Values{
		"timeStart": {strconv.FormatInt(start.Unix(), 10)},
		"window":    {strconv.Itoa(int(window))},
		"limit":     {strconv.Itoa(limit)},
	}
	if !end.IsZero() {
		params.Set("timeEnd", strconv.FormatInt(end.Unix(), 10))
	}

	uri := fmt.Sprintf("outputs/%d/fields/%s/data", field.OutputID, url.PathEscape(field.FieldHumanName))

	var data models.FieldData
	if err := s.api.Get(ctx, uri, params, &data); err != nil {
		return nil, errors.Wrapf(err, "fetching data for field %s", field.FieldHumanName)
	}
	return &data, nil
}
