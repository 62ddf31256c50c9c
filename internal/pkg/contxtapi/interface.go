package contxtapi

import (
	"context"
	"time"

	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

// IoT is the feeds/fields API
type IoT interface {
	GetFeedWithID(ctx context.Context, id int) (*models.Feed, error)
	GetFeedWithKey(ctx context.Context, key string) (*models.Feed, error)
	GetFeeds(ctx context.Context, facilityID int, key string) ([]models.Feed, error)
	GetFieldsForFacility(ctx context.Context, facilityID int) ([]models.Field, error)
	GetFieldsForFeed(ctx context.Context, feedID int, limit int, offset int) ([]models.Field, error)
	GetUnprovisionedFieldsForFeed(ctx context.Context, feedID int) ([]models.UnprovisionedField, error)
	GetFieldGrouping(ctx context.Context, id string) (*models.FieldGrouping, error)
	GetFieldGroupingsForFacility(ctx context.Context, facilityID int) ([]models.FieldGrouping, error)
	GetFieldData(ctx context.Context, field models.Field, start time.Time, end time.Time, window models.Window, limit int) (*models.FieldData, error)
}

// Rates is the utility rates API
type Rates interface {
	GetProviders(ctx context.Context, opts PageOptions) ([]models.UtilityProvider, error)
	GetSchedulesForProvider(ctx context.Context, providerID int, opts PageOptions) ([]models.RateSchedule, error)
	GetSchedulesForFacility(ctx context.Context, facilityID int, opts PageOptions) ([]models.RateSchedule, error)
	GetSchedule(ctx context.Context, id int) (*models.RateSchedule, error)
}
