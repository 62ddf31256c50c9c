package cmd

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/korovkin/limiter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/contxt-cli/internal/pkg/contxtapi"
	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

var _iotCmdOpts struct {
	facilityID    int
	key           string
	feedIDs       []int
	unprovisioned bool
	maxConcurrent int
	outputID      int
	field         string
	start         string
	end           string
	window        string
	limit         int
}

var iotCmd = &cobra.Command{
	Use:   "iot",
	Short: "IoT feed and field functions",
}

var iotFeedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "List feeds",
	Args:  cobra.NoArgs,

	RunE: withIoT(func(ctx context.Context, iot contxtapi.IoT, args []string) error {
		feeds, err := iot.GetFeeds(ctx, _iotCmdOpts.facilityID, _iotCmdOpts.key)
		if err != nil {
			return err
		}

		return printResult(feeds, []string{"ID", "KEY", "FACILITY", "TIMEZONE", "STATUS"}, func(add func(cols ...interface{})) {
			for _, f := range feeds {
				add(f.ID, f.Key, f.FacilityID, f.Timezone, f.Status)
			}
		})
	}),
}

var iotFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields of one or more feeds, or of a facility",
	Args:  cobra.NoArgs,

	RunE: withIoT(func(ctx context.Context, iot contxtapi.IoT, args []string) error {
		if _iotCmdOpts.facilityID != 0 {
			fields, err := iot.GetFieldsForFacility(ctx, _iotCmdOpts.facilityID)
			if err != nil {
				return err
			}
			return printFields(fields)
		}

		if len(_iotCmdOpts.feedIDs) == 0 {
			return errors.New("one of --feed-id or --facility-id is required")
		}

		if _iotCmdOpts.unprovisioned {
			var all []models.UnprovisionedField
			for _, id := range _iotCmdOpts.feedIDs {
				fields, err := iot.GetUnprovisionedFieldsForFeed(ctx, id)
				if err != nil {
					return err
				}
				all = append(all, fields...)
			}

			return printResult(all, []string{"OUTPUT", "DESCRIPTOR", "LAST VALUE"}, func(add func(cols ...interface{})) {
				for _, f := range all {
					add(f.OutputID, f.FieldDescriptor, f.LastValue)
				}
			})
		}

		fields, err := fieldsForFeeds(ctx, iot, _iotCmdOpts.feedIDs, viper.GetInt("iot.max-concurrent"))
		if err != nil {
			return err
		}
		return printFields(fields)
	}),
}

var iotGroupingsCmd = &cobra.Command{
	Use:   "groupings [grouping-id]",
	Short: "List a facility's field groupings, or show one grouping",
	Args:  cobra.MaximumNArgs(1),

	RunE: withIoT(func(ctx context.Context, iot contxtapi.IoT, args []string) error {
		var groupings []models.FieldGrouping
		if len(args) == 1 {
			g, err := iot.GetFieldGrouping(ctx, args[0])
			if err != nil {
				return err
			}
			groupings = append(groupings, *g)
		} else {
			if _iotCmdOpts.facilityID == 0 {
				return errors.New("--facility-id is required when listing groupings")
			}

			var err error
			if groupings, err = iot.GetFieldGroupingsForFacility(ctx, _iotCmdOpts.facilityID); err != nil {
				return err
			}
		}

		return printResult(groupings, []string{"ID", "LABEL", "FACILITY", "PUBLIC", "FIELDS"}, func(add func(cols ...interface{})) {
			for _, g := range groupings {
				add(g.ID, g.Label, g.FacilityID, g.IsPublic, len(g.Fields))
			}
		})
	}),
}

var iotDataCmd = &cobra.Command{
	Use:   "data",
	Short: "Fetch time series data for a field",
	Args:  cobra.NoArgs,

	RunE: withIoT(func(ctx context.Context, iot contxtapi.IoT, args []string) error {
		start, err := parseTimeFlag("start", _iotCmdOpts.start)
		if err != nil {
			return err
		}

		var end time.Time
		if _iotCmdOpts.end != "" {
			if end, err = parseTimeFlag("end", _iotCmdOpts.end); err != nil {
				return err
			}
		}

		window, err := models.ParseWindow(_iotCmdOpts.window)
		if err != nil {
			return err
		}

		field := models.Field{OutputID: _iotCmdOpts.outputID, FieldHumanName: _iotCmdOpts.field}
		data, err := iot.GetFieldData(ctx, field, start, end, window, _iotCmdOpts.limit)
		if err != nil {
			return err
		}

		return printResult(data, []string{"TIME", "VALUE"}, func(add func(cols ...interface{})) {
			for _, r := range data.Records {
				add(r.EventTime, r.Value)
			}
		})
	}),
}

func init() {
	iotFeedsCmd.Flags().IntVar(&_iotCmdOpts.facilityID, "facility-id", 0, "only list feeds at this facility")
	iotFeedsCmd.Flags().StringVar(&_iotCmdOpts.key, "key", "", "only list the feed with this key")

	iotFieldsCmd.Flags().IntSliceVar(&_iotCmdOpts.feedIDs, "feed-id", nil, "feed to list fields for, may be repeated")
	iotFieldsCmd.Flags().IntVar(&_iotCmdOpts.facilityID, "facility-id", 0, "list every field at this facility")
	iotFieldsCmd.Flags().BoolVar(&_iotCmdOpts.unprovisioned, "unprovisioned", false, "list fields reported by the feeds but not yet provisioned")
	iotFieldsCmd.Flags().IntVar(&_iotCmdOpts.maxConcurrent, "max-concurrent", 4, "maximum concurrent feed requests")
	errPanic(viper.GetViper().BindPFlag("iot.max-concurrent", iotFieldsCmd.Flags().Lookup("max-concurrent")))

	iotGroupingsCmd.Flags().IntVar(&_iotCmdOpts.facilityID, "facility-id", 0, "facility whose groupings to list")

	iotDataCmd.Flags().IntVar(&_iotCmdOpts.outputID, "output-id", 0, "output the field belongs to")
	iotDataCmd.Flags().StringVar(&_iotCmdOpts.field, "field", "", "field human name, eg. boiler_temperature")
	iotDataCmd.Flags().StringVar(&_iotCmdOpts.start, "start", "", "start of the range, RFC3339")
	iotDataCmd.Flags().StringVar(&_iotCmdOpts.end, "end", "", "end of the range, RFC3339 (default open)")
	iotDataCmd.Flags().StringVar(&_iotCmdOpts.window, "window", "raw", "sample window: raw, minutely, hourly or daily")
	iotDataCmd.Flags().IntVar(&_iotCmdOpts.limit, "limit", 1000, "maximum samples to return")
	for _, f := range []string{"output-id", "field", "start"} {
		errPanic(iotDataCmd.MarkFlagRequired(f))
	}

	iotCmd.AddCommand(iotFeedsCmd, iotFieldsCmd, iotGroupingsCmd, iotDataCmd)
	rootCmd.AddCommand(iotCmd)
}

func withIoT(f func(ctx context.Context, iot contxtapi.IoT, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		iot, err := newIoTService()
		if err != nil {
			return err
		}

		return f(cmd.Context(), iot, args)
	}
}

// fieldsForFeeds fetches the fields of each feed with at most maxConcurrent
// requests in flight; the first failure is returned
func fieldsForFeeds(ctx context.Context, iot contxtapi.IoT, feedIDs []int, maxConcurrent int) ([]models.Field, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	limit := limiter.NewConcurrencyLimiter(maxConcurrent)

	var (
		mu       sync.Mutex
		all      []models.Field
		firstErr error
	)

	for _, id := range feedIDs {
		feedID := id
		limit.ExecuteWithTicket(func(ticket int) {
			logging.Logger(ctx).Debugf("fields worker %d: fetching feed %d", ticket, feedID)

			fields, err := iot.GetFieldsForFeed(ctx, feedID, 0, 0)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			all = append(all, fields...)
		})
	}
	limit.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].FeedID != all[j].FeedID {
			return all[i].FeedID < all[j].FeedID
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

func printFields(fields []models.Field) error {
	return printResult(fields, []string{"ID", "FEED", "OUTPUT", "NAME", "LABEL", "UNITS"}, func(add func(cols ...interface{})) {
		for _, f := range fields {
			add(f.ID, f.FeedID, f.OutputID, f.FieldHumanName, f.Label, f.Units)
		}
	})
}

func parseTimeFlag(name string, value string) (time.Time, error) {
	dt, err := strfmt.ParseDateTime(value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "--%s", name)
	}
	return time.Time(dt), nil
}
