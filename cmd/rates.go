package cmd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jake-scott/contxt-cli/internal/pkg/contxtapi"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

var _ratesCmdOpts struct {
	providerID int
	facilityID int
	pageSize   int
	maxRecords int
	day        string
}

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Utility rate functions",
}

var ratesProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List utility providers",
	Args:  cobra.NoArgs,

	RunE: withRates(func(ctx context.Context, rates contxtapi.Rates, args []string) error {
		providers, err := rates.GetProviders(ctx, ratesPageOptions())
		if err != nil {
			return err
		}

		return printResult(providers, []string{"ID", "LABEL", "UPDATED"}, func(add func(cols ...interface{})) {
			for _, p := range providers {
				add(p.ID, p.Label, p.UpdatedAt)
			}
		})
	}),
}

var ratesSchedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "List the rate schedules of a provider or a facility",
	Args:  cobra.NoArgs,

	RunE: withRates(func(ctx context.Context, rates contxtapi.Rates, args []string) error {
		var (
			schedules []models.RateSchedule
			err       error
		)

		switch {
		case _ratesCmdOpts.providerID != 0 && _ratesCmdOpts.facilityID != 0:
			return errors.New("--provider-id and --facility-id are mutually exclusive")
		case _ratesCmdOpts.providerID != 0:
			schedules, err = rates.GetSchedulesForProvider(ctx, _ratesCmdOpts.providerID, ratesPageOptions())
		case _ratesCmdOpts.facilityID != 0:
			schedules, err = rates.GetSchedulesForFacility(ctx, _ratesCmdOpts.facilityID, ratesPageOptions())
		default:
			return errors.New("one of --provider-id or --facility-id is required")
		}
		if err != nil {
			return err
		}

		return printResult(schedules, []string{"ID", "LABEL", "PROVIDER", "SECTOR", "RTP", "EFFECTIVE FROM", "EFFECTIVE TO"}, func(add func(cols ...interface{})) {
			for _, s := range schedules {
				add(s.ID, s.Label, s.UtilityProviderID, s.Sector, s.IsRTPRate, s.EffectiveStartDate, s.EffectiveEndDate)
			}
		})
	}),
}

var ratesScheduleCmd = &cobra.Command{
	Use:   "schedule <schedule-id>",
	Short: "Show the energy rates a schedule charges on a day",
	Args:  cobra.ExactArgs(1),

	RunE: withRates(func(ctx context.Context, rates contxtapi.Rates, args []string) error {
		id, err := intArg("schedule-id", args[0])
		if err != nil {
			return err
		}

		day := time.Now()
		if _ratesCmdOpts.day != "" {
			if day, err = time.ParseInLocation("2006-01-02", _ratesCmdOpts.day, time.Local); err != nil {
				return errors.Wrap(err, "--day must be YYYY-MM-DD")
			}
		}

		schedule, err := rates.GetSchedule(ctx, id)
		if err != nil {
			return err
		}

		intervals, err := schedule.EnergyRatesForDay(day)
		if err != nil {
			return errors.Wrapf(err, "schedule %d", id)
		}

		return printResult(schedule, []string{"PERIOD", "START", "END", "RATE"}, func(add func(cols ...interface{})) {
			for _, i := range intervals {
				add(i.PeriodName, i.Start.Format("15:04"), i.End.Format("15:04"), i.Rate)
			}
		})
	}),
}

func init() {
	ratesCmd.PersistentFlags().IntVar(&_ratesCmdOpts.pageSize, "page-size", 100, "records fetched per request")
	ratesCmd.PersistentFlags().IntVar(&_ratesCmdOpts.maxRecords, "max-records", 0, "stop after this many records (0 fetches all)")

	ratesSchedulesCmd.Flags().IntVar(&_ratesCmdOpts.providerID, "provider-id", 0, "utility provider")
	ratesSchedulesCmd.Flags().IntVar(&_ratesCmdOpts.facilityID, "facility-id", 0, "facility")

	ratesScheduleCmd.Flags().StringVar(&_ratesCmdOpts.day, "day", "", "day to show rates for, YYYY-MM-DD (default today)")

	ratesCmd.AddCommand(ratesProvidersCmd, ratesSchedulesCmd, ratesScheduleCmd)
	rootCmd.AddCommand(ratesCmd)
}

func withRates(f func(ctx context.Context, rates contxtapi.Rates, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rates, err := newRatesService()
		if err != nil {
			return err
		}

		return f(cmd.Context(), rates, args)
	}
}

func ratesPageOptions() contxtapi.PageOptions {
	return contxtapi.PageOptions{
		PageSize:   _ratesCmdOpts.pageSize,
		MaxRecords: _ratesCmdOpts.maxRecords,
	}
}
