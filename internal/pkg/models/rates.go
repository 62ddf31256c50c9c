package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-openapi/strfmt"
)

// UtilityProvider is an electric utility
type UtilityProvider struct {
	ID        int              `json:"id"`
	Label     string           `json:"label"`
	CreatedAt *strfmt.DateTime `json:"createdAt,omitempty"`
	UpdatedAt *strfmt.DateTime `json:"updatedAt,omitempty"`
}

// TierRate is a price applying between two usage thresholds
type TierRate struct {
	ID             int     `json:"id"`
	UnitStartValue float64 `json:"unit_start_value"`
	UnitStopValue  float64 `json:"unit_stop_value"`
	Unit           string  `json:"unit"`
	Rate           float64 `json:"rate"`
	Adjustment     float64 `json:"adjustment,omitempty"`
}

// SeasonPeriod is a weekly time window within a season, days counted from
// Monday (0) to Sunday (6)
type SeasonPeriod struct {
	ID             int        `json:"id"`
	DayOfWeekStart int        `json:"day_of_week_start"`
	HourStart      int        `json:"hour_start"`
	MinuteStart    int        `json:"minute_start"`
	DayOfWeekEnd   int        `json:"day_of_week_end"`
	HourEnd        int        `json:"hour_end"`
	MinuteEnd      int        `json:"minute_end"`
	PeriodName     string     `json:"period_name"`
	EnergyRates    []TierRate `json:"energy_tier_rates,omitempty"`
	DemandRates    []TierRate `json:"demand_tier_rates,omitempty"`
}

// Season is a range of the year with its own set of periods
type Season struct {
	ID            int            `json:"id"`
	SeasonName    string         `json:"season_name"`
	SeasonType    string         `json:"season_type,omitempty"`
	StartMonth    int            `json:"start_month"`
	StartDay      int            `json:"start_day"`
	EndMonth      int            `json:"end_month"`
	EndDay        int            `json:"end_day"`
	EnergyPeriods []SeasonPeriod `json:"energy_season_periods,omitempty"`
	DemandPeriods []SeasonPeriod `json:"demand_season_periods,omitempty"`
}

// Contains reports whether the season covers the given calendar day
func (s Season) Contains(day time.Time) bool {
	m, d := int(day.Month()), day.Day()
	return s.StartMonth <= m && m <= s.EndMonth && s.StartDay <= d && d <= s.EndDay
}

// FixedCharge is a flat fee of a rate schedule
type FixedCharge struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// RateSchedule is a utility tariff
type RateSchedule struct {
	ID                 int              `json:"id"`
	Label              string           `json:"label"`
	Description        string           `json:"description,omitempty"`
	RateScheduleTypeID int              `json:"rate_schedule_type_id"`
	UtilityProviderID  int              `json:"utility_provider_id"`
	UtilityProvider    *UtilityProvider `json:"utility_provider,omitempty"`
	Sector             string           `json:"sector,omitempty"`
	Source             string           `json:"source,omitempty"`
	URI                string           `json:"uri,omitempty"`
	IsRTPRate          bool             `json:"is_rtp_rate"`
	IsPublished        bool             `json:"is_published"`
	FacilityID         *int             `json:"facility_id,omitempty"`
	EffectiveStartDate *strfmt.DateTime `json:"effective_start_date,omitempty"`
	EffectiveEndDate   *strfmt.DateTime `json:"effective_end_date,omitempty"`
	FixedCharges       []FixedCharge    `json:"rate_schedule_fixed_charges,omitempty"`
	EnergySeasons      []Season         `json:"energy_seasons,omitempty"`
	DemandSeasons      []Season         `json:"demand_seasons,omitempty"`
	CreatedAt          *strfmt.DateTime `json:"created_at,omitempty"`
	UpdatedAt          *strfmt.DateTime `json:"updated_at,omitempty"`
}

// RateInterval is the price applying during one slice of a day
type RateInterval struct {
	Start      time.Time
	End        time.Time
	Rate       float64
	PeriodName string
}

// ErrRTPRate is returned when usage rates are requested for a real-time-pricing schedule
var ErrRTPRate = fmt.Errorf("cannot calculate rates for a real-time-pricing schedule")

// EnergyRatesForDay returns the energy rate intervals in effect on the given day,
// ordered by start time.  Only the first tier of each period is used.
func (r RateSchedule) EnergyRatesForDay(day time.Time) ([]RateInterval, error) {
	if r.IsRTPRate {
		return nil, ErrRTPRate
	}

	y, mo, d := day.Date()
	weekday := (int(day.Weekday()) + 6) % 7

	var out []RateInterval
	for _, season := range r.EnergySeasons {
		if !season.Contains(day) {
			continue
		}

		for _, p := range season.EnergyPeriods {
			if weekday < p.DayOfWeekStart || weekday > p.DayOfWeekEnd || len(p.EnergyRates) == 0 {
				continue
			}

			out = append(out, RateInterval{
				Start:      time.Date(y, mo, d, p.HourStart, p.MinuteStart, 0, 0, day.Location()),
				End:        time.Date(y, mo, d, p.HourEnd, p.MinuteEnd, 59, 0, day.Location()),
				Rate:       p.EnergyRates[0].Rate,
				PeriodName: p.PeriodName,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
