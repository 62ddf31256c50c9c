package models

import (
	"fmt"
	"strings"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

/*
 *   IoT terminology:
 *     Feed     - a data source (eg. a utility meter) with a set of fields
 *     Field    - one time series produced by a feed
 *     Grouping - a named group of fields
 */

// Feed is a data source registered with the IoT API
type Feed struct {
	ID         int              `json:"id"`
	Key        string           `json:"key"`
	FacilityID int              `json:"facility_id"`
	Timezone   string           `json:"timezone,omitempty"`
	Status     string           `json:"status,omitempty"`
	FeedTypeID int              `json:"feed_type_id,omitempty"`
	CreatedAt  *strfmt.DateTime `json:"created_at,omitempty"`
	UpdatedAt  *strfmt.DateTime `json:"updated_at,omitempty"`
}

// Field is one time series of a feed
type Field struct {
	ID              int    `json:"id"`
	FeedID          int    `json:"feed_id"`
	OutputID        int    `json:"output_id"`
	Label           string `json:"label"`
	FieldDescriptor string `json:"field_descriptor"`
	FieldHumanName  string `json:"field_human_name"`
	ValueType       string `json:"value_type,omitempty"`
	Units           string `json:"units,omitempty"`
	IsTotalizer     bool   `json:"is_totalizer"`
	IsHidden        bool   `json:"is_hidden"`
	IsDefault       bool   `json:"is_default"`
}

// Validate checks that a field can be used to address field data
func (m *Field) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.MinimumInt("output_id", "body", int64(m.OutputID), 1, false); err != nil {
		res = append(res, err)
	}

	if err := validate.RequiredString("field_human_name", "body", m.FieldHumanName); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// UnprovisionedField is a field reported by a feed but not yet provisioned
type UnprovisionedField struct {
	FieldDescriptor string `json:"field_descriptor"`
	OutputID        int    `json:"output_id"`
	LastValue       string `json:"last_value,omitempty"`
}

// FieldGrouping is a named set of fields at a facility
type FieldGrouping struct {
	ID          string  `json:"id"`
	FacilityID  int     `json:"facility_id"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	IsPublic    bool    `json:"is_public"`
	Fields      []Field `json:"fields,omitempty"`
}

// Window is the aggregation window, in seconds, of field data
type Window int

const (
	WindowRaw      Window = 0
	WindowMinutely Window = 60
	WindowHourly   Window = 3600
	WindowDaily    Window = 86400
)

var windowNames = map[string]Window{
	"raw":      WindowRaw,
	"minutely": WindowMinutely,
	"hourly":   WindowHourly,
	"daily":    WindowDaily,
}

// ParseWindow converts a window name (raw, minutely, hourly, daily) to a Window
func ParseWindow(name string) (Window, error) {
	w, ok := windowNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown window %q, expected one of raw, minutely, hourly, daily", name)
	}
	return w, nil
}

// FieldDataPoint is a single sample of a field
type FieldDataPoint struct {
	EventTime strfmt.DateTime `json:"event_time"`
	Value     interface{}     `json:"value"`
}

// FieldData is a page of samples for a field
type FieldData struct {
	Meta    map[string]interface{} `json:"meta,omitempty"`
	Records []FieldDataPoint       `json:"records"`
}
