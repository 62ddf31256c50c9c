package models

import (
	"encoding/json"
	"time"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// Nodes is a GraphQL connection as returned by the control API
type Nodes[T any] struct {
	Nodes []T `json:"nodes"`
}

// Items returns the connection's nodes, tolerating a missing connection
func (n *Nodes[T]) Items() []T {
	if n == nil {
		return nil
	}
	return n.Nodes
}

// StateMachine is the remote state machine instance attached to a control event
type StateMachine struct {
	StateDefinition string `json:"stateDefinition"`
	CurrentState    string `json:"currentState"`
}

// ControlEventLog is one entry of a control event's audit trail
type ControlEventLog struct {
	EventTime     strfmt.DateTime `json:"eventTime"`
	EventType     string          `json:"eventType"`
	Label         string          `json:"label,omitempty"`
	ByUserID      string          `json:"byUserId,omitempty"`
	ByEdgeNodeID  string          `json:"byEdgeNodeId,omitempty"`
	PreviousState string          `json:"previousState,omitempty"`
	CurrentState  string          `json:"currentState,omitempty"`
	Data          interface{}     `json:"data,omitempty"`
}

// ControlEvent is one facility-control action in progress
type ControlEvent struct {
	ID           string                  `json:"id"`
	StartTime    strfmt.DateTime         `json:"startTime"`
	EndTime      strfmt.DateTime         `json:"endTime"`
	CurrentState string                  `json:"currentState,omitempty"`
	StateMachine *StateMachine           `json:"stateMachine,omitempty"`
	Logs         *Nodes[ControlEventLog] `json:"controlEventLogs,omitempty"`
}

// Start returns the start time as a time.Time
func (m ControlEvent) Start() time.Time {
	return time.Time(m.StartTime)
}

// End returns the end time as a time.Time
func (m ControlEvent) End() time.Time {
	return time.Time(m.EndTime)
}

// DefinitionSlug returns the slug of the state definition driving the event
func (m ControlEvent) DefinitionSlug() string {
	if m.StateMachine == nil {
		return ""
	}
	return m.StateMachine.StateDefinition
}

// State returns the state the remote state machine reports
func (m ControlEvent) State() string {
	if m.StateMachine == nil {
		return m.CurrentState
	}
	return m.StateMachine.CurrentState
}

// Validate checks the fields the simulator depends on
func (m *ControlEvent) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("controlevent.id", "body", m.ID); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("controlevent.startTime", "body", m.StartTime); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("controlevent.endTime", "body", m.EndTime); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("controlevent.stateMachine", "body", m.StateMachine); err != nil {
		res = append(res, err)
	} else if err := validate.RequiredString("controlevent.stateMachine.stateDefinition", "body", m.StateMachine.StateDefinition); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// EdgeControlEvent pairs an active control event with the component it targets
type EdgeControlEvent struct {
	ComponentSlug string        `json:"componentslug"`
	ControlEvent  *ControlEvent `json:"controlevent"`
}

// Validate checks an edge control event returned by the control API
func (m *EdgeControlEvent) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("componentslug", "body", m.ComponentSlug); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("controlevent", "body", m.ControlEvent); err != nil {
		res = append(res, err)
	} else if err := m.ControlEvent.Validate(formats); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// TransitionResult is returned by a transitionControlEvent mutation
type TransitionResult struct {
	ControlEvent *ControlEvent `json:"controlEvent"`
}

// NewState returns the state the remote reported after the transition
func (m TransitionResult) NewState() string {
	if m.ControlEvent == nil {
		return ""
	}
	return m.ControlEvent.State()
}

// EventProposal is a proposed (not yet approved) control event
type EventProposal struct {
	ID           string          `json:"id"`
	StartTime    strfmt.DateTime `json:"startTime"`
	EndTime      strfmt.DateTime `json:"endTime"`
	CurrentState string          `json:"currentState"`
}

// Organization is a tenant of the platform
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ControllableComponent is an edge controllable device
type ControllableComponent struct {
	ID            string `json:"id,omitempty"`
	Slug          string `json:"slug"`
	Label         string `json:"label"`
	Description   string `json:"description,omitempty"`
	IsSchedulable bool   `json:"isSchedulable,omitempty"`
}

// ProjectSuccessMetric is a measure a project is judged by
type ProjectSuccessMetric struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Units       string `json:"units,omitempty"`
	Description string `json:"description,omitempty"`
}

// Project is a control project that facilities enroll in
type Project struct {
	ID          string                       `json:"id"`
	Name        string                       `json:"name"`
	Description string                       `json:"description,omitempty"`
	Metrics     *Nodes[ProjectSuccessMetric] `json:"projectSuccessMetrics,omitempty"`
	Facilities  *Nodes[FacilityProject]      `json:"facilityProjects,omitempty"`
}

// FacilityProject is a facility's enrollment in a project
type FacilityProject struct {
	EnrollmentStatus string    `json:"enrollmentStatus"`
	Project          *Project  `json:"project,omitempty"`
	Facility         *Facility `json:"facility,omitempty"`
}

// FacilityUser is a user holding a role at a facility
type FacilityUser struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Facility is a site under control
type Facility struct {
	ID             int                           `json:"id"`
	Name           string                        `json:"name"`
	OrganizationID string                        `json:"organizationId,omitempty"`
	Controllables  *Nodes[ControllableComponent] `json:"controllableComponents,omitempty"`
	Projects       *Nodes[FacilityProject]       `json:"facilityProjects,omitempty"`
	Users          *Nodes[FacilityUser]          `json:"facilityUsers,omitempty"`
	EventProposals *Nodes[EventProposal]         `json:"eventProposals,omitempty"`
}

// EdgeNode is an on-site agent controlling components
type EdgeNode struct {
	ClientID       string                        `json:"clientId"`
	FacilityID     int                           `json:"facilityId"`
	OrganizationID string                        `json:"organizationId"`
	LastFetchTime  *strfmt.DateTime              `json:"lastFetchTime,omitempty"`
	Facility       *Facility                     `json:"facility,omitempty"`
	Organization   *Organization                 `json:"organization,omitempty"`
	Components     *Nodes[ControllableComponent] `json:"controllableComponentsByControlledByEdgeNodeClientId,omitempty"`
}

// StateDefinition is a remote state machine definition
type StateDefinition struct {
	Slug        string          `json:"slug"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Definition  json.RawMessage `json:"definition,omitempty"`
}
