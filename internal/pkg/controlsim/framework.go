package controlsim

import (
	"context"
	"time"

	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

// ControlAPI is the part of the Control API the simulator drives
type ControlAPI interface {
	GetEdgeControlEvents(ctx context.Context) ([]models.EdgeControlEvent, error)
	TransitionEvent(ctx context.Context, controlEventID string, transitionEvent string) (*models.TransitionResult, error)
}

// FrameworkState is what the Control API last reported for a component
type FrameworkState struct {
	ControlEventID string    `json:"controlEventId"`
	EndTime        time.Time `json:"endTime"`
	State          StateName `json:"state"`

	// set once this process has transitioned the event, cleared when a
	// poll confirms the new state
	IsStale bool `json:"isStale"`
}

func newFrameworkState(ev *models.ControlEvent) FrameworkState {
	return FrameworkState{
		ControlEventID: ev.ID,
		EndTime:        ev.End(),
		State:          StateName(ev.State()),
	}
}
