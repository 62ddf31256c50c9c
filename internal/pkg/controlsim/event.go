package controlsim

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

// EventSimulator drives the remote state machine of one control event for
// one component, following a DefinitionConfig
type EventSimulator struct {
	control    ControlAPI
	event      models.ControlEvent
	definition *DefinitionConfig
	component  string
	hooks      EventHooks
	now        func() time.Time

	currentState   StateName
	endTime        time.Time
	nextTransition *time.Time

	// the state nextTransition was scheduled in
	armedFor StateName
}

func NewEventSimulator(control ControlAPI, event models.ControlEvent, definition *DefinitionConfig, component string, hooks EventHooks) *EventSimulator {
	return &EventSimulator{
		control:      control,
		event:        event,
		definition:   definition,
		component:    component,
		hooks:        hooks,
		now:          time.Now,
		currentState: StateName(event.State()),
		endTime:      event.End(),
	}
}

func (s *EventSimulator) WithClock(now func() time.Time) *EventSimulator {
	ns := *s
	ns.now = now
	return &ns
}

func (s *EventSimulator) ControlEventID() string {
	return s.event.ID
}

func (s *EventSimulator) CurrentState() StateName {
	return s.currentState
}

func (s *EventSimulator) EndTime() time.Time {
	return s.endTime
}

// NextTransition returns when the next transition is due, if one is scheduled
func (s *EventSimulator) NextTransition() (time.Time, bool) {
	if s.nextTransition == nil {
		return time.Time{}, false
	}
	return *s.nextTransition, true
}

// Check brings the simulator up to date with the latest reported state and
// fires, schedules or waits as the state's configuration says
func (s *EventSimulator) Check(ctx context.Context, fs *FrameworkState) error {
	ctx = logging.WithComponent(ctx, s.component)
	log := logging.Logger(ctx)

	cfg, ok := s.definition.StateConfig(fs.State)
	if !ok {
		s.currentState = fs.State
		log.Warnf("no simulation config for state %s of definition %s", fs.State, s.definition.Slug)
		return nil
	}

	if !fs.EndTime.Equal(s.endTime) {
		log.Infof("end time changed from %s to %s", s.endTime.Format(time.RFC3339), fs.EndTime.Format(time.RFC3339))
		s.endTime = fs.EndTime
	}

	if !cfg.Controllable && fs.IsStale {
		log.Debugf("state %s not yet confirmed by the control API, waiting for sync", fs.State)
		return nil
	}

	s.currentState = fs.State
	if s.nextTransition != nil && s.armedFor != s.currentState {
		log.Infof("state moved from %s to %s, dropping pending transition", s.armedFor, s.currentState)
		s.nextTransition = nil
	}

	switch {
	case !cfg.Controllable:
		log.Debugf("state %s is waiting on external input", s.currentState)

	case s.nextTransition != nil && !s.now().Before(*s.nextTransition):
		if err := s.Transition(ctx, fs); err != nil {
			return err
		}

	case s.nextTransition == nil:
		s.schedule(ctx, cfg)
	}

	if hook, ok := s.hooks[s.currentState]; ok {
		hook.OnState(ctx, *fs, s.event)
	}

	return nil
}

func (s *EventSimulator) schedule(ctx context.Context, cfg StateConfig) {
	log := logging.Logger(ctx)

	next, ok := cfg.schedule(s.now(), s.endTime)
	if !ok {
		log.Warnf("state %s needs onSuccess and exactly one of delay or runUntilEndTime, not scheduling", s.currentState)
		return
	}

	s.nextTransition = &next
	s.armedFor = s.currentState

	if cfg.WorkMessage != "" {
		log.Info(cfg.WorkMessage)
	}
	log.Infof("will send %s at %s", cfg.OnSuccess, next.Format(time.RFC3339))
}

// Transition sends the current state's onSuccess event to the Control API.
// On success fs is marked stale until the next poll refreshes it.
func (s *EventSimulator) Transition(ctx context.Context, fs *FrameworkState) error {
	cfg, ok := s.definition.StateConfig(s.currentState)
	if !ok || cfg.OnSuccess == "" {
		return fmt.Errorf("no onSuccess event configured for state %s of definition %s", s.currentState, s.definition.Slug)
	}

	result, err := s.control.TransitionEvent(ctx, fs.ControlEventID, cfg.OnSuccess)
	if err != nil {
		transitionsTotal.WithLabelValues(s.definition.Slug, cfg.OnSuccess, "error").Inc()
		return errors.Wrapf(err, "sending %s to control event %s", cfg.OnSuccess, fs.ControlEventID)
	}
	transitionsTotal.WithLabelValues(s.definition.Slug, cfg.OnSuccess, "ok").Inc()

	fs.IsStale = true
	s.nextTransition = nil

	previous := s.currentState
	if result != nil && result.NewState() != "" {
		s.currentState = StateName(result.NewState())
	}

	logging.Logger(ctx).Infof("sent %s: %s -> %s", cfg.OnSuccess, previous, s.currentState)
	return nil
}
