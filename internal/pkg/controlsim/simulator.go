package controlsim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

const (
	DefaultInterval   = time.Second * 5
	DefaultLeadBuffer = time.Minute * 3
)

// trackedComponent's state and sim belong to the poll loop; status is the
// copy Snapshot serves and is only touched under Simulator.mu
type trackedComponent struct {
	state  FrameworkState
	sim    *EventSimulator
	status ComponentStatus
}

func (t *trackedComponent) refreshStatus(component string) {
	t.status = ComponentStatus{
		Component:    component,
		Definition:   t.sim.definition.Slug,
		Framework:    t.state,
		CurrentState: t.sim.CurrentState(),
		EndTime:      t.sim.EndTime(),
	}
	if next, ok := t.sim.NextTransition(); ok {
		t.status.NextTransition = &next
	}
}

// ComponentStatus is a point in time view of one tracked component
type ComponentStatus struct {
	Component      string         `json:"component"`
	Definition     string         `json:"definition"`
	Framework      FrameworkState `json:"framework"`
	CurrentState   StateName      `json:"currentState"`
	EndTime        time.Time      `json:"endTime"`
	NextTransition *time.Time     `json:"nextTransition,omitempty"`
}

// Simulator polls the Control API and keeps one EventSimulator per component
// with an active, locally configured control event
type Simulator struct {
	control    ControlAPI
	configs    *SimulationConfigs
	hooks      EventHooks
	interval   time.Duration
	leadBuffer time.Duration
	now        func() time.Time

	// guards the tracked map and each component's status; never held while
	// the Control API is called or hooks run
	mu      sync.RWMutex
	tracked map[string]*trackedComponent
}

// NewSimulator fails if a hook names a state that no definition configures
func NewSimulator(control ControlAPI, configs *SimulationConfigs, hooks EventHooks) (*Simulator, error) {
	if control == nil {
		return nil, errors.New("simulator needs a control API")
	}
	if configs == nil {
		configs = &SimulationConfigs{}
	}
	if hooks == nil {
		hooks = EventHooks{}
	}

	if err := hooks.validate(configs); err != nil {
		return nil, err
	}

	return &Simulator{
		control:    control,
		configs:    configs,
		hooks:      hooks,
		interval:   DefaultInterval,
		leadBuffer: DefaultLeadBuffer,
		now:        time.Now,
		tracked:    map[string]*trackedComponent{},
	}, nil
}

// WithInterval sets the pause between polls; call before Run
func (s *Simulator) WithInterval(d time.Duration) *Simulator {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithLeadBuffer sets how long before its start an event starts being simulated
func (s *Simulator) WithLeadBuffer(d time.Duration) *Simulator {
	s.leadBuffer = d
	return s
}

func (s *Simulator) WithClock(now func() time.Time) *Simulator {
	s.now = now
	return s
}

func (s *Simulator) Interval() time.Duration {
	return s.interval
}

// Run polls until ctx is cancelled.  Cycle errors are logged and the loop
// carries on with the next interval.
func (s *Simulator) Run(ctx context.Context) error {
	logging.Logger(ctx).Infof("simulator: polling every %s", s.interval)

	for {
		select {
		case <-ctx.Done():
			logging.Logger(ctx).Info("simulator: shutting down")
			return nil
		case <-time.After(s.interval):
		}

		cycleCtx := logging.WithTxnID(ctx, uuid.New().String())
		if err := s.RunCycle(cycleCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				logging.Logger(ctx).Info("simulator: shutting down")
				return nil
			}
			logging.Logger(cycleCtx).WithError(err).Error("simulator: cycle failed")
		}
	}
}

// RunCycle polls once, reconciles the tracked components with the active
// events and checks each of them.  It is not safe to call concurrently.
func (s *Simulator) RunCycle(ctx context.Context) (err error) {
	cyclesTotal.Inc()
	defer func() {
		if err != nil {
			cycleErrorsTotal.Inc()
		}
	}()

	logging.Logger(ctx).Debug("simulator: fetching control events")
	events, err := s.control.GetEdgeControlEvents(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching edge control events")
	}

	checks := s.reconcileAll(ctx, events)

	for _, component := range checks {
		s.mu.RLock()
		t, ok := s.tracked[component]
		s.mu.RUnlock()
		if !ok {
			continue
		}

		fs := t.state
		err = t.sim.Check(ctx, &fs)

		s.mu.Lock()
		t.state = fs
		t.refreshStatus(component)
		s.mu.Unlock()

		if err != nil {
			return err
		}
	}

	return nil
}

// reconcileAll updates the tracked table from the polled events, drops
// components whose event is no longer active and returns the remaining
// components in check order
func (s *Simulator) reconcileAll(ctx context.Context, events []models.EdgeControlEvent) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		trackedComponents.Set(float64(len(s.tracked)))
	}()

	active := map[string]bool{}
	for i := range events {
		s.reconcile(ctx, &events[i], active)
	}

	components := make([]string, 0, len(s.tracked))
	for component, t := range s.tracked {
		if !active[t.sim.ControlEventID()] {
			logging.Logger(logging.WithComponent(ctx, component)).Info("control event no longer active, dropping")
			delete(s.tracked, component)
			continue
		}
		t.refreshStatus(component)
		components = append(components, component)
	}
	sort.Strings(components)

	return components
}

func (s *Simulator) reconcile(ctx context.Context, ev *models.EdgeControlEvent, active map[string]bool) {
	if ev.ControlEvent == nil {
		return
	}
	ce := ev.ControlEvent
	active[ce.ID] = true

	log := logging.Logger(logging.WithComponent(ctx, ev.ComponentSlug))

	t, ok := s.tracked[ev.ComponentSlug]
	if !ok {
		definition, ok := s.configs.DefinitionConfigForSlug(ce.DefinitionSlug())
		if !ok {
			log.Debugf("no simulation config for definition %s, ignoring", ce.DefinitionSlug())
			return
		}

		if ce.Start().Add(-s.leadBuffer).After(s.now()) {
			log.Debugf("control event %s starts at %s, not simulating yet", ce.ID, ce.Start().Format(time.RFC3339))
			return
		}

		log.Infof("simulating control event %s with definition %s from state %s", ce.ID, definition.Slug, ce.State())
		s.tracked[ev.ComponentSlug] = &trackedComponent{
			state: newFrameworkState(ce),
			sim:   NewEventSimulator(s.control, *ce, definition, ev.ComponentSlug, s.hooks).WithClock(s.now),
		}
		return
	}

	if t.state.ControlEventID != ce.ID {
		log.Infof("control event changed from %s to %s, resetting for next cycle", t.state.ControlEventID, ce.ID)
		delete(s.tracked, ev.ComponentSlug)
		return
	}

	t.state = newFrameworkState(ce)
}

// Snapshot returns the tracked components, ordered by component slug
func (s *Simulator) Snapshot() []ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ComponentStatus, 0, len(s.tracked))
	for _, t := range s.tracked {
		out = append(out, t.status)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}
