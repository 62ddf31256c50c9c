package controlsim

import (
	"context"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

type transitionCall struct {
	ControlEventID string
	Event          string
}

type fakeControl struct {
	mu            sync.Mutex
	events        []models.EdgeControlEvent
	pollErr       error
	polls         int
	transitionErr error
	transitions   []transitionCall

	// state reported after each transition event
	after map[string]string
}

func (f *fakeControl) GetEdgeControlEvents(ctx context.Context) ([]models.EdgeControlEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	return append([]models.EdgeControlEvent(nil), f.events...), nil
}

func (f *fakeControl) TransitionEvent(ctx context.Context, controlEventID string, transitionEvent string) (*models.TransitionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	f.transitions = append(f.transitions, transitionCall{controlEventID, transitionEvent})

	return &models.TransitionResult{
		ControlEvent: &models.ControlEvent{
			ID:           controlEventID,
			StateMachine: &models.StateMachine{CurrentState: f.after[transitionEvent]},
		},
	}, nil
}

func (f *fakeControl) setEvents(events ...models.EdgeControlEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
}

func (f *fakeControl) setPollErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollErr = err
}

func (f *fakeControl) setTransitionErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitionErr = err
}

func (f *fakeControl) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeControl) calls() []transitionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transitionCall(nil), f.transitions...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2021, 6, 1, 14, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func controlEvent(id string, definition string, state string, start time.Time, end time.Time) models.ControlEvent {
	return models.ControlEvent{
		ID:        id,
		StartTime: strfmt.DateTime(start),
		EndTime:   strfmt.DateTime(end),
		StateMachine: &models.StateMachine{
			StateDefinition: definition,
			CurrentState:    state,
		},
	}
}

func edgeEvent(component string, ce models.ControlEvent) models.EdgeControlEvent {
	return models.EdgeControlEvent{ComponentSlug: component, ControlEvent: &ce}
}

const testConfigYAML = `
definitions:
  - slug: demand-response
    states:
      pending:
        controllable: true
        delay: 10
        onSuccess: start
        workMessage: preparing to shed load
      running:
        controllable: true
        mode: runUntilEndTime
        onSuccess: complete
      approval:
        controllable: false
      broken:
        controllable: true
  - slug: curtailment
    states:
      curtailing:
        controllable: true
        delay: 1m30s
        onSuccess: restore
`

func testConfigs() *SimulationConfigs {
	c, err := ParseConfig([]byte(testConfigYAML))
	if err != nil {
		panic(err)
	}
	return c
}
