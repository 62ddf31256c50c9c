package controlsim

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

type eventFixture struct {
	control *fakeControl
	clock   *fakeClock
	event   models.ControlEvent
	sim     *EventSimulator
	fs      FrameworkState
}

func newEventFixture(t *testing.T, state string, hooks EventHooks) *eventFixture {
	t.Helper()

	control := &fakeControl{after: map[string]string{
		"start":    "running",
		"complete": "approval",
		"restore":  "restored",
	}}
	clock := newFakeClock()
	ev := controlEvent("ce-1", "demand-response", state, clock.Now(), clock.Now().Add(time.Hour))

	def, ok := testConfigs().DefinitionConfigForSlug("demand-response")
	require.True(t, ok)

	return &eventFixture{
		control: control,
		clock:   clock,
		event:   ev,
		sim:     NewEventSimulator(control, ev, def, "chiller-1", hooks).WithClock(clock.Now),
		fs:      newFrameworkState(&ev),
	}
}

func (f *eventFixture) check(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sim.Check(context.Background(), &f.fs))
}

func TestFixedDelayTransition(t *testing.T) {
	f := newEventFixture(t, "pending", nil)
	t0 := f.clock.Now()

	f.check(t)
	next, ok := f.sim.NextTransition()
	require.True(t, ok)
	assert.Equal(t, t0.Add(10*time.Second), next)
	assert.Empty(t, f.control.calls())

	f.clock.Advance(5 * time.Second)
	f.check(t)
	again, ok := f.sim.NextTransition()
	require.True(t, ok)
	assert.Equal(t, next, again)
	assert.Empty(t, f.control.calls())

	f.clock.Advance(6 * time.Second)
	f.check(t)
	assert.Equal(t, []transitionCall{{"ce-1", "start"}}, f.control.calls())
	assert.True(t, f.fs.IsStale)
	assert.Equal(t, StateName("running"), f.sim.CurrentState())
	_, ok = f.sim.NextTransition()
	assert.False(t, ok)
}

func TestTimerDueAtScheduledInstant(t *testing.T) {
	f := newEventFixture(t, "pending", nil)

	f.check(t)
	f.clock.Advance(10 * time.Second)
	f.check(t)
	assert.Len(t, f.control.calls(), 1)
}

func TestRepeatedCheckBeforeDueIsIdempotent(t *testing.T) {
	f := newEventFixture(t, "pending", nil)

	f.check(t)
	first, _ := f.sim.NextTransition()
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Second)
		f.check(t)
		next, ok := f.sim.NextTransition()
		require.True(t, ok)
		assert.Equal(t, first, next)
	}
	assert.Empty(t, f.control.calls())
}

func TestNonControllableNeverSchedules(t *testing.T) {
	f := newEventFixture(t, "approval", nil)

	for i := 0; i < 3; i++ {
		f.check(t)
		_, ok := f.sim.NextTransition()
		assert.False(t, ok)
		f.clock.Advance(time.Hour)
	}
	assert.Empty(t, f.control.calls())
	assert.Equal(t, StateName("approval"), f.sim.CurrentState())
}

func TestStaleNonControllableIsIgnored(t *testing.T) {
	var hooked int
	hooks := EventHooks{"approval": HookFunc(func(context.Context, FrameworkState, models.ControlEvent) { hooked++ })}
	f := newEventFixture(t, "running", hooks)

	// running ends at the event end time and moves to approval
	f.check(t)
	f.clock.Advance(time.Hour)
	f.check(t)
	require.Equal(t, []transitionCall{{"ce-1", "complete"}}, f.control.calls())
	assert.Equal(t, StateName("approval"), f.sim.CurrentState())
	assert.Equal(t, 1, hooked)

	// a stale snapshot reporting some other state is not adopted
	f.fs.State = "approval"
	f.sim.currentState = "pending"
	f.check(t)
	assert.Equal(t, StateName("pending"), f.sim.CurrentState())
	_, ok := f.sim.NextTransition()
	assert.False(t, ok)
	assert.Equal(t, 1, hooked, "hooks are skipped while stale")

	// once a poll confirms the state it is adopted
	f.fs.IsStale = false
	f.check(t)
	assert.Equal(t, StateName("approval"), f.sim.CurrentState())
	assert.Equal(t, 2, hooked)
}

func TestRunUntilEndTimeUsesLatestEndTime(t *testing.T) {
	f := newEventFixture(t, "running", nil)
	newEnd := f.fs.EndTime.Add(30 * time.Minute)

	// end time moves before the timer is set
	f.fs.EndTime = newEnd
	f.check(t)
	assert.Equal(t, newEnd, f.sim.EndTime())
	next, ok := f.sim.NextTransition()
	require.True(t, ok)
	assert.Equal(t, newEnd, next)
}

func TestEndTimeChangeDoesNotMovePendingTimer(t *testing.T) {
	f := newEventFixture(t, "running", nil)
	originalEnd := f.fs.EndTime

	f.check(t)
	f.fs.EndTime = originalEnd.Add(time.Hour)
	f.check(t)

	assert.Equal(t, originalEnd.Add(time.Hour), f.sim.EndTime())
	next, _ := f.sim.NextTransition()
	assert.Equal(t, originalEnd, next)
}

func TestMissingStateConfigIsANoop(t *testing.T) {
	f := newEventFixture(t, "unheard-of", nil)

	f.check(t)
	assert.Equal(t, StateName("unheard-of"), f.sim.CurrentState())
	_, ok := f.sim.NextTransition()
	assert.False(t, ok)
	assert.Empty(t, f.control.calls())
}

func TestMisconfiguredStateIsNotScheduled(t *testing.T) {
	f := newEventFixture(t, "broken", nil)

	f.check(t)
	f.clock.Advance(time.Hour)
	f.check(t)
	_, ok := f.sim.NextTransition()
	assert.False(t, ok)
	assert.Empty(t, f.control.calls())
}

func TestTransitionFailureLeavesTimerAndStaleness(t *testing.T) {
	f := newEventFixture(t, "pending", nil)

	f.check(t)
	f.clock.Advance(11 * time.Second)
	f.control.setTransitionErr(errors.New("502 bad gateway"))

	err := f.sim.Check(context.Background(), &f.fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502 bad gateway")
	assert.False(t, f.fs.IsStale)
	_, ok := f.sim.NextTransition()
	assert.True(t, ok)
	assert.Equal(t, StateName("pending"), f.sim.CurrentState())

	// next cycle retries from the same state
	f.control.setTransitionErr(nil)
	f.check(t)
	assert.Equal(t, []transitionCall{{"ce-1", "start"}}, f.control.calls())
	assert.True(t, f.fs.IsStale)
}

func TestExternalStateChangeDropsTimer(t *testing.T) {
	f := newEventFixture(t, "pending", nil)

	f.check(t)
	_, ok := f.sim.NextTransition()
	require.True(t, ok)

	// someone else moved the event on; the pending timer was for the old state
	f.fs.State = "approval"
	f.check(t)
	_, ok = f.sim.NextTransition()
	assert.False(t, ok)

	f.clock.Advance(time.Minute)
	f.check(t)
	assert.Empty(t, f.control.calls())
}

func TestHooksSeeTheCurrentState(t *testing.T) {
	var seen []StateName
	record := HookFunc(func(_ context.Context, fs FrameworkState, ev models.ControlEvent) {
		assert.Equal(t, "ce-1", ev.ID)
		seen = append(seen, fs.State)
	})
	f := newEventFixture(t, "pending", EventHooks{"pending": record, "running": record})

	f.check(t)
	f.clock.Advance(11 * time.Second)
	f.check(t)

	// the second call ran after the transition, so the running hook fired
	// with the snapshot that was current when the cycle started
	assert.Equal(t, []StateName{"pending", "pending"}, seen)
	assert.Equal(t, StateName("running"), f.sim.CurrentState())
}

func TestTransitionMetrics(t *testing.T) {
	ok := transitionsTotal.WithLabelValues("demand-response", "start", "ok")
	before := testutil.ToFloat64(ok)

	f := newEventFixture(t, "pending", nil)
	f.check(t)
	f.clock.Advance(time.Minute)
	f.check(t)

	assert.Equal(t, before+1, testutil.ToFloat64(ok))
}

func TestTransitionWithoutOnSuccess(t *testing.T) {
	f := newEventFixture(t, "approval", nil)
	f.check(t)

	assert.Error(t, f.sim.Transition(context.Background(), &f.fs))
	assert.Empty(t, f.control.calls())
}
