package controlsim

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

// EventHook is called each cycle a simulated event is observed in a state
type EventHook interface {
	OnState(ctx context.Context, state FrameworkState, event models.ControlEvent)
}

// HookFunc adapts a function to EventHook
type HookFunc func(ctx context.Context, state FrameworkState, event models.ControlEvent)

func (f HookFunc) OnState(ctx context.Context, state FrameworkState, event models.ControlEvent) {
	f(ctx, state, event)
}

// EventHooks maps state names to their hook
type EventHooks map[StateName]EventHook

// validate fails on hooks for states no definition knows about
func (h EventHooks) validate(configs *SimulationConfigs) error {
	var unknown []string
	for name, hook := range h {
		if hook == nil {
			return fmt.Errorf("nil event hook for state %s", name)
		}
		if !configs.HasState(name) {
			unknown = append(unknown, string(name))
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("event hooks registered for unconfigured states: %s", strings.Join(unknown, ", "))
	}
	return nil
}
