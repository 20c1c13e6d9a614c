package router

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stratus-cloud/stratus/pkg/events"
	"github.com/stratus-cloud/stratus/pkg/log"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// transitions is the allowed move set of the target lifecycle. A target
// must pass through health_unknown before it can be healthy, and through
// draining before it can be removed.
var transitions = map[types.TargetState][]types.TargetState{
	types.TargetDefined:       {types.TargetHealthUnknown, types.TargetDraining},
	types.TargetHealthUnknown: {types.TargetHealthy, types.TargetDraining},
	types.TargetHealthy:       {types.TargetHealthUnknown, types.TargetDraining},
	types.TargetDraining:      {types.TargetRemoved},
	types.TargetRemoved:       {},
}

// Tracker holds the lifecycle state of every route target and enforces the
// legal transitions between states. It is safe for concurrent use by the
// watcher's poll goroutines and the edge's request path.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]types.TargetState
	broker *events.Broker
	logger zerolog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[string]types.TargetState),
		logger: log.WithComponent("router"),
	}
}

// WithEvents publishes registration and transition events to the broker.
func (t *Tracker) WithEvents(broker *events.Broker) *Tracker {
	t.broker = broker
	return t
}

// Add registers a target in the defined state. Re-adding an existing target
// is a no-op so registration is idempotent.
func (t *Tracker) Add(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.states[target]; exists {
		return
	}
	t.states[target] = types.TargetDefined

	t.logger.Debug().
		Str("target", target).
		Msg("Target registered")

	if t.broker != nil {
		t.broker.Publish(events.New(events.EventTargetRegistered, fmt.Sprintf("Target %s registered", target)).
			WithMeta("target", target))
	}
}

// Transition moves a target to a new state, rejecting moves the lifecycle
// does not allow. Transitioning to the current state is a no-op.
func (t *Tracker) Transition(target string, to types.TargetState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	from, exists := t.states[target]
	if !exists {
		return fmt.Errorf("unknown target %s", target)
	}
	if from == to {
		return nil
	}

	allowed := false
	for _, next := range transitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("target %s cannot transition from %s to %s", target, from, to)
	}

	t.states[target] = to

	t.logger.Info().
		Str("target", target).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Target state changed")

	if t.broker != nil {
		t.broker.Publish(events.New(events.EventTargetStateChange, fmt.Sprintf("Target %s is %s", target, to)).
			WithMeta("target", target).
			WithMeta("from", string(from)).
			WithMeta("to", string(to)))
	}
	return nil
}

// State returns the current state of a target.
func (t *Tracker) State(target string) (types.TargetState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.states[target]
	return state, ok
}

// Healthy reports whether the target currently receives traffic.
func (t *Tracker) Healthy(target string) bool {
	state, ok := t.State(target)
	return ok && state == types.TargetHealthy
}

// TargetStates returns a snapshot of every target's state. The metrics
// collector polls this to keep the per-state gauges current.
func (t *Tracker) TargetStates() map[string]types.TargetState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]types.TargetState, len(t.states))
	for target, state := range t.states {
		out[target] = state
	}
	return out
}
