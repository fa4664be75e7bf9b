package fsm

import (
	"context"
	"errors"
	"slices"
	"sync"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/marketflow/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// buildEvents converts a process graph into looplab/fsm EventDesc format.
// Edges with the same transition and destination are consolidated into a
// single EventDesc with multiple source states (e.g., mark-delivered from
// "accepted" and "changes-requested" both go to "delivered").
func buildEvents(g domain.Graph) []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	// Walk states in a fixed order so the event list is deterministic.
	for _, src := range g.StateNames() {
		node := g.States[src]
		transitions := make([]domain.Transition, 0, len(node.On))
		for t := range node.On {
			transitions = append(transitions, t)
		}
		slices.Sort(transitions)

		for _, t := range transitions {
			k := key{event: string(t), dst: string(node.On[t])}
			if _, exists := grouped[k]; !exists {
				order = append(order, k)
			}
			grouped[k] = append(grouped[k], string(src))
		}
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per call, initialized with the
// transaction's current state. This is necessary because looplab/fsm is
// stateful (it tracks the current state internally).
//
// Event descriptions are built once per graph ID and reused.
type Validator struct {
	mu     sync.RWMutex
	events map[string][]loopfsm.EventDesc
}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{events: make(map[string][]loopfsm.EventDesc)}
}

func (v *Validator) eventsFor(g domain.Graph) []loopfsm.EventDesc {
	v.mu.RLock()
	ev, ok := v.events[g.ID]
	v.mu.RUnlock()
	if ok {
		return ev
	}

	ev = buildEvents(g)
	v.mu.Lock()
	v.events[g.ID] = ev
	v.mu.Unlock()
	return ev
}

// Apply checks if the given transition is valid from the current state in
// the process graph and returns the destination state. Returns a
// domain.TransitionError if the transition is not allowed.
func (v *Validator) Apply(ctx context.Context, process domain.Process, current domain.State, transition domain.Transition) (domain.State, error) {
	machine := loopfsm.NewFSM(string(current), v.eventsFor(process.Graph), nil)

	if err := machine.Event(ctx, string(transition)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{
				Transition: transition,
				Current:    current,
			}
		}
		return "", err
	}

	return domain.State(machine.Current()), nil
}

// Available lists the transitions that can be taken from current, sorted.
// Final and unknown states have none.
func (v *Validator) Available(process domain.Process, current domain.State) []domain.Transition {
	machine := loopfsm.NewFSM(string(current), v.eventsFor(process.Graph), nil)

	names := machine.AvailableTransitions()
	out := make([]domain.Transition, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Transition(n))
	}
	slices.Sort(out)
	return out
}
