package domain

import (
	"fmt"
	"slices"
)

// StateTypeFinal marks a terminal state in a Graph.
const StateTypeFinal = "final"

// StateNode is one node of a process graph. On maps each permitted transition
// to its single destination state.
type StateNode struct {
	On   map[Transition]State `json:"on,omitempty"`
	Type string               `json:"type,omitempty"`
}

// Final reports whether the node is terminal.
func (n StateNode) Final() bool { return n.Type == StateTypeFinal }

// Graph is a named, versioned, deterministic state graph.
type Graph struct {
	ID      string              `json:"id"`
	Initial State               `json:"initial"`
	States  map[State]StateNode `json:"states"`
}

// Next returns the state reached by taking t from state from. The boolean is
// false when t is not permitted from that state (or either name is unknown).
func (g Graph) Next(from State, t Transition) (State, bool) {
	node, ok := g.States[from]
	if !ok {
		return "", false
	}
	dst, ok := node.On[t]
	return dst, ok
}

// StateNames returns all state names, sorted.
func (g Graph) StateNames() []State {
	out := make([]State, 0, len(g.States))
	for s := range g.States {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Validate checks the static invariants of the graph against the set of
// transition names the process declares.
func (g Graph) Validate(known TransitionSet) error {
	if _, ok := g.States[g.Initial]; !ok {
		return fmt.Errorf("graph %s: initial state %q is not declared", g.ID, g.Initial)
	}
	for _, from := range g.StateNames() {
		node := g.States[from]
		if node.Final() && len(node.On) > 0 {
			return fmt.Errorf("graph %s: final state %q has outgoing transitions", g.ID, from)
		}
		for t, dst := range node.On {
			if !known.Contains(t) {
				return fmt.Errorf("graph %s: state %q uses undeclared transition %q", g.ID, from, t)
			}
			if _, ok := g.States[dst]; !ok {
				return fmt.Errorf("graph %s: %q from %q leads to undeclared state %q", g.ID, t, from, dst)
			}
		}
	}
	return nil
}

// TransitionSet is a read-only set of transition names. Build it once with
// NewTransitionSet; a nil set contains nothing.
type TransitionSet map[Transition]struct{}

// NewTransitionSet builds a set from the given names.
func NewTransitionSet(ts ...Transition) TransitionSet {
	s := make(TransitionSet, len(ts))
	for _, t := range ts {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports membership. Unknown names are simply not members.
func (s TransitionSet) Contains(t Transition) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the members in lexical order.
func (s TransitionSet) Sorted() []Transition {
	out := make([]Transition, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Process bundles a graph with the static classification data the rest of the
// system needs. It is built at package init and never mutated.
type Process struct {
	Name  string
	Graph Graph

	// Actors names the role allowed to trigger each transition.
	Actors map[Transition]Actor

	RelevantPast    TransitionSet
	CustomerReviews TransitionSet
	ProviderReviews TransitionSet
	Privileged      TransitionSet
	Completed       TransitionSet
	Refunded        TransitionSet

	StatesNeedingProviderAttention []State
	StatesNeedingCustomerAttention []State
}

func (p Process) IsRelevantPastTransition(t Transition) bool { return p.RelevantPast.Contains(t) }
func (p Process) IsCustomerReview(t Transition) bool         { return p.CustomerReviews.Contains(t) }
func (p Process) IsProviderReview(t Transition) bool         { return p.ProviderReviews.Contains(t) }
func (p Process) IsPrivileged(t Transition) bool             { return p.Privileged.Contains(t) }
func (p Process) IsCompleted(t Transition) bool              { return p.Completed.Contains(t) }
func (p Process) IsRefunded(t Transition) bool               { return p.Refunded.Contains(t) }

// ActorFor returns the role allowed to trigger t.
func (p Process) ActorFor(t Transition) (Actor, bool) {
	a, ok := p.Actors[t]
	return a, ok
}

// Transitions returns every declared transition name.
func (p Process) Transitions() TransitionSet {
	s := make(TransitionSet, len(p.Actors))
	for t := range p.Actors {
		s[t] = struct{}{}
	}
	return s
}

// StatesNeedingAttention returns the attention list for the given role.
// Operators never need attention.
func (p Process) StatesNeedingAttention(a Actor) []State {
	switch a {
	case ActorProvider:
		return p.StatesNeedingProviderAttention
	case ActorCustomer:
		return p.StatesNeedingCustomerAttention
	}
	return nil
}

// Validate checks that the graph and every classification set only reference
// declared transitions and states.
func (p Process) Validate() error {
	known := p.Transitions()
	if err := p.Graph.Validate(known); err != nil {
		return err
	}

	sets := map[string]TransitionSet{
		"relevant past":    p.RelevantPast,
		"customer reviews": p.CustomerReviews,
		"provider reviews": p.ProviderReviews,
		"privileged":       p.Privileged,
		"completed":        p.Completed,
		"refunded":         p.Refunded,
	}
	for name, set := range sets {
		for _, t := range set.Sorted() {
			if !known.Contains(t) {
				return fmt.Errorf("process %s: %s set has undeclared transition %q", p.Name, name, t)
			}
		}
	}

	for t, a := range p.Actors {
		if !a.Valid() {
			return fmt.Errorf("process %s: transition %q has unknown actor %q", p.Name, t, a)
		}
	}

	for _, s := range slices.Concat(p.StatesNeedingProviderAttention, p.StatesNeedingCustomerAttention) {
		if _, ok := p.Graph.States[s]; !ok {
			return fmt.Errorf("process %s: attention state %q is not declared", p.Name, s)
		}
	}
	return nil
}
