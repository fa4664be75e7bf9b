package domain

import "context"

// TransactionRepository defines the persistence contract for transactions.
type TransactionRepository interface {
	// Create stores a new transaction together with its transition history.
	Create(ctx context.Context, tx Transaction) error
	GetByID(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
	// Update persists the transaction row and appends its newest transition
	// record. Returns ErrConcurrentTransition if that record slot is taken.
	Update(ctx context.Context, tx Transaction) error
}

// ListFilter holds optional criteria for listing transactions.
type ListFilter struct {
	ProcessName string
	States      []State
	Limit       int
	Offset      int
}

// EventPublisher defines the contract for emitting transition events.
type EventPublisher interface {
	Publish(ctx context.Context, tx Transaction, record TransitionRecord) error
}

// TransitionValidator applies a transition to a state using a process graph.
type TransitionValidator interface {
	Apply(ctx context.Context, process Process, current State, transition Transition) (State, error)
	Available(process Process, current State) []Transition
}
