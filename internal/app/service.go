package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/neomorfeo/marketflow/internal/domain"
	"github.com/neomorfeo/marketflow/internal/offers"
	"github.com/neomorfeo/marketflow/internal/process"
)

// TransactionService orchestrates transaction lifecycle operations.
type TransactionService struct {
	repo      domain.TransactionRepository
	publisher domain.EventPublisher
	validator domain.TransitionValidator
	now       func() time.Time
}

// NewTransactionService creates a service with the given adapters.
func NewTransactionService(repo domain.TransactionRepository, publisher domain.EventPublisher, validator domain.TransitionValidator) *TransactionService {
	return &TransactionService{
		repo:      repo,
		publisher: publisher,
		validator: validator,
		now:       time.Now,
	}
}

// TransitionRequest names a transition, who triggers it, and the offer it
// carries. OfferInSubunits is only read for offer-bearing transitions.
type TransitionRequest struct {
	Transition      domain.Transition
	Actor           domain.Actor
	OfferInSubunits int64
}

// InitiateRequest starts a new transaction of ProcessName with its first
// transition. Metadata seeds the transaction's metadata; any offers in it are
// checked like a stored history.
type InitiateRequest struct {
	ProcessName string
	Metadata    domain.Metadata
	TransitionRequest
}

// ListRequest filters transactions. Attention selects the states in which
// the given role has to act, which requires a ProcessName.
type ListRequest struct {
	ProcessName string
	States      []domain.State
	Attention   domain.Actor
	Limit       int
	Offset      int
}

// NextTransition is a legal move from a transaction's current state.
type NextTransition struct {
	Transition domain.Transition
	Actor      domain.Actor
	Privileged bool
}

// Initiate creates a transaction in its process's initial state and applies
// the first transition through the privileged path.
func (s *TransactionService) Initiate(ctx context.Context, req InitiateRequest) (domain.Transaction, error) {
	p, err := process.Lookup(req.ProcessName)
	if err != nil {
		return domain.Transaction{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("generating transaction id: %w", err)
	}

	tx := domain.NewTransaction(id, p)
	tx.Metadata = req.Metadata
	record, err := s.apply(ctx, p, &tx, req.TransitionRequest)
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := s.repo.Create(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("creating transaction: %w", err)
	}

	if err := s.publisher.Publish(ctx, tx, record); err != nil {
		return domain.Transaction{}, fmt.Errorf("publishing transition %q: %w", record.Transition, err)
	}

	return tx, nil
}

// Transition applies a transition requested directly by a client. Privileged
// transitions are refused and must go through TransitionPrivileged.
func (s *TransactionService) Transition(ctx context.Context, id string, req TransitionRequest) (domain.Transaction, error) {
	return s.transition(ctx, id, req, false)
}

// TransitionPrivileged applies a transition on behalf of a trusted caller.
// Offer-bearing transitions have their offer history checked and extended.
func (s *TransactionService) TransitionPrivileged(ctx context.Context, id string, req TransitionRequest) (domain.Transaction, error) {
	return s.transition(ctx, id, req, true)
}

func (s *TransactionService) transition(ctx context.Context, id string, req TransitionRequest, privileged bool) (domain.Transaction, error) {
	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}

	p, err := process.Lookup(tx.ProcessName)
	if err != nil {
		return domain.Transaction{}, err
	}

	if !privileged && p.IsPrivileged(req.Transition) {
		return domain.Transaction{}, &domain.PrivilegedTransitionError{Transition: req.Transition}
	}

	record, err := s.apply(ctx, p, &tx, req)
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := s.repo.Update(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("updating transaction: %w", err)
	}

	if err := s.publisher.Publish(ctx, tx, record); err != nil {
		return domain.Transaction{}, fmt.Errorf("publishing transition %q: %w", record.Transition, err)
	}

	return tx, nil
}

// apply runs the checks for req against tx and records the transition on
// success. tx is only modified when nil is returned.
func (s *TransactionService) apply(ctx context.Context, p domain.Process, tx *domain.Transaction, req TransitionRequest) (domain.TransitionRecord, error) {
	if want, ok := p.ActorFor(req.Transition); ok && want != req.Actor {
		return domain.TransitionRecord{}, &domain.ActorError{
			Transition: req.Transition,
			Actor:      req.Actor,
			Want:       want,
		}
	}

	dst, err := s.validator.Apply(ctx, p, tx.State, req.Transition)
	if err != nil {
		return domain.TransitionRecord{}, err
	}

	offer, err := nextOffer(tx, req)
	if err != nil {
		return domain.TransitionRecord{}, err
	}

	patch := offers.AddOfferToMetadata(&tx.Metadata, offer)
	if patch.Metadata != nil {
		tx.Metadata = *patch.Metadata
	}

	return tx.Record(req.Transition, req.Actor, dst, s.now()), nil
}

// nextOffer returns the offer req adds to the negotiation history, or nil if
// the transition does not bear an offer.
func nextOffer(tx *domain.Transaction, req TransitionRequest) (*domain.Offer, error) {
	t := req.Transition
	if !offers.IsOfferBearing(t) {
		return nil, nil
	}

	// No offers key yet means no offers yet. A malformed value stays nil and
	// fails validation.
	existing := tx.Metadata.Offers
	if existing == nil && !tx.Metadata.OffersMalformed() {
		existing = []domain.Offer{}
	}
	if err := offers.ValidateHistory(t, existing, tx.Transitions); err != nil {
		return nil, err
	}

	switch {
	case offers.IsIntentionToMakeOffer(req.OfferInSubunits, t),
		offers.IsIntentionToMakeCounterOffer(req.OfferInSubunits, t):
		return &domain.Offer{Transition: t, By: req.Actor, OfferInSubunits: req.OfferInSubunits}, nil

	case offers.IsIntentionToRevokeCounterOffer(t):
		amount, err := offers.AmountFromPreviousOffer(existing)
		if err != nil {
			return nil, err
		}
		return &domain.Offer{Transition: t, By: req.Actor, OfferInSubunits: amount}, nil
	}

	// Offer-bearing but not an intention: a make or counter without a price.
	return nil, &domain.OfferAmountError{Transition: t, OfferInSubunits: req.OfferInSubunits}
}

// Get returns a transaction by its unique identifier.
func (s *TransactionService) Get(ctx context.Context, id string) (domain.Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns transactions matching the given request.
func (s *TransactionService) List(ctx context.Context, req ListRequest) ([]domain.Transaction, error) {
	filter := domain.ListFilter{
		ProcessName: req.ProcessName,
		States:      req.States,
		Limit:       req.Limit,
		Offset:      req.Offset,
	}

	if req.Attention != "" {
		if req.ProcessName == "" {
			return nil, fmt.Errorf("%w: attention requires a process name", domain.ErrInvalidFilter)
		}
		p, err := process.Lookup(req.ProcessName)
		if err != nil {
			return nil, err
		}
		attention := p.StatesNeedingAttention(req.Attention)
		if len(attention) == 0 {
			return []domain.Transaction{}, nil
		}
		filter.States = intersectStates(req.States, attention)
		if len(filter.States) == 0 {
			return []domain.Transaction{}, nil
		}
	}

	return s.repo.List(ctx, filter)
}

// intersectStates narrows attention to the explicitly requested states, if any.
func intersectStates(requested, attention []domain.State) []domain.State {
	if len(requested) == 0 {
		return attention
	}
	out := make([]domain.State, 0, len(attention))
	for _, st := range attention {
		if slices.Contains(requested, st) {
			out = append(out, st)
		}
	}
	return out
}

// History returns the transitions of a transaction worth showing in an
// activity feed, oldest first.
func (s *TransactionService) History(ctx context.Context, id string) ([]domain.TransitionRecord, error) {
	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := process.Lookup(tx.ProcessName)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TransitionRecord, 0, len(tx.Transitions))
	for _, rec := range tx.Transitions {
		if p.IsRelevantPastTransition(rec.Transition) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// NextTransitions lists the transitions that can follow the transaction's
// current state. A non-empty actor restricts the list to that role.
func (s *TransactionService) NextTransitions(ctx context.Context, id string, actor domain.Actor) ([]NextTransition, error) {
	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := process.Lookup(tx.ProcessName)
	if err != nil {
		return nil, err
	}

	available := s.validator.Available(p, tx.State)
	out := make([]NextTransition, 0, len(available))
	for _, t := range available {
		role, _ := p.ActorFor(t)
		if actor != "" && role != actor {
			continue
		}
		out = append(out, NextTransition{
			Transition: t,
			Actor:      role,
			Privileged: p.IsPrivileged(t),
		})
	}
	return out, nil
}
