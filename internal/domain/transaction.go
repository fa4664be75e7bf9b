package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Transition is a namespaced transition name, e.g. "transition/make-offer".
// Compared by exact string equality only.
type Transition string

// State is a state name in a process graph, e.g. "offer-pending".
type State string

// Actor is the role that triggers a transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorProvider Actor = "provider"
	ActorOperator Actor = "operator"
)

// Valid reports whether a is one of the known roles.
func (a Actor) Valid() bool {
	switch a {
	case ActorCustomer, ActorProvider, ActorOperator:
		return true
	}
	return false
}

// TransitionRecord is one entry of a transaction's append-only transition log.
type TransitionRecord struct {
	Transition Transition `json:"transition"`
	By         Actor      `json:"by"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Offer is a recorded negotiation price, tied 1:1 to an offer-bearing transition.
type Offer struct {
	Transition      Transition `json:"transition"`
	By              Actor      `json:"by"`
	OfferInSubunits int64      `json:"offerInSubunits"`
}

// Metadata is the free-form transaction metadata object. Offers is lifted out
// of the "offers" key; every other key is kept as raw JSON so that it survives
// a decode/encode round trip untouched. An offers value that is not a list of
// offers is kept in Extra as well and leaves Offers nil.
type Metadata struct {
	Offers []Offer
	Extra  map[string]json.RawMessage
}

const offersKey = "offers"

// MarshalJSON flattens Offers and Extra back into a single object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+1)
	maps.Copy(out, m.Extra)
	if m.Offers != nil {
		raw, err := json.Marshal(m.Offers)
		if err != nil {
			return nil, fmt.Errorf("encoding offers: %w", err)
		}
		out[offersKey] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the object into Offers and Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Metadata{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}

	// An offers value that is not a list of offers stays in Extra, untouched,
	// and Offers is left nil; see OffersMalformed.
	var md Metadata
	if rawOffers, ok := raw[offersKey]; ok && !bytes.Equal(bytes.TrimSpace(rawOffers), []byte("null")) {
		if err := json.Unmarshal(rawOffers, &md.Offers); err == nil {
			delete(raw, offersKey)
		} else {
			md.Offers = nil
		}
	}
	if len(raw) > 0 {
		md.Extra = raw
	}

	*m = md
	return nil
}

// OffersMalformed reports whether the metadata has an offers value that could
// not be read as a list of offers.
func (m Metadata) OffersMalformed() bool {
	_, ok := m.Extra[offersKey]
	return ok && m.Offers == nil
}

// Transaction is a single run of a process: its current state, full transition
// history, and metadata.
type Transaction struct {
	ID             string
	ProcessName    string
	State          State
	LastTransition Transition
	Transitions    []TransitionRecord
	Metadata       Metadata
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTransaction creates a transaction sitting in the process's initial state.
func NewTransaction(id string, process Process) Transaction {
	now := time.Now().UTC()
	return Transaction{
		ID:          id,
		ProcessName: process.Name,
		State:       process.Graph.Initial,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Record appends a transition to the history and moves the transaction to dst.
func (t *Transaction) Record(transition Transition, by Actor, dst State, at time.Time) TransitionRecord {
	rec := TransitionRecord{Transition: transition, By: by, CreatedAt: at.UTC()}
	t.Transitions = append(t.Transitions, rec)
	t.LastTransition = transition
	t.State = dst
	t.UpdatedAt = rec.CreatedAt
	return rec
}
