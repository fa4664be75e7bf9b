package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrUnknownProcess       = errors.New("unknown process")
	ErrConcurrentTransition = errors.New("transaction was transitioned concurrently")
	ErrInvalidFilter        = errors.New("invalid list filter")
)

// TransitionError is returned when a transition is not permitted from the
// transaction's current state.
type TransitionError struct {
	Transition Transition
	Current    State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %q is not permitted from state %q", e.Transition, e.Current)
}

// ActorError is returned when a role tries to trigger a transition that
// belongs to another role.
type ActorError struct {
	Transition Transition
	Actor      Actor
	Want       Actor
}

func (e *ActorError) Error() string {
	return fmt.Sprintf("transition %q cannot be triggered by %s (requires %s)", e.Transition, e.Actor, e.Want)
}

// PrivilegedTransitionError is returned when a privileged transition is
// attempted through the direct client path.
type PrivilegedTransitionError struct {
	Transition Transition
}

func (e *PrivilegedTransitionError) Error() string {
	return fmt.Sprintf("transition %q is privileged and must be executed server-side", e.Transition)
}

// OfferAmountError is returned when a make-offer or counter-offer transition
// carries no positive amount.
type OfferAmountError struct {
	Transition      Transition
	OfferInSubunits int64
}

func (e *OfferAmountError) Error() string {
	return fmt.Sprintf("transition %q requires a positive offer, got %d", e.Transition, e.OfferInSubunits)
}

// InvalidNegotiationHistoryMessage is the fixed message of InvalidNegotiationHistoryError.
const InvalidNegotiationHistoryMessage = "Past negotiation offers are invalid"

// InvalidNegotiationHistoryError is returned when the recorded offers do not
// line up with the offer-bearing transitions of a transaction. It is a
// caller-facing 400, not an internal fault.
type InvalidNegotiationHistoryError struct {
	Offers []Offer
	// RelevantTransitions is nil when the failure is an insufficient history
	// rather than a mismatch.
	RelevantTransitions []TransitionRecord
}

func (e *InvalidNegotiationHistoryError) Error() string { return InvalidNegotiationHistoryMessage }

// Status is the HTTP status callers should surface.
func (e *InvalidNegotiationHistoryError) Status() int { return http.StatusBadRequest }

// StatusText equals the message.
func (e *InvalidNegotiationHistoryError) StatusText() string { return InvalidNegotiationHistoryMessage }

// NegotiationHistoryData is the diagnostic payload of InvalidNegotiationHistoryError.
type NegotiationHistoryData struct {
	Offers              []Offer            `json:"offers"`
	RelevantTransitions []TransitionRecord `json:"relevantTransitions"`
}

// MarshalJSON omits relevantTransitions only when it is nil; an empty list
// is a mismatch against zero offer-bearing transitions and is kept as [].
func (d NegotiationHistoryData) MarshalJSON() ([]byte, error) {
	if d.RelevantTransitions == nil {
		return json.Marshal(struct {
			Offers []Offer `json:"offers"`
		}{d.Offers})
	}
	type plain NegotiationHistoryData
	return json.Marshal(plain(d))
}

// Data returns the diagnostic payload.
func (e *InvalidNegotiationHistoryError) Data() NegotiationHistoryData {
	return NegotiationHistoryData{
		Offers:              e.Offers,
		RelevantTransitions: e.RelevantTransitions,
	}
}

// MarshalJSON encodes the error as {message, status, statusText, data}.
func (e *InvalidNegotiationHistoryError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message    string                 `json:"message"`
		Status     int                    `json:"status"`
		StatusText string                 `json:"statusText"`
		Data       NegotiationHistoryData `json:"data"`
	}{
		Message:    e.Error(),
		Status:     e.Status(),
		StatusText: e.StatusText(),
		Data:       e.Data(),
	})
}
