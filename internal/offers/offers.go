// Package offers validates and extends the negotiation offer history stored in
// transaction metadata.
//
// The history invariant: metadata offers correspond 1:1, in order, to the
// offer-bearing transitions (make-offer, counter-offer, revoke-counter-offer)
// in the transaction's transition log, matching on transition name and actor.
package offers

import (
	"encoding/json"

	"github.com/neomorfeo/marketflow/internal/domain"
	"github.com/neomorfeo/marketflow/internal/process/negotiation"
)

// IsIntentionToMakeOffer reports whether t is a make-offer transition carrying
// a positive amount. A zero amount is not an offer.
func IsIntentionToMakeOffer(offerInSubunits int64, t domain.Transition) bool {
	return offerInSubunits > 0 && negotiation.MakeOfferTransitions.Contains(t)
}

// IsIntentionToMakeCounterOffer reports whether t is a counter-offer
// transition carrying a positive amount.
func IsIntentionToMakeCounterOffer(offerInSubunits int64, t domain.Transition) bool {
	return offerInSubunits > 0 && negotiation.CounterOfferTransitions.Contains(t)
}

// IsIntentionToRevokeCounterOffer reports whether t withdraws a counter-offer.
func IsIntentionToRevokeCounterOffer(t domain.Transition) bool {
	return negotiation.RevokeCounterOfferTransitions.Contains(t)
}

// IsOfferBearing reports whether t belongs to any of the offer-bearing sets.
func IsOfferBearing(t domain.Transition) bool {
	return negotiation.MakeOfferTransitions.Contains(t) ||
		negotiation.CounterOfferTransitions.Contains(t) ||
		negotiation.RevokeCounterOfferTransitions.Contains(t)
}

// RelevantTransitions filters the offer-bearing transitions out of a log,
// preserving order.
func RelevantTransitions(transitions []domain.TransitionRecord) []domain.TransitionRecord {
	out := make([]domain.TransitionRecord, 0, len(transitions))
	for _, tr := range transitions {
		if IsOfferBearing(tr.Transition) {
			out = append(out, tr)
		}
	}
	return out
}

// ValidateHistory checks offers against the transition log before t is taken.
// Transitions that are not offer-bearing impose no constraint and always pass.
// A nil offers slice means the history is missing and fails validation.
//
// The returned error is a *domain.InvalidNegotiationHistoryError.
func ValidateHistory(t domain.Transition, offers []domain.Offer, transitions []domain.TransitionRecord) error {
	if !IsOfferBearing(t) {
		return nil
	}

	relevant := RelevantTransitions(transitions)
	if offers == nil || len(offers) != len(relevant) {
		return &domain.InvalidNegotiationHistoryError{Offers: offers, RelevantTransitions: relevant}
	}

	for i, o := range offers {
		if o.Transition != relevant[i].Transition || o.By != relevant[i].By {
			return &domain.InvalidNegotiationHistoryError{Offers: offers, RelevantTransitions: relevant}
		}
	}
	return nil
}

// AmountFromPreviousOffer returns the amount of the second-to-last offer.
// The last entry is the offer being superseded (e.g. the counter-offer that is
// about to be revoked), so the "previous" price sits at len-2. At least two
// offers are required.
func AmountFromPreviousOffer(offers []domain.Offer) (int64, error) {
	if len(offers) < 2 {
		return 0, &domain.InvalidNegotiationHistoryError{Offers: offers}
	}
	return offers[len(offers)-2].OfferInSubunits, nil
}

// MetadataPatch is the metadata update sent along with a transition. A nil
// Metadata encodes as an empty object and leaves the stored metadata as is.
type MetadataPatch struct {
	Metadata *domain.Metadata `json:"metadata,omitempty"`
}

// AddOfferToMetadata returns a patch whose metadata has offer appended to its
// offers. Nil arguments stand for an absent value:
//
//	metadata  offer   result
//	non-nil   non-nil {metadata: metadata + offer}
//	non-nil   nil     {metadata: metadata}
//	nil       any     {}
//
// Neither argument is modified.
func AddOfferToMetadata(metadata *domain.Metadata, offer *domain.Offer) MetadataPatch {
	if metadata == nil {
		return MetadataPatch{}
	}
	if offer == nil {
		return MetadataPatch{Metadata: metadata}
	}

	next := domain.Metadata{
		Offers: make([]domain.Offer, 0, len(metadata.Offers)+1),
	}
	next.Offers = append(next.Offers, metadata.Offers...)
	next.Offers = append(next.Offers, *offer)

	if metadata.Extra != nil {
		next.Extra = make(map[string]json.RawMessage, len(metadata.Extra))
	}
	for k, v := range metadata.Extra {
		next.Extra[k] = append(json.RawMessage(nil), v...)
	}

	return MetadataPatch{Metadata: &next}
}
