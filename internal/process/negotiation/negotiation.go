// Package negotiation declares the "default-negotiation" transaction process:
// quote requests, offers and counter-offers, payment, delivery and reviews.
//
// Like sellpurchase, this is a hand-kept copy of the backend's process
// definition. All transition literals live here, including the offer-bearing
// subsets consumed by the offers package.
package negotiation

import "github.com/neomorfeo/marketflow/internal/domain"

// Name is the process name stored on transactions.
const Name = "default-negotiation"

// Transitions.
const (
	TransitionInquire                  domain.Transition = "transition/inquire"
	TransitionRequestQuote             domain.Transition = "transition/request-quote"
	TransitionRequestQuoteAfterInquiry domain.Transition = "transition/request-quote-after-inquiry"
	TransitionDeclineQuoteRequest      domain.Transition = "transition/decline-quote-request"

	TransitionMakeOffer             domain.Transition = "transition/make-offer"
	TransitionMakeOfferAfterInquiry domain.Transition = "transition/make-offer-after-inquiry"
	TransitionMakeOfferFromRequest  domain.Transition = "transition/make-offer-from-request"

	TransitionCustomerMakeCounterOffer   domain.Transition = "transition/customer-make-counter-offer"
	TransitionProviderMakeCounterOffer   domain.Transition = "transition/provider-make-counter-offer"
	TransitionCustomerRevokeCounterOffer domain.Transition = "transition/customer-revoke-counter-offer"
	TransitionProviderRevokeCounterOffer domain.Transition = "transition/provider-revoke-counter-offer"
	TransitionCustomerRejectOffer        domain.Transition = "transition/customer-reject-offer"
	TransitionProviderRejectCounterOffer domain.Transition = "transition/provider-reject-counter-offer"
	TransitionProviderAcceptCounterOffer domain.Transition = "transition/provider-accept-counter-offer"
	TransitionExpireOffer                domain.Transition = "transition/expire-offer"

	TransitionRequestPayment                  domain.Transition = "transition/request-payment"
	TransitionRequestPaymentAfterCounterOffer domain.Transition = "transition/request-payment-after-counter-offer"
	TransitionConfirmPayment                  domain.Transition = "transition/confirm-payment"
	TransitionExpirePayment                   domain.Transition = "transition/expire-payment"

	TransitionMarkDelivered              domain.Transition = "transition/mark-delivered"
	TransitionOperatorMarkDelivered      domain.Transition = "transition/operator-mark-delivered"
	TransitionCancel                     domain.Transition = "transition/cancel"
	TransitionRequestChanges             domain.Transition = "transition/request-changes"
	TransitionCancelFromChangesRequested domain.Transition = "transition/cancel-from-changes-requested"
	TransitionAcceptDeliverable          domain.Transition = "transition/accept-deliverable"
	TransitionAutoAcceptDeliverable      domain.Transition = "transition/auto-accept-deliverable"

	TransitionReview1ByCustomer          domain.Transition = "transition/review-1-by-customer"
	TransitionReview1ByProvider          domain.Transition = "transition/review-1-by-provider"
	TransitionReview2ByCustomer          domain.Transition = "transition/review-2-by-customer"
	TransitionReview2ByProvider          domain.Transition = "transition/review-2-by-provider"
	TransitionExpireCustomerReviewPeriod domain.Transition = "transition/expire-customer-review-period"
	TransitionExpireProviderReviewPeriod domain.Transition = "transition/expire-provider-review-period"
	TransitionExpireReviewPeriod         domain.Transition = "transition/expire-review-period"
)

// States.
const (
	StateInitial              domain.State = "initial"
	StateInquiry              domain.State = "inquiry"
	StateQuoteRequested       domain.State = "quote-requested"
	StateQuoteDeclined        domain.State = "quote-declined"
	StateOfferPending         domain.State = "offer-pending"
	StateCustomerOfferPending domain.State = "customer-offer-pending"
	StateCounterOfferAccepted domain.State = "counter-offer-accepted"
	StateOfferRejected        domain.State = "offer-rejected"
	StateOfferExpired         domain.State = "offer-expired"
	StatePendingPayment       domain.State = "pending-payment"
	StatePaymentExpired       domain.State = "payment-expired"
	StateAccepted             domain.State = "accepted"
	StateDelivered            domain.State = "delivered"
	StateChangesRequested     domain.State = "changes-requested"
	StateCancelled            domain.State = "cancelled"
	StateCompleted            domain.State = "completed"
	StateReviewedByCustomer   domain.State = "reviewed-by-customer"
	StateReviewedByProvider   domain.State = "reviewed-by-provider"
	StateReviewed             domain.State = "reviewed"
)

type edges = map[domain.Transition]domain.State

// Graph is the state graph of the process.
var Graph = domain.Graph{
	ID:      "default-negotiation/release-1",
	Initial: StateInitial,
	States: map[domain.State]domain.StateNode{
		StateInitial: {On: edges{
			TransitionInquire:      StateInquiry,
			TransitionRequestQuote: StateQuoteRequested,
			TransitionMakeOffer:    StateOfferPending,
		}},
		StateInquiry: {On: edges{
			TransitionRequestQuoteAfterInquiry: StateQuoteRequested,
			TransitionMakeOfferAfterInquiry:    StateOfferPending,
		}},
		StateQuoteRequested: {On: edges{
			TransitionMakeOfferFromRequest: StateOfferPending,
			TransitionDeclineQuoteRequest:  StateQuoteDeclined,
		}},
		StateQuoteDeclined: {Type: domain.StateTypeFinal},
		StateOfferPending: {On: edges{
			TransitionCustomerMakeCounterOffer:   StateCustomerOfferPending,
			TransitionProviderRevokeCounterOffer: StateCustomerOfferPending,
			TransitionCustomerRejectOffer:        StateOfferRejected,
			TransitionRequestPayment:             StatePendingPayment,
			TransitionExpireOffer:                StateOfferExpired,
		}},
		StateCustomerOfferPending: {On: edges{
			TransitionProviderMakeCounterOffer:   StateOfferPending,
			TransitionCustomerRevokeCounterOffer: StateOfferPending,
			TransitionProviderRejectCounterOffer: StateOfferRejected,
			TransitionProviderAcceptCounterOffer: StateCounterOfferAccepted,
			TransitionExpireOffer:                StateOfferExpired,
		}},
		StateCounterOfferAccepted: {On: edges{
			TransitionRequestPaymentAfterCounterOffer: StatePendingPayment,
			TransitionExpireOffer:                     StateOfferExpired,
		}},
		StateOfferRejected: {Type: domain.StateTypeFinal},
		StateOfferExpired:  {Type: domain.StateTypeFinal},
		StatePendingPayment: {On: edges{
			TransitionConfirmPayment: StateAccepted,
			TransitionExpirePayment:  StatePaymentExpired,
		}},
		StatePaymentExpired: {Type: domain.StateTypeFinal},
		StateAccepted: {On: edges{
			TransitionMarkDelivered:         StateDelivered,
			TransitionOperatorMarkDelivered: StateDelivered,
			TransitionCancel:                StateCancelled,
		}},
		StateDelivered: {On: edges{
			TransitionRequestChanges:        StateChangesRequested,
			TransitionAcceptDeliverable:     StateCompleted,
			TransitionAutoAcceptDeliverable: StateCompleted,
		}},
		StateChangesRequested: {On: edges{
			TransitionMarkDelivered:              StateDelivered,
			TransitionCancelFromChangesRequested: StateCancelled,
		}},
		StateCancelled: {Type: domain.StateTypeFinal},
		StateCompleted: {On: edges{
			TransitionExpireReviewPeriod: StateReviewed,
			TransitionReview1ByCustomer:  StateReviewedByCustomer,
			TransitionReview1ByProvider:  StateReviewedByProvider,
		}},
		StateReviewedByCustomer: {On: edges{
			TransitionReview2ByProvider:          StateReviewed,
			TransitionExpireProviderReviewPeriod: StateReviewed,
		}},
		StateReviewedByProvider: {On: edges{
			TransitionReview2ByCustomer:          StateReviewed,
			TransitionExpireCustomerReviewPeriod: StateReviewed,
		}},
		StateReviewed: {Type: domain.StateTypeFinal},
	},
}

// Offer-bearing transition subsets.
var (
	// MakeOfferTransitions establish an initial price.
	MakeOfferTransitions = domain.NewTransitionSet(
		TransitionMakeOffer,
		TransitionMakeOfferAfterInquiry,
		TransitionMakeOfferFromRequest,
	)
	// CounterOfferTransitions propose a revised price.
	CounterOfferTransitions = domain.NewTransitionSet(
		TransitionCustomerMakeCounterOffer,
		TransitionProviderMakeCounterOffer,
	)
	// RevokeCounterOfferTransitions withdraw the latest counter price.
	RevokeCounterOfferTransitions = domain.NewTransitionSet(
		TransitionCustomerRevokeCounterOffer,
		TransitionProviderRevokeCounterOffer,
	)
)

// Process is the full definition registered under Name.
var Process = domain.Process{
	Name:  Name,
	Graph: Graph,
	Actors: map[domain.Transition]domain.Actor{
		TransitionInquire:                         domain.ActorCustomer,
		TransitionRequestQuote:                    domain.ActorCustomer,
		TransitionRequestQuoteAfterInquiry:        domain.ActorCustomer,
		TransitionDeclineQuoteRequest:             domain.ActorProvider,
		TransitionMakeOffer:                       domain.ActorProvider,
		TransitionMakeOfferAfterInquiry:           domain.ActorProvider,
		TransitionMakeOfferFromRequest:            domain.ActorProvider,
		TransitionCustomerMakeCounterOffer:        domain.ActorCustomer,
		TransitionProviderMakeCounterOffer:        domain.ActorProvider,
		TransitionCustomerRevokeCounterOffer:      domain.ActorCustomer,
		TransitionProviderRevokeCounterOffer:      domain.ActorProvider,
		TransitionCustomerRejectOffer:             domain.ActorCustomer,
		TransitionProviderRejectCounterOffer:      domain.ActorProvider,
		TransitionProviderAcceptCounterOffer:      domain.ActorProvider,
		TransitionExpireOffer:                     domain.ActorOperator,
		TransitionRequestPayment:                  domain.ActorCustomer,
		TransitionRequestPaymentAfterCounterOffer: domain.ActorCustomer,
		TransitionConfirmPayment:                  domain.ActorCustomer,
		TransitionExpirePayment:                   domain.ActorOperator,
		TransitionMarkDelivered:                   domain.ActorProvider,
		TransitionOperatorMarkDelivered:           domain.ActorOperator,
		TransitionCancel:                          domain.ActorOperator,
		TransitionRequestChanges:                  domain.ActorCustomer,
		TransitionCancelFromChangesRequested:      domain.ActorOperator,
		TransitionAcceptDeliverable:               domain.ActorCustomer,
		TransitionAutoAcceptDeliverable:           domain.ActorOperator,
		TransitionReview1ByCustomer:               domain.ActorCustomer,
		TransitionReview1ByProvider:               domain.ActorProvider,
		TransitionReview2ByCustomer:               domain.ActorCustomer,
		TransitionReview2ByProvider:               domain.ActorProvider,
		TransitionExpireCustomerReviewPeriod:      domain.ActorOperator,
		TransitionExpireProviderReviewPeriod:      domain.ActorOperator,
		TransitionExpireReviewPeriod:              domain.ActorOperator,
	},
	RelevantPast: domain.NewTransitionSet(
		TransitionRequestQuote,
		TransitionRequestQuoteAfterInquiry,
		TransitionDeclineQuoteRequest,
		TransitionMakeOffer,
		TransitionMakeOfferAfterInquiry,
		TransitionMakeOfferFromRequest,
		TransitionCustomerMakeCounterOffer,
		TransitionProviderMakeCounterOffer,
		TransitionCustomerRevokeCounterOffer,
		TransitionProviderRevokeCounterOffer,
		TransitionCustomerRejectOffer,
		TransitionProviderRejectCounterOffer,
		TransitionProviderAcceptCounterOffer,
		TransitionConfirmPayment,
		TransitionMarkDelivered,
		TransitionOperatorMarkDelivered,
		TransitionRequestChanges,
		TransitionAcceptDeliverable,
		TransitionAutoAcceptDeliverable,
		TransitionCancel,
		TransitionCancelFromChangesRequested,
		TransitionReview1ByCustomer,
		TransitionReview1ByProvider,
		TransitionReview2ByCustomer,
		TransitionReview2ByProvider,
	),
	CustomerReviews: domain.NewTransitionSet(TransitionReview1ByCustomer, TransitionReview2ByCustomer),
	ProviderReviews: domain.NewTransitionSet(TransitionReview1ByProvider, TransitionReview2ByProvider),
	// Everything that sets a price, line items or a payment intent.
	Privileged: domain.NewTransitionSet(
		TransitionMakeOffer,
		TransitionMakeOfferAfterInquiry,
		TransitionMakeOfferFromRequest,
		TransitionCustomerMakeCounterOffer,
		TransitionProviderMakeCounterOffer,
		TransitionCustomerRevokeCounterOffer,
		TransitionProviderRevokeCounterOffer,
		TransitionProviderAcceptCounterOffer,
		TransitionRequestPayment,
		TransitionRequestPaymentAfterCounterOffer,
	),
	Completed: domain.NewTransitionSet(
		TransitionAcceptDeliverable,
		TransitionAutoAcceptDeliverable,
	),
	Refunded: domain.NewTransitionSet(
		TransitionCancel,
		TransitionCancelFromChangesRequested,
	),
	StatesNeedingProviderAttention: []domain.State{
		StateQuoteRequested,
		StateCustomerOfferPending,
		StateAccepted,
		StateChangesRequested,
	},
	StatesNeedingCustomerAttention: []domain.State{
		StateOfferPending,
		StateCounterOfferAccepted,
		StateDelivered,
	},
}

func IsRelevantPastTransition(t domain.Transition) bool { return Process.IsRelevantPastTransition(t) }
func IsCustomerReview(t domain.Transition) bool         { return Process.IsCustomerReview(t) }
func IsProviderReview(t domain.Transition) bool         { return Process.IsProviderReview(t) }
func IsPrivileged(t domain.Transition) bool             { return Process.IsPrivileged(t) }
func IsCompleted(t domain.Transition) bool              { return Process.IsCompleted(t) }
func IsRefunded(t domain.Transition) bool               { return Process.IsRefunded(t) }
