// Package sellpurchase declares the "sell-purchase" transaction process.
//
// The graph is a hand-kept copy of the process definition deployed to the
// marketplace backend, which stays the system of record. Every transition
// literal of the process lives in this file; when the backend process changes,
// update this file and compare `marketflow graph sell-purchase` with the
// backend export.
package sellpurchase

import "github.com/neomorfeo/marketflow/internal/domain"

// Name is the process name stored on transactions.
const Name = "sell-purchase"

// Transitions.
const (
	TransitionInquire                    domain.Transition = "transition/inquire"
	TransitionRequestPayment             domain.Transition = "transition/request-payment"
	TransitionRequestPaymentAfterInquiry domain.Transition = "transition/request-payment-after-inquiry"
	TransitionConfirmPayment             domain.Transition = "transition/confirm-payment"
	TransitionExpirePayment              domain.Transition = "transition/expire-payment"

	TransitionMarkDelivered             domain.Transition = "transition/mark-delivered"
	TransitionOperatorMarkDelivered     domain.Transition = "transition/operator-mark-delivered"
	TransitionMarkReceivedFromPurchased domain.Transition = "transition/mark-received-from-purchased"
	TransitionCancel                    domain.Transition = "transition/cancel"
	TransitionAutoCancel                domain.Transition = "transition/auto-cancel"

	TransitionMarkReceived     domain.Transition = "transition/mark-received"
	TransitionAutoMarkReceived domain.Transition = "transition/auto-mark-received"
	TransitionDispute          domain.Transition = "transition/dispute"
	TransitionOperatorDispute  domain.Transition = "transition/operator-dispute"

	TransitionMarkReceivedFromDisputed domain.Transition = "transition/mark-received-from-disputed"
	TransitionCancelFromDisputed       domain.Transition = "transition/cancel-from-disputed"
	TransitionAutoCancelFromDisputed   domain.Transition = "transition/auto-cancel-from-disputed"

	TransitionAutoComplete domain.Transition = "transition/auto-complete"

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
	StateInitial            domain.State = "initial"
	StateInquiry            domain.State = "inquiry"
	StatePendingPayment     domain.State = "pending-payment"
	StatePaymentExpired     domain.State = "payment-expired"
	StatePurchased          domain.State = "purchased"
	StateDelivered          domain.State = "delivered"
	StateReceived           domain.State = "received"
	StateDisputed           domain.State = "disputed"
	StateCanceled           domain.State = "canceled"
	StateCompleted          domain.State = "completed"
	StateReviewedByCustomer domain.State = "reviewed-by-customer"
	StateReviewedByProvider domain.State = "reviewed-by-provider"
	StateReviewed           domain.State = "reviewed"
)

type edges = map[domain.Transition]domain.State

// Graph is the state graph of the process.
var Graph = domain.Graph{
	ID:      "sell-purchase/release-1",
	Initial: StateInitial,
	States: map[domain.State]domain.StateNode{
		StateInitial: {On: edges{
			TransitionInquire:        StateInquiry,
			TransitionRequestPayment: StatePendingPayment,
		}},
		StateInquiry: {On: edges{
			TransitionRequestPaymentAfterInquiry: StatePendingPayment,
		}},
		StatePendingPayment: {On: edges{
			TransitionExpirePayment:  StatePaymentExpired,
			TransitionConfirmPayment: StatePurchased,
		}},
		StatePaymentExpired: {Type: domain.StateTypeFinal},
		StatePurchased: {On: edges{
			TransitionMarkDelivered:             StateDelivered,
			TransitionOperatorMarkDelivered:     StateDelivered,
			TransitionMarkReceivedFromPurchased: StateReceived,
			TransitionCancel:                    StateCanceled,
			TransitionAutoCancel:                StateCanceled,
		}},
		StateCanceled: {Type: domain.StateTypeFinal},
		StateDelivered: {On: edges{
			TransitionMarkReceived:     StateReceived,
			TransitionAutoMarkReceived: StateReceived,
			TransitionDispute:          StateDisputed,
			TransitionOperatorDispute:  StateDisputed,
		}},
		StateDisputed: {On: edges{
			TransitionMarkReceivedFromDisputed: StateReceived,
			TransitionCancelFromDisputed:       StateCanceled,
			TransitionAutoCancelFromDisputed:   StateCanceled,
		}},
		StateReceived: {On: edges{
			TransitionAutoComplete: StateCompleted,
		}},
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

// Process is the full definition registered under Name.
var Process = domain.Process{
	Name:  Name,
	Graph: Graph,
	Actors: map[domain.Transition]domain.Actor{
		TransitionInquire:                    domain.ActorCustomer,
		TransitionRequestPayment:             domain.ActorCustomer,
		TransitionRequestPaymentAfterInquiry: domain.ActorCustomer,
		TransitionConfirmPayment:             domain.ActorCustomer,
		TransitionExpirePayment:              domain.ActorOperator,
		TransitionMarkDelivered:              domain.ActorProvider,
		TransitionOperatorMarkDelivered:      domain.ActorOperator,
		TransitionMarkReceivedFromPurchased:  domain.ActorCustomer,
		TransitionCancel:                     domain.ActorOperator,
		TransitionAutoCancel:                 domain.ActorOperator,
		TransitionMarkReceived:               domain.ActorCustomer,
		TransitionAutoMarkReceived:           domain.ActorOperator,
		TransitionDispute:                    domain.ActorCustomer,
		TransitionOperatorDispute:            domain.ActorOperator,
		TransitionMarkReceivedFromDisputed:   domain.ActorOperator,
		TransitionCancelFromDisputed:         domain.ActorOperator,
		TransitionAutoCancelFromDisputed:     domain.ActorOperator,
		TransitionAutoComplete:               domain.ActorOperator,
		TransitionReview1ByCustomer:          domain.ActorCustomer,
		TransitionReview1ByProvider:          domain.ActorProvider,
		TransitionReview2ByCustomer:          domain.ActorCustomer,
		TransitionReview2ByProvider:          domain.ActorProvider,
		TransitionExpireCustomerReviewPeriod: domain.ActorOperator,
		TransitionExpireProviderReviewPeriod: domain.ActorOperator,
		TransitionExpireReviewPeriod:         domain.ActorOperator,
	},
	RelevantPast: domain.NewTransitionSet(
		TransitionConfirmPayment,
		TransitionAutoCancel,
		TransitionCancel,
		TransitionMarkDelivered,
		TransitionOperatorMarkDelivered,
		TransitionDispute,
		TransitionOperatorDispute,
		TransitionAutoMarkReceived,
		TransitionMarkReceived,
		TransitionMarkReceivedFromPurchased,
		TransitionAutoCancelFromDisputed,
		TransitionCancelFromDisputed,
		TransitionMarkReceivedFromDisputed,
		TransitionReview1ByCustomer,
		TransitionReview1ByProvider,
		TransitionReview2ByCustomer,
		TransitionReview2ByProvider,
	),
	CustomerReviews: domain.NewTransitionSet(TransitionReview1ByCustomer, TransitionReview2ByCustomer),
	ProviderReviews: domain.NewTransitionSet(TransitionReview1ByProvider, TransitionReview2ByProvider),
	// Payment requests set line items and create payment intents.
	Privileged: domain.NewTransitionSet(
		TransitionRequestPayment,
		TransitionRequestPaymentAfterInquiry,
	),
	Completed: domain.NewTransitionSet(
		TransitionMarkReceivedFromPurchased,
		TransitionMarkReceived,
		TransitionAutoMarkReceived,
		TransitionMarkReceivedFromDisputed,
	),
	Refunded: domain.NewTransitionSet(
		TransitionAutoCancel,
		TransitionCancel,
		TransitionCancelFromDisputed,
		TransitionAutoCancelFromDisputed,
	),
	StatesNeedingProviderAttention: []domain.State{StatePurchased},
	StatesNeedingCustomerAttention: []domain.State{StateDelivered},
}

func IsRelevantPastTransition(t domain.Transition) bool { return Process.IsRelevantPastTransition(t) }
func IsCustomerReview(t domain.Transition) bool         { return Process.IsCustomerReview(t) }
func IsProviderReview(t domain.Transition) bool         { return Process.IsProviderReview(t) }
func IsPrivileged(t domain.Transition) bool             { return Process.IsPrivileged(t) }
func IsCompleted(t domain.Transition) bool              { return Process.IsCompleted(t) }
func IsRefunded(t domain.Transition) bool               { return Process.IsRefunded(t) }
