package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/marketflow/internal/app"
	"github.com/neomorfeo/marketflow/internal/domain"
)

const timeFormat = time.RFC3339Nano

// TransitionResponse is the API representation of a recorded transition.
type TransitionResponse struct {
	Transition string `json:"transition" doc:"Transition name"`
	By         string `json:"by" doc:"Role that triggered the transition"`
	CreatedAt  string `json:"createdAt" doc:"Timestamp (RFC 3339)"`
}

func toTransitionResponses(records []domain.TransitionRecord) []TransitionResponse {
	out := make([]TransitionResponse, len(records))
	for i, r := range records {
		out[i] = TransitionResponse{
			Transition: string(r.Transition),
			By:         string(r.By),
			CreatedAt:  r.CreatedAt.Format(timeFormat),
		}
	}
	return out
}

// TransactionResponse is the API representation of a transaction.
type TransactionResponse struct {
	ID             string               `json:"id" doc:"Unique identifier"`
	ProcessName    string               `json:"processName" doc:"Process the transaction runs"`
	State          string               `json:"state" doc:"Current state"`
	LastTransition string               `json:"lastTransition" doc:"Most recent transition"`
	Transitions    []TransitionResponse `json:"transitions" doc:"Full transition history, oldest first"`
	Metadata       Metadata             `json:"metadata"`
	CreatedAt      string               `json:"createdAt" doc:"Creation timestamp (RFC 3339)"`
	UpdatedAt      string               `json:"updatedAt" doc:"Last update timestamp (RFC 3339)"`
}

func toTransactionResponse(tx domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:             tx.ID,
		ProcessName:    tx.ProcessName,
		State:          string(tx.State),
		LastTransition: string(tx.LastTransition),
		Transitions:    toTransitionResponses(tx.Transitions),
		Metadata:       Metadata{tx.Metadata},
		CreatedAt:      tx.CreatedAt.Format(timeFormat),
		UpdatedAt:      tx.UpdatedAt.Format(timeFormat),
	}
}

// Metadata carries domain.Metadata over the wire as-is, so integers keep their
// exact value and unknown keys are passed through.
type Metadata struct {
	domain.Metadata
}

// Schema describes metadata as an open JSON object.
func (Metadata) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:                 huma.TypeObject,
		Description:          "Free-form metadata; offers holds the negotiation history",
		AdditionalProperties: true,
	}
}

// TransitionBody is the request payload shared by every transition endpoint.
type TransitionBody struct {
	Transition      string `json:"transition" minLength:"1" doc:"Transition to take, e.g. transition/make-offer"`
	Actor           string `json:"actor" enum:"customer,provider,operator" doc:"Role taking the transition"`
	OfferInSubunits int64  `json:"offerInSubunits,omitempty" doc:"Offer in minor currency units, for make-offer and counter-offer transitions"`
}

func (b TransitionBody) request() app.TransitionRequest {
	return app.TransitionRequest{
		Transition:      domain.Transition(b.Transition),
		Actor:           domain.Actor(b.Actor),
		OfferInSubunits: b.OfferInSubunits,
	}
}

// --- Initiate Transaction ---

type InitiateTransactionInput struct {
	Body struct {
		ProcessName string   `json:"processName" minLength:"1" doc:"Process to run, e.g. default-negotiation"`
		Metadata    Metadata `json:"metadata,omitempty" doc:"Initial metadata"`
		TransitionBody
	}
}

type TransactionOutput struct {
	Body TransactionResponse
}

// --- Get Transaction ---

type GetTransactionInput struct {
	ID string `path:"id" doc:"Transaction ID"`
}

// --- List Transactions ---

type ListTransactionsInput struct {
	ProcessName string   `query:"processName" required:"false" doc:"Filter by process"`
	State       []string `query:"state" required:"false" doc:"Filter by state (comma-separated)"`
	Attention   string   `query:"attention" required:"false" enum:"customer,provider,operator" doc:"Only states where this role has to act; requires processName"`
	Limit       int      `query:"limit" required:"false" default:"50" minimum:"0" doc:"Max results"`
	Offset      int      `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListTransactionsOutput struct {
	Body []TransactionResponse
}

// --- Transition ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Transaction ID"`
	Body TransitionBody
}

// --- History ---

type HistoryOutput struct {
	Body []TransitionResponse
}

// --- Next Transitions ---

type NextTransitionsInput struct {
	ID    string `path:"id" doc:"Transaction ID"`
	Actor string `query:"actor" required:"false" enum:"customer,provider,operator" doc:"Only transitions this role can take"`
}

type NextTransitionResponse struct {
	Transition string `json:"transition"`
	Actor      string `json:"actor"`
	Privileged bool   `json:"privileged" doc:"Must be taken through the privileged endpoint"`
}

type NextTransitionsOutput struct {
	Body []NextTransitionResponse
}

// Register adds all transaction and process API routes to the Huma API.
func Register(api huma.API, svc *app.TransactionService) {
	huma.Register(api, huma.Operation{
		OperationID: "initiate-transaction",
		Method:      http.MethodPost,
		Path:        "/api/v1/transactions",
		Summary:     "Start a transaction with its first transition",
		Tags:        []string{"Transactions"},
	}, func(ctx context.Context, input *InitiateTransactionInput) (*TransactionOutput, error) {
		tx, err := svc.Initiate(ctx, app.InitiateRequest{
			ProcessName:       input.Body.ProcessName,
			Metadata:          input.Body.Metadata.Metadata,
			TransitionRequest: input.Body.request(),
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return transactionOutput(tx), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-transaction",
		Method:      http.MethodGet,
		Path:        "/api/v1/transactions/{id}",
		Summary:     "Get a transaction by ID",
		Tags:        []string{"Transactions"},
	}, func(ctx context.Context, input *GetTransactionInput) (*TransactionOutput, error) {
		tx, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return transactionOutput(tx), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodGet,
		Path:        "/api/v1/transactions",
		Summary:     "List transactions",
		Tags:        []string{"Transactions"},
	}, func(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
		req := app.ListRequest{
			ProcessName: input.ProcessName,
			Attention:   domain.Actor(input.Attention),
			Limit:       input.Limit,
			Offset:      input.Offset,
		}
		for _, s := range input.State {
			req.States = append(req.States, domain.State(s))
		}

		transactions, err := svc.List(ctx, req)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		resp := make([]TransactionResponse, len(transactions))
		for i, tx := range transactions {
			resp[i] = toTransactionResponse(tx)
		}
		return &ListTransactionsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-transaction",
		Method:      http.MethodPost,
		Path:        "/api/v1/transactions/{id}/transitions",
		Summary:     "Take a non-privileged transition",
		Tags:        []string{"Transactions"},
	}, func(ctx context.Context, input *TransitionInput) (*TransactionOutput, error) {
		tx, err := svc.Transition(ctx, input.ID, input.Body.request())
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return transactionOutput(tx), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "privileged-transition-transaction",
		Method:      http.MethodPost,
		Path:        "/api/v1/transactions/{id}/privileged-transitions",
		Summary:     "Take a transition on the trusted server-side path",
		Description: "Offer-bearing transitions validate the negotiation history and append the new offer to metadata.offers.",
		Tags:        []string{"Transactions"},
	}, func(ctx context.Context, input *TransitionInput) (*TransactionOutput, error) {
		tx, err := svc.TransitionPrivileged(ctx, input.ID, input.Body.request())
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return transactionOutput(tx), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transaction-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/transactions/{id}/history",
		Summary:     "List the transitions worth showing in an activity feed",
		Tags:        []string{"Transactions"},
	}, func(ctx context.Context, input *GetTransactionInput) (*HistoryOutput, error) {
		records, err := svc.History(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &HistoryOutput{Body: toTransitionResponses(records)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-transitions",
		Method:      http.MethodGet,
		Path:        "/api/v1/transactions/{id}/next-transitions",
		Summary:     "List the transitions that can be taken next",
		Tags:        []string{"Transactions"},
	}, func(ctx context.Context, input *NextTransitionsInput) (*NextTransitionsOutput, error) {
		next, err := svc.NextTransitions(ctx, input.ID, domain.Actor(input.Actor))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		resp := make([]NextTransitionResponse, len(next))
		for i, n := range next {
			resp[i] = NextTransitionResponse{
				Transition: string(n.Transition),
				Actor:      string(n.Actor),
				Privileged: n.Privileged,
			}
		}
		return &NextTransitionsOutput{Body: resp}, nil
	})

	registerProcesses(api)
}

func transactionOutput(tx domain.Transaction) *TransactionOutput {
	return &TransactionOutput{Body: toTransactionResponse(tx)}
}

// negotiationHistoryError exposes the domain error to Huma with its own body
// shape instead of the default problem details.
type negotiationHistoryError struct {
	*domain.InvalidNegotiationHistoryError
}

func (e negotiationHistoryError) GetStatus() int { return e.Status() }

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return huma.Error404NotFound("transaction not found")
	}

	if errors.Is(err, domain.ErrUnknownProcess) {
		return huma.Error404NotFound(err.Error())
	}

	var histErr *domain.InvalidNegotiationHistoryError
	if errors.As(err, &histErr) {
		slog.WarnContext(ctx, "rejected negotiation transition", "error", histErr, "data", histErr.Data())
		return negotiationHistoryError{histErr}
	}

	var actorErr *domain.ActorError
	if errors.As(err, &actorErr) {
		return huma.Error403Forbidden(actorErr.Error())
	}

	var privErr *domain.PrivilegedTransitionError
	if errors.As(err, &privErr) {
		return huma.Error403Forbidden(privErr.Error())
	}

	if errors.Is(err, domain.ErrConcurrentTransition) {
		return huma.Error409Conflict(domain.ErrConcurrentTransition.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var amountErr *domain.OfferAmountError
	if errors.As(err, &amountErr) {
		return huma.Error422UnprocessableEntity(amountErr.Error())
	}

	if errors.Is(err, domain.ErrInvalidFilter) {
		return huma.Error422UnprocessableEntity(err.Error())
	}

	slog.ErrorContext(ctx, "request failed", "error", err)
	return huma.Error500InternalServerError("internal server error")
}
