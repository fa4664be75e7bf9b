package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/marketflow/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// TransitionJobArgs carries the data needed to react to a transition
// asynchronously. River serializes this as JSON into its job queue table. It
// includes a snapshot of the transaction at the time the transition was
// recorded, so the worker never needs to query the database.
type TransitionJobArgs struct {
	TransactionID string    `json:"transaction_id"`
	ProcessName   string    `json:"process_name"`
	Transition    string    `json:"transition"`
	By            string    `json:"by"`
	State         string    `json:"state"`
	Seq           int       `json:"seq"`
	OfferCount    int       `json:"offer_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "transaction.transitioned" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a recorded transition as an async job in River.
func (p *Publisher) Publish(ctx context.Context, tx domain.Transaction, record domain.TransitionRecord) error {
	_, err := p.client.Insert(ctx, TransitionJobArgs{
		TransactionID: tx.ID,
		ProcessName:   tx.ProcessName,
		Transition:    string(record.Transition),
		By:            string(record.By),
		State:         string(tx.State),
		Seq:           len(tx.Transitions) - 1,
		OfferCount:    len(tx.Metadata.Offers),
		CreatedAt:     record.CreatedAt,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}
