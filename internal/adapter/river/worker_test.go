package river_test

import (
	"context"
	"errors"
	"testing"

	goriver "github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	riveradapter "github.com/neomorfeo/marketflow/internal/adapter/river"
	"github.com/neomorfeo/marketflow/internal/domain"
)

func newJob(args riveradapter.TransitionJobArgs) *goriver.Job[riveradapter.TransitionJobArgs] {
	return &goriver.Job[riveradapter.TransitionJobArgs]{
		JobRow: &rivertype.JobRow{ID: 7, Attempt: 1},
		Args:   args,
	}
}

func TestTransitionWorker_Work(t *testing.T) {
	w := &riveradapter.TransitionWorker{}

	err := w.Work(context.Background(), newJob(riveradapter.TransitionJobArgs{
		TransactionID: "tx-1",
		ProcessName:   "sell-purchase",
		Transition:    "transition/mark-received",
		By:            "customer",
		State:         "received",
	}))
	if err != nil {
		t.Fatalf("Work failed: %v", err)
	}
}

func TestTransitionWorker_UnknownProcessIsCancelled(t *testing.T) {
	w := &riveradapter.TransitionWorker{}

	err := w.Work(context.Background(), newJob(riveradapter.TransitionJobArgs{
		TransactionID: "tx-1",
		ProcessName:   "default-booking",
		Transition:    "transition/accept",
	}))
	if err == nil {
		t.Fatal("expected an error for an unknown process")
	}
	if !errors.Is(err, domain.ErrUnknownProcess) {
		t.Errorf("expected ErrUnknownProcess, got %v", err)
	}
}
