package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/marketflow/internal/domain"
	"github.com/neomorfeo/marketflow/internal/process"
)

// TransitionWorker processes transition jobs from the River queue. It logs
// each transition together with its classification so downstream consumers
// (notifications, payouts, review reminders) can key off the log stream.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	attrs := []any{
		"transaction_id", job.Args.TransactionID,
		"process", job.Args.ProcessName,
		"transition", job.Args.Transition,
		"by", job.Args.By,
		"state", job.Args.State,
		"seq", job.Args.Seq,
		"job_id", job.ID,
		"attempt", job.Attempt,
	}

	p, err := process.Lookup(job.Args.ProcessName)
	if err != nil {
		// Retrying will not make an unknown process known.
		slog.WarnContext(ctx, "dropping transition job", append(attrs, "error", err)...)
		return river.JobCancel(err)
	}

	t := domain.Transition(job.Args.Transition)
	attrs = append(attrs,
		"completed", p.IsCompleted(t),
		"refunded", p.IsRefunded(t),
		"review", p.IsCustomerReview(t) || p.IsProviderReview(t),
	)

	slog.InfoContext(ctx, "processing transition", attrs...)
	return nil
}
