package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Worker runs accepted batches in the background, keyed by a batch_runs row
// so callers can poll for the outcome.
type Worker struct {
	log     ectologger.Logger
	runs    repositories.BatchRunRepo
	emitter *events.Emitter
}

// NewWorker creates a new batch worker.
func NewWorker(log ectologger.Logger, runs repositories.BatchRunRepo, emitter *events.Emitter) *Worker {
	return &Worker{
		log:     log,
		runs:    runs,
		emitter: emitter,
	}
}

// Dispatch records a running batch and executes fn detached from the request
// context. The returned run id resolves via the batch run repository. An
// accepted run always finishes its row, even on panic.
func (w *Worker) Dispatch(ctx context.Context, kind string, fn func(context.Context) (*Summary, error)) (string, error) {
	run := &models.BatchRun{
		ID:     uuid.New().String(),
		Kind:   kind,
		Status: models.BatchStatusRunning,
	}

	if err := w.runs.Create(ctx, run); err != nil {
		return "", err
	}

	// The request context dies with the HTTP response; the run must not.
	bgCtx := context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.WithContext(bgCtx).WithError(fmt.Errorf("panic: %v", r)).Error("Batch run panicked")
				run.Status = models.BatchStatusFailed
				w.finish(bgCtx, run)
			}
		}()

		summary, err := fn(bgCtx)
		if err != nil {
			w.log.WithContext(bgCtx).WithError(err).WithField("run_id", run.ID).Error("Batch run failed")
			run.Status = models.BatchStatusFailed
			if summary != nil {
				w.applySummary(run, summary)
			}
			w.finish(bgCtx, run)
			return
		}

		run.Status = models.BatchStatusCompleted
		w.applySummary(run, summary)
		w.finish(bgCtx, run)
	}()

	return run.ID, nil
}

func (w *Worker) applySummary(run *models.BatchRun, summary *Summary) {
	run.Processed = summary.Processed
	run.SuccessCount = summary.SuccessCount
	run.ErrorCount = summary.ErrorCount
	if len(summary.ErrorDetails) > 0 {
		details, err := json.Marshal(summary.ErrorDetails)
		if err == nil {
			run.ErrorDetails = details
		}
	}
}

func (w *Worker) finish(ctx context.Context, run *models.BatchRun) {
	if err := w.runs.Finish(ctx, run); err != nil {
		w.log.WithContext(ctx).WithError(err).WithField("run_id", run.ID).Error("Failed to finalize batch run")
	}
	w.emitter.EmitBatchCompleted(ctx, run)
}
