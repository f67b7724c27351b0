// Package batch drives large-N operations in bounded, paced chunks
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
)

// Config bounds a batch run.
type Config struct {
	BatchSize    int           // Items per chunk (default: 50)
	PauseBetween time.Duration // Pause between chunks (default: 1s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:    50,
		PauseBetween: time.Second,
	}
}

// Outcome records one failed item.
type Outcome struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// Summary aggregates a full run.
type Summary struct {
	Processed    int       `json:"processed"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	SkippedCount int       `json:"skipped_count"`
	ErrorDetails []Outcome `json:"error_details,omitempty"`
}

// Merge folds another run's counts and failures into s.
func (s *Summary) Merge(other *Summary) {
	s.Processed += other.Processed
	s.SuccessCount += other.SuccessCount
	s.ErrorCount += other.ErrorCount
	s.SkippedCount += other.SkippedCount
	s.ErrorDetails = append(s.ErrorDetails, other.ErrorDetails...)
}

// ErrSkipped marks an item the processor declined rather than failed.
// Processors wrap or return sentinel errors matched via errors.Is.
var ErrSkipped = errors.New("item skipped")

// Run partitions items into chunks and processes each item sequentially,
// pausing between chunks to respect downstream rate limits. A single item
// failure is collected, never raised; only context cancellation stops the
// run early.
func Run[T any](
	ctx context.Context,
	log ectologger.Logger,
	kind string,
	cfg Config,
	items []T,
	itemID func(T) string,
	process func(context.Context, T) error,
) *Summary {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}

	summary := &Summary{}
	start := time.Now()

	for offset := 0; offset < len(items); offset += cfg.BatchSize {
		end := min(offset+cfg.BatchSize, len(items))

		for _, item := range items[offset:end] {
			if ctx.Err() != nil {
				log.WithContext(ctx).Warn("Batch run cancelled")
				metrics.RecordBatchRun(kind, time.Since(start).Seconds())
				return summary
			}

			summary.Processed++
			err := process(ctx, item)
			switch {
			case err == nil:
				summary.SuccessCount++
				metrics.RecordBatchItem(kind, "success")
			case errors.Is(err, ErrSkipped):
				summary.SkippedCount++
				metrics.RecordBatchItem(kind, "skipped")
			default:
				id := itemID(item)
				summary.ErrorCount++
				summary.ErrorDetails = append(summary.ErrorDetails, Outcome{
					ItemID: id,
					Error:  err.Error(),
				})
				metrics.RecordBatchItem(kind, "error")
				log.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"kind":    kind,
					"item_id": id,
				}).Warn("Batch item failed")
			}
		}

		// Pace before the next chunk, not after the last one.
		if end < len(items) && cfg.PauseBetween > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.PauseBetween):
			}
		}
	}

	metrics.RecordBatchRun(kind, time.Since(start).Seconds())
	log.WithContext(ctx).WithFields(map[string]any{
		"kind":          kind,
		"processed":     summary.Processed,
		"success_count": summary.SuccessCount,
		"error_count":   summary.ErrorCount,
		"skipped_count": summary.SkippedCount,
	}).Info("Batch run completed")

	return summary
}
