package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("item-%d", i)
	}
	return out
}

func TestRun_CountsFailuresWithoutStopping(t *testing.T) {
	items := ids(10)
	failing := map[string]bool{"item-3": true, "item-7": true}

	summary := Run(context.Background(), testLogger(), "test", Config{BatchSize: 3}, items,
		func(s string) string { return s },
		func(_ context.Context, s string) error {
			if failing[s] {
				return errors.New("boom")
			}
			return nil
		},
	)

	assert.Equal(t, 10, summary.Processed)
	assert.Equal(t, 8, summary.SuccessCount)
	assert.Equal(t, 2, summary.ErrorCount)
	require.Len(t, summary.ErrorDetails, 2)
	assert.Equal(t, "item-3", summary.ErrorDetails[0].ItemID)
	assert.Equal(t, "boom", summary.ErrorDetails[0].Error)
}

func TestRun_SkippedItems(t *testing.T) {
	items := ids(4)

	summary := Run(context.Background(), testLogger(), "test", DefaultConfig(), items,
		func(s string) string { return s },
		func(_ context.Context, s string) error {
			if s == "item-0" {
				return fmt.Errorf("%w: %s", ErrSkipped, s)
			}
			return nil
		},
	)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 3, summary.SuccessCount)
	assert.Equal(t, 1, summary.SkippedCount)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.Empty(t, summary.ErrorDetails)
}

func TestRun_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := ids(10)
	processed := 0

	summary := Run(ctx, testLogger(), "test", Config{BatchSize: 100}, items,
		func(s string) string { return s },
		func(_ context.Context, _ string) error {
			processed++
			if processed == 4 {
				cancel()
			}
			return nil
		},
	)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 4, summary.SuccessCount)
}

func TestRun_EmptyItems(t *testing.T) {
	summary := Run(context.Background(), testLogger(), "test", DefaultConfig(), nil,
		func(s string) string { return s },
		func(_ context.Context, _ string) error { return nil },
	)

	assert.Equal(t, 0, summary.Processed)
}

func TestRun_DefaultsInvalidBatchSize(t *testing.T) {
	summary := Run(context.Background(), testLogger(), "test", Config{BatchSize: 0}, ids(3),
		func(s string) string { return s },
		func(_ context.Context, _ string) error { return nil },
	)

	assert.Equal(t, 3, summary.SuccessCount)
}

func TestSummary_Merge(t *testing.T) {
	a := &Summary{Processed: 3, SuccessCount: 2, ErrorCount: 1,
		ErrorDetails: []Outcome{{ItemID: "a-1", Error: "boom"}}}
	b := &Summary{Processed: 2, SuccessCount: 1, SkippedCount: 1}

	a.Merge(b)

	assert.Equal(t, 5, a.Processed)
	assert.Equal(t, 3, a.SuccessCount)
	assert.Equal(t, 1, a.ErrorCount)
	assert.Equal(t, 1, a.SkippedCount)
	require.Len(t, a.ErrorDetails, 1)
}
