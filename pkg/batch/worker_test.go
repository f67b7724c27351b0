package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[string]*models.BatchRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]*models.BatchRun)}
}

func (r *fakeRunRepo) Create(_ context.Context, run *models.BatchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *fakeRunRepo) Finish(_ context.Context, run *models.BatchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *fakeRunRepo) Get(_ context.Context, id string) (*models.BatchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, httperror.NewHTTPError(404, "batch run not found")
	}
	copied := *run
	return &copied, nil
}

func waitForFinish(t *testing.T, repo *fakeRunRepo, id string) *models.BatchRun {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		if run.Status != models.BatchStatusRunning {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("batch run never finished")
	return nil
}

func newTestWorker(repo *fakeRunRepo) *Worker {
	log := testLogger()
	return NewWorker(log, repo, events.NewEmitter(nil, log))
}

func TestDispatch_CompletedRun(t *testing.T) {
	repo := newFakeRunRepo()
	worker := newTestWorker(repo)

	id, err := worker.Dispatch(context.Background(), models.BatchKindMatching, func(_ context.Context) (*Summary, error) {
		return &Summary{Processed: 5, SuccessCount: 4, ErrorCount: 1}, nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run := waitForFinish(t, repo, id)
	assert.Equal(t, models.BatchStatusCompleted, run.Status)
	assert.Equal(t, 5, run.Processed)
	assert.Equal(t, 4, run.SuccessCount)
	assert.Equal(t, 1, run.ErrorCount)
	assert.NotNil(t, run.FinishedAt)
}

func TestDispatch_FailedRun(t *testing.T) {
	repo := newFakeRunRepo()
	worker := newTestWorker(repo)

	id, err := worker.Dispatch(context.Background(), models.BatchKindMatching, func(_ context.Context) (*Summary, error) {
		return nil, errors.New("downstream unavailable")
	})
	require.NoError(t, err)

	run := waitForFinish(t, repo, id)
	assert.Equal(t, models.BatchStatusFailed, run.Status)
}

func TestDispatch_PanickedRunFinishesRow(t *testing.T) {
	repo := newFakeRunRepo()
	worker := newTestWorker(repo)

	id, err := worker.Dispatch(context.Background(), models.BatchKindEmbedding, func(_ context.Context) (*Summary, error) {
		panic("unexpected")
	})
	require.NoError(t, err)

	run := waitForFinish(t, repo, id)
	assert.Equal(t, models.BatchStatusFailed, run.Status)
}

func TestDispatch_SurvivesRequestCancellation(t *testing.T) {
	repo := newFakeRunRepo()
	worker := newTestWorker(repo)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	id, err := worker.Dispatch(ctx, models.BatchKindMatching, func(runCtx context.Context) (*Summary, error) {
		close(started)
		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}
		return &Summary{Processed: 1, SuccessCount: 1}, nil
	})
	require.NoError(t, err)

	<-started
	cancel()

	run := waitForFinish(t, repo, id)
	assert.Equal(t, models.BatchStatusCompleted, run.Status)
}
