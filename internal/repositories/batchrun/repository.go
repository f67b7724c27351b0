package batchrun

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{
	"id", "kind", "status", "processed", "success_count", "error_count",
	"error_details", "started_at", "finished_at",
}

// Repository handles batch run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new batch run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a running batch row
func (r *Repository) Create(ctx context.Context, run *models.BatchRun) error {
	ctx, span := tracing.StartSpan(ctx, "batchrun.Repository.Create")
	defer span.End()

	run.StartedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("batch_runs")
	sb.Cols("id", "kind", "status", "started_at")
	sb.Values(run.ID, run.Kind, run.Status, run.StartedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", run.ID).Error("Failed to create batch run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create batch run")
	}

	return nil
}

// Finish finalizes a batch row with its outcome
func (r *Repository) Finish(ctx context.Context, run *models.BatchRun) error {
	ctx, span := tracing.StartSpan(ctx, "batchrun.Repository.Finish")
	defer span.End()

	now := time.Now().UTC()
	run.FinishedAt = &now

	details := run.ErrorDetails
	if details == nil {
		details = []byte("[]")
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("batch_runs")
	ub.Set(
		ub.Assign("status", run.Status),
		ub.Assign("processed", run.Processed),
		ub.Assign("success_count", run.SuccessCount),
		ub.Assign("error_count", run.ErrorCount),
		ub.Assign("error_details", details),
		ub.Assign("finished_at", now),
	)
	ub.Where(ub.Equal("id", run.ID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", run.ID).Error("Failed to finish batch run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to finish batch run")
	}

	return nil
}

// Get retrieves a batch run by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.BatchRun, error) {
	ctx, span := tracing.StartSpan(ctx, "batchrun.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("batch_runs")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var run models.BatchRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("batch run %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get batch run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get batch run")
	}

	return &run, nil
}
