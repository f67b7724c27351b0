package matchingresult

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles matching result persistence. Rows are append-only;
// refreshes add rows instead of mutating history.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new matching result repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// InsertBatch inserts a company's results in one statement
func (r *Repository) InsertBatch(ctx context.Context, results []models.MatchingResult) error {
	ctx, span := tracing.StartSpan(ctx, "matchingresult.Repository.InsertBatch")
	defer span.End()

	if len(results) == 0 {
		return nil
	}

	now := time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("matching_results")
	sb.Cols("id", "company_id", "project_id", "total_score", "confidence", "match_reasons", "created_at")
	for _, res := range results {
		sb.Values(res.ID, res.CompanyID, res.ProjectID, res.TotalScore, res.Confidence, res.MatchReasons, now)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(results)).Error("Failed to insert matching results")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert matching results")
	}

	return nil
}

// CountAll counts all matching results
func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingresult.Repository.CountAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("matching_results")

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count matching results")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count matching results")
	}

	return count, nil
}

// CountSince counts results created within the last N hours
func (r *Repository) CountSince(ctx context.Context, hours int) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingresult.Repository.CountSince")
	defer span.End()

	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("matching_results")
	sb.Where(sb.GreaterEqualThan("created_at", cutoff))

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count recent matching results")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count matching results")
	}

	return count, nil
}
