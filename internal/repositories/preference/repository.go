package preference

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{
	"id", "company_id", "categories", "min_amount", "max_amount",
	"regions", "exclude_keywords", "created_at",
}

// Repository handles match preference persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match preference repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetLatest retrieves the most recent preference for a company. Returns nil
// without error when the company has none.
func (r *Repository) GetLatest(ctx context.Context, companyID string) (*models.MatchPreference, error) {
	ctx, span := tracing.StartSpan(ctx, "preference.Repository.GetLatest")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("company_match_preferences")
	sb.Where(sb.Equal("company_id", companyID))
	sb.OrderBy("created_at").Desc()
	sb.Limit(1)

	query, args := sb.Build()
	var pref models.MatchPreference
	if err := r.db.GetContext(ctx, &pref, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("company_id", companyID).Error("Failed to get match preference")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match preference")
	}

	return &pref, nil
}

// CountCompaniesWithPreferences counts distinct companies with a preference
func (r *Repository) CountCompaniesWithPreferences(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "preference.Repository.CountCompaniesWithPreferences")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(DISTINCT company_id)")
	sb.From("company_match_preferences")

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count companies with preferences")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count preferences")
	}

	return count, nil
}
