package company

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{"id", "name", "profile_text", "created_at", "updated_at", "deleted_at"}

// Repository handles company persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new company repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a company by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("companies")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("company %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get company")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get company")
	}

	return &company, nil
}

// ListActive retrieves all non-deleted companies in creation order
func (r *Repository) ListActive(ctx context.Context) ([]models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("companies")
	sb.Where(sb.IsNull("deleted_at"))
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list companies")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list companies")
	}

	return companies, nil
}

// HasMember reports whether the company has at least one member
func (r *Repository) HasMember(ctx context.Context, companyID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.HasMember")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("company_members")
	sb.Where(sb.Equal("company_id", companyID))

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("company_id", companyID).Error("Failed to count company members")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check company membership")
	}

	return count > 0, nil
}

// CountAll counts non-deleted companies
func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.CountAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("companies")
	sb.Where(sb.IsNull("deleted_at"))

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count companies")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count companies")
	}

	return count, nil
}
