package program

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
	"id", "name", "organizer", "category", "region", "sub_region", "summary",
	"eligibility_text", "amount_min", "amount_max", "deadline", "status",
	"project_year", "normalized_name", "is_canonical", "needs_embedding",
	"duplicate_group_id", "source", "created_at", "updated_at", "deleted_at",
}

// Repository handles support program persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new support program repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a program by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.SupportProgram, error) {
	ctx, span := tracing.StartSpan(ctx, "program.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("support_programs")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var program models.SupportProgram
	if err := r.db.GetContext(ctx, &program, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("program %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get program")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get program")
	}

	return &program, nil
}

// ListLive retrieves all non-deleted programs
func (r *Repository) ListLive(ctx context.Context) ([]models.SupportProgram, error) {
	ctx, span := tracing.StartSpan(ctx, "program.Repository.ListLive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("support_programs")
	sb.Where(sb.IsNull("deleted_at"))
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	var programs []models.SupportProgram
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list live programs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list programs")
	}

	return programs, nil
}

// CountLive counts non-deleted programs
func (r *Repository) CountLive(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "program.Repository.CountLive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("support_programs")
	sb.Where(sb.IsNull("deleted_at"))

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count live programs")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count programs")
	}

	return count, nil
}

// ListNeedingEmbedding retrieves programs flagged for embedding, oldest first
func (r *Repository) ListNeedingEmbedding(ctx context.Context, limit int) ([]models.SupportProgram, error) {
	ctx, span := tracing.StartSpan(ctx, "program.Repository.ListNeedingEmbedding")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("support_programs")
	sb.Where(
		sb.Equal("needs_embedding", true),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("updated_at").Asc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	var programs []models.SupportProgram
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list programs needing embedding")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list programs needing embedding")
	}

	return programs, nil
}

// ClearNeedsEmbedding clears the embedding flag for a program
func (r *Repository) ClearNeedsEmbedding(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "program.Repository.ClearNeedsEmbedding")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("support_programs")
	ub.Set(
		ub.Assign("needs_embedding", false),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to clear needs_embedding")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear embedding flag")
	}

	return nil
}

// ListByGroup retrieves the live members of a duplicate group
func (r *Repository) ListByGroup(ctx context.Context, groupID string) ([]models.SupportProgram, error) {
	ctx, span := tracing.StartSpan(ctx, "program.Repository.ListByGroup")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("support_programs")
	sb.Where(
		sb.Equal("duplicate_group_id", groupID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	var programs []models.SupportProgram
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("group_id", groupID).Error("Failed to list group members")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list group members")
	}

	return programs, nil
}

// AssignGroup sets group membership in one transaction: members no longer in
// the set are detached, listed members point at the group, and exactly the
// canonical member carries is_canonical.
func (r *Repository) AssignGroup(ctx context.Context, groupID string, memberIDs []string, canonicalID string) error {
	ctx, span := tracing.StartSpan(ctx, "program.Repository.AssignGroup")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"group_id":     groupID,
		"member_count": len(memberIDs),
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	ids := make([]any, 0, len(memberIDs))
	for _, id := range memberIDs {
		ids = append(ids, id)
	}

	// Detach members that left the group.
	detach := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	detach.Update("support_programs")
	detach.Set(
		detach.Assign("duplicate_group_id", nil),
		detach.Assign("is_canonical", false),
		detach.Assign("updated_at", now),
	)
	detach.Where(
		detach.Equal("duplicate_group_id", groupID),
		detach.NotIn("id", ids...),
	)

	query, args := detach.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to detach removed members")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update group membership")
	}

	// Attach current members.
	attach := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	attach.Update("support_programs")
	attach.Set(
		attach.Assign("duplicate_group_id", groupID),
		attach.Assign("is_canonical", false),
		attach.Assign("updated_at", now),
	)
	attach.Where(attach.In("id", ids...))

	query, args = attach.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to attach members")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update group membership")
	}

	// Mark the canonical member.
	canonical := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	canonical.Update("support_programs")
	canonical.Set(
		canonical.Assign("is_canonical", true),
		canonical.Assign("updated_at", now),
	)
	canonical.Where(canonical.Equal("id", canonicalID))

	query, args = canonical.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to mark canonical member")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update group membership")
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit group membership")
	}

	return nil
}
