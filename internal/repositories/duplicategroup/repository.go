package duplicategroup

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
	"id", "normalized_name", "project_year", "canonical_project_id",
	"merge_confidence", "review_status", "source_count", "created_at", "updated_at",
}

// Repository handles duplicate group persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new duplicate group repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new duplicate group
func (r *Repository) Create(ctx context.Context, group *models.DuplicateGroup) error {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("duplicate_groups")
	sb.Cols(columns...)
	sb.Values(
		group.ID, group.NormalizedName, group.ProjectYear, group.CanonicalProjectID,
		group.MergeConfidence, group.ReviewStatus, group.SourceCount, now, now,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", group.ID).Error("Failed to create duplicate group")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate group")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":              group.ID,
		"normalized_name": group.NormalizedName,
	}).Info("Created duplicate group")
	return nil
}

// Update rewrites a group's computed fields
func (r *Repository) Update(ctx context.Context, group *models.DuplicateGroup) error {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.Update")
	defer span.End()

	group.UpdatedAt = time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("duplicate_groups")
	ub.Set(
		ub.Assign("canonical_project_id", group.CanonicalProjectID),
		ub.Assign("merge_confidence", group.MergeConfidence),
		ub.Assign("review_status", group.ReviewStatus),
		ub.Assign("source_count", group.SourceCount),
		ub.Assign("updated_at", group.UpdatedAt),
	)
	ub.Where(ub.Equal("id", group.ID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", group.ID).Error("Failed to update duplicate group")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update duplicate group")
	}

	return nil
}

// Get retrieves a group by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("duplicate_groups")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var group models.DuplicateGroup
	if err := r.db.GetContext(ctx, &group, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("duplicate group %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get duplicate group")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get duplicate group")
	}

	return &group, nil
}

// GetByKey retrieves the group for a clustering key. Returns nil without
// error when no group exists for the key.
func (r *Repository) GetByKey(ctx context.Context, normalizedName string, projectYear *int) (*models.DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.GetByKey")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("duplicate_groups")
	where := []string{sb.Equal("normalized_name", normalizedName)}
	if projectYear != nil {
		where = append(where, sb.Equal("project_year", *projectYear))
	} else {
		where = append(where, sb.IsNull("project_year"))
	}
	sb.Where(where...)

	query, args := sb.Build()
	var group models.DuplicateGroup
	if err := r.db.GetContext(ctx, &group, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get duplicate group by key")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get duplicate group")
	}

	return &group, nil
}

// List retrieves a page of groups, optionally filtered by review status.
// Returns the page and the total count for the filter.
func (r *Repository) List(ctx context.Context, status models.ReviewStatus, page, perPage int) ([]models.DuplicateGroup, int64, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.List")
	defer span.End()

	count := sqlbuilder.PostgreSQL.NewSelectBuilder()
	count.Select("COUNT(*)")
	count.From("duplicate_groups")
	if status != "" {
		count.Where(count.Equal("review_status", status))
	}

	query, args := count.Build()
	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count duplicate groups")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate groups")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("duplicate_groups")
	if status != "" {
		sb.Where(sb.Equal("review_status", status))
	}
	sb.OrderBy("updated_at").Desc()
	sb.Limit(perPage)
	sb.Offset((page - 1) * perPage)

	query, args = sb.Build()
	var groups []models.DuplicateGroup
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list duplicate groups")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate groups")
	}

	return groups, total, nil
}

// CountsByStatus returns group counts per review status
func (r *Repository) CountsByStatus(ctx context.Context) (map[models.ReviewStatus]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.CountsByStatus")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("review_status", "COUNT(*) AS n")
	sb.From("duplicate_groups")
	sb.GroupBy("review_status")

	query, args := sb.Build()
	var rows []struct {
		ReviewStatus models.ReviewStatus `db:"review_status"`
		N            int64               `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count duplicate groups by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count duplicate groups")
	}

	counts := make(map[models.ReviewStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.ReviewStatus] = row.N
	}

	return counts, nil
}

// SetReviewStatus updates the review status of a group
func (r *Repository) SetReviewStatus(ctx context.Context, id string, status models.ReviewStatus) error {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.SetReviewStatus")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("duplicate_groups")
	ub.Set(
		ub.Assign("review_status", status),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to set review status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set review status")
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("duplicate group %s not found", id))
	}

	return nil
}

// ReassignCanonical moves the canonical pointer to another live member. The
// membership check, the old canonical clear and the new canonical set happen
// in one transaction.
func (r *Repository) ReassignCanonical(ctx context.Context, groupID, programID string) error {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.ReassignCanonical")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"group_id":   groupID,
		"program_id": programID,
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	// The target must currently be a live member of the group.
	check := sqlbuilder.PostgreSQL.NewSelectBuilder()
	check.Select("COUNT(*)")
	check.From("support_programs")
	check.Where(
		check.Equal("id", programID),
		check.Equal("duplicate_group_id", groupID),
		check.IsNull("deleted_at"),
	)

	query, args := check.Build()
	var isMember int
	if err := tx.GetContext(ctx, &isMember, query, args...); err != nil {
		log.WithError(err).Error("Failed to verify group membership")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign canonical program")
	}
	if isMember == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("program %s is not a live member of group %s", programID, groupID))
	}

	now := time.Now().UTC()

	clear := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	clear.Update("support_programs")
	clear.Set(
		clear.Assign("is_canonical", false),
		clear.Assign("updated_at", now),
	)
	clear.Where(clear.Equal("duplicate_group_id", groupID))

	query, args = clear.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to clear old canonical")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign canonical program")
	}

	set := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	set.Update("support_programs")
	set.Set(
		set.Assign("is_canonical", true),
		set.Assign("updated_at", now),
	)
	set.Where(set.Equal("id", programID))

	query, args = set.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to set new canonical")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign canonical program")
	}

	group := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	group.Update("duplicate_groups")
	group.Set(
		group.Assign("canonical_project_id", programID),
		group.Assign("updated_at", now),
	)
	group.Where(group.Equal("id", groupID))

	query, args = group.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to update group canonical pointer")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign canonical program")
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit canonical reassignment")
	}

	log.Info("Reassigned canonical program")
	return nil
}

// Dissolve detaches all members and deletes the group row in one transaction
func (r *Repository) Dissolve(ctx context.Context, groupID string) error {
	ctx, span := tracing.StartSpan(ctx, "duplicategroup.Repository.Dissolve")
	defer span.End()

	log := r.logger.WithContext(ctx).WithField("group_id", groupID)

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	detach := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	detach.Update("support_programs")
	detach.Set(
		detach.Assign("duplicate_group_id", nil),
		detach.Assign("is_canonical", false),
		detach.Assign("updated_at", time.Now().UTC()),
	)
	detach.Where(detach.Equal("duplicate_group_id", groupID))

	query, args := detach.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to detach group members")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to dissolve group")
	}

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("duplicate_groups")
	del.Where(del.Equal("id", groupID))

	query, args = del.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to delete group row")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to dissolve group")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("duplicate group %s not found", groupID))
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit group dissolution")
	}

	log.Info("Dissolved duplicate group")
	return nil
}
