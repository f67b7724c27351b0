package grouping

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SetReviewStatus applies an explicit reviewer decision to a group.
func (s *Service) SetReviewStatus(ctx context.Context, groupID string, status models.ReviewStatus) (*models.DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Service.SetReviewStatus")
	defer span.End()

	if !models.ValidReviewStatus(status) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid review status %q", status)
	}

	if err := s.groups.SetReviewStatus(ctx, groupID, status); err != nil {
		return nil, err
	}

	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).WithFields(map[string]any{
		"group_id":      groupID,
		"review_status": status,
	}).Info("Review status changed")

	s.emitter.EmitReviewChanged(ctx, groupID, status)
	return group, nil
}

// ReassignCanonical moves the canonical pointer to another live member of the
// group. The repository enforces membership and flips isCanonical in one
// transaction.
func (s *Service) ReassignCanonical(ctx context.Context, groupID, programID string) (*models.DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Service.ReassignCanonical")
	defer span.End()

	if err := s.groups.ReassignCanonical(ctx, groupID, programID); err != nil {
		return nil, err
	}

	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).WithFields(map[string]any{
		"group_id":   groupID,
		"program_id": programID,
	}).Info("Canonical program reassigned")

	s.emitter.EmitGroupUpdated(ctx, group)
	return group, nil
}

// Dissolve detaches all members and deletes the group. Member programs
// survive ungrouped.
func (s *Service) Dissolve(ctx context.Context, groupID string) error {
	ctx, span := tracing.StartSpan(ctx, "grouping.Service.Dissolve")
	defer span.End()

	members, err := s.programs.ListByGroup(ctx, groupID)
	if err != nil {
		return err
	}

	if err := s.groups.Dissolve(ctx, groupID); err != nil {
		return err
	}

	memberIDs := make([]string, 0, len(members))
	for _, p := range members {
		memberIDs = append(memberIDs, p.ID)
	}

	s.log.WithContext(ctx).WithFields(map[string]any{
		"group_id":     groupID,
		"member_count": len(memberIDs),
	}).Info("Duplicate group dissolved")

	metrics.RecordGroupChange("dissolved")
	s.emitter.EmitGroupDissolved(ctx, groupID, memberIDs)
	return nil
}

// List returns a page of groups, optionally filtered by review status, plus
// per-status counts for the review dashboard.
func (s *Service) List(ctx context.Context, status models.ReviewStatus, page, perPage int) (*models.GroupListPage, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Service.List")
	defer span.End()

	if status != "" && !models.ValidReviewStatus(status) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid review status %q", status)
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	groups, total, err := s.groups.List(ctx, status, page, perPage)
	if err != nil {
		return nil, err
	}

	counts, err := s.groups.CountsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &models.GroupListPage{
		Items:        groups,
		Total:        total,
		Page:         page,
		PerPage:      perPage,
		StatusCounts: counts,
	}, nil
}
