// Package events handles event emission for grant catalog changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/tracing"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Event types published to the grant events topic
const (
	EventTypeGroupCreated       = "group.created"
	EventTypeGroupUpdated       = "group.updated"
	EventTypeGroupDissolved     = "group.dissolved"
	EventTypeGroupReviewChanged = "group.review_changed"
	EventTypeBatchCompleted     = "matching.batch_completed"
)

// Emitter publishes grant events. A nil producer disables emission. Publish
// failures are logged and swallowed so event delivery never fails a write.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) emit(ctx context.Context, eventType, subjectID string, payload map[string]any) {
	if e == nil || e.producer == nil {
		return
	}

	payload["schema_version"] = SchemaVersion
	data, _ := json.Marshal(payload)

	event := &kafka.GrantEvent{
		EventType: eventType,
		SubjectID: subjectID,
		Data:      data,
	}

	if err := e.producer.PublishGrantEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Error("Failed to emit grant event")
	}
}

// EmitGroupCreated emits a group created event
func (e *Emitter) EmitGroupCreated(ctx context.Context, group *models.DuplicateGroup) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGroupCreated")
	defer span.End()

	e.emit(ctx, EventTypeGroupCreated, group.ID, map[string]any{
		"normalized_name":      group.NormalizedName,
		"canonical_project_id": group.CanonicalProjectID,
		"merge_confidence":     group.MergeConfidence,
		"review_status":        group.ReviewStatus,
		"source_count":         group.SourceCount,
	})
}

// EmitGroupUpdated emits a group updated event
func (e *Emitter) EmitGroupUpdated(ctx context.Context, group *models.DuplicateGroup) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGroupUpdated")
	defer span.End()

	e.emit(ctx, EventTypeGroupUpdated, group.ID, map[string]any{
		"normalized_name":      group.NormalizedName,
		"canonical_project_id": group.CanonicalProjectID,
		"merge_confidence":     group.MergeConfidence,
		"review_status":        group.ReviewStatus,
		"source_count":         group.SourceCount,
	})
}

// EmitGroupDissolved emits a group dissolved event
func (e *Emitter) EmitGroupDissolved(ctx context.Context, groupID string, memberIDs []string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGroupDissolved")
	defer span.End()

	e.emit(ctx, EventTypeGroupDissolved, groupID, map[string]any{
		"member_ids": memberIDs,
	})
}

// EmitReviewChanged emits a review status change event
func (e *Emitter) EmitReviewChanged(ctx context.Context, groupID string, status models.ReviewStatus) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReviewChanged")
	defer span.End()

	e.emit(ctx, EventTypeGroupReviewChanged, groupID, map[string]any{
		"review_status": status,
	})
}

// EmitBatchCompleted emits a batch completion event
func (e *Emitter) EmitBatchCompleted(ctx context.Context, run *models.BatchRun) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchCompleted")
	defer span.End()

	e.emit(ctx, EventTypeBatchCompleted, run.ID, map[string]any{
		"kind":          run.Kind,
		"status":        run.Status,
		"processed":     run.Processed,
		"success_count": run.SuccessCount,
		"error_count":   run.ErrorCount,
	})
}
