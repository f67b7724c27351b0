package embedding

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

// Repository handles embedding persistence backed by pgvector
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new embedding repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert replaces the vector and metadata for a (source_type, source_id) pair
// atomically.
func (r *Repository) Upsert(ctx context.Context, record *models.EmbeddingRecord) error {
	ctx, span := tracing.StartSpan(ctx, "embedding.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto("embeddings")
	ib.Cols("source_type", "source_id", "vector", "content", "metadata", "created_at", "updated_at")
	ib.Values(record.SourceType, record.SourceID, record.Vector, record.Content, record.Metadata, now, now)
	ub := ib.OnConflict("source_type", "source_id")
	ub.Set(
		ub.Assign("vector", database.Excluded("vector")),
		ub.Assign("content", database.Excluded("content")),
		ub.Assign("metadata", database.Excluded("metadata")),
		ub.Assign("updated_at", now),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_type": record.SourceType,
			"source_id":   record.SourceID,
		}).Error("Failed to upsert embedding")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert embedding")
	}

	return nil
}

// Get retrieves an embedding record. Returns nil without error when the pair
// has no stored vector.
func (r *Repository) Get(ctx context.Context, sourceType, sourceID string) (*models.EmbeddingRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "embedding.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("source_type", "source_id", "vector", "content", "metadata", "created_at", "updated_at")
	sb.From("embeddings")
	sb.Where(
		sb.Equal("source_type", sourceType),
		sb.Equal("source_id", sourceID),
	)

	query, args := sb.Build()
	var record models.EmbeddingRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get embedding")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get embedding")
	}

	return &record, nil
}

// CountBySourceType counts embeddings for a source type
func (r *Repository) CountBySourceType(ctx context.Context, sourceType string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "embedding.Repository.CountBySourceType")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("embeddings")
	sb.Where(sb.Equal("source_type", sourceType))

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count embeddings")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count embeddings")
	}

	return count, nil
}

// CosineSimilarity computes the similarity between two stored vectors using
// the pgvector cosine distance operator. The bool result is false when either
// vector is missing.
func (r *Repository) CosineSimilarity(ctx context.Context, aType, aID, bType, bID string) (float64, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "embedding.Repository.CosineSimilarity")
	defer span.End()

	query := `
		SELECT 1 - (a.vector <=> b.vector)
		FROM embeddings a, embeddings b
		WHERE a.source_type = $1 AND a.source_id = $2
		  AND b.source_type = $3 AND b.source_id = $4`

	var similarity float64
	if err := r.db.GetContext(ctx, &similarity, query, aType, aID, bType, bID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return 0, false, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to compute vector similarity")
		return 0, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to compute similarity")
	}

	return similarity, true, nil
}
