package repositories

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ProgramRepo defines the interface for support program repository operations
type ProgramRepo interface {
	ListLive(ctx context.Context) ([]models.SupportProgram, error)
	ListNeedingEmbedding(ctx context.Context, limit int) ([]models.SupportProgram, error)
	ClearNeedsEmbedding(ctx context.Context, id string) error
	ListByGroup(ctx context.Context, groupID string) ([]models.SupportProgram, error)
	AssignGroup(ctx context.Context, groupID string, memberIDs []string, canonicalID string) error
	CountLive(ctx context.Context) (int64, error)
}

// DuplicateGroupRepo defines the interface for duplicate group repository operations
type DuplicateGroupRepo interface {
	Create(ctx context.Context, group *models.DuplicateGroup) error
	Update(ctx context.Context, group *models.DuplicateGroup) error
	Get(ctx context.Context, id string) (*models.DuplicateGroup, error)
	GetByKey(ctx context.Context, normalizedName string, projectYear *int) (*models.DuplicateGroup, error)
	List(ctx context.Context, status models.ReviewStatus, page, perPage int) ([]models.DuplicateGroup, int64, error)
	CountsByStatus(ctx context.Context) (map[models.ReviewStatus]int64, error)
	SetReviewStatus(ctx context.Context, id string, status models.ReviewStatus) error
	ReassignCanonical(ctx context.Context, groupID, programID string) error
	Dissolve(ctx context.Context, groupID string) error
}

// CompanyRepo defines the interface for company repository operations
type CompanyRepo interface {
	ListActive(ctx context.Context) ([]models.Company, error)
	HasMember(ctx context.Context, companyID string) (bool, error)
	CountAll(ctx context.Context) (int64, error)
}

// PreferenceRepo defines the interface for match preference repository operations
type PreferenceRepo interface {
	GetLatest(ctx context.Context, companyID string) (*models.MatchPreference, error)
	CountCompaniesWithPreferences(ctx context.Context) (int64, error)
}

// MatchingResultRepo defines the interface for matching result repository operations
type MatchingResultRepo interface {
	InsertBatch(ctx context.Context, results []models.MatchingResult) error
	CountAll(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, hours int) (int64, error)
}

// EmbeddingRepo defines the interface for embedding repository operations
type EmbeddingRepo interface {
	Upsert(ctx context.Context, record *models.EmbeddingRecord) error
	Get(ctx context.Context, sourceType, sourceID string) (*models.EmbeddingRecord, error)
	CountBySourceType(ctx context.Context, sourceType string) (int64, error)
	// CosineSimilarity returns the similarity between two stored vectors.
	// The bool result is false when either vector is missing.
	CosineSimilarity(ctx context.Context, aType, aID, bType, bID string) (float64, bool, error)
}

// BatchRunRepo defines the interface for batch run repository operations
type BatchRunRepo interface {
	Create(ctx context.Context, run *models.BatchRun) error
	Finish(ctx context.Context, run *models.BatchRun) error
	Get(ctx context.Context, id string) (*models.BatchRun, error)
}
