package models

import (
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Embedding source types
const (
	SourceTypeProgram = "support_project"
	SourceTypeCompany = "company_profile"
)

// EmbeddingRecord stores one vector per (source_type, source_id) pair. Upsert
// replaces the vector and metadata atomically; re-embedding the same entity
// overwrites, never duplicates.
type EmbeddingRecord struct {
	SourceType string          `json:"source_type" db:"source_type"`
	SourceID   string          `json:"source_id" db:"source_id"`
	Vector     pgvector.Vector `json:"-" db:"vector"`
	Content    string          `json:"content" db:"content"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// EmbeddingStats reports embedding coverage over the program catalog
type EmbeddingStats struct {
	TotalPrograms    int64   `json:"total_programs"`
	EmbeddedPrograms int64   `json:"embedded_programs"`
	CoveragePercent  float64 `json:"coverage_percent"`
}
