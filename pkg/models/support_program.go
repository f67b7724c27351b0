package models

import "time"

// ProgramStatus is the lifecycle status of a support program
type ProgramStatus string

const (
	ProgramStatusActive ProgramStatus = "active"
	ProgramStatusClosed ProgramStatus = "closed"
)

// SupportProgram represents a grant program announcement scraped from a source.
// Programs are never physically deleted - they are soft-deleted via DeletedAt.
// The grouper mutates IsCanonical and DuplicateGroupID; the embedding pipeline
// clears NeedsEmbedding once a vector has been stored.
type SupportProgram struct {
	ID               string        `json:"id" db:"id"`
	Name             string        `json:"name" db:"name"`
	Organizer        string        `json:"organizer" db:"organizer"`
	Category         string        `json:"category" db:"category"`
	Region           string        `json:"region" db:"region"`
	SubRegion        *string       `json:"sub_region,omitempty" db:"sub_region"`
	Summary          *string       `json:"summary,omitempty" db:"summary"`
	EligibilityText  *string       `json:"eligibility_text,omitempty" db:"eligibility_text"`
	AmountMin        *int64        `json:"amount_min,omitempty" db:"amount_min"`
	AmountMax        *int64        `json:"amount_max,omitempty" db:"amount_max"`
	Deadline         *time.Time    `json:"deadline,omitempty" db:"deadline"` // nil = permanent program
	Status           ProgramStatus `json:"status" db:"status"`
	ProjectYear      *int          `json:"project_year,omitempty" db:"project_year"`
	NormalizedName   string        `json:"normalized_name" db:"normalized_name"`
	IsCanonical      bool          `json:"is_canonical" db:"is_canonical"`
	NeedsEmbedding   bool          `json:"needs_embedding" db:"needs_embedding"`
	DuplicateGroupID *string       `json:"duplicate_group_id,omitempty" db:"duplicate_group_id"`
	Source           string        `json:"source" db:"source"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsLive reports whether the program has not been soft-deleted
func (p *SupportProgram) IsLive() bool {
	return p.DeletedAt == nil
}

// IsOpen reports whether the program accepts applications at the given time.
// Permanent programs (no deadline) are always open while active.
func (p *SupportProgram) IsOpen(now time.Time) bool {
	if p.Status != ProgramStatusActive || !p.IsLive() {
		return false
	}
	if p.Deadline == nil {
		return true
	}
	return !p.Deadline.Before(now)
}
