package models

import (
	"time"

	"github.com/lib/pq"
)

// Company is a company registered on the platform
type Company struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	ProfileText *string    `json:"profile_text,omitempty" db:"profile_text"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CompanyMember associates a platform user with a company. Companies without
// any member are skipped by the matching batch.
type CompanyMember struct {
	ID        string    `json:"id" db:"id"`
	CompanyID string    `json:"company_id" db:"company_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MatchPreference holds a company's grant matching preferences. A company may
// accumulate several rows; the most recent by creation time is the active one.
type MatchPreference struct {
	ID              string         `json:"id" db:"id"`
	CompanyID       string         `json:"company_id" db:"company_id"`
	Categories      pq.StringArray `json:"categories" db:"categories"`
	MinAmount       *int64         `json:"min_amount,omitempty" db:"min_amount"`
	MaxAmount       *int64         `json:"max_amount,omitempty" db:"max_amount"`
	Regions         pq.StringArray `json:"regions,omitempty" db:"regions"`
	ExcludeKeywords pq.StringArray `json:"exclude_keywords,omitempty" db:"exclude_keywords"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}
