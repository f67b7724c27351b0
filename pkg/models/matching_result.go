package models

import (
	"time"

	"github.com/lib/pq"
)

// MatchingResult is one scored company/program pairing. Rows are append-only:
// a matching refresh writes new rows instead of mutating old ones so score
// history is retained for trend display.
type MatchingResult struct {
	ID           string         `json:"id" db:"id"`
	CompanyID    string         `json:"company_id" db:"company_id"`
	ProjectID    string         `json:"project_id" db:"project_id"`
	TotalScore   int            `json:"total_score" db:"total_score"` // 0-100
	Confidence   float64        `json:"confidence" db:"confidence"`   // 0.0-1.0
	MatchReasons pq.StringArray `json:"match_reasons" db:"match_reasons"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// MatchingStats summarizes matching activity for the stats endpoint
type MatchingStats struct {
	TotalCompanies           int64 `json:"total_companies"`
	CompaniesWithPreferences int64 `json:"companies_with_preferences"`
	TotalMatchingResults     int64 `json:"total_matching_results"`
	ResultsLast24Hours       int64 `json:"results_last_24_hours"`
}
