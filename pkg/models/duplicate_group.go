package models

import "time"

// ReviewStatus is the review lifecycle state of a duplicate group
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending_review" // low-confidence group awaiting a human
	ReviewStatusAuto      ReviewStatus = "auto"           // grouped above the auto-merge threshold, no human action yet
	ReviewStatusConfirmed ReviewStatus = "confirmed"      // human approved
	ReviewStatusRejected  ReviewStatus = "rejected"       // human denied; key is suppressed from regrouping
)

// ValidReviewStatus reports whether s is a known review status
func ValidReviewStatus(s ReviewStatus) bool {
	switch s {
	case ReviewStatusPending, ReviewStatusAuto, ReviewStatusConfirmed, ReviewStatusRejected:
		return true
	}
	return false
}

// DuplicateGroup is a cluster of support programs believed to describe the same
// underlying program. The group owns the grouping, not the programs: dissolving
// a group detaches its members without deleting them.
//
// Invariant: exactly one live member has IsCanonical=true and its id equals
// CanonicalProjectID; SourceCount equals the number of live members.
type DuplicateGroup struct {
	ID                 string       `json:"id" db:"id"`
	NormalizedName     string       `json:"normalized_name" db:"normalized_name"`
	ProjectYear        *int         `json:"project_year,omitempty" db:"project_year"`
	CanonicalProjectID string       `json:"canonical_project_id" db:"canonical_project_id"`
	MergeConfidence    float64      `json:"merge_confidence" db:"merge_confidence"`
	ReviewStatus       ReviewStatus `json:"review_status" db:"review_status"`
	SourceCount        int          `json:"source_count" db:"source_count"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// GroupListPage is one page of duplicate groups plus per-status counts for the
// review dashboard.
type GroupListPage struct {
	Items        []DuplicateGroup       `json:"items"`
	Total        int64                  `json:"total"`
	Page         int                    `json:"page"`
	PerPage      int                    `json:"per_page"`
	StatusCounts map[ReviewStatus]int64 `json:"status_counts"`
}
