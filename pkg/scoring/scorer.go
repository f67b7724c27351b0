// Package scoring matches companies against the grant program catalog
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Weights allocate the 100-point score across the scoring signals.
type Weights struct {
	Category int // Points for an exact category match (default: 30)
	Region   int // Points for a region match (default: 20)
	Amount   int // Points for amount fit (default: 25)
	Semantic int // Points scaled by embedding similarity (default: 25)
}

// DefaultWeights returns the default signal allocation.
func DefaultWeights() Weights {
	return Weights{
		Category: 30,
		Region:   20,
		Amount:   25,
		Semantic: 25,
	}
}

// MatchScorer evaluates a single program against a company preference. It is
// pure: all data access happens in the surrounding service.
type MatchScorer struct {
	weights Weights
}

// NewMatchScorer creates a scorer with the given weights.
func NewMatchScorer(weights Weights) *MatchScorer {
	return &MatchScorer{weights: weights}
}

// ErrMalformedAmount marks a program whose amount range is inverted. The
// candidate is dropped, never the whole run.
type ErrMalformedAmount struct {
	ProgramID string
}

func (e *ErrMalformedAmount) Error() string {
	return fmt.Sprintf("program %s has inverted amount range", e.ProgramID)
}

// HardFilter reports whether the program survives the exclusion filters.
// A failing program is excluded outright, not down-weighted.
func (m *MatchScorer) HardFilter(pref *models.MatchPreference, program *models.SupportProgram) (bool, error) {
	if program.AmountMin != nil && program.AmountMax != nil && *program.AmountMin > *program.AmountMax {
		return false, &ErrMalformedAmount{ProgramID: program.ID}
	}

	if len(pref.Categories) > 0 && !containsFold(pref.Categories, program.Category) {
		return false, nil
	}

	if !amountRangesOverlap(pref, program) {
		return false, nil
	}

	if len(pref.Regions) > 0 && program.Region != "" && !containsFold(pref.Regions, program.Region) {
		return false, nil
	}

	for _, keyword := range pref.ExcludeKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(program.Name, keyword) {
			return false, nil
		}
		if program.Summary != nil && strings.Contains(*program.Summary, keyword) {
			return false, nil
		}
	}

	return true, nil
}

// Score combines the soft signals into a 0-100 total. semantic is nil when
// either side lacks an embedding; confidence reports the fraction of signal
// weight that was actually available.
func (m *MatchScorer) Score(pref *models.MatchPreference, program *models.SupportProgram, semantic *float64) (int, float64, []string) {
	total := 0.0
	available := 0
	possible := m.weights.Category + m.weights.Region + m.weights.Amount + m.weights.Semantic
	var reasons []string

	if len(pref.Categories) > 0 {
		available += m.weights.Category
		if containsFold(pref.Categories, program.Category) {
			total += float64(m.weights.Category)
			reasons = append(reasons, fmt.Sprintf("category match: %s", program.Category))
		}
	}

	if len(pref.Regions) > 0 {
		available += m.weights.Region
		if program.Region != "" && containsFold(pref.Regions, program.Region) {
			total += float64(m.weights.Region)
			reasons = append(reasons, fmt.Sprintf("region match: %s", program.Region))
		}
	}

	if fit, ok := amountFit(pref, program); ok {
		available += m.weights.Amount
		total += fit * float64(m.weights.Amount)
		if fit >= 0.99 {
			reasons = append(reasons, "amount within range")
		} else if fit > 0 {
			reasons = append(reasons, "amount partially within range")
		}
	}

	if semantic != nil {
		available += m.weights.Semantic
		sim := clamp01(*semantic)
		total += sim * float64(m.weights.Semantic)
		if sim >= 0.7 {
			reasons = append(reasons, "profile similarity high")
		}
	}

	confidence := 0.0
	if possible > 0 {
		confidence = float64(available) / float64(possible)
	}

	return int(math.Round(total)), confidence, reasons
}

// amountRangesOverlap treats missing bounds as open intervals.
func amountRangesOverlap(pref *models.MatchPreference, program *models.SupportProgram) bool {
	if pref.MinAmount == nil && pref.MaxAmount == nil {
		return true
	}
	if program.AmountMin == nil && program.AmountMax == nil {
		return true
	}

	prefLo, prefHi := floatBounds(pref.MinAmount, pref.MaxAmount)
	progLo, progHi := floatBounds(program.AmountMin, program.AmountMax)

	return progLo <= prefHi && prefLo <= progHi
}

// amountFit scores how close the program's range midpoint sits to the
// company's desired range. ok is false when either side has no amounts, so
// the signal is excluded from confidence rather than scored as zero.
func amountFit(pref *models.MatchPreference, program *models.SupportProgram) (float64, bool) {
	if pref.MinAmount == nil && pref.MaxAmount == nil {
		return 0, false
	}
	if program.AmountMin == nil && program.AmountMax == nil {
		return 0, false
	}

	prefLo, prefHi := floatBounds(pref.MinAmount, pref.MaxAmount)
	mid := midpoint(program.AmountMin, program.AmountMax)

	if mid >= prefLo && mid <= prefHi {
		return 1.0, true
	}

	width := prefHi - prefLo
	if math.IsInf(width, 1) || width <= 0 {
		width = math.Max(math.Abs(mid), 1)
	}

	var dist float64
	if mid < prefLo {
		dist = prefLo - mid
	} else {
		dist = mid - prefHi
	}

	return clamp01(1.0 - dist/width), true
}

func floatBounds(lo, hi *int64) (float64, float64) {
	minVal := math.Inf(-1)
	maxVal := math.Inf(1)
	if lo != nil {
		minVal = float64(*lo)
	}
	if hi != nil {
		maxVal = float64(*hi)
	}
	return minVal, maxVal
}

// midpoint of the program's amount range; a single bound stands alone.
func midpoint(lo, hi *int64) float64 {
	switch {
	case lo != nil && hi != nil:
		return (float64(*lo) + float64(*hi)) / 2
	case lo != nil:
		return float64(*lo)
	case hi != nil:
		return float64(*hi)
	default:
		return 0
	}
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
