package grouping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScorer_ExactMatch(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.ExactMatch("수출", "수출", true))
	assert.Equal(t, 0.0, s.ExactMatch("수출", "기술", true))
	assert.Equal(t, 1.0, s.ExactMatch("Seoul", "seoul", false))
	assert.Equal(t, 0.0, s.ExactMatch("Seoul", "seoul", true))
}

func TestScorer_JaroWinkler(t *testing.T) {
	s := NewScorer()

	t.Run("identical strings", func(t *testing.T) {
		assert.Equal(t, 1.0, s.JaroWinkler("창업지원사업", "창업지원사업"))
	})

	t.Run("close korean titles score high", func(t *testing.T) {
		score := s.JaroWinkler("수출바우처 사업", "수출바우처사업")
		assert.Greater(t, score, 0.9)
	})

	t.Run("unrelated strings score low", func(t *testing.T) {
		score := s.JaroWinkler("수출바우처", "창업도약패키지")
		assert.Less(t, score, 0.5)
	})

	t.Run("empty string", func(t *testing.T) {
		assert.Equal(t, 0.0, s.JaroWinkler("abc", ""))
	})

	t.Run("common prefix boosts", func(t *testing.T) {
		withPrefix := s.JaroWinkler("martha", "marhta")
		plain := s.Jaro("martha", "marhta")
		assert.Greater(t, withPrefix, plain)
	})
}

func TestScorer_Levenshtein(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 0, s.LevenshteinDistance("같다", "같다"))
	assert.Equal(t, 1, s.LevenshteinDistance("기술개발", "기술개벌"))
	assert.Equal(t, 5, s.LevenshteinDistance("", "수출바우처"))
	assert.InDelta(t, 0.75, s.Levenshtein("기술개발", "기술개벌"), 0.001)
	assert.Equal(t, 1.0, s.Levenshtein("", ""))
}

func TestScorer_TokenSetRatio(t *testing.T) {
	s := NewScorer()

	t.Run("reordered tokens score perfect", func(t *testing.T) {
		assert.Equal(t, 1.0, s.TokenSetRatio("중소벤처기업부 수출지원", "수출지원 중소벤처기업부"))
	})

	t.Run("subset scores high", func(t *testing.T) {
		score := s.TokenSetRatio("서울특별시", "서울특별시 경제진흥원")
		assert.Greater(t, score, 0.5)
	})

	t.Run("disjoint sets score low", func(t *testing.T) {
		score := s.TokenSetRatio("중소벤처기업부", "한국콘텐츠진흥원")
		assert.Less(t, score, 0.5)
	})

	t.Run("both empty", func(t *testing.T) {
		assert.Equal(t, 1.0, s.TokenSetRatio("", ""))
	})

	t.Run("one empty", func(t *testing.T) {
		assert.Equal(t, 0.0, s.TokenSetRatio("기관", ""))
	})
}

func TestScorer_DateProximity(t *testing.T) {
	s := NewScorer()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1.0, s.DateProximity(base, base, 30))
	assert.InDelta(t, 0.5, s.DateProximity(base, base.AddDate(0, 0, 15), 30), 0.001)
	assert.Equal(t, 0.0, s.DateProximity(base, base.AddDate(0, 0, 45), 30))
	assert.Equal(t, 0.0, s.DateProximity(time.Time{}, base, 30))
}

func TestScorer_WeightedScore(t *testing.T) {
	s := NewScorer()

	t.Run("weighted average", func(t *testing.T) {
		scores := map[string]float64{"name": 1.0, "org": 0.0}
		weights := map[string]float64{"name": 3.0, "org": 1.0}
		assert.InDelta(t, 0.75, s.WeightedScore(scores, weights), 0.001)
	})

	t.Run("missing weight defaults to one", func(t *testing.T) {
		scores := map[string]float64{"a": 1.0, "b": 0.0}
		assert.InDelta(t, 0.5, s.WeightedScore(scores, nil), 0.001)
	})

	t.Run("empty scores", func(t *testing.T) {
		assert.Equal(t, 0.0, s.WeightedScore(nil, nil))
	})
}
