package scoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrSkip marks a company that cannot be matched: no member association or
// no preference record. The orchestrator counts these as skips, not errors.
var ErrSkip = errors.New("company has no member or preference record")

// Service runs the match scorer over the live catalog for one company at a
// time and persists results as append-only history.
type Service struct {
	log        ectologger.Logger
	companies  repositories.CompanyRepo
	prefs      repositories.PreferenceRepo
	programs   repositories.ProgramRepo
	results    repositories.MatchingResultRepo
	embeddings repositories.EmbeddingRepo
	scorer     *MatchScorer
}

// NewService creates a new scoring service.
func NewService(
	log ectologger.Logger,
	companies repositories.CompanyRepo,
	prefs repositories.PreferenceRepo,
	programs repositories.ProgramRepo,
	results repositories.MatchingResultRepo,
	embeddings repositories.EmbeddingRepo,
	weights Weights,
) *Service {
	return &Service{
		log:        log,
		companies:  companies,
		prefs:      prefs,
		programs:   programs,
		results:    results,
		embeddings: embeddings,
		scorer:     NewMatchScorer(weights),
	}
}

// ScoreCompany matches one company against all live, currently open programs
// and persists the surviving results. Returns the number of results written.
func (s *Service) ScoreCompany(ctx context.Context, companyID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "scoring.Service.ScoreCompany")
	defer span.End()

	log := s.log.WithContext(ctx).WithField("company_id", companyID)

	hasMember, err := s.companies.HasMember(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if !hasMember {
		log.Debug("Company has no member association, skipping")
		return 0, ErrSkip
	}

	pref, err := s.prefs.GetLatest(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if pref == nil {
		log.Debug("Company has no match preference, skipping")
		return 0, ErrSkip
	}

	if pref.MinAmount != nil && pref.MaxAmount != nil && *pref.MinAmount > *pref.MaxAmount {
		return 0, httperror.NewHTTPErrorf(http.StatusUnprocessableEntity, "company %s has inverted preference amount bounds", companyID)
	}

	programs, err := s.programs.ListLive(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var results []models.MatchingResult

	for i := range programs {
		program := &programs[i]
		if !program.IsOpen(now) {
			continue
		}

		keep, err := s.scorer.HardFilter(pref, program)
		if err != nil {
			// Malformed candidate data drops that candidate only.
			log.WithError(err).WithField("program_id", program.ID).Warn("Dropping candidate with malformed amount range")
			continue
		}
		if !keep {
			continue
		}

		semantic := s.semanticSimilarity(ctx, companyID, program.ID)
		total, confidence, reasons := s.scorer.Score(pref, program, semantic)

		results = append(results, models.MatchingResult{
			ID:           uuid.New().String(),
			CompanyID:    companyID,
			ProjectID:    program.ID,
			TotalScore:   total,
			Confidence:   confidence,
			MatchReasons: reasons,
		})
	}

	if len(results) == 0 {
		log.Debug("No programs survived matching")
		return 0, nil
	}

	if err := s.results.InsertBatch(ctx, results); err != nil {
		return 0, err
	}

	metrics.MatchingResultsTotal.Add(float64(len(results)))
	log.WithField("result_count", len(results)).Info("Matching results persisted")
	return len(results), nil
}

// semanticSimilarity returns nil when either embedding is missing or the
// lookup fails. A similarity failure weakens confidence, never the run.
func (s *Service) semanticSimilarity(ctx context.Context, companyID, programID string) *float64 {
	sim, ok, err := s.embeddings.CosineSimilarity(
		ctx,
		models.SourceTypeCompany, companyID,
		models.SourceTypeProgram, programID,
	)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"company_id": companyID,
			"program_id": programID,
		}).Warn("Failed to compute embedding similarity")
		return nil
	}
	if !ok {
		return nil
	}
	return &sim
}

// Stats aggregates the dashboard counters for the matching pipeline.
func (s *Service) Stats(ctx context.Context) (*models.MatchingStats, error) {
	ctx, span := tracing.StartSpan(ctx, "scoring.Service.Stats")
	defer span.End()

	totalCompanies, err := s.companies.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	withPrefs, err := s.prefs.CountCompaniesWithPreferences(ctx)
	if err != nil {
		return nil, err
	}

	totalResults, err := s.results.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.results.CountSince(ctx, 24)
	if err != nil {
		return nil, err
	}

	return &models.MatchingStats{
		TotalCompanies:           totalCompanies,
		CompaniesWithPreferences: withPrefs,
		TotalMatchingResults:     totalResults,
		ResultsLast24Hours:       recent,
	}, nil
}
