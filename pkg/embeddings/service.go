package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/pgvector/pgvector-go"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrEmptyContent marks a program with nothing to embed. The needs_embedding
// flag is cleared so the item is never retried, and the batch counts it as an
// error.
var ErrEmptyContent = errors.New("program has no embeddable text")

// Service generates and stores embeddings for programs and companies.
type Service struct {
	log        ectologger.Logger
	programs   repositories.ProgramRepo
	embeddings repositories.EmbeddingRepo
	embedder   Embedder
}

// NewService creates a new embedding service.
func NewService(
	log ectologger.Logger,
	programs repositories.ProgramRepo,
	embeddings repositories.EmbeddingRepo,
	embedder Embedder,
) *Service {
	return &Service{
		log:        log,
		programs:   programs,
		embeddings: embeddings,
		embedder:   embedder,
	}
}

// ListPending returns programs still flagged for embedding, capped at limit.
func (s *Service) ListPending(ctx context.Context, limit int) ([]models.SupportProgram, error) {
	return s.programs.ListNeedingEmbedding(ctx, limit)
}

// EmbedProgram embeds one program and clears its needs_embedding flag. A
// program with empty embeddable text is terminal: the flag is still cleared
// and ErrEmptyContent is returned.
func (s *Service) EmbedProgram(ctx context.Context, program *models.SupportProgram) error {
	ctx, span := tracing.StartSpan(ctx, "embeddings.Service.EmbedProgram")
	defer span.End()

	log := s.log.WithContext(ctx).WithField("program_id", program.ID)

	content := programContent(program)
	if content == "" {
		log.Warn("Program has no embeddable text, clearing flag without embedding")
		if err := s.programs.ClearNeedsEmbedding(ctx, program.ID); err != nil {
			return err
		}
		return ErrEmptyContent
	}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	metadata, _ := json.Marshal(map[string]any{
		"name":      program.Name,
		"organizer": program.Organizer,
		"category":  program.Category,
	})

	record := &models.EmbeddingRecord{
		SourceType: models.SourceTypeProgram,
		SourceID:   program.ID,
		Vector:     pgvector.NewVector(vector),
		Content:    content,
		Metadata:   metadata,
	}

	if err := s.embeddings.Upsert(ctx, record); err != nil {
		return err
	}

	if err := s.programs.ClearNeedsEmbedding(ctx, program.ID); err != nil {
		return err
	}

	log.Debug("Program embedded")
	return nil
}

// ErrAlreadyEmbedded marks a source that already has a stored vector.
var ErrAlreadyEmbedded = errors.New("embedding already stored")

// EmbedCompanyIfMissing embeds a company profile unless a vector is already
// stored for it. Companies carry no needs_embedding flag; the stored record
// is the idempotency signal.
func (s *Service) EmbedCompanyIfMissing(ctx context.Context, company *models.Company) error {
	ctx, span := tracing.StartSpan(ctx, "embeddings.Service.EmbedCompanyIfMissing")
	defer span.End()

	existing, err := s.embeddings.Get(ctx, models.SourceTypeCompany, company.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyEmbedded
	}

	return s.EmbedCompany(ctx, company)
}

// EmbedCompany embeds a company profile text.
func (s *Service) EmbedCompany(ctx context.Context, company *models.Company) error {
	ctx, span := tracing.StartSpan(ctx, "embeddings.Service.EmbedCompany")
	defer span.End()

	content := companyContent(company)
	if content == "" {
		return ErrEmptyContent
	}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	metadata, _ := json.Marshal(map[string]any{
		"name": company.Name,
	})

	record := &models.EmbeddingRecord{
		SourceType: models.SourceTypeCompany,
		SourceID:   company.ID,
		Vector:     pgvector.NewVector(vector),
		Content:    content,
		Metadata:   metadata,
	}

	return s.embeddings.Upsert(ctx, record)
}

// Stats reports embedding coverage over the live program catalog.
func (s *Service) Stats(ctx context.Context) (*models.EmbeddingStats, error) {
	ctx, span := tracing.StartSpan(ctx, "embeddings.Service.Stats")
	defer span.End()

	total, err := s.programs.CountLive(ctx)
	if err != nil {
		return nil, err
	}

	embedded, err := s.embeddings.CountBySourceType(ctx, models.SourceTypeProgram)
	if err != nil {
		return nil, err
	}

	coverage := 0.0
	if total > 0 {
		coverage = float64(embedded) / float64(total) * 100
	}
	metrics.EmbeddingCoverage.Set(coverage / 100)

	return &models.EmbeddingStats{
		TotalPrograms:    total,
		EmbeddedPrograms: embedded,
		CoveragePercent:  coverage,
	}, nil
}

// programContent builds the text that represents a program to the embedding
// model. Field order is stable so unchanged programs produce stable content.
func programContent(program *models.SupportProgram) string {
	var parts []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(program.Name)
	add(program.Organizer)
	add(program.Category)
	add(program.Region)
	if program.Summary != nil {
		add(*program.Summary)
	}
	if program.EligibilityText != nil {
		add(*program.EligibilityText)
	}

	return strings.Join(parts, "\n")
}

func companyContent(company *models.Company) string {
	var parts []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(company.Name)
	if company.ProfileText != nil {
		add(*company.ProfileText)
	}

	return strings.Join(parts, "\n")
}
