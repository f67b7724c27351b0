// Package batchops exposes the batch trigger and stats endpoints
package batchops

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/batch"
	"github.com/Ramsey-B/clover/pkg/embeddings"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/scoring"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Handler handles batch trigger and stats endpoints
type Handler struct {
	embedSvc  *embeddings.Service
	scoreSvc  *scoring.Service
	companies repositories.CompanyRepo
	runs      repositories.BatchRunRepo
	worker    *batch.Worker
	batchCfg  batch.Config
	logger    ectologger.Logger
}

// NewHandler creates a new batch operations handler
func NewHandler(
	embedSvc *embeddings.Service,
	scoreSvc *scoring.Service,
	companies repositories.CompanyRepo,
	runs repositories.BatchRunRepo,
	worker *batch.Worker,
	batchCfg batch.Config,
	logger ectologger.Logger,
) *Handler {
	return &Handler{
		embedSvc:  embedSvc,
		scoreSvc:  scoreSvc,
		companies: companies,
		runs:      runs,
		worker:    worker,
		batchCfg:  batchCfg,
		logger:    logger,
	}
}

// RegisterRoutes registers batch routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/embeddings/generate", h.GenerateEmbeddings)
	g.GET("/embeddings/stats", h.EmbeddingStats)
	g.POST("/matching/batch", h.RunMatching)
	g.GET("/matching/stats", h.MatchingStats)
	g.GET("/runs/:id", h.GetRun)
}

// GenerateEmbeddingsRequest bounds an embedding backfill
type GenerateEmbeddingsRequest struct {
	BatchSize int `json:"batch_size" validate:"omitempty,min=1,max=1000"`
}

// GenerateEmbeddings embeds all programs still flagged for embedding, then
// backfills profile embeddings for active companies that have none, and
// returns the aggregate outcome synchronously. A second run over an unchanged
// catalog embeds nothing: programs are deselected by the cleared flag and
// companies by their stored vector.
func (h *Handler) GenerateEmbeddings(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "batchops_handler.GenerateEmbeddings")
	defer span.End()

	var req GenerateEmbeddingsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cfg := h.batchCfg
	if req.BatchSize > 0 {
		cfg.BatchSize = req.BatchSize
	}

	pending, err := h.embedSvc.ListPending(ctx, 0)
	if err != nil {
		return err
	}

	summary := batch.Run(ctx, h.logger, models.BatchKindEmbedding, cfg, pending,
		func(p models.SupportProgram) string { return p.ID },
		func(ctx context.Context, p models.SupportProgram) error {
			return h.embedSvc.EmbedProgram(ctx, &p)
		},
	)

	companies, err := h.companies.ListActive(ctx)
	if err != nil {
		return err
	}

	summary.Merge(batch.Run(ctx, h.logger, models.BatchKindEmbedding, cfg, companies,
		func(co models.Company) string { return co.ID },
		func(ctx context.Context, co models.Company) error {
			err := h.embedSvc.EmbedCompanyIfMissing(ctx, &co)
			if errors.Is(err, embeddings.ErrAlreadyEmbedded) {
				return fmt.Errorf("%w: %s", batch.ErrSkipped, co.ID)
			}
			return err
		},
	))

	return c.JSON(http.StatusOK, summary)
}

// EmbeddingStats reports embedding coverage
func (h *Handler) EmbeddingStats(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "batchops_handler.EmbeddingStats")
	defer span.End()

	stats, err := h.embedSvc.Stats(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

// RunMatchingRequest bounds a matching refresh
type RunMatchingRequest struct {
	BatchSize    int `json:"batch_size" validate:"omitempty,min=1,max=1000"`
	MaxCompanies int `json:"max_companies" validate:"omitempty,min=1"`
}

// RunMatchingResponse acknowledges an accepted matching batch
type RunMatchingResponse struct {
	Accepted        bool   `json:"accepted"`
	CompaniesQueued int    `json:"companies_queued"`
	RunID           string `json:"run_id"`
}

// RunMatching validates the request, acknowledges with 202 and runs the
// matching refresh in the background. Callers poll the stats endpoint or the
// run id instead of holding the connection open.
func (h *Handler) RunMatching(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "batchops_handler.RunMatching")
	defer span.End()

	var req RunMatchingRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cfg := h.batchCfg
	if req.BatchSize > 0 {
		cfg.BatchSize = req.BatchSize
	}

	companies, err := h.companies.ListActive(ctx)
	if err != nil {
		return err
	}
	if req.MaxCompanies > 0 && len(companies) > req.MaxCompanies {
		companies = companies[:req.MaxCompanies]
	}

	runID, err := h.worker.Dispatch(ctx, models.BatchKindMatching, func(ctx context.Context) (*batch.Summary, error) {
		summary := batch.Run(ctx, h.logger, models.BatchKindMatching, cfg, companies,
			func(co models.Company) string { return co.ID },
			func(ctx context.Context, co models.Company) error {
				_, err := h.scoreSvc.ScoreCompany(ctx, co.ID)
				if errors.Is(err, scoring.ErrSkip) {
					return fmt.Errorf("%w: %s", batch.ErrSkipped, co.ID)
				}
				return err
			},
		)
		return summary, nil
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, RunMatchingResponse{
		Accepted:        true,
		CompaniesQueued: len(companies),
		RunID:           runID,
	})
}

// MatchingStats reports matching pipeline counters
func (h *Handler) MatchingStats(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "batchops_handler.MatchingStats")
	defer span.End()

	stats, err := h.scoreSvc.Stats(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

// GetRun resolves a batch run id to its current state
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "batchops_handler.GetRun")
	defer span.End()

	run, err := h.runs.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, run)
}
