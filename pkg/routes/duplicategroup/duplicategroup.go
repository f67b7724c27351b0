package duplicategroup

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/grouping"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Handler handles duplicate group review endpoints
type Handler struct {
	groups *grouping.Service
	logger ectologger.Logger
}

// NewHandler creates a new duplicate group handler
func NewHandler(groups *grouping.Service, logger ectologger.Logger) *Handler {
	return &Handler{
		groups: groups,
		logger: logger,
	}
}

// RegisterRoutes registers duplicate group routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Dissolve)
	g.POST("/regroup", h.Regroup)
}

// ListQuery carries list filters
type ListQuery struct {
	ReviewStatus string `query:"status" validate:"omitempty,oneof=pending_review auto confirmed rejected"`
	Page         int    `query:"page"`
	PerPage      int    `query:"per_page"`
}

// List returns a page of duplicate groups with per-status counts
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "duplicategroup_handler.List")
	defer span.End()

	var q ListQuery
	if err := c.Bind(&q); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if err := validate.Struct(&q); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	page, err := h.groups.List(ctx, models.ReviewStatus(q.ReviewStatus), q.Page, q.PerPage)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, page)
}

// UpdateRequest changes the review status or canonical pointer of a group.
// At least one field must be set.
type UpdateRequest struct {
	ReviewStatus       *string `json:"review_status,omitempty" validate:"omitempty,oneof=pending_review auto confirmed rejected"`
	CanonicalProjectID *string `json:"canonical_project_id,omitempty" validate:"omitempty,uuid4"`
}

// Update applies a reviewer action to a group
func (h *Handler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "duplicategroup_handler.Update")
	defer span.End()

	id := c.Param("id")

	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ReviewStatus == nil && req.CanonicalProjectID == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "one of review_status or canonical_project_id is required")
	}

	var group *models.DuplicateGroup
	var err error

	if req.ReviewStatus != nil {
		group, err = h.groups.SetReviewStatus(ctx, id, models.ReviewStatus(*req.ReviewStatus))
		if err != nil {
			return err
		}
	}

	if req.CanonicalProjectID != nil {
		group, err = h.groups.ReassignCanonical(ctx, id, *req.CanonicalProjectID)
		if err != nil {
			return err
		}
	}

	return c.JSON(http.StatusOK, group)
}

// Dissolve detaches all members and deletes the group
func (h *Handler) Dissolve(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "duplicategroup_handler.Dissolve")
	defer span.End()

	if err := h.groups.Dissolve(ctx, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// RegroupRequest optionally restricts the regroup to one project year
type RegroupRequest struct {
	ProjectYear *int `json:"project_year,omitempty" validate:"omitempty,min=2000,max=2100"`
}

// Regroup reruns the grouper over the live catalog
func (h *Handler) Regroup(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "duplicategroup_handler.Regroup")
	defer span.End()

	var req RegroupRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	summary, err := h.groups.Regroup(ctx, req.ProjectYear)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}
