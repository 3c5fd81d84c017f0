package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/report-card-api/internal/models"
	"github.com/noah-isme/report-card-api/internal/service"
	"github.com/noah-isme/report-card-api/pkg/response"
)

type markService interface {
	List(ctx context.Context, filter models.MarkFilter) ([]models.MarkDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.MarkDetail, error)
	Create(ctx context.Context, req service.MarkRequest) (*models.Mark, error)
	Update(ctx context.Context, id string, req service.MarkRequest) (*models.Mark, error)
	Patch(ctx context.Context, id string, req service.PatchMarkRequest) (*models.Mark, error)
	Delete(ctx context.Context, id string) error
}

type operation string

const (
	opList          operation = "list"
	opRetrieve      operation = "retrieve"
	opCreate        operation = "create"
	opUpdate        operation = "update"
	opPartialUpdate operation = "partial_update"
)

type markShape int

const (
	// markShapeNested is {id, score, subject: {...}}.
	markShapeNested markShape = iota
	// markShapeFlat is {id, report_card, subject, score} with subject as an id.
	markShapeFlat
)

// markShapes selects the response shape of each operation.
var markShapes = map[operation]markShape{
	opList:          markShapeNested,
	opRetrieve:      markShapeNested,
	opCreate:        markShapeFlat,
	opUpdate:        markShapeFlat,
	opPartialUpdate: markShapeFlat,
}

// MarkHandler exposes mark endpoints.
type MarkHandler struct {
	service markService
}

// NewMarkHandler constructs a MarkHandler.
func NewMarkHandler(svc markService) *MarkHandler {
	return &MarkHandler{service: svc}
}

// List godoc
// @Summary List marks
// @Tags Marks
// @Produce json
// @Param report_card query string false "Filter by report card ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} models.MarkDetail
// @Security BearerAuth
// @Router /marks [get]
func (h *MarkHandler) List(c *gin.Context) {
	filter := models.MarkFilter{ReportCardID: strings.TrimSpace(c.Query("report_card"))}
	filter.Page, filter.PageSize = pageParams(c)
	marks, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, pagination)
}

// Get godoc
// @Summary Get mark
// @Tags Marks
// @Produce json
// @Param id path string true "Mark ID"
// @Success 200 {object} models.MarkDetail
// @Security BearerAuth
// @Router /marks/{id} [get]
func (h *MarkHandler) Get(c *gin.Context) {
	mark, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.render(c, opRetrieve, http.StatusOK, mark.ID, mark, nil)
}

// Create godoc
// @Summary Create mark
// @Description A report card holds one mark per subject; duplicates answer 409.
// @Tags Marks
// @Accept json
// @Produce json
// @Param payload body service.MarkRequest true "Mark payload"
// @Success 201 {object} models.Mark
// @Failure 409 {object} errors.Error
// @Security BearerAuth
// @Router /marks [post]
func (h *MarkHandler) Create(c *gin.Context) {
	var req service.MarkRequest
	if !bindJSON(c, &req) {
		return
	}
	mark, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.render(c, opCreate, http.StatusCreated, mark.ID, nil, mark)
}

// Update godoc
// @Summary Replace mark
// @Tags Marks
// @Accept json
// @Produce json
// @Param id path string true "Mark ID"
// @Param payload body service.MarkRequest true "Mark payload"
// @Success 200 {object} models.Mark
// @Security BearerAuth
// @Router /marks/{id} [put]
func (h *MarkHandler) Update(c *gin.Context) {
	var req service.MarkRequest
	if !bindJSON(c, &req) {
		return
	}
	mark, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.render(c, opUpdate, http.StatusOK, mark.ID, nil, mark)
}

// Patch godoc
// @Summary Partially update mark
// @Tags Marks
// @Accept json
// @Produce json
// @Param id path string true "Mark ID"
// @Param payload body service.PatchMarkRequest true "Fields to change"
// @Success 200 {object} models.Mark
// @Security BearerAuth
// @Router /marks/{id} [patch]
func (h *MarkHandler) Patch(c *gin.Context) {
	var req service.PatchMarkRequest
	if !bindJSON(c, &req) {
		return
	}
	mark, err := h.service.Patch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.render(c, opPartialUpdate, http.StatusOK, mark.ID, nil, mark)
}

// Delete godoc
// @Summary Delete mark
// @Tags Marks
// @Param id path string true "Mark ID"
// @Success 204
// @Security BearerAuth
// @Router /marks/{id} [delete]
func (h *MarkHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// render writes whichever shape markShapes assigns to op, loading the missing
// representation when the caller only holds the other one.
func (h *MarkHandler) render(c *gin.Context, op operation, status int, id string, nested *models.MarkDetail, flat *models.Mark) {
	switch markShapes[op] {
	case markShapeNested:
		if nested == nil {
			detail, err := h.service.Get(c.Request.Context(), id)
			if err != nil {
				response.Error(c, err)
				return
			}
			nested = detail
		}
		response.JSON(c, status, nested, nil)
	default:
		if flat == nil {
			flat = &models.Mark{ID: nested.ID, ReportCardID: nested.ReportCardID, SubjectID: nested.Subject.ID, Score: nested.Score}
		}
		response.JSON(c, status, flat, nil)
	}
}
