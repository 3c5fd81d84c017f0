package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/report-card-api/internal/models"
	"github.com/noah-isme/report-card-api/internal/service"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
	"github.com/noah-isme/report-card-api/pkg/response"
)

type reportCardService interface {
	List(ctx context.Context, filter models.ReportCardFilter) ([]models.ReportCardDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ReportCardDetail, error)
	Detail(ctx context.Context, id string) (*models.ReportCardDetail, error)
	Create(ctx context.Context, req service.ReportCardRequest) (*models.ReportCard, error)
	Update(ctx context.Context, id string, req service.ReportCardRequest) (*models.ReportCard, error)
	Patch(ctx context.Context, id string, req service.PatchReportCardRequest) (*models.ReportCard, error)
	Delete(ctx context.Context, id string) error
}

// ReportCardHandler exposes report card endpoints.
type ReportCardHandler struct {
	service reportCardService
}

// NewReportCardHandler constructs a ReportCardHandler.
func NewReportCardHandler(svc reportCardService) *ReportCardHandler {
	return &ReportCardHandler{service: svc}
}

// List godoc
// @Summary List report cards
// @Tags ReportCards
// @Produce json
// @Param student query string false "Filter by student ID"
// @Param year query int false "Filter by year"
// @Param search query string false "Match term"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} models.ReportCardDetail
// @Security BearerAuth
// @Router /report-cards [get]
func (h *ReportCardHandler) List(c *gin.Context) {
	filter := models.ReportCardFilter{
		StudentID: strings.TrimSpace(c.Query("student")),
		Search:    search(c),
	}
	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Validation("year must be an integer"))
			return
		}
		filter.Year = &year
	}
	filter.Page, filter.PageSize = pageParams(c)
	cards, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, pagination)
}

// Get godoc
// @Summary Get report card
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} models.ReportCardDetail
// @Failure 404 {object} errors.Error
// @Security BearerAuth
// @Router /report-cards/{id} [get]
func (h *ReportCardHandler) Get(c *gin.Context) {
	card, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// Detail godoc
// @Summary Get report card with marks and student
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} models.ReportCardDetail
// @Security BearerAuth
// @Router /report-card/{id} [get]
func (h *ReportCardHandler) Detail(c *gin.Context) {
	detail, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create report card
// @Description Fails with 400 when the student already has a card for the same term (case-insensitive) and year.
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param payload body service.ReportCardRequest true "Report card payload"
// @Success 201 {object} models.ReportCard
// @Failure 400 {object} errors.Error
// @Security BearerAuth
// @Router /report-cards [post]
func (h *ReportCardHandler) Create(c *gin.Context) {
	var req service.ReportCardRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, card)
}

// Update godoc
// @Summary Replace report card
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param id path string true "Report card ID"
// @Param payload body service.ReportCardRequest true "Report card payload"
// @Success 200 {object} models.ReportCard
// @Security BearerAuth
// @Router /report-cards/{id} [put]
func (h *ReportCardHandler) Update(c *gin.Context) {
	var req service.ReportCardRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// Patch godoc
// @Summary Partially update report card
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param id path string true "Report card ID"
// @Param payload body service.PatchReportCardRequest true "Fields to change"
// @Success 200 {object} models.ReportCard
// @Security BearerAuth
// @Router /report-cards/{id} [patch]
func (h *ReportCardHandler) Patch(c *gin.Context) {
	var req service.PatchReportCardRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.service.Patch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// Delete godoc
// @Summary Delete report card
// @Tags ReportCards
// @Param id path string true "Report card ID"
// @Success 204
// @Security BearerAuth
// @Router /report-cards/{id} [delete]
func (h *ReportCardHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
