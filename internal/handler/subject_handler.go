package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/report-card-api/internal/models"
	"github.com/noah-isme/report-card-api/internal/service"
	"github.com/noah-isme/report-card-api/pkg/response"
)

type subjectService interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, req service.SubjectRequest) (*models.Subject, error)
	Update(ctx context.Context, id string, req service.SubjectRequest) (*models.Subject, error)
	Patch(ctx context.Context, id string, req service.PatchSubjectRequest) (*models.Subject, error)
	Delete(ctx context.Context, id string) error
}

// SubjectHandler exposes subject endpoints.
type SubjectHandler struct {
	service subjectService
}

// NewSubjectHandler constructs a SubjectHandler.
func NewSubjectHandler(svc subjectService) *SubjectHandler {
	return &SubjectHandler{service: svc}
}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Param search query string false "Match name or code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} models.Subject
// @Security BearerAuth
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	filter := models.SubjectFilter{Search: search(c)}
	filter.Page, filter.PageSize = pageParams(c)
	subjects, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// Get godoc
// @Summary Get subject
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} models.Subject
// @Failure 404 {object} errors.Error
// @Security BearerAuth
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	subject, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Create godoc
// @Summary Create subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body service.SubjectRequest true "Subject payload"
// @Success 201 {object} models.Subject
// @Failure 400 {object} errors.Error
// @Security BearerAuth
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var req service.SubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// Update godoc
// @Summary Replace subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body service.SubjectRequest true "Subject payload"
// @Success 200 {object} models.Subject
// @Security BearerAuth
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	var req service.SubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Patch godoc
// @Summary Partially update subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body service.PatchSubjectRequest true "Fields to change"
// @Success 200 {object} models.Subject
// @Security BearerAuth
// @Router /subjects/{id} [patch]
func (h *SubjectHandler) Patch(c *gin.Context) {
	var req service.PatchSubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.service.Patch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Delete godoc
// @Summary Delete subject
// @Description Also removes every mark recorded for the subject.
// @Tags Subjects
// @Param id path string true "Subject ID"
// @Success 204
// @Security BearerAuth
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
