package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/report-card-api/internal/dto"
	"github.com/noah-isme/report-card-api/internal/service"
	"github.com/noah-isme/report-card-api/pkg/response"
)

type overviewService interface {
	AverageOverview(ctx context.Context, studentID, rawYear string) (*dto.YearOverview, error)
	YearReportCards(ctx context.Context, studentID, rawYear string) (*dto.YearOverview, error)
}

type exportService interface {
	Export(ctx context.Context, studentID, rawYear, rawFormat string) (*service.ExportFile, error)
}

// OverviewHandler serves the yearly aggregate endpoints.
type OverviewHandler struct {
	overview overviewService
	export   exportService
}

// NewOverviewHandler constructs an OverviewHandler.
func NewOverviewHandler(overview overviewService, export exportService) *OverviewHandler {
	return &OverviewHandler{overview: overview, export: export}
}

// AverageOverview godoc
// @Summary Yearly averages for a student
// @Description Report cards of the year with per-subject and overall averages. Schedules a background recompute.
// @Tags Overview
// @Produce json
// @Param id path string true "Student ID"
// @Param year query int true "Year"
// @Success 200 {object} dto.YearOverview
// @Failure 400 {object} errors.Error
// @Failure 404 {object} errors.Error
// @Security BearerAuth
// @Router /students/{id}/avg-overview [get]
func (h *OverviewHandler) AverageOverview(c *gin.Context) {
	overview, err := h.overview.AverageOverview(c.Request.Context(), c.Param("id"), c.Query("year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// YearReportCards godoc
// @Summary Yearly report cards for a student
// @Description Same payload as avg-overview without scheduling a recompute.
// @Tags Overview
// @Produce json
// @Param id path string true "Student ID"
// @Param year query int true "Year"
// @Success 200 {object} dto.YearOverview
// @Failure 400 {object} errors.Error
// @Failure 404 {object} errors.Error
// @Security BearerAuth
// @Router /student/{id}/year-report-cards [get]
func (h *OverviewHandler) YearReportCards(c *gin.Context) {
	overview, err := h.overview.YearReportCards(c.Request.Context(), c.Param("id"), c.Query("year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Export godoc
// @Summary Download yearly overview
// @Tags Overview
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param year query int true "Year"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} errors.Error
// @Security BearerAuth
// @Router /students/{id}/avg-overview/export [get]
func (h *OverviewHandler) Export(c *gin.Context) {
	file, err := h.export.Export(c.Request.Context(), c.Param("id"), c.Query("year"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
