package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/report-card-api/internal/dto"
	"github.com/noah-isme/report-card-api/pkg/export"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

type overviewSnapshots interface {
	LoadOverview(ctx context.Context, studentID string, year int) (*dto.YearOverview, bool, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders yearly overviews as CSV or PDF. It prefers the snapshot left by
// the background task and computes afresh on a miss.
type ExportService struct {
	overview  overviewComputer
	snapshots overviewSnapshots
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(overview overviewComputer, snapshots overviewSnapshots, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		overview:  overview,
		snapshots: snapshots,
		renderers: map[export.Format]export.Renderer{
			export.FormatCSV: export.NewCSVExporter(),
			export.FormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
	}
}

// Export renders the student's overview for the year. Format defaults to CSV.
func (s *ExportService) Export(ctx context.Context, studentID, rawYear, rawFormat string) (*ExportFile, error) {
	year, err := ParseYear(rawYear)
	if err != nil {
		return nil, err
	}
	format := export.Format(strings.ToLower(strings.TrimSpace(rawFormat)))
	if format == "" {
		format = export.FormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Validation("format must be one of csv, pdf")
	}

	overview, err := s.load(ctx, studentID, year)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(OverviewDataset(overview, year))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render overview")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("overview-%s-%d.%s", studentID, year, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (s *ExportService) load(ctx context.Context, studentID string, year int) (*dto.YearOverview, error) {
	if s.snapshots != nil {
		cached, hit, err := s.snapshots.LoadOverview(ctx, studentID, year)
		if err != nil {
			s.logger.Warn("overview snapshot unavailable, computing", zap.String("student_id", studentID), zap.Error(err))
		}
		if hit {
			return cached, nil
		}
	}
	return s.overview.Compute(ctx, studentID, year)
}

// OverviewDataset flattens an overview into one row per mark plus summary lines.
func OverviewDataset(overview *dto.YearOverview, year int) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Report card overview %d", year),
		Headers: []string{"Term", "Year", "Subject", "Code", "Score"},
		Rows:    make([][]string, 0),
	}
	for i, card := range overview.ReportCards {
		if i == 0 && card.StudentDetail != nil {
			data.Title = fmt.Sprintf("%s: report card overview %d", card.StudentDetail.Name, year)
		}
		for _, mark := range card.Marks {
			data.Rows = append(data.Rows, []string{
				card.Term,
				fmt.Sprintf("%d", card.Year),
				mark.Subject.Name,
				mark.Subject.Code,
				mark.Score.String(),
			})
		}
	}
	for _, avg := range overview.SubjectAverages {
		data.Summary = append(data.Summary, fmt.Sprintf("%s average: %s", avg.SubjectName, avg.AverageScore.String()))
	}
	overall := "n/a"
	if overview.OverallAverage != nil {
		overall = overview.OverallAverage.String()
	}
	data.Summary = append(data.Summary, "Overall average: "+overall)
	return data
}
