package dto

import "github.com/noah-isme/report-card-api/internal/models"

// OverviewJobType identifies background recompute jobs on the overview queue.
const OverviewJobType = "overview.recompute"

// YearOverview is the aggregate view of one student's report cards for a year.
type YearOverview struct {
	ReportCards     []models.ReportCardDetail `json:"report_cards"`
	SubjectAverages []SubjectAverage          `json:"subject_averages"`
	OverallAverage  *models.Score             `json:"overall_average"`
}

// SubjectAverage is the pooled mean of one subject's marks across the year.
type SubjectAverage struct {
	SubjectID    string       `json:"subject_id"`
	SubjectName  string       `json:"subject_name"`
	AverageScore models.Score `json:"average_score"`
}

// OverviewTaskPayload identifies the overview a background job recomputes.
type OverviewTaskPayload struct {
	StudentID string `json:"student_id"`
	Year      int    `json:"year"`
}
