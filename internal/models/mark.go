package models

import "time"

// Mark is one subject's score within a report card.
type Mark struct {
	ID           string    `db:"id" json:"id"`
	ReportCardID string    `db:"report_card_id" json:"report_card"`
	SubjectID    string    `db:"subject_id" json:"subject"`
	Score        Score     `db:"score" json:"score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MarkDetail is the read shape of a mark: subject nested, report card kept for grouping.
type MarkDetail struct {
	ID           string  `db:"id" json:"id"`
	ReportCardID string  `db:"report_card_id" json:"-"`
	Score        Score   `db:"score" json:"score"`
	Subject      Subject `db:"subject" json:"subject"`
}

// MarkFilter captures supported filters for listing marks.
type MarkFilter struct {
	ReportCardID string
	SubjectID    string
	Page         int
	PageSize     int
}
