package models

import "time"

// ReportCard is a student's record of marks for one term and year.
type ReportCard struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student"`
	Term      string    `db:"term" json:"term"`
	Year      int       `db:"year" json:"year"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ReportCardDetail is a report card with its marks and owning student nested.
type ReportCardDetail struct {
	ReportCard
	Marks         []MarkDetail `json:"marks"`
	StudentDetail *Student     `json:"student_detail,omitempty"`
}

// ReportCardFilter captures supported filters for listing report cards.
type ReportCardFilter struct {
	StudentID string
	Year      *int
	// Search matches term substrings, case-insensitively.
	Search   string
	Page     int
	PageSize int
}
