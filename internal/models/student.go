package models

import "time"

// Student represents a learner whose report cards are tracked.
type Student struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Email       string    `db:"email" json:"email"`
	DateOfBirth Date      `db:"date_of_birth" json:"date_of_birth"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	// Search matches name or email substrings, case-insensitively.
	Search   string
	Page     int
	PageSize int
}
