package models

import "time"

// StudentProfile extends a user account with student registration data.
type StudentProfile struct {
	UserID     string    `db:"user_id" json:"user_id"`
	RollNumber string    `db:"roll_number" json:"roll_number"`
	BatchYear  string    `db:"batch_year" json:"batch_year"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail carries the profile together with user identity fields.
type StudentDetail struct {
	StudentProfile
	Username string `db:"username" json:"username"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	BatchYear string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
