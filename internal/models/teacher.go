package models

import "time"

// TeacherProfile extends a user account with teacher data.
type TeacherProfile struct {
	UserID     string    `db:"user_id" json:"user_id"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherSubjectHistory links a teacher to a subject over time. The pair is
// unique; is_active marks the subjects currently being taught.
type TeacherSubjectHistory struct {
	ID           string    `db:"id" json:"id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	AssignedDate time.Time `db:"assigned_date" json:"assigned_date"`
}

// SubjectHistoryEntry is a history row joined with subject metadata, returned
// in assignment order.
type SubjectHistoryEntry struct {
	TeacherSubjectHistory
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
}
