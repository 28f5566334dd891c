package models

import "time"

// GradeLetter is a curved letter grade.
type GradeLetter string

const (
	LetterOutstanding GradeLetter = "O"
	LetterAPlus       GradeLetter = "A+"
	LetterA           GradeLetter = "A"
	LetterBPlus       GradeLetter = "B+"
	LetterB           GradeLetter = "B"
	LetterC           GradeLetter = "C"
	LetterF           GradeLetter = "F"
)

// Grade holds the raw mark for one student in one subject. The latest write
// is authoritative; marks are stored as NUMERIC(5,2).
type Grade struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Marks     float64   `db:"marks" json:"marks"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DerivedGrade is the curved letter/point pair computed against the subject
// cohort. It is never persisted and can change as other marks change.
type DerivedGrade struct {
	Letter GradeLetter `json:"letter"`
	Point  float64     `json:"point"`
}

// GradeRecord is a grade row joined with subject metadata plus the derived
// curved grade computed at read time.
type GradeRecord struct {
	Grade
	SubjectName string        `db:"subject_name" json:"subject_name"`
	SubjectCode string        `db:"subject_code" json:"subject_code"`
	Derived     *DerivedGrade `json:"derived,omitempty"`
}

// SubjectResultRow is a grade row joined with student identity, used for
// teacher-facing results listings and exports.
type SubjectResultRow struct {
	Grade
	StudentName string        `db:"student_name" json:"student_name"`
	RollNumber  string        `db:"roll_number" json:"roll_number"`
	Derived     *DerivedGrade `json:"derived,omitempty"`
}

// GradeUpsertRequest stores or replaces one student's mark in a subject.
type GradeUpsertRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	SubjectID string  `json:"subject_id" validate:"required"`
	Marks     float64 `json:"marks" validate:"min=0,max=100"`
}

// GradeFilter allows querying of grade entries.
type GradeFilter struct {
	StudentID   string
	SubjectID   string
	SubjectIDIn []string
}

// SubjectAverage summarises one subject's mean mark for dashboard rollups.
// An empty subject reports 0, not a null sentinel.
type SubjectAverage struct {
	SubjectName string `json:"subject_name"`
	SubjectCode string `json:"subject_code"`
	Average     int    `json:"average"`
}
