package models

import "time"

// Assignment represents work pushed to all students of a subject.
type Assignment struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	DueDate   time.Time `db:"due_date" json:"due_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AssignmentDetail extends an assignment with subject metadata and, for
// student listings, whether this student has already submitted.
type AssignmentDetail struct {
	Assignment
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
	Submitted   bool   `db:"submitted" json:"submitted"`
}

// AssignmentCreateRequest publishes a new assignment for a subject.
type AssignmentCreateRequest struct {
	Title     string `json:"title" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	DueDate   string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// Submission is a student's uploaded PDF for an assignment. The
// assignment/student pair is unique.
type Submission struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	PDFPath      string    `db:"pdf_path" json:"pdf_path"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
}

// SubmissionRecord joins a submission with assignment and student metadata
// for teacher review listings.
type SubmissionRecord struct {
	Submission
	AssignmentTitle string `db:"assignment_title" json:"assignment_title"`
	SubjectID       string `db:"subject_id" json:"subject_id"`
	SubjectCode     string `db:"subject_code" json:"subject_code"`
	StudentName     string `db:"student_name" json:"student_name"`
	RollNumber      string `db:"roll_number" json:"roll_number"`
}
