package models

import "time"

// Subject represents an academic subject. TeacherID is a weak reference to the
// owning teacher profile and may be unset.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectCreateRequest creates a new subject, optionally assigned to a
// teacher straight away.
type SubjectCreateRequest struct {
	Code      string  `json:"code" validate:"required,min=2,max=16"`
	Name      string  `json:"name" validate:"required"`
	TeacherID *string `json:"teacher_id,omitempty"`
}

// SubjectUpdateRequest modifies a subject's mutable fields.
type SubjectUpdateRequest struct {
	Code      string  `json:"code" validate:"required,min=2,max=16"`
	Name      string  `json:"name" validate:"required"`
	TeacherID *string `json:"teacher_id,omitempty"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
