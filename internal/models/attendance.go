package models

import "time"

// AttendanceStatus is the single-character status code stored per record.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "P"
	AttendanceStatusAbsent  AttendanceStatus = "A"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// Attendance represents a single attendance row. Multiple rows per
// student/subject/day are permitted; check-ins append rather than overwrite.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	SubjectID  string           `db:"subject_id" json:"subject_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	RecordedAt time.Time        `db:"recorded_at" json:"recorded_at"`
}

// AttendanceRecord extends the row with subject metadata for listings.
type AttendanceRecord struct {
	Attendance
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
}

// AttendanceFilter defines typed query parameters; the engine never builds
// queries itself.
type AttendanceFilter struct {
	StudentID string
	SubjectID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortOrder string
}

// AttendanceSummary reports attended/total counts and the truncated
// percentage. Zero recorded classes report as 100 percent.
type AttendanceSummary struct {
	Attended int `json:"attended"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// SheetEntry is one student's status on a teacher-submitted sheet.
type SheetEntry struct {
	StudentID string           `json:"student_id" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=P A"`
}

// AttendanceSheetRequest records attendance for a whole class in one call.
type AttendanceSheetRequest struct {
	SubjectID string       `json:"subject_id" validate:"required"`
	Date      string       `json:"date" validate:"required,datetime=2006-01-02"`
	Entries   []SheetEntry `json:"entries" validate:"required,min=1,dive"`
}

// CheckInRequest is a student's own present-mark for today. The subject must
// be named explicitly; there is no inference from a timetable.
type CheckInRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}
