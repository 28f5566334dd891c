package models

// StudentDashboard aggregates everything a student's landing page shows in a
// single payload.
type StudentDashboard struct {
	Profile            StudentDetail      `json:"profile"`
	Attendance         AttendanceSummary  `json:"attendance"`
	RecentAttendance   []AttendanceRecord `json:"recent_attendance"`
	AverageMark        *int               `json:"average_mark"`
	Grades             []GradeRecord      `json:"grades"`
	Assignments        []AssignmentDetail `json:"assignments"`
	PendingAssignments int                `json:"pending_assignments"`
}

// TeacherDashboard aggregates a teacher's subjects and per-subject averages.
type TeacherDashboard struct {
	Profile            TeacherProfile        `json:"profile"`
	User               UserInfo              `json:"user"`
	ActiveSubjects     []SubjectHistoryEntry `json:"active_subjects"`
	ActiveSubjectCount int                   `json:"active_subject_count"`
	TotalStudents      int                   `json:"total_students"`
	OverallAverage     *int                  `json:"overall_average"`
	SubjectAverages    []SubjectAverage      `json:"subject_averages"`
	SubjectHistory     []SubjectHistoryEntry `json:"subject_history"`
}
