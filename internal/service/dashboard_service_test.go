package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type mockDashStudents struct {
	detail *models.StudentDetail
	count  int
}

func (m *mockDashStudents) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockDashStudents) CountActive(ctx context.Context) (int, error) {
	return m.count, nil
}

type mockDashTeachers struct {
	profile *models.TeacherProfile
	active  []models.SubjectHistoryEntry
	history []models.SubjectHistoryEntry
}

func (m *mockDashTeachers) FindByUserID(ctx context.Context, userID string) (*models.TeacherProfile, error) {
	if m.profile == nil {
		return nil, sql.ErrNoRows
	}
	return m.profile, nil
}

func (m *mockDashTeachers) ListSubjectHistory(ctx context.Context, teacherID string, activeOnly bool) ([]models.SubjectHistoryEntry, error) {
	if activeOnly {
		return m.active, nil
	}
	return m.history, nil
}

type mockDashUsers struct {
	user *models.User
}

func (m *mockDashUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

type mockSummarizer struct {
	summary models.AttendanceSummary
	recent  []models.AttendanceRecord
}

func (m *mockSummarizer) Summary(ctx context.Context, studentID, subjectID string) (*models.AttendanceSummary, error) {
	return &m.summary, nil
}

func (m *mockSummarizer) Recent(ctx context.Context, studentID string, limit int) ([]models.AttendanceRecord, error) {
	if limit < len(m.recent) {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

type mockAggregator struct {
	grades   []models.GradeRecord
	average  *int
	averages []models.SubjectAverage
}

func (m *mockAggregator) StudentGrades(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	return m.grades, nil
}

func (m *mockAggregator) AverageFor(ctx context.Context, studentID string) (*int, error) {
	return m.average, nil
}

func (m *mockAggregator) SubjectAveragesFor(ctx context.Context, history []models.SubjectHistoryEntry) ([]models.SubjectAverage, error) {
	return m.averages, nil
}

type mockDashAssignments struct {
	details []models.AssignmentDetail
}

func (m *mockDashAssignments) ListForStudent(ctx context.Context, studentID string, subjectIDs []string) ([]models.AssignmentDetail, error) {
	return m.details, nil
}

type mockDashSubjects struct {
	subjects []models.Subject
}

func (m *mockDashSubjects) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	return m.subjects, len(m.subjects), nil
}

func TestStudentDashboard(t *testing.T) {
	avg := 78
	svc := NewDashboardService(DashboardServiceParams{
		Students: &mockDashStudents{detail: &models.StudentDetail{
			StudentProfile: models.StudentProfile{UserID: "stu-1", RollNumber: "21CS042"},
			FullName:       "Aarav Sharma",
		}},
		Teachers:   &mockDashTeachers{},
		Users:      &mockDashUsers{},
		Attendance: &mockSummarizer{
			summary: models.AttendanceSummary{Attended: 3, Total: 5, Percent: 60},
			recent:  []models.AttendanceRecord{{Attendance: models.Attendance{SubjectID: "sub-1", Status: models.AttendanceStatusPresent}}},
		},
		Grades: &mockAggregator{
			grades:  []models.GradeRecord{{Grade: models.Grade{SubjectID: "sub-1", Marks: 78}}},
			average: &avg,
		},
		Assignments: &mockDashAssignments{details: []models.AssignmentDetail{
			{Assignment: models.Assignment{ID: "as-1"}, Submitted: true},
			{Assignment: models.Assignment{ID: "as-2"}, Submitted: false},
		}},
		Subjects: &mockDashSubjects{subjects: []models.Subject{{ID: "sub-1"}}},
		Logger:   zap.NewNop(),
	})

	dashboard, cached, err := svc.Student(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "21CS042", dashboard.Profile.RollNumber)
	assert.Equal(t, 60, dashboard.Attendance.Percent)
	require.NotNil(t, dashboard.AverageMark)
	assert.Equal(t, 78, *dashboard.AverageMark)
	require.Len(t, dashboard.Assignments, 2)
	assert.True(t, dashboard.Assignments[0].Submitted)
	assert.Equal(t, 1, dashboard.PendingAssignments)
	require.Len(t, dashboard.RecentAttendance, 1)
}

func TestStudentDashboardMissingProfile(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{
		Students:    &mockDashStudents{},
		Teachers:    &mockDashTeachers{},
		Users:       &mockDashUsers{},
		Attendance:  &mockSummarizer{},
		Grades:      &mockAggregator{},
		Assignments: &mockDashAssignments{},
		Subjects:    &mockDashSubjects{},
	})

	_, _, err := svc.Student(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestTeacherDashboard(t *testing.T) {
	active := []models.SubjectHistoryEntry{subjectEntry("sub-1", "Databases", "CS301")}
	history := append([]models.SubjectHistoryEntry{}, active...)
	history = append(history, subjectEntry("sub-2", "Algorithms", "CS202"))

	svc := NewDashboardService(DashboardServiceParams{
		Students: &mockDashStudents{count: 42},
		Teachers: &mockDashTeachers{
			profile: &models.TeacherProfile{UserID: "t-1", Department: "CSE"},
			active:  active,
			history: history,
		},
		Users:       &mockDashUsers{user: &models.User{ID: "t-1", Username: "priya", FullName: "Priya Nair", Role: models.RoleTeacher}},
		Attendance:  &mockSummarizer{},
		Grades:      &mockAggregator{averages: []models.SubjectAverage{{SubjectCode: "CS301", Average: 72}, {SubjectCode: "CS202", Average: 63}}},
		Assignments: &mockDashAssignments{},
		Subjects:    &mockDashSubjects{},
	})

	dashboard, cached, err := svc.Teacher(context.Background(), "t-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "CSE", dashboard.Profile.Department)
	assert.Equal(t, models.RoleTeacher, dashboard.User.Role)
	require.Len(t, dashboard.ActiveSubjects, 1)
	assert.Equal(t, 1, dashboard.ActiveSubjectCount)
	assert.Equal(t, 42, dashboard.TotalStudents)
	assert.Len(t, dashboard.SubjectHistory, 2)
	require.Len(t, dashboard.SubjectAverages, 2)
	assert.Equal(t, 72, dashboard.SubjectAverages[0].Average)
	require.NotNil(t, dashboard.OverallAverage)
	assert.Equal(t, 68, *dashboard.OverallAverage)
}
