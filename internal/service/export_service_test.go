package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	"github.com/Aar2284/University-Management-Sys/pkg/storage"
)

type mockExportGrades struct {
	rows []models.SubjectResultRow
}

func (m *mockExportGrades) ListBySubject(_ context.Context, _ string) ([]models.SubjectResultRow, error) {
	return m.rows, nil
}

type mockExportSubjects struct {
	subject models.Subject
}

func (m *mockExportSubjects) FindByID(_ context.Context, _ string) (*models.Subject, error) {
	return &m.subject, nil
}

type mockExportStudents struct {
	roster []models.StudentDetail
}

func (m *mockExportStudents) ListRoster(_ context.Context) ([]models.StudentDetail, error) {
	return m.roster, nil
}

func (m *mockExportStudents) FindByUserID(_ context.Context, userID string) (*models.StudentDetail, error) {
	for _, s := range m.roster {
		if s.UserID == userID {
			return &s, nil
		}
	}
	return nil, os.ErrNotExist
}

type mockExportAttendance struct {
	byStudent map[string][]models.Attendance
}

func (m *mockExportAttendance) ListForStudent(_ context.Context, studentID, _ string) ([]models.Attendance, error) {
	return m.byStudent[studentID], nil
}

type mockFileStorage struct {
	saved map[string][]byte
}

func (m *mockFileStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockFileStorage) Open(_ string) (*os.File, error) { return nil, os.ErrNotExist }

func (m *mockFileStorage) Delete(filename string) error {
	delete(m.saved, filename)
	return nil
}

func (m *mockFileStorage) CleanupOlderThan(_ time.Duration) ([]string, error) { return nil, nil }

func newExportFixture(t *testing.T, grades *mockExportGrades, students *mockExportStudents, attendance *mockExportAttendance) (*ExportService, *mockFileStorage) {
	t.Helper()
	store := &mockFileStorage{}
	subjects := &mockExportSubjects{subject: models.Subject{ID: "sub-1", Code: "PHY101", Name: "Physics"}}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(grades, subjects, students, attendance, store, signer,
		ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)
	return svc, store
}

func TestExportResultsCSVAppliesCurve(t *testing.T) {
	grades := &mockExportGrades{rows: []models.SubjectResultRow{
		{Grade: models.Grade{Marks: 40}, StudentName: "Asha Rao", RollNumber: "R-001"},
		{Grade: models.Grade{Marks: 80}, StudentName: "Vikram Iyer", RollNumber: "R-002"},
		{Grade: models.Grade{Marks: 100}, StudentName: "Meera Shah", RollNumber: "R-003"},
	}}
	svc, store := newExportFixture(t, grades, &mockExportStudents{}, &mockExportAttendance{})

	job := &models.ReportJob{
		ID:   "job-1",
		Type: models.ReportTypeResults,
		Params: models.ReportJobParams{
			SubjectID: "sub-1",
			Format:    models.ReportFormatCSV,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))
	assert.NotEmpty(t, result.Token)

	payload := string(store.saved[result.RelativePath])
	assert.Contains(t, payload, "Roll Number,Student,Marks,Grade,Points")
	// marks are curved against the best mark in the subject
	assert.Contains(t, payload, "R-001,Asha Rao,40.00,C,5.0")
	assert.Contains(t, payload, "R-002,Vikram Iyer,80.00,A+,9.0")
	assert.Contains(t, payload, "R-003,Meera Shah,100.00,O,10.0")
}

func TestExportResultsPDFRenders(t *testing.T) {
	grades := &mockExportGrades{rows: []models.SubjectResultRow{
		{Grade: models.Grade{Marks: 95}, StudentName: "Asha Rao", RollNumber: "R-001"},
	}}
	svc, store := newExportFixture(t, grades, &mockExportStudents{}, &mockExportAttendance{})

	job := &models.ReportJob{
		ID:   "job-2",
		Type: models.ReportTypeResults,
		Params: models.ReportJobParams{
			SubjectID: "sub-1",
			Format:    models.ReportFormatPDF,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload := store.saved[result.RelativePath]
	require.NotEmpty(t, payload)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestExportAttendanceSummarisesRoster(t *testing.T) {
	students := &mockExportStudents{roster: []models.StudentDetail{
		{StudentProfile: models.StudentProfile{UserID: "stu-1", RollNumber: "R-001"}, FullName: "Asha Rao"},
		{StudentProfile: models.StudentProfile{UserID: "stu-2", RollNumber: "R-002"}, FullName: "Vikram Iyer"},
	}}
	attendance := &mockExportAttendance{byStudent: map[string][]models.Attendance{
		"stu-1": attendanceRecords("P", "P", "P", "A", "A"),
		"stu-2": nil,
	}}
	svc, store := newExportFixture(t, &mockExportGrades{}, students, attendance)

	job := &models.ReportJob{
		ID:   "job-3",
		Type: models.ReportTypeAttendance,
		Params: models.ReportJobParams{
			SubjectID: "sub-1",
			Format:    models.ReportFormatCSV,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload := string(store.saved[result.RelativePath])
	assert.Contains(t, payload, "R-001,Asha Rao,3,5,60")
	// no sessions recorded counts as full attendance
	assert.Contains(t, payload, "R-002,Vikram Iyer,0,0,100")
}

func TestExportAttendanceSingleStudent(t *testing.T) {
	students := &mockExportStudents{roster: []models.StudentDetail{
		{StudentProfile: models.StudentProfile{UserID: "stu-1", RollNumber: "R-001"}, FullName: "Asha Rao"},
		{StudentProfile: models.StudentProfile{UserID: "stu-2", RollNumber: "R-002"}, FullName: "Vikram Iyer"},
	}}
	attendance := &mockExportAttendance{byStudent: map[string][]models.Attendance{
		"stu-1": attendanceRecords("P", "A"),
	}}
	svc, store := newExportFixture(t, &mockExportGrades{}, students, attendance)

	studentID := "stu-1"
	job := &models.ReportJob{
		ID:   "job-4",
		Type: models.ReportTypeAttendance,
		Params: models.ReportJobParams{
			SubjectID: "sub-1",
			StudentID: &studentID,
			Format:    models.ReportFormatCSV,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload := string(store.saved[result.RelativePath])
	assert.Contains(t, payload, "R-001")
	assert.NotContains(t, payload, "R-002")
}

func TestExportRejectsUnknownType(t *testing.T) {
	svc, _ := newExportFixture(t, &mockExportGrades{}, &mockExportStudents{}, &mockExportAttendance{})

	job := &models.ReportJob{
		ID:     "job-5",
		Type:   models.ReportType("behaviour"),
		Params: models.ReportJobParams{SubjectID: "sub-1", Format: models.ReportFormatCSV},
	}
	_, err := svc.Generate(context.Background(), job)
	assert.Error(t, err)
}

func TestExportTokenRoundTrip(t *testing.T) {
	grades := &mockExportGrades{rows: []models.SubjectResultRow{
		{Grade: models.Grade{Marks: 50}, StudentName: "Asha Rao", RollNumber: "R-001"},
	}}
	svc, _ := newExportFixture(t, grades, &mockExportStudents{}, &mockExportAttendance{})

	job := &models.ReportJob{
		ID:     "job-6",
		Type:   models.ReportTypeResults,
		Params: models.ReportJobParams{SubjectID: "sub-1", Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-6", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}
