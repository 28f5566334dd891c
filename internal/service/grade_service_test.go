package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type mockGradeRepo struct {
	upserted    []models.Grade
	grades      []models.Grade
	byStudent   []models.GradeRecord
	bySubject   []models.SubjectResultRow
	cohortMarks map[string][]float64
}

func (m *mockGradeRepo) Upsert(ctx context.Context, grade *models.Grade) error {
	grade.ID = "g-1"
	m.upserted = append(m.upserted, *grade)
	return nil
}

func (m *mockGradeRepo) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	return m.grades, nil
}

func (m *mockGradeRepo) ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	return m.byStudent, nil
}

func (m *mockGradeRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.SubjectResultRow, error) {
	return m.bySubject, nil
}

func (m *mockGradeRepo) CohortMarks(ctx context.Context, subjectID string) ([]float64, error) {
	return m.cohortMarks[subjectID], nil
}

func newGradeService(repo *mockGradeRepo, teaches bool) *GradeService {
	return NewGradeService(repo, &mockTeachesChecker{teaches: teaches}, validator.New(), zap.NewNop())
}

func TestGradeUpsert(t *testing.T) {
	repo := &mockGradeRepo{}
	svc := newGradeService(repo, true)

	grade, err := svc.Upsert(context.Background(), "teacher-1", models.GradeUpsertRequest{
		StudentID: "stu-1",
		SubjectID: "sub-1",
		Marks:     82.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 82.5, grade.Marks)
	require.Len(t, repo.upserted, 1)
}

func TestGradeUpsertForbidden(t *testing.T) {
	repo := &mockGradeRepo{}
	svc := newGradeService(repo, false)

	_, err := svc.Upsert(context.Background(), "teacher-1", models.GradeUpsertRequest{
		StudentID: "stu-1",
		SubjectID: "sub-1",
		Marks:     50,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestGradeUpsertRejectsOutOfRangeMarks(t *testing.T) {
	repo := &mockGradeRepo{}
	svc := newGradeService(repo, true)

	_, err := svc.Upsert(context.Background(), "teacher-1", models.GradeUpsertRequest{
		StudentID: "stu-1",
		SubjectID: "sub-1",
		Marks:     101,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestStudentGradesDeriveAgainstCohort(t *testing.T) {
	repo := &mockGradeRepo{
		byStudent: []models.GradeRecord{
			{Grade: models.Grade{SubjectID: "sub-1", Marks: 40}, SubjectCode: "CS101"},
			{Grade: models.Grade{SubjectID: "sub-2", Marks: 80}, SubjectCode: "CS102"},
		},
		cohortMarks: map[string][]float64{
			"sub-1": {40, 80, 100},
			"sub-2": {80},
		},
	}
	svc := newGradeService(repo, true)

	records, err := svc.StudentGrades(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, records[0].Derived)
	assert.Equal(t, models.LetterC, records[0].Derived.Letter)
	assert.Equal(t, 5.0, records[0].Derived.Point)

	// Top of its own cohort.
	require.NotNil(t, records[1].Derived)
	assert.Equal(t, models.LetterOutstanding, records[1].Derived.Letter)
	assert.Equal(t, 10.0, records[1].Derived.Point)
}

func TestSubjectResultsShareOneCurve(t *testing.T) {
	repo := &mockGradeRepo{
		bySubject: []models.SubjectResultRow{
			{Grade: models.Grade{StudentID: "stu-1", Marks: 40}, RollNumber: "21CS001"},
			{Grade: models.Grade{StudentID: "stu-2", Marks: 80}, RollNumber: "21CS002"},
			{Grade: models.Grade{StudentID: "stu-3", Marks: 100}, RollNumber: "21CS003"},
		},
	}
	svc := newGradeService(repo, true)

	rows, err := svc.SubjectResults(context.Background(), "teacher-1", "sub-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.LetterC, rows[0].Derived.Letter)
	assert.Equal(t, models.LetterAPlus, rows[1].Derived.Letter)
	assert.Equal(t, models.LetterOutstanding, rows[2].Derived.Letter)
}

func TestSubjectResultsForbidden(t *testing.T) {
	svc := newGradeService(&mockGradeRepo{}, false)

	_, err := svc.SubjectResults(context.Background(), "teacher-1", "sub-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSubjectAveragesFor(t *testing.T) {
	repo := &mockGradeRepo{
		grades: []models.Grade{
			{SubjectID: "sub-1", Marks: 60},
			{SubjectID: "sub-1", Marks: 80},
			{SubjectID: "sub-2", Marks: 90},
		},
	}
	svc := newGradeService(repo, true)

	history := []models.SubjectHistoryEntry{
		subjectEntry("sub-1", "Databases", "CS301"),
		subjectEntry("sub-2", "Algorithms", "CS202"),
		subjectEntry("sub-3", "Networks", "CS305"),
	}
	averages, err := svc.SubjectAveragesFor(context.Background(), history)
	require.NoError(t, err)
	require.Len(t, averages, 3)
	assert.Equal(t, 70, averages[0].Average)
	assert.Equal(t, 90, averages[1].Average)
	assert.Equal(t, 0, averages[2].Average)
}

func TestAverageForEmptyStudent(t *testing.T) {
	svc := newGradeService(&mockGradeRepo{}, true)

	avg, err := svc.AverageFor(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Nil(t, avg)
}
