package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type mockSubjectRepo struct {
	subjects    map[string]*models.Subject
	codeTaken   bool
	deleted     []string
	lastUpdated *models.Subject
}

func (m *mockSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	out := make([]models.Subject, 0, len(m.subjects))
	for _, subject := range m.subjects {
		out = append(out, *subject)
	}
	return out, len(out), nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *subject
	return &clone, nil
}

func (m *mockSubjectRepo) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	return m.codeTaken, nil
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = "sub-new"
	if m.subjects == nil {
		m.subjects = make(map[string]*models.Subject)
	}
	m.subjects[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	m.lastUpdated = subject
	m.subjects[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockSubjectAssigner struct {
	assigned    []models.TeacherSubjectHistory
	deactivated [][2]string
}

func (m *mockSubjectAssigner) AssignSubject(ctx context.Context, entry *models.TeacherSubjectHistory) error {
	m.assigned = append(m.assigned, *entry)
	return nil
}

func (m *mockSubjectAssigner) DeactivateSubject(ctx context.Context, teacherID, subjectID string) error {
	m.deactivated = append(m.deactivated, [2]string{teacherID, subjectID})
	return nil
}

func newSubjectService(repo *mockSubjectRepo, assigner *mockSubjectAssigner) *SubjectService {
	return NewSubjectService(repo, assigner, validator.New(), zap.NewNop())
}

func TestSubjectCreateWithTeacher(t *testing.T) {
	repo := &mockSubjectRepo{}
	assigner := &mockSubjectAssigner{}
	svc := newSubjectService(repo, assigner)

	teacherID := "t-1"
	subject, err := svc.Create(context.Background(), models.SubjectCreateRequest{
		Code:      "CS101",
		Name:      "Programming Fundamentals",
		TeacherID: &teacherID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, subject.ID)
	require.Len(t, assigner.assigned, 1)
	assert.Equal(t, "t-1", assigner.assigned[0].TeacherID)
	assert.Equal(t, subject.ID, assigner.assigned[0].SubjectID)
}

func TestSubjectCreateDuplicateCode(t *testing.T) {
	repo := &mockSubjectRepo{codeTaken: true}
	svc := newSubjectService(repo, &mockSubjectAssigner{})

	_, err := svc.Create(context.Background(), models.SubjectCreateRequest{Code: "CS101", Name: "Programming"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSubjectUpdateReassignsTeacher(t *testing.T) {
	oldTeacher := "t-1"
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{
		"sub-1": {ID: "sub-1", Code: "CS101", Name: "Programming", TeacherID: &oldTeacher},
	}}
	assigner := &mockSubjectAssigner{}
	svc := newSubjectService(repo, assigner)

	newTeacher := "t-2"
	subject, err := svc.Update(context.Background(), "sub-1", models.SubjectUpdateRequest{
		Code:      "CS101",
		Name:      "Programming",
		TeacherID: &newTeacher,
	})
	require.NoError(t, err)
	require.NotNil(t, subject.TeacherID)
	assert.Equal(t, "t-2", *subject.TeacherID)
	require.Len(t, assigner.deactivated, 1)
	assert.Equal(t, [2]string{"t-1", "sub-1"}, assigner.deactivated[0])
	require.Len(t, assigner.assigned, 1)
	assert.Equal(t, "t-2", assigner.assigned[0].TeacherID)
}

func TestSubjectUpdateNotFound(t *testing.T) {
	svc := newSubjectService(&mockSubjectRepo{}, &mockSubjectAssigner{})

	_, err := svc.Update(context.Background(), "missing", models.SubjectUpdateRequest{Code: "CS101", Name: "Programming"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSubjectDelete(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{
		"sub-1": {ID: "sub-1", Code: "CS101", Name: "Programming"},
	}}
	svc := newSubjectService(repo, &mockSubjectAssigner{})

	err := svc.Delete(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub-1"}, repo.deleted)
}
