package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type mockAssignmentRepo struct {
	assignments map[string]*models.Assignment
	created     []models.Assignment
	submissions []models.Submission
	records     []models.SubmissionRecord
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = "as-1"
	m.created = append(m.created, *assignment)
	return nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return assignment, nil
}

func (m *mockAssignmentRepo) ListForStudent(ctx context.Context, studentID string, subjectIDs []string) ([]models.AssignmentDetail, error) {
	return nil, nil
}

func (m *mockAssignmentRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.Assignment, error) {
	out := make([]models.Assignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		if a.SubjectID == subjectID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	submission.ID = "sub-rec-1"
	m.submissions = append(m.submissions, *submission)
	return nil
}

func (m *mockAssignmentRepo) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	for i := range m.submissions {
		if m.submissions[i].AssignmentID == assignmentID && m.submissions[i].StudentID == studentID {
			return &m.submissions[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionRecord, error) {
	return m.records, nil
}

type mockStorage struct {
	saved map[string][]byte
}

func (m *mockStorage) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func newAssignmentService(repo *mockAssignmentRepo, storage *mockStorage, teaches bool) *AssignmentService {
	return NewAssignmentService(repo, &mockTeachesChecker{teaches: teaches}, storage, validator.New(), zap.NewNop(), 1<<20)
}

func TestAssignmentCreate(t *testing.T) {
	repo := &mockAssignmentRepo{}
	svc := newAssignmentService(repo, &mockStorage{}, true)

	assignment, err := svc.Create(context.Background(), "t-1", models.AssignmentCreateRequest{
		Title:     "Normalisation exercise",
		SubjectID: "sub-1",
		DueDate:   "2024-04-12",
	})
	require.NoError(t, err)
	assert.Equal(t, "as-1", assignment.ID)
	assert.Equal(t, 2024, assignment.DueDate.Year())
}

func TestAssignmentCreateForbidden(t *testing.T) {
	svc := newAssignmentService(&mockAssignmentRepo{}, &mockStorage{}, false)

	_, err := svc.Create(context.Background(), "t-1", models.AssignmentCreateRequest{
		Title:     "Normalisation exercise",
		SubjectID: "sub-1",
		DueDate:   "2024-04-12",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSubmitStoresPDF(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]*models.Assignment{
		"as-1": {ID: "as-1", SubjectID: "sub-1"},
	}}
	storage := &mockStorage{}
	svc := newAssignmentService(repo, storage, true)

	payload := []byte("%PDF-1.7 fake body")
	submission, err := svc.Submit(context.Background(), "stu-1", "as-1", "homework.pdf", int64(len(payload)), bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "submissions/as-1/stu-1.pdf", submission.PDFPath)
	assert.Equal(t, payload, storage.saved["submissions/as-1/stu-1.pdf"])
	require.Len(t, repo.submissions, 1)
}

func TestSubmitRejectsNonPDFExtension(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]*models.Assignment{"as-1": {ID: "as-1"}}}
	svc := newAssignmentService(repo, &mockStorage{}, true)

	_, err := svc.Submit(context.Background(), "stu-1", "as-1", "homework.docx", 10, bytes.NewReader([]byte("%PDF-1.7")))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErr.Code)
}

func TestSubmitRejectsBogusContent(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]*models.Assignment{"as-1": {ID: "as-1"}}}
	svc := newAssignmentService(repo, &mockStorage{}, true)

	_, err := svc.Submit(context.Background(), "stu-1", "as-1", "homework.pdf", 10, bytes.NewReader([]byte("MZ not a pdf")))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErr.Code)
}

func TestSubmitRejectsOversizedFile(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]*models.Assignment{"as-1": {ID: "as-1"}}}
	svc := newAssignmentService(repo, &mockStorage{}, true)

	_, err := svc.Submit(context.Background(), "stu-1", "as-1", "homework.pdf", 2<<20, bytes.NewReader([]byte("%PDF-1.7")))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErr.Code)
}

func TestSubmissionsForbiddenForOtherTeacher(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]*models.Assignment{"as-1": {ID: "as-1", SubjectID: "sub-1"}}}
	svc := newAssignmentService(repo, &mockStorage{}, false)

	_, err := svc.Submissions(context.Background(), "t-2", "as-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestOpenSubmissionForeignStudentForbidden(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]*models.Assignment{"as-1": {ID: "as-1", SubjectID: "sub-1"}}}
	svc := newAssignmentService(repo, &mockStorage{}, true)

	claims := &models.JWTClaims{UserID: "stu-2", Role: models.RoleStudent}
	_, err := svc.OpenSubmission(context.Background(), claims, "as-1", "stu-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
