package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListForStudent(ctx context.Context, studentID string, subjectIDs []string) ([]models.AssignmentDetail, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Assignment, error)
	UpsertSubmission(ctx context.Context, submission *models.Submission) error
	FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionRecord, error)
}

type submissionStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
}

// AssignmentService publishes assignments and accepts PDF submissions.
type AssignmentService struct {
	repo        assignmentRepository
	teachers    gradeTeacherRepository
	storage     submissionStorage
	validator   *validator.Validate
	logger      *zap.Logger
	maxFileSize int64
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, teachers gradeTeacherRepository, storage submissionStorage, validate *validator.Validate, logger *zap.Logger, maxFileSize int64) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &AssignmentService{repo: repo, teachers: teachers, storage: storage, validator: validate, logger: logger, maxFileSize: maxFileSize}
}

// Create publishes an assignment for a subject the teacher actively teaches.
func (s *AssignmentService) Create(ctx context.Context, teacherID string, req models.AssignmentCreateRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must be YYYY-MM-DD")
	}

	teaches, err := s.teachers.TeachesSubject(ctx, teacherID, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
	}
	if !teaches {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not taught by this teacher")
	}

	assignment := &models.Assignment{
		Title:     req.Title,
		SubjectID: req.SubjectID,
		DueDate:   dueDate,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.logger.Info("assignment published",
		zap.String("assignment_id", assignment.ID),
		zap.String("subject_id", assignment.SubjectID))
	return assignment, nil
}

// ListForStudent returns the student's assignments across the given
// subjects, each flagged with submission state.
func (s *AssignmentService) ListForStudent(ctx context.Context, studentID string, subjectIDs []string) ([]models.AssignmentDetail, error) {
	details, err := s.repo.ListForStudent(ctx, studentID, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return details, nil
}

// ListBySubject returns the subject's assignments for its teacher.
func (s *AssignmentService) ListBySubject(ctx context.Context, teacherID, subjectID string) ([]models.Assignment, error) {
	teaches, err := s.teachers.TeachesSubject(ctx, teacherID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
	}
	if !teaches {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not taught by this teacher")
	}
	assignments, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Submit stores a student's PDF for an assignment. Only PDFs within the size
// limit are accepted; resubmission replaces the earlier file reference.
func (s *AssignmentService) Submit(ctx context.Context, studentID, assignmentID, filename string, size int64, file io.Reader) (*models.Submission, error) {
	if _, err := s.repo.FindByID(ctx, assignmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	if size > s.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrFileTooLarge, "")
	}
	if !strings.EqualFold(strings.TrimPrefix(extOf(filename), "."), "pdf") {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "only PDF submissions are accepted")
	}

	header := make([]byte, 5)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	if !bytes.HasPrefix(header[:n], []byte("%PDF-")) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "file does not look like a PDF")
	}

	relPath := fmt.Sprintf("submissions/%s/%s.pdf", assignmentID, studentID)
	stored, err := s.storage.SaveStream(relPath, io.MultiReader(bytes.NewReader(header[:n]), file))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	submission := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		PDFPath:      stored,
	}
	if err := s.repo.UpsertSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}

	s.logger.Info("submission stored",
		zap.String("assignment_id", assignmentID),
		zap.String("student_id", studentID))
	return submission, nil
}

// Submissions returns all submissions for an assignment, for its teacher.
func (s *AssignmentService) Submissions(ctx context.Context, teacherID, assignmentID string) ([]models.SubmissionRecord, error) {
	assignment, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	teaches, err := s.teachers.TeachesSubject(ctx, teacherID, assignment.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
	}
	if !teaches {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not taught by this teacher")
	}

	records, err := s.repo.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return records, nil
}

// OpenSubmission returns a file handle for a stored submission. Students may
// only open their own; the subject's teacher may open any.
func (s *AssignmentService) OpenSubmission(ctx context.Context, claims *models.JWTClaims, assignmentID, studentID string) (*os.File, error) {
	switch claims.Role {
	case models.RoleStudent:
		if claims.UserID != studentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only download their own submission")
		}
	case models.RoleTeacher:
		assignment, err := s.repo.FindByID(ctx, assignmentID)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		teaches, err := s.teachers.TeachesSubject(ctx, claims.UserID, assignment.SubjectID)
		if err != nil || !teaches {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not taught by this teacher")
		}
	case models.RoleAdmin:
		// full access
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	submission, err := s.repo.FindSubmission(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	file, err := s.storage.Open(submission.PDFPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open submission file")
	}
	return file, nil
}

func extOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}
