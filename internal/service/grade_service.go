package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type gradeRepository interface {
	Upsert(ctx context.Context, grade *models.Grade) error
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecord, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.SubjectResultRow, error)
	CohortMarks(ctx context.Context, subjectID string) ([]float64, error)
}

type gradeTeacherRepository interface {
	TeachesSubject(ctx context.Context, teacherID, subjectID string) (bool, error)
}

// GradeService stores raw marks and derives curved grades at read time.
// Letters are never persisted; the curve shifts whenever any cohort mark
// changes.
type GradeService struct {
	repo      gradeRepository
	teachers  gradeTeacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(repo gradeRepository, teachers gradeTeacherRepository, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GradeService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// Upsert stores a mark for a student/subject pair. The teacher must actively
// teach the subject; resubmitting replaces the previous mark.
func (s *GradeService) Upsert(ctx context.Context, teacherID string, req models.GradeUpsertRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	teaches, err := s.teachers.TeachesSubject(ctx, teacherID, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
	}
	if !teaches {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not taught by this teacher")
	}

	grade := &models.Grade{
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		Marks:     req.Marks,
	}
	if err := s.repo.Upsert(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grade")
	}

	s.logger.Info("grade stored",
		zap.String("student_id", req.StudentID),
		zap.String("subject_id", req.SubjectID),
		zap.Float64("marks", req.Marks))
	return grade, nil
}

// StudentGrades returns the student's grades with curved letters computed
// against each subject's current cohort.
func (s *GradeService) StudentGrades(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	records, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	for i := range records {
		cohort, err := s.repo.CohortMarks(ctx, records[i].SubjectID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort marks")
		}
		derived := ComputeRelativeGrade(records[i].Marks, cohort)
		records[i].Derived = &derived
	}
	return records, nil
}

// SubjectResults returns every student's mark and curved grade in the
// subject, for the teacher that owns it.
func (s *GradeService) SubjectResults(ctx context.Context, teacherID, subjectID string) ([]models.SubjectResultRow, error) {
	teaches, err := s.teachers.TeachesSubject(ctx, teacherID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
	}
	if !teaches {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not taught by this teacher")
	}

	rows, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject results")
	}

	// One cohort fetch covers every row; the curve is shared.
	cohort := make([]float64, len(rows))
	for i, row := range rows {
		cohort[i] = row.Marks
	}
	for i := range rows {
		derived := ComputeRelativeGrade(rows[i].Marks, cohort)
		rows[i].Derived = &derived
	}
	return rows, nil
}

// SubjectAveragesFor computes per-subject mean marks for the teacher
// dashboard, preserving the order of the supplied history entries.
func (s *GradeService) SubjectAveragesFor(ctx context.Context, history []models.SubjectHistoryEntry) ([]models.SubjectAverage, error) {
	if len(history) == 0 {
		return nil, nil
	}
	ids := make([]string, len(history))
	for i, entry := range history {
		ids[i] = entry.SubjectID
	}
	grades, err := s.repo.List(ctx, models.GradeFilter{SubjectIDIn: ids})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
	}

	bySubject := make(map[string][]models.Grade, len(ids))
	for _, grade := range grades {
		bySubject[grade.SubjectID] = append(bySubject[grade.SubjectID], grade)
	}
	return SubjectAverages(history, bySubject), nil
}

// AverageFor returns the rounded mean of the student's marks, or nil when
// the student has no grades yet.
func (s *GradeService) AverageFor(ctx context.Context, studentID string) (*int, error) {
	grades, err := s.repo.List(ctx, models.GradeFilter{StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	return AverageMark(grades), nil
}
