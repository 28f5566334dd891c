package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectTeacherRepository interface {
	AssignSubject(ctx context.Context, entry *models.TeacherSubjectHistory) error
	DeactivateSubject(ctx context.Context, teacherID, subjectID string) error
}

// SubjectService manages the subject catalogue. Reassigning a subject keeps
// the old teacher's history row, flipped inactive.
type SubjectService struct {
	repo      subjectRepository
	teachers  subjectTeacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, teachers subjectTeacherRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubjectService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// List returns subjects matching the filter with a total count.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, total, nil
}

// Get fetches one subject.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create adds a subject, enforcing code uniqueness. When a teacher is named
// the subject lands in their history as an active assignment.
func (s *SubjectService) Create(ctx context.Context, req models.SubjectCreateRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	taken, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject code")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject code already exists")
	}

	subject := &models.Subject{
		Code:      req.Code,
		Name:      req.Name,
		TeacherID: req.TeacherID,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	if req.TeacherID != nil {
		if err := s.teachers.AssignSubject(ctx, &models.TeacherSubjectHistory{
			TeacherID: *req.TeacherID,
			SubjectID: subject.ID,
		}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record subject assignment")
		}
	}

	s.logger.Info("subject created", zap.String("subject_id", subject.ID), zap.String("code", subject.Code))
	return subject, nil
}

// Update modifies a subject. A teacher change deactivates the previous
// assignment and records the new one.
func (s *SubjectService) Update(ctx context.Context, id string, req models.SubjectUpdateRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject code")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject code already exists")
	}

	previousTeacher := subject.TeacherID
	subject.Code = req.Code
	subject.Name = req.Name
	subject.TeacherID = req.TeacherID

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	if teacherChanged(previousTeacher, req.TeacherID) {
		if previousTeacher != nil {
			if err := s.teachers.DeactivateSubject(ctx, *previousTeacher, id); err != nil {
				s.logger.Warn("failed to deactivate previous assignment", zap.String("subject_id", id), zap.Error(err))
			}
		}
		if req.TeacherID != nil {
			if err := s.teachers.AssignSubject(ctx, &models.TeacherSubjectHistory{
				TeacherID: *req.TeacherID,
				SubjectID: id,
			}); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record subject assignment")
			}
		}
	}

	return subject, nil
}

// Delete removes a subject.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

func teacherChanged(previous, next *string) bool {
	switch {
	case previous == nil && next == nil:
		return false
	case previous == nil || next == nil:
		return true
	default:
		return *previous != *next
	}
}
