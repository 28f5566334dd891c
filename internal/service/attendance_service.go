package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type attendanceRepository interface {
	Create(ctx context.Context, record *models.Attendance) error
	CreateBatch(ctx context.Context, records []models.Attendance) error
	ExistsForDay(ctx context.Context, studentID, subjectID string, day time.Time) (bool, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	ListForStudent(ctx context.Context, studentID, subjectID string) ([]models.Attendance, error)
}

type attendanceSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type attendanceTeacherRepository interface {
	TeachesSubject(ctx context.Context, teacherID, subjectID string) (bool, error)
}

// AttendanceService records and aggregates attendance.
type AttendanceService struct {
	repo        attendanceRepository
	subjects    attendanceSubjectRepository
	teachers    attendanceTeacherRepository
	validator   *validator.Validate
	logger      *zap.Logger
	dedupeDaily bool
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, subjects attendanceSubjectRepository, teachers attendanceTeacherRepository, validate *validator.Validate, logger *zap.Logger, dedupeDaily bool) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{repo: repo, subjects: subjects, teachers: teachers, validator: validate, logger: logger, dedupeDaily: dedupeDaily}
}

// RecordSheet persists a teacher-submitted attendance sheet. The teacher must
// actively teach the subject. With daily dedupe enabled, students who already
// have a record for the day are skipped; otherwise every entry appends.
func (s *AttendanceService) RecordSheet(ctx context.Context, teacherID string, req models.AttendanceSheetRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance sheet payload")
	}

	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	if err := s.requireTeaches(ctx, teacherID, req.SubjectID); err != nil {
		return 0, err
	}

	records := make([]models.Attendance, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if s.dedupeDaily {
			exists, err := s.repo.ExistsForDay(ctx, entry.StudentID, req.SubjectID, day)
			if err != nil {
				return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
			}
			if exists {
				continue
			}
		}
		records = append(records, models.Attendance{
			StudentID: entry.StudentID,
			SubjectID: req.SubjectID,
			Date:      day,
			Status:    entry.Status,
		})
	}

	if err := s.repo.CreateBatch(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance sheet")
	}

	s.logger.Info("attendance sheet recorded",
		zap.String("subject_id", req.SubjectID),
		zap.String("date", req.Date),
		zap.Int("records", len(records)))
	return len(records), nil
}

// CheckIn records a present mark for the student in the named subject, dated
// today. With daily dedupe enabled a second same-day check-in conflicts.
func (s *AttendanceService) CheckIn(ctx context.Context, studentID string, req models.CheckInRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if s.dedupeDaily {
		exists, err := s.repo.ExistsForDay(ctx, studentID, req.SubjectID, day)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for today")
		}
	}

	record := &models.Attendance{
		StudentID: studentID,
		SubjectID: req.SubjectID,
		Date:      day,
		Status:    models.AttendanceStatusPresent,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}
	return record, nil
}

// Recent returns the student's most recent attendance rows, newest first.
func (s *AttendanceService) Recent(ctx context.Context, studentID string, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	records, _, err := s.repo.List(ctx, models.AttendanceFilter{
		StudentID: studentID,
		Page:      1,
		PageSize:  limit,
		SortOrder: "desc",
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent attendance")
	}
	return records, nil
}

// List returns attendance rows for the filter with the total count.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, total, nil
}

// Summary aggregates a student's attendance into attended/total/percent,
// optionally narrowed to one subject.
func (s *AttendanceService) Summary(ctx context.Context, studentID, subjectID string) (*models.AttendanceSummary, error) {
	records, err := s.repo.ListForStudent(ctx, studentID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	summary := AttendanceRate(records, s.dedupeDaily)
	return &summary, nil
}

func (s *AttendanceService) requireTeaches(ctx context.Context, teacherID, subjectID string) error {
	teaches, err := s.teachers.TeachesSubject(ctx, teacherID, subjectID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
	}
	if !teaches {
		return appErrors.Clone(appErrors.ErrForbidden, "subject is not taught by this teacher")
	}
	return nil
}
