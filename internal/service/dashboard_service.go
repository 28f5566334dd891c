package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
)

type dashboardStudentRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	CountActive(ctx context.Context) (int, error)
}

type dashboardTeacherRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.TeacherProfile, error)
	ListSubjectHistory(ctx context.Context, teacherID string, activeOnly bool) ([]models.SubjectHistoryEntry, error)
}

type dashboardUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type attendanceSummarizer interface {
	Summary(ctx context.Context, studentID, subjectID string) (*models.AttendanceSummary, error)
	Recent(ctx context.Context, studentID string, limit int) ([]models.AttendanceRecord, error)
}

type gradeAggregator interface {
	StudentGrades(ctx context.Context, studentID string) ([]models.GradeRecord, error)
	AverageFor(ctx context.Context, studentID string) (*int, error)
	SubjectAveragesFor(ctx context.Context, history []models.SubjectHistoryEntry) ([]models.SubjectAverage, error)
}

type dashboardAssignmentRepository interface {
	ListForStudent(ctx context.Context, studentID string, subjectIDs []string) ([]models.AssignmentDetail, error)
}

type dashboardSubjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Students    dashboardStudentRepository
	Teachers    dashboardTeacherRepository
	Users       dashboardUserRepository
	Attendance  attendanceSummarizer
	Grades      gradeAggregator
	Assignments dashboardAssignmentRepository
	Subjects    dashboardSubjectRepository
	Cache       *CacheService
	Logger      *zap.Logger
	CacheTTL    time.Duration
}

// DashboardService composes role-specific landing payloads. Payloads are
// cached per user and invalidated by TTL only; a short TTL keeps derived
// grades acceptably fresh.
type DashboardService struct {
	students    dashboardStudentRepository
	teachers    dashboardTeacherRepository
	users       dashboardUserRepository
	attendance  attendanceSummarizer
	grades      gradeAggregator
	assignments dashboardAssignmentRepository
	subjects    dashboardSubjectRepository
	cache       *CacheService
	logger      *zap.Logger
	cacheTTL    time.Duration
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{
		students:    params.Students,
		teachers:    params.Teachers,
		users:       params.Users,
		attendance:  params.Attendance,
		grades:      params.Grades,
		assignments: params.Assignments,
		subjects:    params.Subjects,
		cache:       params.Cache,
		logger:      logger,
		cacheTTL:    ttl,
	}
}

// Student returns the student dashboard payload and whether it was served
// from cache.
func (s *DashboardService) Student(ctx context.Context, userID string) (*models.StudentDashboard, bool, error) {
	cacheKey := fmt.Sprintf("dash:student:%s", userID)
	if s.cache != nil {
		var cached models.StudentDashboard
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	profile, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}

	summary, err := s.attendance.Summary(ctx, userID, "")
	if err != nil {
		return nil, false, err
	}

	recent, err := s.attendance.Recent(ctx, userID, 5)
	if err != nil {
		return nil, false, err
	}

	grades, err := s.grades.StudentGrades(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	average, err := s.grades.AverageFor(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	subjects, _, err := s.subjects.List(ctx, models.SubjectFilter{PageSize: 100})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	subjectIDs := make([]string, len(subjects))
	for i, subject := range subjects {
		subjectIDs[i] = subject.ID
	}

	assignments, err := s.assignments.ListForStudent(ctx, userID, subjectIDs)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	pending := 0
	for _, assignment := range assignments {
		if !assignment.Submitted {
			pending++
		}
	}

	dashboard := &models.StudentDashboard{
		Profile:            *profile,
		Attendance:         *summary,
		RecentAttendance:   recent,
		AverageMark:        average,
		Grades:             grades,
		Assignments:        assignments,
		PendingAssignments: pending,
	}
	s.persistCache(ctx, cacheKey, dashboard)
	return dashboard, false, nil
}

// Teacher returns the teacher dashboard payload and whether it was served
// from cache.
func (s *DashboardService) Teacher(ctx context.Context, userID string) (*models.TeacherDashboard, bool, error) {
	cacheKey := fmt.Sprintf("dash:teacher:%s", userID)
	if s.cache != nil {
		var cached models.TeacherDashboard
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	profile, err := s.teachers.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "teacher profile not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	active, err := s.teachers.ListSubjectHistory(ctx, userID, true)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active subjects")
	}

	history, err := s.teachers.ListSubjectHistory(ctx, userID, false)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject history")
	}

	averages, err := s.grades.SubjectAveragesFor(ctx, active)
	if err != nil {
		return nil, false, err
	}

	totalStudents, err := s.students.CountActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	dashboard := &models.TeacherDashboard{
		Profile: *profile,
		User: models.UserInfo{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
		ActiveSubjects:     active,
		ActiveSubjectCount: len(active),
		TotalStudents:      totalStudents,
		OverallAverage:     overallAverage(averages),
		SubjectAverages:    averages,
		SubjectHistory:     history,
	}
	s.persistCache(ctx, cacheKey, dashboard)
	return dashboard, false, nil
}

// InvalidateStudent drops the cached dashboard for one student.
func (s *DashboardService) InvalidateStudent(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dash:student:%s", userID)); err != nil {
		s.logger.Warn("failed to invalidate student dashboard", zap.String("user_id", userID), zap.Error(err))
	}
}

// overallAverage is the rounded mean across subject averages, nil when the
// teacher has no active subjects.
func overallAverage(averages []models.SubjectAverage) *int {
	if len(averages) == 0 {
		return nil
	}
	sum := 0
	for _, avg := range averages {
		sum += avg.Average
	}
	mean := int(math.Round(float64(sum) / float64(len(averages))))
	return &mean
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
