package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	"github.com/Aar2284/University-Management-Sys/internal/repository"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
	"github.com/Aar2284/University-Management-Sys/pkg/jobs"
)

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type reportQueue interface {
	Enqueue(job jobs.Job) error
}

type reportExporter interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	Cleanup(ttl time.Duration) ([]string, error)
}

// ReportConfig tunes the report pipeline.
type ReportConfig struct {
	MaxRetries      int
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportService owns the asynchronous export job lifecycle.
type ReportService struct {
	repo     reportRepository
	teachers gradeTeacherRepository
	exporter reportExporter
	queue    reportQueue
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	cfg      ReportConfig
}

// NewReportService constructs a ReportService.
func NewReportService(repo reportRepository, teachers gradeTeacherRepository, exporter reportExporter, queue reportQueue, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ReportConfig) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &ReportService{
		repo:     repo,
		teachers: teachers,
		exporter: exporter,
		queue:    queue,
		metrics:  metrics,
		validate: validate,
		logger:   logger,
		cfg:      cfg,
	}
}

// CreateJob validates the request, persists a queued job and dispatches it.
func (s *ReportService) CreateJob(ctx context.Context, userID string, role models.UserRole, req models.ReportRequest) (*models.ReportJobResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	if role == models.RoleTeacher {
		teaches, err := s.teachers.TeachesSubject(ctx, userID, req.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("check subject assignment: %w", err)
		}
		if !teaches {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is not assigned to you")
		}
	}

	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			SubjectID: req.SubjectID,
			StudentID: req.StudentID,
			Format:    req.Format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.dispatch(job); err != nil {
		s.logger.Error("report dispatch failed", zap.String("job_id", job.ID), zap.Error(err))
		s.markFailed(ctx, job.ID, "could not schedule export")
		return nil, appErrors.Clone(appErrors.ErrInternal, "could not schedule export")
	}

	return &models.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus returns job progress. Teachers may only inspect their own jobs.
func (s *ReportService) GetStatus(ctx context.Context, userID string, role models.UserRole, jobID string) (*models.ReportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, err
	}
	if role != models.RoleAdmin && job.CreatedBy != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report job belongs to another user")
	}
	return &models.ReportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil
}

// ResolveDownload validates a signed token and opens the underlying file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*os.File, *models.ReportJob, error) {
	jobID, relPath, _, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, nil, err
	}
	if job.Status != models.ReportStatusFinished {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "report is not ready")
	}
	if job.ResultURL == nil || path.Base(*job.ResultURL) != token {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match the report result")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report file no longer available")
	}
	return file, job, nil
}

// RecoverPendingJobs re-enqueues jobs left QUEUED by a previous process.
func (s *ReportService) RecoverPendingJobs(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.ListQueued(ctx, limit)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for i := range pending {
		if err := s.dispatch(&pending[i]); err != nil {
			s.logger.Warn("job recovery dispatch failed", zap.String("job_id", pending[i].ID), zap.Error(err))
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.logger.Info("recovered pending report jobs", zap.Int("count", recovered))
	}
	return recovered, nil
}

// StartCleanup launches a background loop that purges expired exports.
func (s *ReportService) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	urls, err := s.repo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("report cleanup query failed", zap.Error(err))
		return
	}
	deleted := 0
	for _, resultURL := range urls {
		token := resultURL[strings.LastIndex(resultURL, "/")+1:]
		if token == "" {
			continue
		}
		_, relPath, _, err := s.exporter.ParseToken(token, true)
		if err != nil {
			continue
		}
		if err := s.exporter.Delete(relPath); err == nil {
			deleted++
		}
	}
	orphans, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("report storage sweep failed", zap.Error(err))
	}
	if deleted > 0 || len(orphans) > 0 {
		s.logger.Info("report cleanup completed",
			zap.Int("expired_jobs", len(urls)),
			zap.Int("files_deleted", deleted),
			zap.Int("orphans_removed", len(orphans)))
	}
}

func (s *ReportService) validateRequest(req models.ReportRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return nil
}

func (s *ReportService) dispatch(job *models.ReportJob) error {
	return s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)})
}

func (s *ReportService) markFailed(ctx context.Context, jobID, message string) {
	status := models.ReportStatusFailed
	now := time.Now().UTC()
	update := repository.UpdateReportJobParams{Status: &status, ErrorMessage: &message, FinishedAt: &now}
	if err := s.repo.Update(ctx, jobID, update); err != nil {
		s.logger.Error("mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// ReportWorker executes queued export jobs.
type ReportWorker struct {
	repo       reportRepository
	exporter   reportExporter
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker bound to the repository and exporter.
func NewReportWorker(repo reportRepository, exporter reportExporter, metrics *MetricsService, logger *zap.Logger, maxRetries int) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{repo: repo, exporter: exporter, metrics: metrics, logger: logger, maxRetries: maxRetries}
}

// Handle processes one job. A returned error triggers a queue retry.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("queued job row missing", zap.String("job_id", job.ID))
			return nil
		}
		return err
	}
	if record.Status == models.ReportStatusFinished {
		return nil
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	started := time.Now()
	result, genErr := w.exporter.Generate(ctx, record)
	if genErr != nil {
		w.observe(record, "failed", time.Since(started))
		// last attempt: persist the failure instead of retrying again
		if job.Attempt >= w.maxRetries {
			failed := models.ReportStatusFailed
			message := genErr.Error()
			now := time.Now().UTC()
			update := repository.UpdateReportJobParams{Status: &failed, ErrorMessage: &message, FinishedAt: &now}
			if updateErr := w.repo.Update(ctx, job.ID, update); updateErr != nil {
				w.logger.Error("persist job failure", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
			w.logger.Error("report generation failed permanently",
				zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(genErr))
			return nil
		}
		w.logger.Warn("report generation failed",
			zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(genErr))
		return genErr
	}

	finished := models.ReportStatusFinished
	done := 100
	now := time.Now().UTC()
	update := repository.UpdateReportJobParams{
		Status:     &finished,
		Progress:   &done,
		ResultURL:  &result.URL,
		FinishedAt: &now,
	}
	if err := w.repo.Update(ctx, job.ID, update); err != nil {
		return err
	}
	w.observe(record, "finished", time.Since(started))
	w.logger.Info("report generated",
		zap.String("job_id", job.ID),
		zap.String("type", string(record.Type)),
		zap.String("format", string(record.Params.Format)),
		zap.Duration("took", time.Since(started)))
	return nil
}

func (w *ReportWorker) observe(record *models.ReportJob, status string, took time.Duration) {
	if w.metrics == nil {
		return
	}
	w.metrics.ObserveReportJob(string(record.Type), string(record.Params.Format), status, took)
}
