package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	"github.com/Aar2284/University-Management-Sys/internal/repository"
	appErrors "github.com/Aar2284/University-Management-Sys/pkg/errors"
	"github.com/Aar2284/University-Management-Sys/pkg/jobs"
)

type mockReportRepo struct {
	jobs    map[string]*models.ReportJob
	updates []repository.UpdateReportJobParams
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{jobs: map[string]*models.ReportJob{}}
}

func (m *mockReportRepo) Create(_ context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = "job-generated"
	}
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *mockReportRepo) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *job
	return &clone, nil
}

func (m *mockReportRepo) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	m.updates = append(m.updates, params)
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportRepo) ListQueued(_ context.Context, _ int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (m *mockReportRepo) DeleteFinishedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	var urls []string
	for id, job := range m.jobs {
		if job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			if job.ResultURL != nil {
				urls = append(urls, *job.ResultURL)
			}
			delete(m.jobs, id)
		}
	}
	return urls, nil
}

type mockQueue struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockExporter struct {
	result   *ExportResult
	genErr   error
	parseJob string
	parsePat string
	parseErr error
	deleted  []string
}

func (m *mockExporter) Generate(_ context.Context, _ *models.ReportJob) (*ExportResult, error) {
	if m.genErr != nil {
		return nil, m.genErr
	}
	return m.result, nil
}

func (m *mockExporter) ParseToken(_ string, _ bool) (string, string, time.Time, error) {
	if m.parseErr != nil {
		return "", "", time.Time{}, m.parseErr
	}
	return m.parseJob, m.parsePat, time.Now().Add(time.Hour), nil
}

func (m *mockExporter) Open(_ string) (*os.File, error) { return nil, os.ErrNotExist }

func (m *mockExporter) Delete(relPath string) error {
	m.deleted = append(m.deleted, relPath)
	return nil
}

func (m *mockExporter) Cleanup(_ time.Duration) ([]string, error) { return nil, nil }

func newReportService(repo *mockReportRepo, teaches bool, queue *mockQueue, exporter *mockExporter) *ReportService {
	return NewReportService(repo, &mockTeachesChecker{teaches: teaches}, exporter, queue, nil, nil, nil, ReportConfig{})
}

func TestCreateJobQueuesExport(t *testing.T) {
	repo := newMockReportRepo()
	queue := &mockQueue{}
	svc := newReportService(repo, true, queue, &mockExporter{})

	resp, err := svc.CreateJob(context.Background(), "teacher-1", models.RoleTeacher, models.ReportRequest{
		Type:      models.ReportTypeResults,
		SubjectID: "sub-1",
		Format:    models.ReportFormatCSV,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
	assert.Equal(t, "results", queue.enqueued[0].Type)

	stored := repo.jobs[resp.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "teacher-1", stored.CreatedBy)
	assert.Equal(t, "sub-1", stored.Params.SubjectID)
}

func TestCreateJobRejectsUnassignedTeacher(t *testing.T) {
	svc := newReportService(newMockReportRepo(), false, &mockQueue{}, &mockExporter{})

	_, err := svc.CreateJob(context.Background(), "teacher-1", models.RoleTeacher, models.ReportRequest{
		Type:      models.ReportTypeResults,
		SubjectID: "sub-1",
		Format:    models.ReportFormatCSV,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCreateJobValidatesRequest(t *testing.T) {
	svc := newReportService(newMockReportRepo(), true, &mockQueue{}, &mockExporter{})

	_, err := svc.CreateJob(context.Background(), "admin-1", models.RoleAdmin, models.ReportRequest{
		Type:      models.ReportTypeResults,
		SubjectID: "sub-1",
		Format:    models.ReportFormat("xlsx"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateJobMarksFailedWhenDispatchFails(t *testing.T) {
	repo := newMockReportRepo()
	queue := &mockQueue{err: errors.New("queue stopped")}
	svc := newReportService(repo, true, queue, &mockExporter{})

	_, err := svc.CreateJob(context.Background(), "admin-1", models.RoleAdmin, models.ReportRequest{
		Type:      models.ReportTypeAttendance,
		SubjectID: "sub-1",
		Format:    models.ReportFormatPDF,
	})
	require.Error(t, err)

	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestGetStatusEnforcesOwnership(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusProcessing, Progress: 10, CreatedBy: "teacher-1"}
	svc := newReportService(repo, true, &mockQueue{}, &mockExporter{})

	resp, err := svc.GetStatus(context.Background(), "teacher-1", models.RoleTeacher, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, resp.Status)

	_, err = svc.GetStatus(context.Background(), "teacher-2", models.RoleTeacher, "job-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// admins can inspect any job
	_, err = svc.GetStatus(context.Background(), "admin-1", models.RoleAdmin, "job-1")
	assert.NoError(t, err)
}

func TestGetStatusUnknownJob(t *testing.T) {
	svc := newReportService(newMockReportRepo(), true, &mockQueue{}, &mockExporter{})

	_, err := svc.GetStatus(context.Background(), "admin-1", models.RoleAdmin, "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestResolveDownloadRequiresFinishedJob(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusProcessing, CreatedBy: "teacher-1"}
	exporter := &mockExporter{parseJob: "job-1", parsePat: "reports/results.csv"}
	svc := newReportService(repo, true, &mockQueue{}, exporter)

	_, _, err := svc.ResolveDownload(context.Background(), "token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestResolveDownloadRejectsMismatchedToken(t *testing.T) {
	repo := newMockReportRepo()
	resultURL := "/api/v1/reports/download/another-token"
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusFinished, ResultURL: &resultURL}
	exporter := &mockExporter{parseJob: "job-1", parsePat: "reports/results.csv"}
	svc := newReportService(repo, true, &mockQueue{}, exporter)

	_, _, err := svc.ResolveDownload(context.Background(), "token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestResolveDownloadRejectsBadToken(t *testing.T) {
	exporter := &mockExporter{parseErr: errors.New("signature mismatch")}
	svc := newReportService(newMockReportRepo(), true, &mockQueue{}, exporter)

	_, _, err := svc.ResolveDownload(context.Background(), "tampered")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRecoverPendingJobs(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeResults, Status: models.ReportStatusQueued}
	repo.jobs["job-2"] = &models.ReportJob{ID: "job-2", Type: models.ReportTypeResults, Status: models.ReportStatusFinished}
	queue := &mockQueue{}
	svc := newReportService(repo, true, queue, &mockExporter{})

	recovered, err := svc.RecoverPendingJobs(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)
}

func TestWorkerHandleFinishesJob(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeResults,
		Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{SubjectID: "sub-1", Format: models.ReportFormatCSV},
	}
	exporter := &mockExporter{result: &ExportResult{
		RelativePath: "reports/results.csv",
		Token:        "tok",
		URL:          "/api/v1/reports/download/tok",
		Format:       models.ReportFormatCSV,
	}}
	worker := NewReportWorker(repo, exporter, nil, nil, 3)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "results"})
	require.NoError(t, err)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/reports/download/tok", *job.ResultURL)
	require.NotNil(t, job.FinishedAt)
}

func TestWorkerHandleRetriesOnFailure(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeResults,
		Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{SubjectID: "sub-1", Format: models.ReportFormatCSV},
	}
	exporter := &mockExporter{genErr: errors.New("render failed")}
	worker := NewReportWorker(repo, exporter, nil, nil, 3)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "results", Attempt: 1})
	require.Error(t, err)
	// not the last attempt, so the job stays retryable
	assert.Equal(t, models.ReportStatusProcessing, repo.jobs["job-1"].Status)
}

func TestWorkerHandleFailsPermanentlyOnLastAttempt(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeResults,
		Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{SubjectID: "sub-1", Format: models.ReportFormatCSV},
	}
	exporter := &mockExporter{genErr: errors.New("render failed")}
	worker := NewReportWorker(repo, exporter, nil, nil, 3)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "results", Attempt: 3})
	require.NoError(t, err)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "render failed", *job.ErrorMessage)
}

func TestWorkerHandleSkipsMissingRow(t *testing.T) {
	worker := NewReportWorker(newMockReportRepo(), &mockExporter{}, nil, nil, 3)

	err := worker.Handle(context.Background(), jobs.Job{ID: "vanished", Type: "results"})
	assert.NoError(t, err)
}
