package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aar2284/University-Management-Sys/internal/models"
	"github.com/Aar2284/University-Management-Sys/pkg/export"
	"github.com/Aar2284/University-Management-Sys/pkg/storage"
)

type exportGradeRepository interface {
	ListBySubject(ctx context.Context, subjectID string) ([]models.SubjectResultRow, error)
}

type exportSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type exportStudentRepository interface {
	ListRoster(ctx context.Context) ([]models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

type exportAttendanceRepository interface {
	ListForStudent(ctx context.Context, studentID, subjectID string) ([]models.Attendance, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix   string
	ResultTTL   time.Duration
	DedupeDaily bool
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	grades     exportGradeRepository
	subjects   exportSubjectRepository
	students   exportStudentRepository
	attendance exportAttendanceRepository
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(grades exportGradeRepository, subjects exportSubjectRepository, students exportStudentRepository, attendance exportAttendanceRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		grades:     grades,
		subjects:   subjects,
		students:   students,
		attendance: attendance,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(ctx, job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/reports/download/%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeResults:
		return s.buildResultsDataset(ctx, job.Params)
	case models.ReportTypeAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildResultsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	subject, err := s.subjects.FindByID(ctx, params.SubjectID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load subject: %w", err)
	}
	rows, err := s.grades.ListBySubject(ctx, params.SubjectID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	cohort := make([]float64, len(rows))
	for i, row := range rows {
		cohort[i] = row.Marks
	}

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		derived := ComputeRelativeGrade(row.Marks, cohort)
		dataRows = append(dataRows, map[string]string{
			"Roll Number": row.RollNumber,
			"Student":     row.StudentName,
			"Marks":       fmt.Sprintf("%.2f", row.Marks),
			"Grade":       string(derived.Letter),
			"Points":      fmt.Sprintf("%.1f", derived.Point),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Roll Number", "Student", "Marks", "Grade", "Points"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Results %s (%s)", subject.Name, subject.Code)
	return dataset, title, nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	subject, err := s.subjects.FindByID(ctx, params.SubjectID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load subject: %w", err)
	}

	var roster []models.StudentDetail
	if params.StudentID != nil && *params.StudentID != "" {
		detail, err := s.students.FindByUserID(ctx, *params.StudentID)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("load student: %w", err)
		}
		roster = []models.StudentDetail{*detail}
	} else {
		roster, err = s.students.ListRoster(ctx)
		if err != nil {
			return export.Dataset{}, "", err
		}
	}

	dataRows := make([]map[string]string, 0, len(roster))
	for _, student := range roster {
		records, err := s.attendance.ListForStudent(ctx, student.UserID, params.SubjectID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		summary := AttendanceRate(records, s.cfg.DedupeDaily)
		dataRows = append(dataRows, map[string]string{
			"Roll Number":    student.RollNumber,
			"Student":        student.FullName,
			"Attended":       fmt.Sprintf("%d", summary.Attended),
			"Total":          fmt.Sprintf("%d", summary.Total),
			"Attendance (%)": fmt.Sprintf("%d", summary.Percent),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Roll Number", "Student", "Attended", "Total", "Attendance (%)"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Attendance %s (%s)", subject.Name, subject.Code)
	return dataset, title, nil
}

func (s *ExportService) buildFilename(ctx context.Context, job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	subjectPart := "na"
	if subject, err := s.subjects.FindByID(ctx, job.Params.SubjectID); err == nil {
		subjectPart = sanitizeFilename(strings.ToLower(subject.Code))
	}
	return fmt.Sprintf("reports/%s_%s_%s.%s", strings.ToLower(string(job.Type)), subjectPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
