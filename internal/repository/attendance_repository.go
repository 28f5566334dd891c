package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Aar2284/University-Management-Sys/internal/models"
)

// AttendanceRepository manages persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create appends a single attendance record. Records are append-only; a
// second check-in on the same day produces a second row.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, student_id, subject_id, date, status, recorded_at) VALUES (:id, :student_id, :subject_id, :date, :status, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// CreateBatch appends one attendance record per student in a single
// transaction, used when a teacher submits a full sheet.
func (r *AttendanceRepository) CreateBatch(ctx context.Context, records []models.Attendance) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO attendance (id, student_id, subject_id, date, status, recorded_at) VALUES (:id, :student_id, :subject_id, :date, :status, :recorded_at)`
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].RecordedAt.IsZero() {
			records[i].RecordedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, records[i]); err != nil {
			return fmt.Errorf("create attendance batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance tx: %w", err)
	}
	return nil
}

// ExistsForDay reports whether the student already has a record for the
// subject on the given calendar day.
func (r *AttendanceRepository) ExistsForDay(ctx context.Context, studentID, subjectID string, day time.Time) (bool, error) {
	const query = `SELECT 1 FROM attendance WHERE student_id = $1 AND subject_id = $2 AND date = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID, day.Format("2006-01-02")); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance for day: %w", err)
	}
	return true, nil
}

// List returns attendance rows joined with subject metadata, newest first by
// default.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := "FROM attendance a JOIN subjects s ON s.id = a.subject_id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("a.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom.Format("2006-01-02"))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, filter.DateTo.Format("2006-01-02"))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.subject_id, a.date, a.status, a.recorded_at,
        s.name AS subject_name, s.code AS subject_code
        %s ORDER BY a.date %s, a.recorded_at %s LIMIT %d OFFSET %d`, base, order, order, size, offset)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// ListForStudent returns every attendance row for a student, optionally
// narrowed to one subject, without pagination. Feeds the summary math.
func (r *AttendanceRepository) ListForStudent(ctx context.Context, studentID, subjectID string) ([]models.Attendance, error) {
	query := `SELECT id, student_id, subject_id, date, status, recorded_at FROM attendance WHERE student_id = $1`
	args := []interface{}{studentID}
	if subjectID != "" {
		query += " AND subject_id = $2"
		args = append(args, subjectID)
	}
	query += " ORDER BY date ASC, recorded_at ASC"

	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance for student: %w", err)
	}
	return records, nil
}
