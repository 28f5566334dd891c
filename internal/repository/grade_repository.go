package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Aar2284/University-Management-Sys/internal/models"
)

// GradeRepository manages persistence for raw marks. One row exists per
// student/subject pair; writes overwrite the previous mark.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert stores a mark for a student/subject pair, replacing any prior mark.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, student_id, subject_id, marks, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :marks, :created_at, :updated_at)
        ON CONFLICT (student_id, subject_id) DO UPDATE SET marks = EXCLUDED.marks, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// List returns bare grade rows matching the filter.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	query := `SELECT id, student_id, subject_id, marks, created_at, updated_at FROM grades WHERE 1=1`
	var args []interface{}

	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if len(filter.SubjectIDIn) > 0 {
		placeholders := make([]string, len(filter.SubjectIDIn))
		for i, id := range filter.SubjectIDIn {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		query += fmt.Sprintf(" AND subject_id IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY updated_at DESC"

	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// ListByStudent returns the student's grades joined with subject metadata.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	const query = `SELECT g.id, g.student_id, g.subject_id, g.marks, g.created_at, g.updated_at,
        s.name AS subject_name, s.code AS subject_code
        FROM grades g
        JOIN subjects s ON s.id = g.subject_id
        WHERE g.student_id = $1
        ORDER BY s.code ASC`
	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list grades by student: %w", err)
	}
	return records, nil
}

// ListBySubject returns every grade in the subject joined with student
// identity, ordered by roll number. Used for teacher results and exports.
func (r *GradeRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.SubjectResultRow, error) {
	const query = `SELECT g.id, g.student_id, g.subject_id, g.marks, g.created_at, g.updated_at,
        u.full_name AS student_name, sp.roll_number
        FROM grades g
        JOIN users u ON u.id = g.student_id
        JOIN student_profiles sp ON sp.user_id = g.student_id
        WHERE g.subject_id = $1
        ORDER BY sp.roll_number ASC`
	var rows []models.SubjectResultRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID); err != nil {
		return nil, fmt.Errorf("list grades by subject: %w", err)
	}
	return rows, nil
}

// CohortMarks returns the raw marks of every student in the subject. The
// cohort defines the curve: letters are assigned relative to its maximum.
func (r *GradeRepository) CohortMarks(ctx context.Context, subjectID string) ([]float64, error) {
	const query = `SELECT marks FROM grades WHERE subject_id = $1`
	var marks []float64
	if err := r.db.SelectContext(ctx, &marks, query, subjectID); err != nil {
		return nil, fmt.Errorf("cohort marks: %w", err)
	}
	return marks, nil
}
