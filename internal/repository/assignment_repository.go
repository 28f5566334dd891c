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

// AssignmentRepository manages assignments and their PDF submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, title, subject_id, due_date, created_at) VALUES (:id, :title, :subject_id, :due_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID fetches an assignment by identifier.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, title, subject_id, due_date, created_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment by id: %w", err)
	}
	return &assignment, nil
}

// ListForStudent returns assignments across the given subjects joined with
// subject metadata and whether this student has submitted, soonest due first.
func (r *AssignmentRepository) ListForStudent(ctx context.Context, studentID string, subjectIDs []string) ([]models.AssignmentDetail, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	args := []interface{}{studentID}
	placeholders := make([]string, len(subjectIDs))
	for i, id := range subjectIDs {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT a.id, a.title, a.subject_id, a.due_date, a.created_at,
        s.name AS subject_name, s.code AS subject_code,
        EXISTS (SELECT 1 FROM submissions sub WHERE sub.assignment_id = a.id AND sub.student_id = $1) AS submitted
        FROM assignments a
        JOIN subjects s ON s.id = a.subject_id
        WHERE a.subject_id IN (%s)
        ORDER BY a.due_date ASC`, strings.Join(placeholders, ", "))

	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments for student: %w", err)
	}
	return details, nil
}

// ListBySubject returns the subject's assignments, newest first.
func (r *AssignmentRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Assignment, error) {
	const query = `SELECT id, title, subject_id, due_date, created_at FROM assignments WHERE subject_id = $1 ORDER BY created_at DESC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, subjectID); err != nil {
		return nil, fmt.Errorf("list assignments by subject: %w", err)
	}
	return assignments, nil
}

// UpsertSubmission stores a student's PDF submission. Resubmitting replaces
// the stored path and refreshes the timestamp.
func (r *AssignmentRepository) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, pdf_path, submitted_at)
        VALUES (:id, :assignment_id, :student_id, :pdf_path, :submitted_at)
        ON CONFLICT (assignment_id, student_id) DO UPDATE SET pdf_path = EXCLUDED.pdf_path, submitted_at = EXCLUDED.submitted_at`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// FindSubmission returns a student's submission for an assignment.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, pdf_path, submitted_at FROM submissions WHERE assignment_id = $1 AND student_id = $2`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// ListSubmissions returns all submissions for an assignment joined with
// student identity, ordered by roll number.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionRecord, error) {
	const query = `SELECT sub.id, sub.assignment_id, sub.student_id, sub.pdf_path, sub.submitted_at,
        a.title AS assignment_title, a.subject_id, s.code AS subject_code,
        u.full_name AS student_name, sp.roll_number
        FROM submissions sub
        JOIN assignments a ON a.id = sub.assignment_id
        JOIN subjects s ON s.id = a.subject_id
        JOIN users u ON u.id = sub.student_id
        JOIN student_profiles sp ON sp.user_id = sub.student_id
        WHERE sub.assignment_id = $1
        ORDER BY sp.roll_number ASC`
	var records []models.SubmissionRecord
	if err := r.db.SelectContext(ctx, &records, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return records, nil
}
