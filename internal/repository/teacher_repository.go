package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Aar2284/University-Management-Sys/internal/models"
)

// TeacherRepository manages teacher profiles and their subject history.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByUserID fetches a teacher profile for the given account.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.TeacherProfile, error) {
	const query = `SELECT user_id, department, created_at, updated_at FROM teacher_profiles WHERE user_id = $1`
	var profile models.TeacherProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by user id: %w", err)
	}
	return &profile, nil
}

// CreateProfile inserts a teacher profile for an existing account.
func (r *TeacherRepository) CreateProfile(ctx context.Context, profile *models.TeacherProfile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO teacher_profiles (user_id, department, created_at, updated_at) VALUES (:user_id, :department, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create teacher profile: %w", err)
	}
	return nil
}

// ListSubjectHistory returns the teacher's subject history joined with
// subject metadata, oldest assignment first. When activeOnly is set only the
// subjects currently taught are returned.
func (r *TeacherRepository) ListSubjectHistory(ctx context.Context, teacherID string, activeOnly bool) ([]models.SubjectHistoryEntry, error) {
	query := `SELECT h.id, h.teacher_id, h.subject_id, h.is_active, h.assigned_date,
        s.name AS subject_name, s.code AS subject_code
        FROM teacher_subject_history h
        JOIN subjects s ON s.id = h.subject_id
        WHERE h.teacher_id = $1`
	if activeOnly {
		query += " AND h.is_active = TRUE"
	}
	query += " ORDER BY h.assigned_date ASC"

	var entries []models.SubjectHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID); err != nil {
		return nil, fmt.Errorf("list subject history: %w", err)
	}
	return entries, nil
}

// AssignSubject records that a teacher teaches a subject. The pair is unique;
// re-assigning a previously deactivated subject reactivates the existing row
// and refreshes its assigned date.
func (r *TeacherRepository) AssignSubject(ctx context.Context, entry *models.TeacherSubjectHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.AssignedDate.IsZero() {
		entry.AssignedDate = time.Now().UTC()
	}
	entry.IsActive = true
	const query = `INSERT INTO teacher_subject_history (id, teacher_id, subject_id, is_active, assigned_date)
        VALUES (:id, :teacher_id, :subject_id, :is_active, :assigned_date)
        ON CONFLICT (teacher_id, subject_id) DO UPDATE SET is_active = TRUE, assigned_date = EXCLUDED.assigned_date`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("assign subject: %w", err)
	}
	return nil
}

// DeactivateSubject marks a teacher/subject pairing inactive without erasing
// the history row.
func (r *TeacherRepository) DeactivateSubject(ctx context.Context, teacherID, subjectID string) error {
	const query = `UPDATE teacher_subject_history SET is_active = FALSE WHERE teacher_id = $1 AND subject_id = $2`
	if _, err := r.db.ExecContext(ctx, query, teacherID, subjectID); err != nil {
		return fmt.Errorf("deactivate subject: %w", err)
	}
	return nil
}

// TeachesSubject reports whether a teacher currently teaches the subject.
func (r *TeacherRepository) TeachesSubject(ctx context.Context, teacherID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM teacher_subject_history WHERE teacher_id = $1 AND subject_id = $2 AND is_active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check subject assignment: %w", err)
	}
	return true, nil
}
