package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Aar2284/University-Management-Sys/internal/models"
)

// StudentRepository reads student profiles joined with their accounts.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM student_profiles sp JOIN users u ON u.id = sp.user_id AND u.active = TRUE"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.BatchYear != "" {
		conditions = append(conditions, fmt.Sprintf("sp.batch_year = $%d", len(args)+1))
		args = append(args, filter.BatchYear)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(sp.roll_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":   "u.full_name",
		"roll_number": "sp.roll_number",
		"created_at":  "sp.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "sp.roll_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT sp.user_id, sp.roll_number, sp.batch_year, sp.created_at, sp.updated_at,
        u.username, u.full_name, u.email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByUserID fetches a student detail for the given account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	const query = `SELECT sp.user_id, sp.roll_number, sp.batch_year, sp.created_at, sp.updated_at,
        u.username, u.full_name, u.email
        FROM student_profiles sp
        JOIN users u ON u.id = sp.user_id
        WHERE sp.user_id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user id: %w", err)
	}
	return &detail, nil
}

// ExistsByRollNumber checks if a roll number is already registered.
func (r *StudentRepository) ExistsByRollNumber(ctx context.Context, rollNumber string) (bool, error) {
	const query = `SELECT 1 FROM student_profiles WHERE roll_number = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, rollNumber); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return true, nil
}

// CountActive returns the number of active students.
func (r *StudentRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM student_profiles sp
        JOIN users u ON u.id = sp.user_id AND u.active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// ListRoster returns every active student ordered by roll number. Subjects
// are offered batch-wide, so the attendance sheet and grade roster for a
// subject is the full student list.
func (r *StudentRepository) ListRoster(ctx context.Context) ([]models.StudentDetail, error) {
	const query = `SELECT sp.user_id, sp.roll_number, sp.batch_year, sp.created_at, sp.updated_at,
        u.username, u.full_name, u.email
        FROM student_profiles sp
        JOIN users u ON u.id = sp.user_id AND u.active = TRUE
        ORDER BY sp.roll_number ASC`
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list student roster: %w", err)
	}
	return students, nil
}
