package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const studentProfileColumns = `st.id, st.user_id, st.student_number, st.full_name, st.department_id, st.degree_program_id,
        st.enrollment_year, st.is_active, st.created_at,
        d.name AS department_name, dp.name AS degree_program_name, dp.max_credits_per_semester`

const studentProfileFrom = `FROM students st
JOIN departments d ON d.id = st.department_id
JOIN degree_programs dp ON dp.id = st.degree_program_id`

// StudentRepository reads student snapshots for the enrollment core.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByUserID resolves the student bound to an identity user, or sql.ErrNoRows.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	query := "SELECT " + studentProfileColumns + " " + studentProfileFrom + " WHERE st.user_id = $1"
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByID returns a student profile, or sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	query := "SELECT " + studentProfileColumns + " " + studentProfileFrom + " WHERE st.id = $1"
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListWithEnrollmentCounts returns active students annotated with their ENROLLED
// count in filter.SemesterID. An empty semester yields zero counts.
func (r *StudentRepository) ListWithEnrollmentCounts(ctx context.Context, filter models.StudentFilter) ([]models.StudentEnrollmentCount, int, error) {
	var args []interface{}
	countColumn := "0 AS enrolled_count"
	if filter.SemesterID != "" {
		args = append(args, filter.SemesterID, models.EnrollmentStatusEnrolled)
		countColumn = `(SELECT COUNT(*) FROM enrollments e
            JOIN course_offerings o ON o.id = e.course_offering_id
            WHERE e.student_id = st.id AND o.semester_id = $1 AND e.status = $2) AS enrolled_count`
	}

	where := " WHERE st.is_active = TRUE"
	countWhere := where
	var countArgs []interface{}
	if filter.DepartmentID != "" {
		where += fmt.Sprintf(" AND st.department_id = $%d", len(args)+1)
		args = append(args, filter.DepartmentID)
		countWhere += " AND st.department_id = $1"
		countArgs = append(countArgs, filter.DepartmentID)
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

	query := fmt.Sprintf("SELECT %s, %s %s%s ORDER BY st.student_number ASC LIMIT %d OFFSET %d",
		studentProfileColumns, countColumn, studentProfileFrom, where, size, offset)

	var students []models.StudentEnrollmentCount
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students with enrollment counts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students st"+countWhere, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}
