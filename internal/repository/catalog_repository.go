package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const offeringDetailColumns = `o.id, o.course_id, o.semester_id, o.current_enrollment, o.is_active, o.created_at,
        c.course_code, c.course_name, c.department_id, c.credit_points, c.max_capacity,
        s.name AS semester_name, s.enrollment_open_date, s.enrollment_close_date`

const offeringDetailFrom = `FROM course_offerings o
JOIN courses c ON c.id = o.course_id
JOIN semesters s ON s.id = o.semester_id`

const semesterColumns = `id, name, start_date, end_date, enrollment_open_date, enrollment_close_date, is_active, created_at`

// CatalogRepository provides read-only access to semesters and course offerings.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListSemesters returns semesters ordered by start date. activeOnly drops is_active = FALSE rows.
func (r *CatalogRepository) ListSemesters(ctx context.Context, activeOnly bool) ([]models.Semester, error) {
	query := "SELECT " + semesterColumns + " FROM semesters"
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY start_date ASC, id ASC"

	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindSemesterByID returns a semester or sql.ErrNoRows.
func (r *CatalogRepository) FindSemesterByID(ctx context.Context, id string) (*models.Semester, error) {
	query := "SELECT " + semesterColumns + " FROM semesters WHERE id = $1"
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindOfferingByID returns an offering joined with course and semester, or sql.ErrNoRows.
func (r *CatalogRepository) FindOfferingByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	query := "SELECT " + offeringDetailColumns + " " + offeringDetailFrom + " WHERE o.id = $1"
	var offering models.OfferingDetail
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// CurrentEnrollments reads the live seat counters of the given offerings.
// Offerings that no longer exist are absent from the result.
func (r *CatalogRepository) CurrentEnrollments(ctx context.Context, ids []string) (map[string]int, error) {
	counts := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	const query = `SELECT id, current_enrollment FROM course_offerings WHERE id = ANY($1)`
	var rows []struct {
		ID                string `db:"id"`
		CurrentEnrollment int    `db:"current_enrollment"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("read offering counters: %w", err)
	}
	for _, row := range rows {
		counts[row.ID] = row.CurrentEnrollment
	}
	return counts, nil
}

// ListOfferings returns offerings matching the filter ordered by course code.
func (r *CatalogRepository) ListOfferings(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("o.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("c.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "o.is_active = TRUE")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := "SELECT " + offeringDetailColumns + " " + offeringDetailFrom + clause + " ORDER BY c.course_code ASC"
	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	return offerings, nil
}
