package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// EnrollmentTx is the unit of work scoped to one locked offering. Every
// ledger write and every counter write made through it commits or rolls back
// together.
type EnrollmentTx interface {
	// Offering returns the offering snapshot read under the row lock.
	Offering() models.OfferingDetail
	// LockStudent serialises concurrent actions of one student for the rest of the transaction.
	LockStudent(ctx context.Context, studentID string) error
	// FindEnrollment returns the student's ledger row for the locked offering, or nil.
	FindEnrollment(ctx context.Context, studentID string) (*models.Enrollment, error)
	SumEnrolledCredits(ctx context.Context, studentID, semesterID string) (int, error)
	InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	IncrementCounter(ctx context.Context) (int, error)
	DecrementCounter(ctx context.Context) (int, error)
	CountEnrolled(ctx context.Context) (int, error)
	ResetCounter(ctx context.Context, count int) error
}

const enrollmentColumns = `id, student_id, course_offering_id, status, enrolled_at, updated_at`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_offering_id, e.status, e.enrolled_at, e.updated_at,
        c.course_code, c.course_name, c.credit_points,
        s.id AS semester_id, s.name AS semester_name, s.start_date AS semester_start_date
FROM enrollments e
JOIN course_offerings o ON o.id = e.course_offering_id
JOIN courses c ON c.id = o.course_id
JOIN semesters s ON s.id = o.semester_id`

// EnrollmentRepository owns the enrollments ledger table.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// InOfferingTx opens a transaction, locks the offering row and runs fn. The
// offering is always locked before any student lock so concurrent actions
// acquire locks in the same order. A missing offering yields ErrNotFound.
func (r *EnrollmentRepository) InOfferingTx(ctx context.Context, offeringID string, fn func(tx EnrollmentTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := "SELECT " + offeringDetailColumns + " " + offeringDetailFrom + " WHERE o.id = $1 FOR UPDATE OF o"
	var offering models.OfferingDetail
	if err = tx.GetContext(ctx, &offering, query, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course offering not found")
		}
		return fmt.Errorf("lock course offering: %w", err)
	}

	if err = fn(&enrollmentTx{tx: tx, offering: offering}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// FindByID returns a ledger row or sql.ErrNoRows.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE id = $1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListDetailsByStudent returns every ledger row of the student, newest semester first.
func (r *EnrollmentRepository) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + `
WHERE e.student_id = $1
ORDER BY s.start_date DESC, e.updated_at DESC, c.course_code ASC`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return details, nil
}

// ListEnrolledOfferingIDs returns the offerings of a semester the student is ENROLLED in.
func (r *EnrollmentRepository) ListEnrolledOfferingIDs(ctx context.Context, studentID, semesterID string) ([]string, error) {
	const query = `SELECT e.course_offering_id
FROM enrollments e
JOIN course_offerings o ON o.id = e.course_offering_id
WHERE e.student_id = $1 AND o.semester_id = $2 AND e.status = $3`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID, semesterID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list enrolled offerings: %w", err)
	}
	return ids, nil
}

// ListRoster returns the ENROLLED students of an offering ordered by student number.
func (r *EnrollmentRepository) ListRoster(ctx context.Context, offeringID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, st.id AS student_id, st.student_number, st.full_name, e.enrolled_at
FROM enrollments e
JOIN students st ON st.id = e.student_id
WHERE e.course_offering_id = $1 AND e.status = $2
ORDER BY st.student_number ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, offeringID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list offering roster: %w", err)
	}
	return roster, nil
}

type enrollmentTx struct {
	tx       *sqlx.Tx
	offering models.OfferingDetail
}

func (t *enrollmentTx) Offering() models.OfferingDetail {
	return t.offering
}

func (t *enrollmentTx) LockStudent(ctx context.Context, studentID string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, studentID); err != nil {
		return fmt.Errorf("lock student: %w", err)
	}
	return nil
}

func (t *enrollmentTx) FindEnrollment(ctx context.Context, studentID string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE student_id = $1 AND course_offering_id = $2 FOR UPDATE"
	var enrollment models.Enrollment
	if err := t.tx.GetContext(ctx, &enrollment, query, studentID, t.offering.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

func (t *enrollmentTx) SumEnrolledCredits(ctx context.Context, studentID, semesterID string) (int, error) {
	const query = `SELECT COALESCE(SUM(c.credit_points), 0)
FROM enrollments e
JOIN course_offerings o ON o.id = e.course_offering_id
JOIN courses c ON c.id = o.course_id
WHERE e.student_id = $1 AND o.semester_id = $2 AND e.status = $3`
	var total int
	if err := t.tx.GetContext(ctx, &total, query, studentID, semesterID, models.EnrollmentStatusEnrolled); err != nil {
		return 0, fmt.Errorf("sum enrolled credits: %w", err)
	}
	return total, nil
}

func (t *enrollmentTx) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `INSERT INTO enrollments (id, student_id, course_offering_id, status, enrolled_at, updated_at)
VALUES (:id, :student_id, :course_offering_id, :status, :enrolled_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, enrollment.ID, enrollment.Status, enrollment.UpdatedAt); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) IncrementCounter(ctx context.Context) (int, error) {
	return incrementCounter(ctx, t.tx, t.offering.ID)
}

func (t *enrollmentTx) DecrementCounter(ctx context.Context) (int, error) {
	return decrementCounter(ctx, t.tx, t.offering.ID)
}

func (t *enrollmentTx) CountEnrolled(ctx context.Context) (int, error) {
	return countEnrolled(ctx, t.tx, t.offering.ID)
}

func (t *enrollmentTx) ResetCounter(ctx context.Context, count int) error {
	return resetCounter(ctx, t.tx, t.offering.ID, count)
}
