package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// The statements below are the only writers of course_offerings.current_enrollment.
// Every call runs inside the transaction that changes the matching ledger row.

// incrementCounter adds one seat only while the offering is below its course
// capacity. A guard miss surfaces as ErrCapacityFull.
func incrementCounter(ctx context.Context, tx *sqlx.Tx, offeringID string) (int, error) {
	const query = `UPDATE course_offerings o
SET current_enrollment = o.current_enrollment + 1
FROM courses c
WHERE o.id = $1 AND c.id = o.course_id AND o.current_enrollment < c.max_capacity
RETURNING o.current_enrollment`
	var current int
	if err := tx.GetContext(ctx, &current, query, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrCapacityFull, "course offering is full")
		}
		return 0, fmt.Errorf("increment offering counter: %w", err)
	}
	return current, nil
}

// decrementCounter releases one seat and never goes below zero.
func decrementCounter(ctx context.Context, tx *sqlx.Tx, offeringID string) (int, error) {
	const query = `UPDATE course_offerings
SET current_enrollment = GREATEST(current_enrollment - 1, 0)
WHERE id = $1
RETURNING current_enrollment`
	var current int
	if err := tx.GetContext(ctx, &current, query, offeringID); err != nil {
		return 0, fmt.Errorf("decrement offering counter: %w", err)
	}
	return current, nil
}

// countEnrolled recomputes the counter from the ledger.
func countEnrolled(ctx context.Context, tx *sqlx.Tx, offeringID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_offering_id = $1 AND status = 'ENROLLED'`
	var count int
	if err := tx.GetContext(ctx, &count, query, offeringID); err != nil {
		return 0, fmt.Errorf("count enrolled rows: %w", err)
	}
	return count, nil
}

// resetCounter overwrites the counter with a ledger-derived value.
func resetCounter(ctx context.Context, tx *sqlx.Tx, offeringID string, count int) error {
	const query = `UPDATE course_offerings SET current_enrollment = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, offeringID, count); err != nil {
		return fmt.Errorf("reset offering counter: %w", err)
	}
	return nil
}
