package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// Transition is the result of applying a target status to a ledger row.
type Transition struct {
	Enrollment models.Enrollment
	// Created is true when the row did not exist before.
	Created bool
	// CounterDelta is the change owed to the offering counter: +1, -1.
	CounterDelta int
}

// Transit is the single place ledger status changes are decided.
//
//	{no row}  -> ENROLLED  create row, +1
//	DROPPED   -> ENROLLED  reuse row, keep enrolled_at, +1
//	ENROLLED  -> DROPPED   -1
//	ENROLLED  -> ENROLLED  AlreadyEnrolled
//	{no row}  -> DROPPED   NotEnrolled
//	DROPPED   -> DROPPED   NotEnrolled
func Transit(current *models.Enrollment, studentID, offeringID string, target models.EnrollmentStatus, now time.Time) (Transition, error) {
	now = now.UTC()
	switch target {
	case models.EnrollmentStatusEnrolled:
		if current == nil {
			return Transition{
				Enrollment: models.Enrollment{
					ID:               uuid.NewString(),
					StudentID:        studentID,
					CourseOfferingID: offeringID,
					Status:           models.EnrollmentStatusEnrolled,
					EnrolledAt:       now,
					UpdatedAt:        now,
				},
				Created:      true,
				CounterDelta: 1,
			}, nil
		}
		if current.Status == models.EnrollmentStatusEnrolled {
			return Transition{}, appErrors.ErrAlreadyEnrolled
		}
		next := *current
		next.Status = models.EnrollmentStatusEnrolled
		next.UpdatedAt = advance(current.UpdatedAt, now)
		return Transition{Enrollment: next, CounterDelta: 1}, nil
	case models.EnrollmentStatusDropped:
		if current == nil || current.Status != models.EnrollmentStatusEnrolled {
			return Transition{}, appErrors.ErrNotEnrolled
		}
		next := *current
		next.Status = models.EnrollmentStatusDropped
		next.UpdatedAt = advance(current.UpdatedAt, now)
		return Transition{Enrollment: next, CounterDelta: -1}, nil
	default:
		return Transition{}, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
}

// advance returns now, or the smallest stored step after previous when the clock has not moved past it.
func advance(previous, now time.Time) time.Time {
	if now.After(previous) {
		return now
	}
	return previous.Add(time.Microsecond)
}
