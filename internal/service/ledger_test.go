package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

func TestTransit(t *testing.T) {
	enrolledAt := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	row := func(status models.EnrollmentStatus) *models.Enrollment {
		return &models.Enrollment{
			ID: "enr-1", StudentID: "stu-1", CourseOfferingID: "off-1",
			Status: status, EnrolledAt: enrolledAt, UpdatedAt: enrolledAt,
		}
	}

	tests := []struct {
		name    string
		current *models.Enrollment
		target  models.EnrollmentStatus
		delta   int
		created bool
		err     error
	}{
		{name: "first enroll", target: models.EnrollmentStatusEnrolled, delta: 1, created: true},
		{name: "re-enroll after drop", current: row(models.EnrollmentStatusDropped), target: models.EnrollmentStatusEnrolled, delta: 1},
		{name: "drop", current: row(models.EnrollmentStatusEnrolled), target: models.EnrollmentStatusDropped, delta: -1},
		{name: "enroll twice", current: row(models.EnrollmentStatusEnrolled), target: models.EnrollmentStatusEnrolled, err: appErrors.ErrAlreadyEnrolled},
		{name: "drop without row", target: models.EnrollmentStatusDropped, err: appErrors.ErrNotEnrolled},
		{name: "drop twice", current: row(models.EnrollmentStatusDropped), target: models.EnrollmentStatusDropped, err: appErrors.ErrNotEnrolled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transit(tc.current, "stu-1", "off-1", tc.target, now)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.delta, got.CounterDelta)
			assert.Equal(t, tc.created, got.Created)
			assert.Equal(t, tc.target, got.Enrollment.Status)
			assert.True(t, got.Enrollment.UpdatedAt.Equal(now))
			if tc.current != nil {
				assert.Equal(t, tc.current.ID, got.Enrollment.ID)
				assert.True(t, got.Enrollment.EnrolledAt.Equal(enrolledAt))
			} else {
				assert.NotEmpty(t, got.Enrollment.ID)
				assert.True(t, got.Enrollment.EnrolledAt.Equal(now))
			}
		})
	}
}

func TestTransitAdvancesUpdatedAtOnStalledClock(t *testing.T) {
	stamp := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	current := &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusEnrolled, EnrolledAt: stamp, UpdatedAt: stamp}

	got, err := Transit(current, "stu-1", "off-1", models.EnrollmentStatusDropped, stamp)
	require.NoError(t, err)
	assert.True(t, got.Enrollment.UpdatedAt.After(stamp))
}

func TestTransitRejectsUnknownStatus(t *testing.T) {
	_, err := Transit(nil, "stu-1", "off-1", models.EnrollmentStatus("WAITLISTED"), time.Now())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
