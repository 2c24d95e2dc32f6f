package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

var errUniqueViolation = &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func springSemester() models.Semester {
	return models.Semester{
		ID:                  "sem-1",
		Name:                "2024 Spring",
		StartDate:           day(2024, 2, 1),
		EndDate:             day(2024, 6, 30),
		EnrollmentOpenDate:  day(2024, 1, 1),
		EnrollmentCloseDate: day(2024, 1, 10),
		IsActive:            true,
	}
}

func offeringIn(sem models.Semester, id string, capacity, credits int) models.OfferingDetail {
	return models.OfferingDetail{
		CourseOffering: models.CourseOffering{
			ID:         id,
			CourseID:   "course-" + id,
			SemesterID: sem.ID,
			IsActive:   true,
		},
		CourseCode:          "CS-" + id,
		CourseName:          "Course " + id,
		DepartmentID:        "dept-cs",
		CreditPoints:        credits,
		MaxCapacity:         capacity,
		SemesterName:        sem.Name,
		EnrollmentOpenDate:  sem.EnrollmentOpenDate,
		EnrollmentCloseDate: sem.EnrollmentCloseDate,
	}
}

func student(id string) models.StudentProfile {
	return models.StudentProfile{
		Student: models.Student{
			ID:           id,
			UserID:       "user-" + id,
			DepartmentID: "dept-cs",
			IsActive:     true,
		},
		MaxCreditsPerSemester: 24,
	}
}

func newEnrollmentFixture(t *testing.T, now time.Time) (*EnrollmentService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.semesters = []models.Semester{springSemester()}
	svc := NewEnrollmentService(store, store, config.EnrollmentConfig{
		Timezone:             "UTC",
		TxTimeout:            time.Second,
		ConflictRetries:      1,
		DefaultCreditCeiling: 24,
	}, NewMetricsService(), zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, store
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, code, appErr.Code, "unexpected error: %v", err)
}

func TestEnrollmentServiceLastSeatScenario(t *testing.T) {
	svc, store := newEnrollmentFixture(t, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC))
	store.addOffering(offeringIn(springSemester(), "off-1", 1, 3))
	ctx := context.Background()
	a, b := student("stu-a"), student("stu-b")

	first, err := svc.Enroll(ctx, a, "off-1")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 1, store.offering("off-1").CurrentEnrollment)

	_, err = svc.Enroll(ctx, b, "off-1")
	assertCode(t, err, "CapacityFull")
	assert.Equal(t, 1, store.offering("off-1").CurrentEnrollment)

	_, err = svc.Drop(ctx, a, first.Enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, store.offering("off-1").CurrentEnrollment)

	second, err := svc.Enroll(ctx, b, "off-1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.CurrentEnrollment)
	assert.Equal(t, 1, store.offering("off-1").CurrentEnrollment)
}

func TestEnrollmentServiceEnrollDropReenrollReusesRow(t *testing.T) {
	svc, store := newEnrollmentFixture(t, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC))
	store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
	ctx := context.Background()
	a := student("stu-a")

	enrolled, err := svc.Enroll(ctx, a, "off-1")
	require.NoError(t, err)
	_, err = svc.Drop(ctx, a, enrolled.Enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, store.offering("off-1").CurrentEnrollment)

	svc.now = func() time.Time { return time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC) }
	again, err := svc.Enroll(ctx, a, "off-1")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, enrolled.Enrollment.ID, again.Enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, again.Enrollment.Status)
	assert.True(t, again.Enrollment.EnrolledAt.Equal(enrolled.Enrollment.EnrolledAt))
	assert.True(t, again.Enrollment.UpdatedAt.After(enrolled.Enrollment.UpdatedAt))
	assert.Equal(t, 1, store.offering("off-1").CurrentEnrollment)

	rows := store.enrollmentRows("stu-a", "off-1")
	assert.Len(t, rows, 1)
}

func TestEnrollmentServiceConcurrentEnrollNeverOverfills(t *testing.T) {
	svc, store := newEnrollmentFixture(t, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC))
	const capacity, attempts = 5, 25
	store.addOffering(offeringIn(springSemester(), "off-1", capacity, 3))

	var (
		mu       sync.Mutex
		accepted int
		full     int
		other    []error
	)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		actor := student(fmt.Sprintf("stu-%02d", i))
		g.Go(func() error {
			_, err := svc.Enroll(context.Background(), actor, "off-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, appErrors.ErrCapacityFull):
				full++
			default:
				other = append(other, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Empty(t, other)
	assert.Equal(t, capacity, accepted)
	assert.Equal(t, attempts-capacity, full)
	assert.Equal(t, capacity, store.offering("off-1").CurrentEnrollment)
}

func TestEnrollmentServiceConcurrentDuplicateEnrollKeepsOneRow(t *testing.T) {
	svc, store := newEnrollmentFixture(t, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC))
	store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
	a := student("stu-a")

	var (
		mu       sync.Mutex
		accepted int
		already  int
	)
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.Enroll(context.Background(), a, "off-1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if errors.Is(err, appErrors.ErrAlreadyEnrolled) {
				already++
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 7, already)
	assert.Len(t, store.enrollmentRows("stu-a", "off-1"), 1)
	assert.Equal(t, 1, store.offering("off-1").CurrentEnrollment)
}

func TestEnrollmentServiceRejections(t *testing.T) {
	otherSemester := springSemester()
	otherSemester.ID = "sem-2"

	tests := []struct {
		name    string
		now     time.Time
		actor   func() models.StudentProfile
		prepare func(store *fakeStore)
		code    string
	}{
		{
			name:  "inactive student",
			now:   day(2024, 1, 5),
			actor: func() models.StudentProfile { s := student("stu-a"); s.IsActive = false; return s },
			code:  "StudentInactive",
		},
		{
			name:  "before window",
			now:   day(2023, 12, 31),
			actor: func() models.StudentProfile { return student("stu-a") },
			code:  "WindowClosed",
		},
		{
			name:  "after window regardless of capacity",
			now:   day(2024, 1, 11),
			actor: func() models.StudentProfile { return student("stu-a") },
			code:  "WindowClosed",
		},
		{
			name:  "offering of another semester",
			now:   day(2024, 1, 5),
			actor: func() models.StudentProfile { return student("stu-a") },
			prepare: func(store *fakeStore) {
				store.addOffering(offeringIn(otherSemester, "off-1", 10, 3))
			},
			code: "OfferingNotOpen",
		},
		{
			name:  "inactive offering",
			now:   day(2024, 1, 5),
			actor: func() models.StudentProfile { return student("stu-a") },
			prepare: func(store *fakeStore) {
				o := offeringIn(springSemester(), "off-1", 10, 3)
				o.IsActive = false
				store.addOffering(o)
			},
			code: "OfferingNotOpen",
		},
		{
			name:  "other department",
			now:   day(2024, 1, 5),
			actor: func() models.StudentProfile { s := student("stu-a"); s.DepartmentID = "dept-math"; return s },
			code:  "DepartmentMismatch",
		},
		{
			name:  "missing offering",
			now:   day(2024, 1, 5),
			actor: func() models.StudentProfile { return student("stu-a") },
			prepare: func(store *fakeStore) {
				store.offeringMu = map[string]*sync.Mutex{}
			},
			code: "NotFound",
		},
		{
			name:  "credit ceiling",
			now:   day(2024, 1, 5),
			actor: func() models.StudentProfile { s := student("stu-a"); s.MaxCreditsPerSemester = 6; return s },
			prepare: func(store *fakeStore) {
				store.addOffering(offeringIn(springSemester(), "off-a", 10, 4))
				store.enrollments["enr-a"] = models.Enrollment{
					ID: "enr-a", StudentID: "stu-a", CourseOfferingID: "off-a", Status: models.EnrollmentStatusEnrolled,
				}
			},
			code: "CreditLimitExceeded",
		},
		{
			name:  "already enrolled",
			now:   day(2024, 1, 5),
			actor: func() models.StudentProfile { return student("stu-a") },
			prepare: func(store *fakeStore) {
				store.enrollments["enr-1"] = models.Enrollment{
					ID: "enr-1", StudentID: "stu-a", CourseOfferingID: "off-1", Status: models.EnrollmentStatusEnrolled,
				}
				o := store.offerings["off-1"]
				o.CurrentEnrollment = 1
				store.offerings["off-1"] = o
			},
			code: "AlreadyEnrolled",
		},
		{
			name:  "already enrolled in a full offering",
			now:   day(2024, 1, 5),
			actor: func() models.StudentProfile { return student("stu-a") },
			prepare: func(store *fakeStore) {
				store.addOffering(offeringIn(springSemester(), "off-1", 1, 3))
				store.enrollments["enr-1"] = models.Enrollment{
					ID: "enr-1", StudentID: "stu-a", CourseOfferingID: "off-1", Status: models.EnrollmentStatusEnrolled,
				}
				o := store.offerings["off-1"]
				o.CurrentEnrollment = 1
				store.offerings["off-1"] = o
			},
			code: "CapacityFull",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newEnrollmentFixture(t, tc.now)
			store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
			if tc.prepare != nil {
				tc.prepare(store)
			}
			before := store.offering("off-1").CurrentEnrollment

			_, err := svc.Enroll(context.Background(), tc.actor(), "off-1")
			assertCode(t, err, tc.code)
			assert.Equal(t, before, store.offering("off-1").CurrentEnrollment)
		})
	}
}

func TestEnrollmentServiceFallsBackToDefaultCeiling(t *testing.T) {
	svc, store := newEnrollmentFixture(t, day(2024, 1, 5))
	svc.cfg.DefaultCreditCeiling = 5
	store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
	store.addOffering(offeringIn(springSemester(), "off-2", 10, 3))
	actor := student("stu-a")
	actor.MaxCreditsPerSemester = 0

	_, err := svc.Enroll(context.Background(), actor, "off-1")
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), actor, "off-2")
	assertCode(t, err, "CreditLimitExceeded")
}

func TestEnrollmentServiceDropRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown enrollment", func(t *testing.T) {
		svc, store := newEnrollmentFixture(t, day(2024, 1, 5))
		store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
		_, err := svc.Drop(ctx, student("stu-a"), "missing")
		assertCode(t, err, "NotFound")
	})

	t.Run("enrollment of another student", func(t *testing.T) {
		svc, store := newEnrollmentFixture(t, day(2024, 1, 5))
		store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
		res, err := svc.Enroll(ctx, student("stu-a"), "off-1")
		require.NoError(t, err)

		_, err = svc.Drop(ctx, student("stu-b"), res.Enrollment.ID)
		assertCode(t, err, "NotFound")
		assert.Equal(t, 1, store.offering("off-1").CurrentEnrollment)
	})

	t.Run("already dropped", func(t *testing.T) {
		svc, store := newEnrollmentFixture(t, day(2024, 1, 5))
		store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
		res, err := svc.Enroll(ctx, student("stu-a"), "off-1")
		require.NoError(t, err)
		_, err = svc.Drop(ctx, student("stu-a"), res.Enrollment.ID)
		require.NoError(t, err)

		_, err = svc.Drop(ctx, student("stu-a"), res.Enrollment.ID)
		assertCode(t, err, "NotEnrolled")
		assert.Equal(t, 0, store.offering("off-1").CurrentEnrollment)
	})

	t.Run("own semester window closed", func(t *testing.T) {
		svc, store := newEnrollmentFixture(t, day(2024, 1, 5))
		store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
		res, err := svc.Enroll(ctx, student("stu-a"), "off-1")
		require.NoError(t, err)

		svc.now = func() time.Time { return day(2024, 2, 15) }
		_, err = svc.Drop(ctx, student("stu-a"), res.Enrollment.ID)
		assertCode(t, err, "WindowClosed")
		assert.Equal(t, 1, store.offering("off-1").CurrentEnrollment)
	})
}

func TestEnrollmentServiceRetriesConflictOnce(t *testing.T) {
	svc, store := newEnrollmentFixture(t, day(2024, 1, 5))
	store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
	store.failures = []error{errUniqueViolation}

	res, err := svc.Enroll(context.Background(), student("stu-a"), "off-1")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 2, store.txCount)
}

func TestEnrollmentServiceSurfacesPersistentConflict(t *testing.T) {
	svc, store := newEnrollmentFixture(t, day(2024, 1, 5))
	store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
	store.failures = []error{errUniqueViolation, &pq.Error{Code: "40001"}}

	_, err := svc.Enroll(context.Background(), student("stu-a"), "off-1")
	assertCode(t, err, "CONFLICT")
	assert.Equal(t, 2, store.txCount)
	assert.Equal(t, 0, store.offering("off-1").CurrentEnrollment)
}

func TestEnrollmentServiceInfrastructureFailureIsExplicit(t *testing.T) {
	svc, store := newEnrollmentFixture(t, day(2024, 1, 5))
	store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))
	store.failures = []error{errors.New("dial tcp: connection refused")}

	_, err := svc.Enroll(context.Background(), student("stu-a"), "off-1")
	assertCode(t, err, "INTERNAL_ERROR")
	assert.Contains(t, appErrors.FromError(err).Message, "no changes were applied")
	assert.Equal(t, 1, store.txCount)
}

func TestEnrollmentServiceUsesConfiguredTimezone(t *testing.T) {
	// 23:30 UTC on Jan 10 is already Jan 11 in Jakarta.
	svc, store := newEnrollmentFixture(t, time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC))
	svc.cfg.Timezone = "Asia/Jakarta"
	store.addOffering(offeringIn(springSemester(), "off-1", 10, 3))

	_, err := svc.Enroll(context.Background(), student("stu-a"), "off-1")
	assertCode(t, err, "WindowClosed")
}
