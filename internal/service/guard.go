package service

import (
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// ValidateEligibility runs the enroll checks that do not depend on the
// offering's live load, in order: student active, window open, offering open
// in the window semester, same department.
func ValidateEligibility(student models.StudentProfile, offering models.OfferingDetail, window *models.Semester, now time.Time) error {
	if !student.IsActive {
		return appErrors.ErrStudentInactive
	}
	if window == nil || !window.EnrollmentOpenOn(now) {
		return appErrors.ErrWindowClosed
	}
	if offering.SemesterID != window.ID || !offering.IsActive {
		return appErrors.ErrOfferingNotOpen
	}
	if offering.DepartmentID != student.DepartmentID {
		return appErrors.ErrDepartmentMismatch
	}
	return nil
}

// ValidateCapacity rejects a full offering. The counter must be read under
// the offering lock.
func ValidateCapacity(offering models.OfferingDetail) error {
	if offering.CurrentEnrollment >= offering.MaxCapacity {
		return appErrors.ErrCapacityFull
	}
	return nil
}

// ValidateCreditLoad checks the semester credit ceiling. enrolledCredits
// excludes the candidate offering; a ceiling of zero disables the check.
func ValidateCreditLoad(offering models.OfferingDetail, enrolledCredits, ceiling int) error {
	if ceiling > 0 && enrolledCredits+offering.CreditPoints > ceiling {
		return appErrors.ErrCreditLimitExceeded
	}
	return nil
}

// ValidateDrop accepts only ENROLLED rows, and only inside the window of the
// enrollment's own semester.
func ValidateDrop(enrollment *models.Enrollment, semester models.Semester, now time.Time) error {
	if enrollment == nil || enrollment.Status != models.EnrollmentStatusEnrolled {
		return appErrors.ErrNotEnrolled
	}
	if !semester.EnrollmentOpenOn(now) {
		return appErrors.ErrWindowClosed
	}
	return nil
}

// creditCeiling returns the program ceiling, or fallback when the program declares none.
func creditCeiling(student models.StudentProfile, fallback int) int {
	if student.MaxCreditsPerSemester > 0 {
		return student.MaxCreditsPerSemester
	}
	return fallback
}
