package dto

import (
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// EnrollRequest asks for a seat in an offering.
type EnrollRequest struct {
	OfferingID string `json:"offering_id" validate:"required,uuid"`
}

// EnrollmentResponse reports an accepted enroll or drop.
type EnrollmentResponse struct {
	ID                string                  `json:"id"`
	StudentID         string                  `json:"student_id"`
	OfferingID        string                  `json:"offering_id"`
	Status            models.EnrollmentStatus `json:"status"`
	EnrolledAt        time.Time               `json:"enrolled_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	Created           bool                    `json:"created"`
	CurrentEnrollment int                     `json:"current_enrollment"`
}

// NewEnrollmentResponse maps a ledger row and the counter after the action.
func NewEnrollmentResponse(enrollment models.Enrollment, created bool, current int) EnrollmentResponse {
	return EnrollmentResponse{
		ID:                enrollment.ID,
		StudentID:         enrollment.StudentID,
		OfferingID:        enrollment.CourseOfferingID,
		Status:            enrollment.Status,
		EnrolledAt:        enrollment.EnrolledAt,
		UpdatedAt:         enrollment.UpdatedAt,
		Created:           created,
		CurrentEnrollment: current,
	}
}

// OpenOfferingsResponse lists the offerings a student can act on in the open window.
type OpenOfferingsResponse struct {
	Semester  models.Semester       `json:"semester"`
	Offerings []models.OpenOffering `json:"offerings"`
}

// AdminStudentsQuery binds the admin student listing filters.
type AdminStudentsQuery struct {
	SemesterID string `form:"semesterId" validate:"omitempty,uuid"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

// RosterQuery binds the roster export format.
type RosterQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// ReconcileJobResponse acknowledges a queued counter reconciliation.
type ReconcileJobResponse struct {
	JobID      string    `json:"job_id"`
	OfferingID string    `json:"offering_id"`
	QueuedAt   time.Time `json:"queued_at"`
}
