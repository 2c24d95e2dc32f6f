package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type enrollmentActions interface {
	Enroll(ctx context.Context, actor models.StudentProfile, offeringID string) (*service.EnrollmentResult, error)
	Drop(ctx context.Context, actor models.StudentProfile, enrollmentID string) (*service.EnrollmentResult, error)
}

type openOfferingLister interface {
	ListOpenOfferings(ctx context.Context, actor models.StudentProfile) ([]models.OpenOffering, *models.Semester, error)
}

type historyReader interface {
	ForStudent(ctx context.Context, studentID string) (*models.EnrollmentHistory, error)
}

// EnrollmentHandler exposes the student enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentActions
	catalog     openOfferingLister
	history     historyReader
	validate    *validator.Validate
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentActions, catalog openOfferingLister, history historyReader, validate *validator.Validate) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, catalog: catalog, history: history, validate: defaultValidator(validate)}
}

// Enroll godoc
// @Summary Enroll in a course offering
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	actor, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalid(err, "invalid payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, invalid(err, "offering_id must be a valid id"))
		return
	}

	result, err := h.enrollments.Enroll(c.Request.Context(), *actor, req.OfferingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, dto.NewEnrollmentResponse(result.Enrollment, result.Created, result.CurrentEnrollment), nil, middleware.ExtractMeta(c))
}

// Drop godoc
// @Summary Drop an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/{id}/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	actor, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollmentID, err := pathID(c, h.validate, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.enrollments.Drop(c.Request.Context(), *actor, enrollmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewEnrollmentResponse(result.Enrollment, false, result.CurrentEnrollment), nil, middleware.ExtractMeta(c))
}

// MyCourses godoc
// @Summary Current and past enrollments of the caller
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/me [get]
func (h *EnrollmentHandler) MyCourses(c *gin.Context) {
	actor, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.history.ForStudent(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil, middleware.ExtractMeta(c))
}

// OpenOfferings godoc
// @Summary Offerings open for enrollment in the caller's department
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /offerings/open [get]
func (h *EnrollmentHandler) OpenOfferings(c *gin.Context) {
	actor, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	offerings, window, err := h.catalog.ListOpenOfferings(c.Request.Context(), *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.OpenOfferingsResponse{Semester: *window, Offerings: offerings}, nil, middleware.ExtractMeta(c))
}
