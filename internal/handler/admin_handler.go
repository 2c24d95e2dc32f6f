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
	"github.com/noah-isme/course-enrollment-api/pkg/export"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type adminEnrollmentReader interface {
	ListStudentsWithCounts(ctx context.Context, scope models.AdminScope, semesterID string, page, pageSize int) ([]models.StudentEnrollmentCount, *models.Pagination, error)
	StudentEnrollmentDetail(ctx context.Context, scope models.AdminScope, studentID string) (*service.StudentEnrollmentDetail, error)
	ExportRoster(ctx context.Context, scope models.AdminScope, offeringID string, format export.Format) (*service.RosterExport, error)
}

type reconcileScheduler interface {
	Schedule(ctx context.Context, offeringID string) (*jobs.Job, error)
}

// AdminHandler exposes the administrative enrollment views.
type AdminHandler struct {
	admin     adminEnrollmentReader
	reconcile reconcileScheduler
	validate  *validator.Validate
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin adminEnrollmentReader, reconcile reconcileScheduler, validate *validator.Validate) *AdminHandler {
	return &AdminHandler{admin: admin, reconcile: reconcile, validate: defaultValidator(validate)}
}

// ListStudents godoc
// @Summary Students in scope with their enrolled course count
// @Tags Admin
// @Produce json
// @Param semesterId query string false "Semester ID, defaults to the running semester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments [get]
func (h *AdminHandler) ListStudents(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.AdminStudentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalid(err, "invalid query"))
		return
	}
	if err := h.validate.Struct(query); err != nil {
		response.Error(c, invalid(err, "invalid query"))
		return
	}

	students, pagination, err := h.admin.ListStudentsWithCounts(c.Request.Context(), scope, query.SemesterID, query.Page, query.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination, middleware.ExtractMeta(c))
}

// StudentEnrollments godoc
// @Summary Enrollment history of one student in scope
// @Tags Admin
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/students/{id}/enrollments [get]
func (h *AdminHandler) StudentEnrollments(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	studentID, err := pathID(c, h.validate, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.admin.StudentEnrollmentDetail(c.Request.Context(), scope, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil, middleware.ExtractMeta(c))
}

// Roster godoc
// @Summary Export the enrolled students of an offering
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Offering ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /admin/offerings/{id}/roster [get]
func (h *AdminHandler) Roster(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	offeringID, err := pathID(c, h.validate, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.RosterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalid(err, "invalid query"))
		return
	}
	if err := h.validate.Struct(query); err != nil {
		response.Error(c, invalid(err, "format must be csv or pdf"))
		return
	}

	file, err := h.admin.ExportRoster(c.Request.Context(), scope, offeringID, export.Format(query.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Reconcile godoc
// @Summary Recount an offering's enrollment counter from the ledger
// @Tags Admin
// @Produce json
// @Param id path string true "Offering ID"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/offerings/{id}/reconcile [post]
func (h *AdminHandler) Reconcile(c *gin.Context) {
	offeringID, err := pathID(c, h.validate, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.reconcile.Schedule(c.Request.Context(), offeringID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.ReconcileJobResponse{JobID: job.ID, OfferingID: offeringID, QueuedAt: job.Enqueued})
}
