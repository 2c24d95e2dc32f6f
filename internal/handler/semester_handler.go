package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type semesterResolver interface {
	EnrollmentWindow(ctx context.Context) (*models.Semester, error)
	RunningSemester(ctx context.Context) (*models.Semester, error)
}

// SemesterHandler exposes the two semester resolutions. A null payload means
// no semester matches today.
type SemesterHandler struct {
	semesters semesterResolver
}

// NewSemesterHandler constructs SemesterHandler.
func NewSemesterHandler(semesters semesterResolver) *SemesterHandler {
	return &SemesterHandler{semesters: semesters}
}

// EnrollmentWindow godoc
// @Summary Semester currently open for enrollment actions
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters/enrollment-window [get]
func (h *SemesterHandler) EnrollmentWindow(c *gin.Context) {
	semester, err := h.semesters.EnrollmentWindow(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// RunningSemester godoc
// @Summary Semester whose dates contain today
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters/running [get]
func (h *SemesterHandler) RunningSemester(c *gin.Context) {
	semester, err := h.semesters.RunningSemester(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}
