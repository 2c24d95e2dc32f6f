package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/export"
)

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
	ListWithEnrollmentCounts(ctx context.Context, filter models.StudentFilter) ([]models.StudentEnrollmentCount, int, error)
}

type rosterReader interface {
	ListRoster(ctx context.Context, offeringID string) ([]models.RosterEntry, error)
}

type semesterDirectory interface {
	RunningSemester(ctx context.Context) (*models.Semester, error)
	FindOffering(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type studentHistory interface {
	ForStudent(ctx context.Context, studentID string) (*models.EnrollmentHistory, error)
}

// StudentEnrollmentDetail is a student profile with their enrollment history.
type StudentEnrollmentDetail struct {
	Student models.StudentProfile   `json:"student"`
	History models.EnrollmentHistory `json:"history"`
}

// RosterExport is a rendered roster file.
type RosterExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// AdminEnrollmentService serves the administrative enrollment views. Every
// method takes the scope derived at the boundary and never re-reads roles.
type AdminEnrollmentService struct {
	students studentDirectory
	roster   rosterReader
	catalog  semesterDirectory
	history  studentHistory
	logger   *zap.Logger
}

// NewAdminEnrollmentService constructs AdminEnrollmentService.
func NewAdminEnrollmentService(students studentDirectory, roster rosterReader, catalog semesterDirectory, history studentHistory, logger *zap.Logger) *AdminEnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminEnrollmentService{students: students, roster: roster, catalog: catalog, history: history, logger: logger}
}

// ListStudentsWithCounts lists active students in scope with their ENROLLED
// count in semesterID, defaulting to the running semester.
func (s *AdminEnrollmentService) ListStudentsWithCounts(ctx context.Context, scope models.AdminScope, semesterID string, page, pageSize int) ([]models.StudentEnrollmentCount, *models.Pagination, error) {
	if semesterID == "" {
		running, err := s.catalog.RunningSemester(ctx)
		if err != nil {
			return nil, nil, err
		}
		if running != nil {
			semesterID = running.ID
		}
	}

	filter := models.StudentFilter{
		DepartmentID: scope.DepartmentID,
		SemesterID:   semesterID,
		Page:         page,
		PageSize:     pageSize,
	}
	students, total, err := s.students.ListWithEnrollmentCounts(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return students, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// StudentEnrollmentDetail returns one student in scope with their history.
// Students outside the scope are reported as NotFound.
func (s *AdminEnrollmentService) StudentEnrollmentDetail(ctx context.Context, scope models.AdminScope, studentID string) (*StudentEnrollmentDetail, error) {
	var (
		profile *models.StudentProfile
		history *models.EnrollmentHistory
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.students.FindByID(gctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = s.history.ForStudent(gctx, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !scope.Allows(profile.DepartmentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return &StudentEnrollmentDetail{Student: *profile, History: *history}, nil
}

// ExportRoster renders the ENROLLED students of an offering in scope.
func (s *AdminEnrollmentService) ExportRoster(ctx context.Context, scope models.AdminScope, offeringID string, format export.Format) (*RosterExport, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}

	offering, err := s.catalog.FindOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(offering.DepartmentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course offering not found")
	}

	entries, err := s.roster.ListRoster(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	body, err := renderer.Render(rosterDataset(*offering, entries))
	if err != nil {
		s.logger.Error("failed to render roster", zap.String("offering_id", offeringID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &RosterExport{
		Filename:    strings.ReplaceAll(fmt.Sprintf("roster-%s-%s.%s", offering.CourseCode, offering.SemesterName, renderer.Extension()), " ", "_"),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func rosterDataset(offering models.OfferingDetail, entries []models.RosterEntry) export.Dataset {
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			entry.StudentNumber,
			entry.FullName,
			entry.EnrolledAt.UTC().Format(time.DateOnly),
		})
	}
	return export.Dataset{
		Title:    fmt.Sprintf("%s %s", offering.CourseCode, offering.CourseName),
		Subtitle: fmt.Sprintf("%s | %d/%d enrolled", offering.SemesterName, len(entries), offering.MaxCapacity),
		Headers:  []string{"No", "Student Number", "Full Name", "Enrolled At"},
		Rows:     rows,
	}
}
