package service

import (
	"context"
	"sort"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type studentEnrollmentReader interface {
	ListDetailsByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type runningSemesterResolver interface {
	RunningSemester(ctx context.Context) (*models.Semester, error)
}

// HistoryService builds the "my courses" view of a student's ledger rows.
type HistoryService struct {
	enrollments studentEnrollmentReader
	semesters   runningSemesterResolver
}

// NewHistoryService constructs HistoryService.
func NewHistoryService(enrollments studentEnrollmentReader, semesters runningSemesterResolver) *HistoryService {
	return &HistoryService{enrollments: enrollments, semesters: semesters}
}

// ForStudent returns the student's enrollments split into the running semester and the rest.
func (s *HistoryService) ForStudent(ctx context.Context, studentID string) (*models.EnrollmentHistory, error) {
	running, err := s.semesters.RunningSemester(ctx)
	if err != nil {
		return nil, err
	}
	details, err := s.enrollments.ListDetailsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	history := BuildHistory(details, running)
	return &history, nil
}

// BuildHistory puts every row of the running semester in Current, newest
// enrollment first, and groups the others by semester, latest start first.
func BuildHistory(details []models.EnrollmentDetail, running *models.Semester) models.EnrollmentHistory {
	history := models.EnrollmentHistory{
		RunningSemester: running,
		Current:         []models.EnrollmentDetail{},
		Past:            []models.SemesterEnrollments{},
	}

	index := make(map[string]int)
	for _, detail := range details {
		if running != nil && detail.SemesterID == running.ID {
			history.Current = append(history.Current, detail)
			continue
		}
		pos, ok := index[detail.SemesterID]
		if !ok {
			pos = len(history.Past)
			index[detail.SemesterID] = pos
			history.Past = append(history.Past, models.SemesterEnrollments{
				SemesterID:   detail.SemesterID,
				SemesterName: detail.SemesterName,
				StartDate:    detail.SemesterStartDate,
			})
		}
		history.Past[pos].Enrollments = append(history.Past[pos].Enrollments, detail)
	}

	sort.SliceStable(history.Current, func(i, j int) bool {
		return history.Current[i].EnrolledAt.After(history.Current[j].EnrolledAt)
	})
	sort.SliceStable(history.Past, func(i, j int) bool {
		a, b := history.Past[i], history.Past[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.After(b.StartDate)
		}
		return a.SemesterID < b.SemesterID
	})
	return history
}
