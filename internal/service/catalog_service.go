package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/cache"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type catalogReader interface {
	ListSemesters(ctx context.Context, activeOnly bool) ([]models.Semester, error)
	FindOfferingByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	ListOfferings(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, error)
	CurrentEnrollments(ctx context.Context, ids []string) (map[string]int, error)
}

type enrolledOfferingReader interface {
	ListEnrolledOfferingIDs(ctx context.Context, studentID, semesterID string) ([]string, error)
}

// CatalogService serves semester and offering reads for pages and admin views.
// Listings may come from cache, but seat counters are always read live, and
// enroll and drop never consult the cache.
type CatalogService struct {
	repo     catalogReader
	enrolled enrolledOfferingReader
	cache    *CacheService
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(repo catalogReader, enrolled enrolledOfferingReader, cacheSvc *CacheService, location *time.Location, logger *zap.Logger) *CatalogService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, enrolled: enrolled, cache: cacheSvc, location: location, logger: logger, now: time.Now}
}

// ActiveSemesters returns the active semesters, cached for the catalog TTL.
func (s *CatalogService) ActiveSemesters(ctx context.Context) ([]models.Semester, error) {
	var semesters []models.Semester
	err := s.cache.Remember(ctx, cache.Key("semesters", "active"), &semesters, func() error {
		var err error
		semesters, err = s.repo.ListSemesters(ctx, true)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semesters")
	}
	return semesters, nil
}

// EnrollmentWindow returns the semester currently open for enrollment actions, or nil.
func (s *CatalogService) EnrollmentWindow(ctx context.Context) (*models.Semester, error) {
	semesters, err := s.ActiveSemesters(ctx)
	if err != nil {
		return nil, err
	}
	return ResolveEnrollmentWindow(semesters, s.now().In(s.location)), nil
}

// RunningSemester returns the semester whose dates contain today, or nil.
func (s *CatalogService) RunningSemester(ctx context.Context) (*models.Semester, error) {
	semesters, err := s.ActiveSemesters(ctx)
	if err != nil {
		return nil, err
	}
	return ResolveRunningSemester(semesters, s.now().In(s.location)), nil
}

// FindOffering fetches one offering by id.
func (s *CatalogService) FindOffering(ctx context.Context, id string) (*models.OfferingDetail, error) {
	offering, err := s.repo.FindOfferingByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course offering")
	}
	return offering, nil
}

// ListOpenOfferings lists the active offerings of the student's department in
// the open enrollment window, flagging the ones the student holds a seat in.
func (s *CatalogService) ListOpenOfferings(ctx context.Context, actor models.StudentProfile) ([]models.OpenOffering, *models.Semester, error) {
	if !actor.IsActive {
		return nil, nil, appErrors.ErrStudentInactive
	}
	window, err := s.EnrollmentWindow(ctx)
	if err != nil {
		return nil, nil, err
	}
	if window == nil {
		return nil, nil, appErrors.ErrWindowClosed
	}

	var offerings []models.OfferingDetail
	key := cache.Key("offerings", window.ID, actor.DepartmentID)
	err = s.cache.Remember(ctx, key, &offerings, func() error {
		var err error
		offerings, err = s.repo.ListOfferings(ctx, models.OfferingFilter{
			SemesterID:   window.ID,
			DepartmentID: actor.DepartmentID,
			ActiveOnly:   true,
		})
		return err
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}

	offeringIDs := make([]string, 0, len(offerings))
	for _, offering := range offerings {
		offeringIDs = append(offeringIDs, offering.ID)
	}
	counts, err := s.repo.CurrentEnrollments(ctx, offeringIDs)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seat counts")
	}

	ids, err := s.enrolled.ListEnrolledOfferingIDs(ctx, actor.ID, window.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	held := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		held[id] = struct{}{}
	}

	result := make([]models.OpenOffering, 0, len(offerings))
	for _, offering := range offerings {
		current, ok := counts[offering.ID]
		if !ok {
			continue
		}
		offering.CurrentEnrollment = current
		_, enrolled := held[offering.ID]
		result = append(result, models.OpenOffering{
			OfferingDetail: offering,
			SeatsLeft:      offering.SeatsLeft(),
			Enrolled:       enrolled,
		})
	}
	return result, window, nil
}

// InvalidateOfferings drops cached offering listings, e.g. after a counter repair.
func (s *CatalogService) InvalidateOfferings(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.Key("offerings", "*")); err != nil {
		s.logger.Warn("failed to invalidate offering cache", zap.Error(err))
	}
}
