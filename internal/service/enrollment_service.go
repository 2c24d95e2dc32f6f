package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

const (
	actionEnroll = "enroll"
	actionDrop   = "drop"
)

type enrollmentLedger interface {
	InOfferingTx(ctx context.Context, offeringID string, fn func(tx repository.EnrollmentTx) error) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type semesterLister interface {
	ListSemesters(ctx context.Context, activeOnly bool) ([]models.Semester, error)
}

// EnrollmentResult is the outcome of an accepted enroll or drop.
type EnrollmentResult struct {
	Enrollment        models.Enrollment
	Created           bool
	CurrentEnrollment int
}

// EnrollmentService admits and releases students. Guard checks, the ledger
// transition and the counter update run in one transaction per action.
type EnrollmentService struct {
	ledger    enrollmentLedger
	semesters semesterLister
	cfg       config.EnrollmentConfig
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(ledger enrollmentLedger, semesters semesterLister, cfg config.EnrollmentConfig, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if cfg.ConflictRetries < 0 {
		cfg.ConflictRetries = 0
	}
	return &EnrollmentService{
		ledger:    ledger,
		semesters: semesters,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Enroll admits the student into the offering or reports why not.
func (s *EnrollmentService) Enroll(ctx context.Context, actor models.StudentProfile, offeringID string) (*EnrollmentResult, error) {
	start := time.Now()
	now := s.now().In(s.cfg.Location())

	if !actor.IsActive {
		return nil, s.finish(actionEnroll, actor.ID, offeringID, start, appErrors.ErrStudentInactive)
	}
	semesters, err := s.semesters.ListSemesters(ctx, true)
	if err != nil {
		return nil, s.finish(actionEnroll, actor.ID, offeringID, start, err)
	}
	window := ResolveEnrollmentWindow(semesters, now)
	if window == nil {
		return nil, s.finish(actionEnroll, actor.ID, offeringID, start, appErrors.ErrWindowClosed)
	}

	var result EnrollmentResult
	err = s.run(ctx, actionEnroll, offeringID, func(tx repository.EnrollmentTx) error {
		offering := tx.Offering()
		if err := ValidateEligibility(actor, offering, window, now); err != nil {
			return err
		}
		if err := ValidateCapacity(offering); err != nil {
			return err
		}
		if err := tx.LockStudent(ctx, actor.ID); err != nil {
			return err
		}
		current, err := tx.FindEnrollment(ctx, actor.ID)
		if err != nil {
			return err
		}
		if current != nil && current.Status == models.EnrollmentStatusEnrolled {
			return appErrors.ErrAlreadyEnrolled
		}
		credits, err := tx.SumEnrolledCredits(ctx, actor.ID, offering.SemesterID)
		if err != nil {
			return err
		}
		if err := ValidateCreditLoad(offering, credits, creditCeiling(actor, s.cfg.DefaultCreditCeiling)); err != nil {
			return err
		}

		transition, err := Transit(current, actor.ID, offering.ID, models.EnrollmentStatusEnrolled, now)
		if err != nil {
			return err
		}
		if transition.Created {
			err = tx.InsertEnrollment(ctx, &transition.Enrollment)
		} else {
			err = tx.UpdateEnrollment(ctx, &transition.Enrollment)
		}
		if err != nil {
			return err
		}
		count, err := applyCounterDelta(ctx, tx, transition.CounterDelta)
		if err != nil {
			return err
		}
		result = EnrollmentResult{Enrollment: transition.Enrollment, Created: transition.Created, CurrentEnrollment: count}
		return nil
	})
	if err != nil {
		return nil, s.finish(actionEnroll, actor.ID, offeringID, start, err)
	}
	s.finish(actionEnroll, actor.ID, offeringID, start, nil)
	return &result, nil
}

// Drop releases the student's seat. Enrollments of other students are reported as NotFound.
func (s *EnrollmentService) Drop(ctx context.Context, actor models.StudentProfile, enrollmentID string) (*EnrollmentResult, error) {
	start := time.Now()
	now := s.now().In(s.cfg.Location())

	if !actor.IsActive {
		return nil, s.finish(actionDrop, actor.ID, enrollmentID, start, appErrors.ErrStudentInactive)
	}
	enrollment, err := s.ledger.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, s.finish(actionDrop, actor.ID, enrollmentID, start, err)
	}
	if enrollment.StudentID != actor.ID {
		return nil, s.finish(actionDrop, actor.ID, enrollmentID, start, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found"))
	}

	var result EnrollmentResult
	err = s.run(ctx, actionDrop, enrollment.CourseOfferingID, func(tx repository.EnrollmentTx) error {
		if err := tx.LockStudent(ctx, actor.ID); err != nil {
			return err
		}
		current, err := tx.FindEnrollment(ctx, actor.ID)
		if err != nil {
			return err
		}
		if err := ValidateDrop(current, tx.Offering().Semester(), now); err != nil {
			return err
		}
		transition, err := Transit(current, actor.ID, tx.Offering().ID, models.EnrollmentStatusDropped, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateEnrollment(ctx, &transition.Enrollment); err != nil {
			return err
		}
		count, err := applyCounterDelta(ctx, tx, transition.CounterDelta)
		if err != nil {
			return err
		}
		result = EnrollmentResult{Enrollment: transition.Enrollment, CurrentEnrollment: count}
		return nil
	})
	if err != nil {
		return nil, s.finish(actionDrop, actor.ID, enrollmentID, start, err)
	}
	s.finish(actionDrop, actor.ID, enrollmentID, start, nil)
	return &result, nil
}

// run executes fn in an offering transaction bounded by the configured
// timeout, retrying integrity conflicts a limited number of times.
func (s *EnrollmentService) run(ctx context.Context, action, offeringID string, fn func(tx repository.EnrollmentTx) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.ConflictRetries; attempt++ {
		if attempt > 0 {
			s.metrics.IncConflictRetry(action)
			s.logger.Warn("retrying enrollment transaction after conflict",
				zap.String("action", action),
				zap.String("offering_id", offeringID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
		err = s.ledger.InOfferingTx(txCtx, offeringID, fn)
		cancel()
		if err == nil || !database.IsConflict(err) {
			return err
		}
	}
	return err
}

// finish records the outcome and maps err onto the caller-facing taxonomy:
// rejections pass through, conflicts become ErrConflict and anything else
// becomes ErrInternal stating that nothing was applied.
func (s *EnrollmentService) finish(action, studentID, target string, start time.Time, err error) error {
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("student_id", studentID),
		zap.String("target_id", target),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err == nil:
		s.metrics.ObserveEnrollmentAction(action, outcomeAccepted, "", elapsed)
		s.logger.Info("enrollment action accepted", fields...)
		return nil
	case appErrors.IsRejection(err):
		code := appErrors.FromError(err).Code
		s.metrics.ObserveEnrollmentAction(action, outcomeRejected, code, elapsed)
		s.logger.Debug("enrollment action rejected", append(fields, zap.String("reason", code))...)
		return err
	case database.IsConflict(err):
		s.metrics.ObserveEnrollmentAction(action, outcomeConflict, appErrors.ErrConflict.Code, elapsed)
		s.logger.Warn("enrollment action conflicted after retries", append(fields, zap.Error(err))...)
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, appErrors.ErrConflict.Message)
	default:
		s.metrics.ObserveEnrollmentAction(action, outcomeFailed, appErrors.ErrInternal.Code, elapsed)
		s.logger.Error("enrollment action failed", append(fields, zap.Error(err))...)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
}
