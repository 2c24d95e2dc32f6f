package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
)

// JobTypeReconcileOffering identifies counter reconciliation jobs.
const JobTypeReconcileOffering = "reconcile_offering"

type jobDispatcher interface {
	Enqueue(job jobs.Job) (jobs.Job, error)
}

type offeringFinder interface {
	FindOffering(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type offeringTxRunner interface {
	InOfferingTx(ctx context.Context, offeringID string, fn func(tx repository.EnrollmentTx) error) error
}

type offeringCacheInvalidator interface {
	InvalidateOfferings(ctx context.Context)
}

// ReconcileService schedules counter reconciliations on the job queue.
type ReconcileService struct {
	offerings offeringFinder
	queue     jobDispatcher
	logger    *zap.Logger
}

// NewReconcileService constructs ReconcileService.
func NewReconcileService(offerings offeringFinder, queue jobDispatcher, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{offerings: offerings, queue: queue, logger: logger}
}

// Schedule queues a reconciliation of one offering. A reconciliation already
// pending for the same offering is reported as a conflict.
func (s *ReconcileService) Schedule(ctx context.Context, offeringID string) (*jobs.Job, error) {
	if _, err := s.offerings.FindOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "reconciliation is disabled")
	}
	job, err := s.queue.Enqueue(jobs.Job{
		Key:     "reconcile:" + offeringID,
		Type:    JobTypeReconcileOffering,
		Payload: offeringID,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "reconciliation already pending for this offering")
		}
		s.logger.Error("failed to enqueue reconciliation", zap.String("offering_id", offeringID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule reconciliation")
	}
	s.logger.Info("reconciliation scheduled", zap.String("offering_id", offeringID), zap.String("job_id", job.ID))
	return &job, nil
}

// ReconcileWorker recounts offering counters from the ledger.
type ReconcileWorker struct {
	ledger  offeringTxRunner
	cache   offeringCacheInvalidator
	metrics *MetricsService
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewReconcileWorker constructs ReconcileWorker.
func NewReconcileWorker(ledger offeringTxRunner, cache offeringCacheInvalidator, metrics *MetricsService, timeout time.Duration, logger *zap.Logger) *ReconcileWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ReconcileWorker{ledger: ledger, cache: cache, metrics: metrics, logger: logger, timeout: timeout, now: time.Now}
}

// Reconcile repairs the counter of one offering under its row lock.
func (w *ReconcileWorker) Reconcile(ctx context.Context, offeringID string) (models.CounterDrift, error) {
	txCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var drift models.CounterDrift
	err := w.ledger.InOfferingTx(txCtx, offeringID, func(tx repository.EnrollmentTx) error {
		var err error
		drift, err = reconcileCounter(txCtx, tx, w.now())
		return err
	})
	if err != nil {
		w.metrics.IncReconcileFailure()
		return models.CounterDrift{}, err
	}

	repaired := drift.RepairedCount != drift.CachedCount
	w.metrics.ObserveCounterDrift(offeringID, drift.Drift(), repaired)
	fields := []zap.Field{
		zap.String("offering_id", offeringID),
		zap.Int("cached", drift.CachedCount),
		zap.Int("ledger", drift.LedgerCount),
		zap.Int("repaired", drift.RepairedCount),
	}
	if drift.Drift() != 0 {
		w.logger.Warn("offering counter drift detected", fields...)
	} else {
		w.logger.Debug("offering counter consistent", fields...)
	}
	if repaired && w.cache != nil {
		w.cache.InvalidateOfferings(ctx)
	}
	return drift, nil
}

// Handle processes a queue job.
func (w *ReconcileWorker) Handle(ctx context.Context, job jobs.Job) error {
	offeringID, ok := job.Payload.(string)
	if !ok || offeringID == "" {
		w.logger.Error("invalid reconciliation payload", zap.String("job_id", job.ID))
		return nil
	}
	if _, err := w.Reconcile(ctx, offeringID); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			w.logger.Warn("reconciliation target vanished", zap.String("offering_id", offeringID))
			return nil
		}
		return fmt.Errorf("reconcile offering %s: %w", offeringID, err)
	}
	return nil
}
