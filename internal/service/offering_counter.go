package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
)

// applyCounterDelta moves the offering counter by the delta a ledger
// transition owes. It must run in the same transaction as the transition.
func applyCounterDelta(ctx context.Context, tx repository.EnrollmentTx, delta int) (int, error) {
	switch delta {
	case 1:
		return tx.IncrementCounter(ctx)
	case -1:
		return tx.DecrementCounter(ctx)
	default:
		return 0, fmt.Errorf("unsupported counter delta %d", delta)
	}
}

// reconcileCounter recounts ENROLLED rows of the locked offering and rewrites
// the counter when it drifted. The repaired value is clamped to [0, capacity].
func reconcileCounter(ctx context.Context, tx repository.EnrollmentTx, now time.Time) (models.CounterDrift, error) {
	offering := tx.Offering()
	ledger, err := tx.CountEnrolled(ctx)
	if err != nil {
		return models.CounterDrift{}, err
	}

	drift := models.CounterDrift{
		OfferingID:    offering.ID,
		CachedCount:   offering.CurrentEnrollment,
		LedgerCount:   ledger,
		RepairedCount: offering.CurrentEnrollment,
		CheckedAt:     now.UTC(),
	}

	repaired := ledger
	if repaired > offering.MaxCapacity {
		repaired = offering.MaxCapacity
	}
	if repaired < 0 {
		repaired = 0
	}
	if repaired == offering.CurrentEnrollment {
		return drift, nil
	}
	if err := tx.ResetCounter(ctx, repaired); err != nil {
		return models.CounterDrift{}, err
	}
	drift.RepairedCount = repaired
	return drift, nil
}
