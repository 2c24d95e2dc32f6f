package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// fakeStore is an in-memory ledger with per-offering and per-student locks
// standing in for the row lock and advisory lock of the real transaction.
type fakeStore struct {
	mu          sync.Mutex
	offeringMu  map[string]*sync.Mutex
	studentMu   map[string]*sync.Mutex
	offerings   map[string]models.OfferingDetail
	enrollments map[string]models.Enrollment
	semesters   []models.Semester

	// injected errors returned by InOfferingTx before fn runs, consumed in order
	failures []error
	txCount  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		offeringMu:  make(map[string]*sync.Mutex),
		studentMu:   make(map[string]*sync.Mutex),
		offerings:   make(map[string]models.OfferingDetail),
		enrollments: make(map[string]models.Enrollment),
	}
}

func (s *fakeStore) addOffering(o models.OfferingDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offerings[o.ID] = o
	s.offeringMu[o.ID] = &sync.Mutex{}
}

func (s *fakeStore) offering(id string) models.OfferingDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offerings[id]
}

func (s *fakeStore) enrollmentRows(studentID, offeringID string) []models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.Enrollment
	for _, e := range s.enrollments {
		if e.StudentID == studentID && e.CourseOfferingID == offeringID {
			rows = append(rows, e)
		}
	}
	return rows
}

func (s *fakeStore) lockFor(locks map[string]*sync.Mutex, key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := locks[key]
	if !ok {
		m = &sync.Mutex{}
		locks[key] = m
	}
	return m
}

func (s *fakeStore) ListSemesters(ctx context.Context, activeOnly bool) ([]models.Semester, error) {
	var out []models.Semester
	for _, sem := range s.semesters {
		if activeOnly && !sem.IsActive {
			continue
		}
		out = append(out, sem)
	}
	return out, nil
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *fakeStore) InOfferingTx(ctx context.Context, offeringID string, fn func(tx repository.EnrollmentTx) error) error {
	s.mu.Lock()
	s.txCount++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		s.mu.Unlock()
		return err
	}
	lock, ok := s.offeringMu[offeringID]
	s.mu.Unlock()
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "course offering not found")
	}

	lock.Lock()
	defer lock.Unlock()

	tx := &fakeTx{store: s, offering: s.offering(offeringID), staged: make(map[string]models.Enrollment)}
	tx.counter = tx.offering.CurrentEnrollment
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range tx.staged {
		s.enrollments[id] = e
	}
	o := s.offerings[offeringID]
	o.CurrentEnrollment = tx.counter
	s.offerings[offeringID] = o
	return nil
}

type fakeTx struct {
	store    *fakeStore
	offering models.OfferingDetail
	staged   map[string]models.Enrollment
	counter  int
	held     []*sync.Mutex
}

func (t *fakeTx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
}

func (t *fakeTx) Offering() models.OfferingDetail {
	return t.offering
}

func (t *fakeTx) LockStudent(ctx context.Context, studentID string) error {
	m := t.store.lockFor(t.store.studentMu, studentID)
	m.Lock()
	t.held = append(t.held, m)
	return nil
}

func (t *fakeTx) view() map[string]models.Enrollment {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	out := make(map[string]models.Enrollment, len(t.store.enrollments)+len(t.staged))
	for id, e := range t.store.enrollments {
		out[id] = e
	}
	for id, e := range t.staged {
		out[id] = e
	}
	return out
}

func (t *fakeTx) FindEnrollment(ctx context.Context, studentID string) (*models.Enrollment, error) {
	for _, e := range t.view() {
		if e.StudentID == studentID && e.CourseOfferingID == t.offering.ID {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) SumEnrolledCredits(ctx context.Context, studentID, semesterID string) (int, error) {
	rows := t.view()
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	total := 0
	for _, e := range rows {
		if e.StudentID != studentID || e.Status != models.EnrollmentStatusEnrolled {
			continue
		}
		o := t.store.offerings[e.CourseOfferingID]
		if o.SemesterID == semesterID {
			total += o.CreditPoints
		}
	}
	return total, nil
}

func (t *fakeTx) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if existing, _ := t.FindEnrollment(ctx, enrollment.StudentID); existing != nil {
		return errUniqueViolation
	}
	t.staged[enrollment.ID] = *enrollment
	return nil
}

func (t *fakeTx) UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	t.staged[enrollment.ID] = *enrollment
	return nil
}

func (t *fakeTx) IncrementCounter(ctx context.Context) (int, error) {
	if t.counter >= t.offering.MaxCapacity {
		return 0, appErrors.ErrCapacityFull
	}
	t.counter++
	return t.counter, nil
}

func (t *fakeTx) DecrementCounter(ctx context.Context) (int, error) {
	if t.counter > 0 {
		t.counter--
	}
	return t.counter, nil
}

func (t *fakeTx) CountEnrolled(ctx context.Context) (int, error) {
	count := 0
	for _, e := range t.view() {
		if e.CourseOfferingID == t.offering.ID && e.Status == models.EnrollmentStatusEnrolled {
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) ResetCounter(ctx context.Context, count int) error {
	t.counter = count
	return nil
}
