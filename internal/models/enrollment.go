package models

import "time"

// EnrollmentStatus is the current state of a (student, offering) ledger row.
type EnrollmentStatus string

// Possible enrollment statuses. The absence of a row is the only other state.
const (
	EnrollmentStatusEnrolled EnrollmentStatus = "ENROLLED"
	EnrollmentStatusDropped  EnrollmentStatus = "DROPPED"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	return s == EnrollmentStatusEnrolled || s == EnrollmentStatusDropped
}

// Enrollment is the single ledger row per (student, offering) pair.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseOfferingID string           `db:"course_offering_id" json:"course_offering_id"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with course and semester info.
type EnrollmentDetail struct {
	Enrollment
	CourseCode        string    `db:"course_code" json:"course_code"`
	CourseName        string    `db:"course_name" json:"course_name"`
	CreditPoints      int       `db:"credit_points" json:"credit_points"`
	SemesterID        string    `db:"semester_id" json:"semester_id"`
	SemesterName      string    `db:"semester_name" json:"semester_name"`
	SemesterStartDate time.Time `db:"semester_start_date" json:"semester_start_date"`
}

// RosterEntry is one ENROLLED student of an offering.
type RosterEntry struct {
	EnrollmentID  string    `db:"enrollment_id" json:"enrollment_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	FullName      string    `db:"full_name" json:"full_name"`
	EnrolledAt    time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// CounterDrift reports a reconciliation between the cached counter and the ledger.
type CounterDrift struct {
	OfferingID    string    `json:"offering_id"`
	CachedCount   int       `json:"cached_count"`
	LedgerCount   int       `json:"ledger_count"`
	RepairedCount int       `json:"repaired_count"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Drift is the signed difference between the cached counter and the ledger.
func (d CounterDrift) Drift() int {
	return d.CachedCount - d.LedgerCount
}

// SemesterEnrollments groups a student's enrollments of one semester.
type SemesterEnrollments struct {
	SemesterID   string             `json:"semester_id"`
	SemesterName string             `json:"semester_name"`
	StartDate    time.Time          `json:"start_date"`
	Enrollments  []EnrollmentDetail `json:"enrollments"`
}

// EnrollmentHistory splits a student's enrollments into the running semester and the rest.
type EnrollmentHistory struct {
	RunningSemester *Semester             `json:"running_semester"`
	Current         []EnrollmentDetail    `json:"current"`
	Past            []SemesterEnrollments `json:"past"`
}

// OpenOffering is an offering listed on the enrollment page.
type OpenOffering struct {
	OfferingDetail
	SeatsLeft int  `json:"seats_left"`
	Enrolled  bool `json:"enrolled"`
}
