package models

import "time"

// Department groups courses and the students eligible to take them.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DegreeProgram declares the per-semester credit ceiling for its students.
type DegreeProgram struct {
	ID                    string    `db:"id" json:"id"`
	DepartmentID          string    `db:"department_id" json:"department_id"`
	Name                  string    `db:"name" json:"name"`
	Level                 string    `db:"level" json:"level"`
	DurationYears         int       `db:"duration_years" json:"duration_years"`
	MaxCreditsPerSemester int       `db:"max_credits_per_semester" json:"max_credits_per_semester"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// Course is a catalog entry owned by a department.
type Course struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Code         string    `db:"course_code" json:"course_code"`
	Name         string    `db:"course_name" json:"course_name"`
	CreditPoints int       `db:"credit_points" json:"credit_points"`
	MaxCapacity  int       `db:"max_capacity" json:"max_capacity"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Semester carries two date ranges: the running range and the enrollment-action range.
type Semester struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	StartDate           time.Time `db:"start_date" json:"start_date"`
	EndDate             time.Time `db:"end_date" json:"end_date"`
	EnrollmentOpenDate  time.Time `db:"enrollment_open_date" json:"enrollment_open_date"`
	EnrollmentCloseDate time.Time `db:"enrollment_close_date" json:"enrollment_close_date"`
	IsActive            bool      `db:"is_active" json:"is_active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentOpenOn reports whether day falls inside the inclusive enrollment-action range.
func (s Semester) EnrollmentOpenOn(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(s.EnrollmentOpenDate)) && !d.After(Day(s.EnrollmentCloseDate))
}

// RunningOn reports whether day falls inside the inclusive running range.
func (s Semester) RunningOn(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(s.StartDate)) && !d.After(Day(s.EndDate))
}

// CourseOffering is a course taught in a semester. CurrentEnrollment is a
// denormalized count of ENROLLED rows and is written only by the counter
// synchronizer.
type CourseOffering struct {
	ID                string    `db:"id" json:"id"`
	CourseID          string    `db:"course_id" json:"course_id"`
	SemesterID        string    `db:"semester_id" json:"semester_id"`
	CurrentEnrollment int       `db:"current_enrollment" json:"current_enrollment"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// OfferingDetail is an offering joined with its course and semester.
type OfferingDetail struct {
	CourseOffering
	CourseCode   string `db:"course_code" json:"course_code"`
	CourseName   string `db:"course_name" json:"course_name"`
	DepartmentID string `db:"department_id" json:"department_id"`
	CreditPoints int    `db:"credit_points" json:"credit_points"`
	MaxCapacity  int    `db:"max_capacity" json:"max_capacity"`
	SemesterName string `db:"semester_name" json:"semester_name"`

	EnrollmentOpenDate  time.Time `db:"enrollment_open_date" json:"enrollment_open_date"`
	EnrollmentCloseDate time.Time `db:"enrollment_close_date" json:"enrollment_close_date"`
}

// Semester returns the offering's semester as far as the join carries it.
func (o OfferingDetail) Semester() Semester {
	return Semester{
		ID:                  o.SemesterID,
		Name:                o.SemesterName,
		EnrollmentOpenDate:  o.EnrollmentOpenDate,
		EnrollmentCloseDate: o.EnrollmentCloseDate,
	}
}

// SeatsLeft returns the remaining capacity, never negative.
func (o OfferingDetail) SeatsLeft() int {
	if left := o.MaxCapacity - o.CurrentEnrollment; left > 0 {
		return left
	}
	return 0
}

// OfferingFilter narrows catalog offering listings.
type OfferingFilter struct {
	SemesterID   string
	DepartmentID string
	ActiveOnly   bool
}

// Day truncates t to its calendar date in t's own location, expressed at UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
