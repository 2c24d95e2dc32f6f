package models

import "time"

// Student is the enrollment actor. DepartmentID scopes the offerings the
// student may enroll in.
type Student struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	StudentNumber   string    `db:"student_number" json:"student_number"`
	FullName        string    `db:"full_name" json:"full_name"`
	DepartmentID    string    `db:"department_id" json:"department_id"`
	DegreeProgramID string    `db:"degree_program_id" json:"degree_program_id"`
	EnrollmentYear  int       `db:"enrollment_year" json:"enrollment_year"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// StudentProfile adds the degree program credit ceiling to a student snapshot.
type StudentProfile struct {
	Student
	DepartmentName        string `db:"department_name" json:"department_name"`
	DegreeProgramName     string `db:"degree_program_name" json:"degree_program_name"`
	MaxCreditsPerSemester int    `db:"max_credits_per_semester" json:"max_credits_per_semester"`
}

// StudentEnrollmentCount is a student row annotated with their ENROLLED count in a semester.
type StudentEnrollmentCount struct {
	StudentProfile
	EnrolledCount int `db:"enrolled_count" json:"enrolled_count"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	DepartmentID string
	SemesterID   string
	Page         int
	PageSize     int
}
