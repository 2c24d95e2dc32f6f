package service

import (
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// ResolveEnrollmentWindow picks the active semester whose enrollment range
// contains now. Overlapping windows resolve to the earliest open date, then
// the smallest id. It returns nil when no window is open.
func ResolveEnrollmentWindow(semesters []models.Semester, now time.Time) *models.Semester {
	var selected *models.Semester
	for i := range semesters {
		candidate := &semesters[i]
		if !candidate.IsActive || !candidate.EnrollmentOpenOn(now) {
			continue
		}
		if selected == nil || opensBefore(*candidate, *selected) {
			selected = candidate
		}
	}
	if selected == nil {
		return nil
	}
	out := *selected
	return &out
}

func opensBefore(a, b models.Semester) bool {
	da, db := models.Day(a.EnrollmentOpenDate), models.Day(b.EnrollmentOpenDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return a.ID < b.ID
}

// ResolveRunningSemester returns the first active semester whose running range contains now.
func ResolveRunningSemester(semesters []models.Semester, now time.Time) *models.Semester {
	for i := range semesters {
		if semesters[i].IsActive && semesters[i].RunningOn(now) {
			out := semesters[i]
			return &out
		}
	}
	return nil
}
