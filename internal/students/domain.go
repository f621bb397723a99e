package students

import (
	"fmt"
	"time"
)

// EnrollmentStatus tracks a student's standing.
type EnrollmentStatus string

const (
	StatusEnrolled  EnrollmentStatus = "ENROLLED"
	StatusGraduated EnrollmentStatus = "GRADUATED"
	StatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case StatusEnrolled, StatusGraduated, StatusWithdrawn:
		return true
	}
	return false
}

// Student is an enrolled pupil. AdmissionNo is assigned once at admission and
// never changes.
type Student struct {
	ID            int64            `json:"id"`
	AdmissionNo   string           `json:"admissionNo"`
	FirstName     string           `json:"firstName"`
	LastName      string           `json:"lastName"`
	DateOfBirth   *time.Time       `json:"dateOfBirth,omitempty"`
	Gender        string           `json:"gender,omitempty"`
	GuardianName  string           `json:"guardianName,omitempty"`
	GuardianPhone string           `json:"guardianPhone,omitempty"`
	SectionID     *int64           `json:"sectionId,omitempty"`
	Status        EnrollmentStatus `json:"status"`
	EnrolledAt    time.Time        `json:"enrolledAt"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// AdmissionNumber formats the admission identifier for a year and sequence.
func AdmissionNumber(year, seq int) string {
	return fmt.Sprintf("ADM-%d-%04d", year, seq)
}
