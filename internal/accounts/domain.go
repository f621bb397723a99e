package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status enumerates account lifecycle states.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Account is a system identity. Accounts are never hard-deleted; deletion
// stamps DeletedAt and flips the status to INACTIVE.
type Account struct {
	ID             int64           `json:"id"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone,omitempty"`
	PasswordHash   string          `json:"-"`
	Status         Status          `json:"status"`
	IsActive       bool            `json:"isActive"`
	EmailVerified  bool            `json:"emailVerified"`
	DeletedAt      *time.Time      `json:"deletedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Roles          []string        `json:"roles"`
	TeacherProfile *TeacherProfile `json:"teacherProfile,omitempty"`
}

// TeacherProfile extends an account 1:1 and exists exactly while the account
// holds the Teacher role.
type TeacherProfile struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"accountId"`
	EmployeeID     string    `json:"employeeId"`
	Qualification  string    `json:"qualification,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewEmployeeID generates an employee identifier in the TCH-<timestamp>-<random> format.
func NewEmployeeID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("TCH-%d-%s", now.UnixMilli(), suffix)
}

// VerifyReport describes what a consistency check found and fixed.
type VerifyReport struct {
	AccountID        int64 `json:"accountId"`
	HoldsTeacherRole bool  `json:"holdsTeacherRole"`
	HadProfile       bool  `json:"hadProfile"`
	ProfileCreated   bool  `json:"profileCreated"`
	ProfileDeleted   bool  `json:"profileDeleted"`
}

// Consistent reports whether the teacher-profile invariant held before the check.
func (r VerifyReport) Consistent() bool {
	return r.HoldsTeacherRole == r.HadProfile
}
