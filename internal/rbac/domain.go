package rbac

import "time"

// Role represents a named bundle of permissions assignable to accounts.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	System      bool      `json:"system"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission represents one grantable (action, subject) capability.
type Permission struct {
	ID          int64   `json:"id"`
	Action      Action  `json:"action"`
	Subject     Subject `json:"subject"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}
