package auth

import "time"

// User is the credential-bearing view of an account used during login.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Status       string
	IsActive     bool
}

// Session is a server-side record of an issued credential. Sessions are
// deleted on logout and when the owning account is soft-deleted, which
// bounds the staleness window of the signed token's role claims.
type Session struct {
	ID        string
	AccountID int64
	ExpiresAt time.Time
	IP        string
	UserAgent string
	CreatedAt time.Time
}
