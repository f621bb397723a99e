package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, expiresAt, err := tm.Issue(42, "teacher@school.example", []string{"Teacher"}, "sess-1", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Email != "teacher@school.example" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.ID != "sess-1" {
		t.Fatalf("session id = %q", claims.ID)
	}

	id, err := claims.Identity()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if id.AccountID != 42 {
		t.Fatalf("account id = %d", id.AccountID)
	}
	if !id.HasRole("Teacher") {
		t.Fatal("expected Teacher role claim")
	}
}

func TestTokenExpiredTreatedAsUnauthenticated(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Minute)
	token, _, err := tm.Issue(1, "a@b.example", nil, "sess", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tm.Verify(token); !errors.Is(err, shared.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", time.Hour).Issue(1, "a@b.example", nil, "sess", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenManager("secret-b", time.Hour).Verify(token); !errors.Is(err, shared.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
