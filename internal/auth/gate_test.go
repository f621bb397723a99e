package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

func newTestGate(t *testing.T) (*Gate, *TokenManager) {
	t.Helper()
	tm := NewTokenManager("gate-test-secret", time.Hour)
	return NewGate(tm, "scholaris_token", false, nil), tm
}

func gateRequest(t *testing.T, gate *Gate, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := shared.IdentityFromContext(r.Context()); id != nil {
			w.Header().Set("X-Account", id.Email)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: gate.CookieName(), Value: token})
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func issueToken(t *testing.T, tm *TokenManager, roles []string) string {
	t.Helper()
	token, _, err := tm.Issue(7, "user@school.example", roles, "sess", time.Now())
	require.NoError(t, err)
	return token
}

func TestGateNoCredentialAPIPathReturns401(t *testing.T) {
	gate, _ := newTestGate(t)
	rec := gateRequest(t, gate, "/api/students", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateNoCredentialPagePathRedirectsToLogin(t *testing.T) {
	gate, _ := newTestGate(t)
	rec := gateRequest(t, gate, "/dashboard", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
}

func TestGateInvalidCredentialClearsCookie(t *testing.T) {
	gate, _ := newTestGate(t)
	expired := issueToken(t, NewTokenManager("gate-test-secret", -time.Hour), []string{"Teacher"})
	rec := gateRequest(t, gate, "/api/students", expired)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, gate.CookieName(), cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge, "expected cookie deletion instruction")
}

func TestGateTeacherOnAdminAPIPathReturns403(t *testing.T) {
	gate, tm := newTestGate(t)
	rec := gateRequest(t, gate, "/api/admin/users", issueToken(t, tm, []string{"Teacher"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGateTeacherOnAdminPagePathRedirectsToDashboard(t *testing.T) {
	gate, tm := newTestGate(t)
	rec := gateRequest(t, gate, "/admin/users", issueToken(t, tm, []string{"Teacher"}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, DashboardPath, rec.Header().Get("Location"))
}

func TestGateTeacherOnNonAdminPathSucceeds(t *testing.T) {
	gate, tm := newTestGate(t)
	rec := gateRequest(t, gate, "/api/students", issueToken(t, tm, []string{"Teacher"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user@school.example", rec.Header().Get("X-Account"))
}

func TestGateAdminOnAdminPathSucceeds(t *testing.T) {
	gate, tm := newTestGate(t)
	rec := gateRequest(t, gate, "/api/admin/users", issueToken(t, tm, []string{"Admin"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateSignedInCallerRedirectedOffLoginPage(t *testing.T) {
	gate, tm := newTestGate(t)
	rec := gateRequest(t, gate, LoginPath, issueToken(t, tm, []string{"Teacher"}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, DashboardPath, rec.Header().Get("Location"))
}

func TestGateLoginPageReachableAnonymously(t *testing.T) {
	gate, _ := newTestGate(t)
	rec := gateRequest(t, gate, LoginPath, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateStaticAssetsBypassChecks(t *testing.T) {
	gate, _ := newTestGate(t)
	for _, path := range []string{"/static/app.css", "/healthz", "/favicon.ico"} {
		rec := gateRequest(t, gate, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
