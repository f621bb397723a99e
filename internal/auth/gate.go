package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Route targets the gate redirects page callers to.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Gate intercepts every request, validates the credential cookie and
// authorizes privileged paths from the role claims embedded in the token.
type Gate struct {
	tokens     *TokenManager
	cookieName string
	secure     bool
	logger     *slog.Logger
}

// NewGate constructs the gate middleware.
func NewGate(tokens *TokenManager, cookieName string, secure bool, logger *slog.Logger) *Gate {
	return &Gate{tokens: tokens, cookieName: cookieName, secure: secure, logger: logger}
}

// CookieName returns the credential cookie identifier.
func (g *Gate) CookieName() string {
	return g.cookieName
}

// SetCredential writes the credential cookie.
func (g *Gate) SetCredential(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(g.tokens.TTL().Seconds()),
	})
}

// ClearCredential instructs the caller to discard the cookie.
func (g *Gate) ClearCredential(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// Middleware runs the request through the gate's state machine.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if isStaticPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		claims := g.verifiedClaims(r)

		if isPublicPath(path) {
			// A signed-in caller gets the dashboard instead of the sign-in screen.
			if claims != nil && isPagePath(path) {
				http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if claims == nil {
			if _, err := r.Cookie(g.cookieName); err == nil {
				// Cookie present but failed verification.
				g.ClearCredential(w)
			}
			g.rejectUnauthenticated(w, r, path)
			return
		}

		identity, err := claims.Identity()
		if err != nil {
			g.ClearCredential(w)
			g.rejectUnauthenticated(w, r, path)
			return
		}

		if isPrivilegedPath(path) && rbac.ResolvePrivilege(identity.Roles) < rbac.PrivilegeAdmin {
			if isPagePath(path) {
				http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
				return
			}
			httpx.Error(w, http.StatusForbidden, shared.ErrForbidden.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

func (g *Gate) verifiedClaims(r *http.Request) *Claims {
	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := g.tokens.Verify(cookie.Value)
	if err != nil {
		if g.logger != nil {
			g.logger.Debug("credential rejected", slog.String("path", r.URL.Path))
		}
		return nil
	}
	return claims
}

func (g *Gate) rejectUnauthenticated(w http.ResponseWriter, r *http.Request, path string) {
	if isPagePath(path) {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}
	httpx.Error(w, http.StatusUnauthorized, shared.ErrUnauthenticated.Error())
}

func isStaticPath(path string) bool {
	return strings.HasPrefix(path, "/static/") ||
		path == "/favicon.ico" ||
		path == "/healthz" ||
		path == "/metrics"
}

func isPublicPath(path string) bool {
	switch path {
	case LoginPath, "/welcome", "/api/auth/login":
		return true
	}
	return false
}

// isPagePath reports whether rejections should redirect instead of returning
// a JSON status. Everything under /api is machine-facing.
func isPagePath(path string) bool {
	return !strings.HasPrefix(path, "/api/")
}

func isPrivilegedPath(path string) bool {
	return strings.HasPrefix(path, "/api/admin/") || path == "/api/admin" ||
		strings.HasPrefix(path, "/admin/") || path == "/admin"
}
