package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Middleware wires authorization checks for API handlers. Privilege checks
// branch on the role claims carried in the credential; permission checks hit
// the cached effective-permission lookup.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequirePrivilege rejects callers below the given privilege level.
func (m Middleware) RequirePrivilege(min Privilege) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := shared.IdentityFromContext(r.Context())
			if id == nil {
				httpx.Error(w, http.StatusUnauthorized, shared.ErrUnauthenticated.Error())
				return
			}
			if ResolvePrivilege(id.Roles) < min {
				httpx.Error(w, http.StatusForbidden, shared.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the caller holds at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			id := shared.IdentityFromContext(r.Context())
			if id == nil {
				httpx.Error(w, http.StatusUnauthorized, shared.ErrUnauthenticated.Error())
				return
			}
			// Admin-level callers hold the full catalog; skip the lookup.
			if ResolvePrivilege(id.Roles) >= PrivilegeAdmin {
				next.ServeHTTP(w, r)
				return
			}
			granted, err := m.Service.EffectivePermissions(r.Context(), id.AccountID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("resolve permissions", slog.Any("error", err))
				}
				httpx.Error(w, http.StatusInternalServerError, "internal error")
				return
			}
			if hasAnyPermission(granted, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Error(w, http.StatusForbidden, shared.ErrForbidden.Error())
		})
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

func hasAnyPermission(granted []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
