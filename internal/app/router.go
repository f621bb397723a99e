package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/scholaris-sms/scholaris/internal/academics"
	"github.com/scholaris-sms/scholaris/internal/accounts"
	"github.com/scholaris-sms/scholaris/internal/announcements"
	"github.com/scholaris-sms/scholaris/internal/attendance"
	"github.com/scholaris-sms/scholaris/internal/audit"
	"github.com/scholaris-sms/scholaris/internal/auth"
	"github.com/scholaris-sms/scholaris/internal/exams"
	"github.com/scholaris-sms/scholaris/internal/finance"
	"github.com/scholaris-sms/scholaris/internal/observability"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/roles"
	"github.com/scholaris-sms/scholaris/internal/school"
	"github.com/scholaris-sms/scholaris/internal/students"
	"github.com/scholaris-sms/scholaris/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Gate                 *auth.Gate
	AuthHandler          *auth.Handler
	SchoolHandler        *school.Handler
	AcademicsHandler     *academics.Handler
	StudentsHandler      *students.Handler
	FinanceHandler       *finance.Handler
	AttendanceHandler    *attendance.Handler
	ExamsHandler         *exams.Handler
	AnnouncementsHandler *announcements.Handler
	AccountsHandler      *accounts.Handler
	RolesHandler         *roles.Handler
	AuditHandler         *audit.Handler
	JobHandler           *jobs.Handler
	RBACMiddleware       rbac.Middleware
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Scholaris defaults. Admin-only
// surfaces mount under /api/admin, where the gate additionally enforces the
// Admin privilege before permission checks run.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Gate:    params.Gate,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Get("/metrics", params.Metrics.Handler().ServeHTTP)
	}

	r.Get("/welcome", servePage(welcomePage))
	r.Get("/login", servePage(loginPage))
	r.Get("/dashboard", servePage(dashboardPage))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			params.AuthHandler.MountRoutes(ar)
		})
		api.Get("/me", params.AuthHandler.Me)

		params.SchoolHandler.MountRoutes(api)
		params.AcademicsHandler.MountRoutes(api)
		params.StudentsHandler.MountRoutes(api)
		params.FinanceHandler.MountRoutes(api)
		params.AttendanceHandler.MountRoutes(api)
		params.ExamsHandler.MountRoutes(api)
		params.AnnouncementsHandler.MountRoutes(api)

		api.Route("/admin", func(admin chi.Router) {
			userPerm := params.RBACMiddleware.RequireAny(
				rbac.PermissionName(rbac.ActionRead, rbac.SubjectUserManagement),
				rbac.PermissionName(rbac.ActionCreate, rbac.SubjectUserManagement),
				rbac.PermissionName(rbac.ActionUpdate, rbac.SubjectUserManagement),
				rbac.PermissionName(rbac.ActionDelete, rbac.SubjectUserManagement),
			)
			admin.Group(func(g chi.Router) {
				g.Use(userPerm)
				params.AccountsHandler.MountRoutes(g)
				params.RolesHandler.MountRoutes(g)
			})
			admin.Group(func(g chi.Router) {
				g.Use(params.RBACMiddleware.RequireAny(
					rbac.PermissionName(rbac.ActionRead, rbac.SubjectAuditLog),
				))
				params.AuditHandler.MountRoutes(g)
			})
			if params.JobHandler != nil {
				admin.Route("/jobs", func(jr chi.Router) {
					params.JobHandler.MountRoutes(jr)
				})
			}
		})
	})

	return r
}

func servePage(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
	}
}

const welcomePage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Scholaris</title></head>
<body>
<h1>Scholaris</h1>
<p>School management for admissions, academics, attendance and finance.</p>
<p><a href="/login">Sign in</a></p>
</body>
</html>`

const dashboardPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Dashboard - Scholaris</title></head>
<body>
<h1>Scholaris</h1>
<p>You are signed in. The API lives under <code>/api</code>.</p>
<form method="post" action="/api/auth/logout"><button type="submit">Sign out</button></form>
</body>
</html>`

const loginPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in - Scholaris</title></head>
<body>
<h1>Sign in</h1>
<form method="post" action="/api/auth/login" id="login-form">
<label>Email <input type="email" name="email" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
<script>
document.getElementById("login-form").addEventListener("submit", async function (e) {
  e.preventDefault();
  const form = new FormData(this);
  const resp = await fetch("/api/auth/login", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({email: form.get("email"), password: form.get("password")})
  });
  if (resp.ok) { window.location = "/dashboard"; }
});
</script>
</body>
</html>`
