// Package school manages the singleton school profile record.
package school

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Profile is the school identity shown on documents and dashboards.
// A single row holds it; updates upsert in place.
type Profile struct {
	Name      string    `json:"name"`
	Motto     string    `json:"motto,omitempty"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Principal string    `json:"principal,omitempty"`
	LogoURL   string    `json:"logoUrl,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository reads and writes the profile row.
type Repository interface {
	Get(ctx context.Context) (Profile, error)
	Upsert(ctx context.Context, p Profile) (Profile, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT name, coalesce(motto, ''), coalesce(address, ''), coalesce(phone, ''),
		       coalesce(email, ''), coalesce(principal, ''), coalesce(logo_url, ''), updated_at
		FROM school_profile WHERE id = 1`).
		Scan(&p.Name, &p.Motto, &p.Address, &p.Phone, &p.Email, &p.Principal, &p.LogoURL, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, shared.ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("school: get profile: %w", err)
	}
	return p, nil
}

func (r *repository) Upsert(ctx context.Context, p Profile) (Profile, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO school_profile (id, name, motto, address, phone, email, principal, logo_url, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, motto = EXCLUDED.motto, address = EXCLUDED.address,
			phone = EXCLUDED.phone, email = EXCLUDED.email, principal = EXCLUDED.principal,
			logo_url = EXCLUDED.logo_url, updated_at = now()
		RETURNING updated_at`,
		p.Name, p.Motto, p.Address, p.Phone, p.Email, p.Principal, p.LogoURL,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("school: upsert profile: %w", err)
	}
	return p, nil
}

// Service validates profile updates.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (Profile, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, p Profile) (Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Profile{}, shared.NewValidationError(map[string]string{"name": "required"})
	}
	return s.repo.Upsert(ctx, p)
}

// Handler wires the profile endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers profile routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authz.RequireAny(rbac.PermissionName(rbac.ActionRead, rbac.SubjectSchoolProfile))).
		Get("/school-profile", h.handleGet)
	r.With(h.authz.RequireAny(rbac.PermissionName(rbac.ActionUpdate, rbac.SubjectSchoolProfile))).
		Put("/school-profile", h.handleUpdate)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": profile})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var p Profile
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	updated, err := h.service.Update(r.Context(), p)
	if err != nil {
		h.logError(err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) logError(err error) {
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) {
		return
	}
	h.logger.Error("school profile", slog.Any("error", err))
}
