package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// LoginFailureCounter records rejected sign-in attempts.
type LoginFailureCounter interface {
	CountLoginFailure()
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tokens    *TokenManager
	gate      *Gate
	validator *validator.Validate
	failures  LoginFailureCounter
}

// WithMetrics installs the login failure counter. Nil disables counting.
func (h *Handler) WithMetrics(failures LoginFailureCounter) *Handler {
	h.failures = failures
	return h
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenManager, gate *Gate) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		tokens:    tokens,
		gate:      gate,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError(fieldErrors(err)))
		return
	}

	user, roles, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.failures != nil && errors.Is(err, shared.ErrInvalidCredentials) {
			h.failures.CountLoginFailure()
		}
		httpx.RespondError(w, err)
		return
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := h.tokens.Issue(user.ID, user.Email, roles, sessionID, time.Now())
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.service.RegisterSession(r.Context(), sessionID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	h.gate.SetCredential(w, token)
	httpx.JSON(w, http.StatusOK, loginResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Roles:     roles,
		ExpiresAt: expiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.gate.CookieName()); err == nil && cookie.Value != "" {
		if claims, err := h.tokens.Verify(cookie.Value); err == nil && claims.ID != "" {
			if err := h.service.RemoveSession(r.Context(), claims.ID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
	}
	h.gate.ClearCredential(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// Me reports the caller identity resolved by the gate.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.Error(w, http.StatusUnauthorized, shared.ErrUnauthenticated.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":    id.AccountID,
		"email": id.Email,
		"roles": id.Roles,
	})
}

func fieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}
