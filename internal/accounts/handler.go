package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Handler wires the account management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.handleList)
	r.Post("/users", h.handleCreate)
	r.Get("/users/{id}", h.handleGet)
	r.Put("/users/{id}", h.handleUpdate)
	r.Delete("/users/{id}", h.handleDelete)
	r.Post("/users/{id}/verify", h.handleVerify)
}

type createRequest struct {
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone"`
	Password       string `json:"password" validate:"required,min=8"`
	Role           string `json:"role" validate:"required"`
	Status         string `json:"status"`
	Qualification  string `json:"qualification"`
	Specialization string `json:"specialization"`
}

type updateRequest struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone"`
	Password       *string `json:"password" validate:"omitempty,min=8"`
	Status         *string `json:"status"`
	Role           *string `json:"role"`
	Qualification  *string `json:"qualification"`
	Specialization *string `json:"specialization"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError(fieldErrors(err)))
		return
	}

	account, err := h.service.Create(r.Context(), actorID(r), CreateInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Password:       req.Password,
		Role:           req.Role,
		Status:         Status(req.Status),
		Qualification:  req.Qualification,
		Specialization: req.Specialization,
	})
	if err != nil {
		h.logError("create account", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": account})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError(fieldErrors(err)))
		return
	}

	in := UpdateInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Password:       req.Password,
		Role:           req.Role,
		Qualification:  req.Qualification,
		Specialization: req.Specialization,
	}
	if req.Status != nil {
		status := Status(*req.Status)
		in.Status = &status
	}

	account, err := h.service.Update(r.Context(), actorID(r), id, in)
	if err != nil {
		h.logError("update account", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": account})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actorID(r), id); err != nil {
		h.logError("delete account", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": account})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilters{
		Search: q.Get("search"),
		Status: Status(q.Get("status")),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.RoleID, _ = strconv.ParseInt(q.Get("roleId"), 10, 64)

	page, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logError("list accounts", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	report, err := h.service.VerifyAndFix(r.Context(), actorID(r), id)
	if err != nil {
		h.logError("verify account", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": report})
}

func (h *Handler) logError(op string, err error) {
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrValidation) ||
		errors.Is(err, shared.ErrDuplicateEmail) || errors.Is(err, shared.ErrUnknownRole) {
		return
	}
	h.logger.Error(op, slog.Any("error", err))
}

func actorID(r *http.Request) *int64 {
	if id := shared.IdentityFromContext(r.Context()); id != nil {
		return &id.AccountID
	}
	return nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
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
