package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Handler wires role registry endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers role routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.handleList)
	r.Post("/roles", h.handleCreate)
	r.Get("/roles/{id}", h.handleGet)
	r.Put("/roles/{id}", h.handleUpdate)
	r.Delete("/roles/{id}", h.handleDelete)
}

type roleRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	PermissionIDs []int64 `json:"permissionIds"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": roles})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": role})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	in := CreateInput{PermissionIDs: req.PermissionIDs}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}

	role, err := h.service.Create(r.Context(), actorID(r), in)
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": role})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	role, err := h.service.Update(r.Context(), actorID(r), id, UpdateInput{
		Name:          req.Name,
		Description:   req.Description,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		h.respondError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": role})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actorID(r), id); err != nil {
		h.respondError(w, "delete role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "role deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrDuplicateName), errors.Is(err, ErrRoleInUse):
		httpx.Error(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
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
