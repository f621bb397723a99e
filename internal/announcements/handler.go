package announcements

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Handler wires announcement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers announcement routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	perm := func(a rbac.Action) func(http.Handler) http.Handler {
		return h.authz.RequireAny(rbac.PermissionName(a, rbac.SubjectAnnouncement))
	}

	r.Route("/announcements", func(r chi.Router) {
		r.With(perm(rbac.ActionRead)).Get("/", h.handleList)
		r.With(perm(rbac.ActionRead)).Get("/{id}", h.handleGet)
		r.With(perm(rbac.ActionCreate)).Post("/", h.handleCreate)
		r.With(perm(rbac.ActionUpdate)).Put("/{id}", h.handleUpdate)
		r.With(perm(rbac.ActionDelete)).Delete("/{id}", h.handleDelete)
		r.With(perm(rbac.ActionUpdate)).Post("/{id}/publish", h.handlePublish)
	})
}

type announcementRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Audience Audience `json:"audience"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("published") == "true"
	items, err := h.service.List(r.Context(), publishedOnly)
	if err != nil {
		h.logger.Error("list announcements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": a})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	var authorID *int64
	if id := shared.IdentityFromContext(r.Context()); id != nil {
		authorID = &id.AccountID
	}
	created, err := h.service.Create(r.Context(), authorID, Announcement{
		Title: req.Title, Body: req.Body, Audience: req.Audience,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req announcementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	updated, err := h.service.Update(r.Context(), id, Announcement{
		Title: req.Title, Body: req.Body, Audience: req.Audience,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "announcement deleted"})
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Publish(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": a})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrAlreadyPublished) {
		httpx.Error(w, http.StatusConflict, err.Error())
		return
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
