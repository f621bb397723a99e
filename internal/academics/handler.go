package academics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/rbac"
)

// Handler wires academic structure endpoints. Route-level permission checks
// use the catalog pairs for each entity.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers academic routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	read := func(s rbac.Subject) func(http.Handler) http.Handler {
		return h.authz.RequireAny(rbac.PermissionName(rbac.ActionRead, s))
	}
	write := func(a rbac.Action, s rbac.Subject) func(http.Handler) http.Handler {
		return h.authz.RequireAny(rbac.PermissionName(a, s))
	}

	r.Route("/academic-years", func(r chi.Router) {
		r.With(read(rbac.SubjectAcademicYear)).Get("/", h.handleListYears)
		r.With(read(rbac.SubjectAcademicYear)).Get("/active", h.handleActiveYear)
		r.With(write(rbac.ActionCreate, rbac.SubjectAcademicYear)).Post("/", h.handleCreateYear)
		r.With(write(rbac.ActionUpdate, rbac.SubjectAcademicYear)).Put("/{id}", h.handleUpdateYear)
		r.With(write(rbac.ActionUpdate, rbac.SubjectAcademicYear)).Post("/{id}/activate", h.handleActivateYear)
	})

	r.Route("/class-levels", func(r chi.Router) {
		r.With(read(rbac.SubjectClassLevel)).Get("/", h.handleListClassLevels)
		r.With(write(rbac.ActionCreate, rbac.SubjectClassLevel)).Post("/", h.handleCreateClassLevel)
		r.With(write(rbac.ActionUpdate, rbac.SubjectClassLevel)).Put("/{id}", h.handleUpdateClassLevel)
		r.With(write(rbac.ActionDelete, rbac.SubjectClassLevel)).Delete("/{id}", h.handleDeleteClassLevel)
	})

	r.Route("/sections", func(r chi.Router) {
		r.With(read(rbac.SubjectSection)).Get("/", h.handleListSections)
		r.With(write(rbac.ActionCreate, rbac.SubjectSection)).Post("/", h.handleCreateSection)
		r.With(write(rbac.ActionUpdate, rbac.SubjectSection)).Put("/{id}", h.handleUpdateSection)
		r.With(write(rbac.ActionDelete, rbac.SubjectSection)).Delete("/{id}", h.handleDeleteSection)
	})

	r.Route("/subjects", func(r chi.Router) {
		r.With(read(rbac.SubjectSubject)).Get("/", h.handleListSubjects)
		r.With(write(rbac.ActionCreate, rbac.SubjectSubject)).Post("/", h.handleCreateSubject)
		r.With(write(rbac.ActionUpdate, rbac.SubjectSubject)).Put("/{id}", h.handleUpdateSubject)
		r.With(write(rbac.ActionDelete, rbac.SubjectSubject)).Delete("/{id}", h.handleDeleteSubject)
	})
}

type yearRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (req yearRequest) toDomain() (AcademicYear, error) {
	y := AcademicYear{Name: req.Name}
	var err error
	if req.StartDate != "" {
		if y.StartDate, err = time.Parse("2006-01-02", req.StartDate); err != nil {
			return y, err
		}
	}
	if req.EndDate != "" {
		if y.EndDate, err = time.Parse("2006-01-02", req.EndDate); err != nil {
			return y, err
		}
	}
	return y, nil
}

func (h *Handler) handleListYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.ListYears(r.Context())
	if err != nil {
		h.logger.Error("list academic years", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": years})
}

func (h *Handler) handleActiveYear(w http.ResponseWriter, r *http.Request) {
	year, err := h.service.ActiveYear(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": year})
}

func (h *Handler) handleCreateYear(w http.ResponseWriter, r *http.Request) {
	var req yearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	y, err := req.toDomain()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "dates must use YYYY-MM-DD")
		return
	}
	created, err := h.service.CreateYear(r.Context(), y)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (h *Handler) handleUpdateYear(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req yearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	y, err := req.toDomain()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "dates must use YYYY-MM-DD")
		return
	}
	updated, err := h.service.UpdateYear(r.Context(), id, y)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) handleActivateYear(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.ActivateYear(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "academic year activated"})
}

func (h *Handler) handleListClassLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.ListClassLevels(r.Context())
	if err != nil {
		h.logger.Error("list class levels", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": levels})
}

func (h *Handler) handleCreateClassLevel(w http.ResponseWriter, r *http.Request) {
	var c ClassLevel
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	created, err := h.service.CreateClassLevel(r.Context(), c)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (h *Handler) handleUpdateClassLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var c ClassLevel
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	updated, err := h.service.UpdateClassLevel(r.Context(), id, c)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) handleDeleteClassLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteClassLevel(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "class level deleted"})
}

func (h *Handler) handleListSections(w http.ResponseWriter, r *http.Request) {
	classLevelID, _ := strconv.ParseInt(r.URL.Query().Get("classLevelId"), 10, 64)
	sections, err := h.service.ListSections(r.Context(), classLevelID)
	if err != nil {
		h.logger.Error("list sections", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sections})
}

func (h *Handler) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var s Section
	if err := httpx.DecodeJSON(r, &s); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	created, err := h.service.CreateSection(r.Context(), s)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (h *Handler) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var s Section
	if err := httpx.DecodeJSON(r, &s); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	updated, err := h.service.UpdateSection(r.Context(), id, s)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSection(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "section deleted"})
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		h.logger.Error("list subjects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": subjects})
}

func (h *Handler) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var s Subject
	if err := httpx.DecodeJSON(r, &s); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	created, err := h.service.CreateSubject(r.Context(), s)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (h *Handler) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var s Subject
	if err := httpx.DecodeJSON(r, &s); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	updated, err := h.service.UpdateSubject(r.Context(), id, s)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSubject(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "subject deleted"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
