package students

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/rbac"
)

// Handler wires student endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers student routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	perm := func(a rbac.Action) func(http.Handler) http.Handler {
		return h.authz.RequireAny(rbac.PermissionName(a, rbac.SubjectStudent))
	}
	r.Route("/students", func(r chi.Router) {
		r.With(perm(rbac.ActionRead)).Get("/", h.handleList)
		r.With(perm(rbac.ActionRead)).Get("/{id}", h.handleGet)
		r.With(perm(rbac.ActionCreate)).Post("/", h.handleAdmit)
		r.With(perm(rbac.ActionUpdate)).Put("/{id}", h.handleUpdate)
	})
}

type studentRequest struct {
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	DateOfBirth   *string `json:"dateOfBirth"`
	Gender        *string `json:"gender"`
	GuardianName  *string `json:"guardianName"`
	GuardianPhone *string `json:"guardianPhone"`
	SectionID     *int64  `json:"sectionId"`
	Status        *string `json:"status"`
}

func (h *Handler) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	in := CreateInput{SectionID: req.SectionID}
	if req.FirstName != nil {
		in.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		in.LastName = *req.LastName
	}
	if req.Gender != nil {
		in.Gender = *req.Gender
	}
	if req.GuardianName != nil {
		in.GuardianName = *req.GuardianName
	}
	if req.GuardianPhone != nil {
		in.GuardianPhone = *req.GuardianPhone
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "dateOfBirth must use YYYY-MM-DD")
			return
		}
		in.DateOfBirth = &dob
	}

	student, err := h.service.Admit(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": student})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req studentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	in := UpdateInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Gender:        req.Gender,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		SectionID:     req.SectionID,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "dateOfBirth must use YYYY-MM-DD")
			return
		}
		in.DateOfBirth = &dob
	}
	if req.Status != nil {
		status := EnrollmentStatus(*req.Status)
		in.Status = &status
	}

	student, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": student})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	student, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": student})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilters{
		Search: q.Get("search"),
		Status: EnrollmentStatus(q.Get("status")),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.SectionID, _ = strconv.ParseInt(q.Get("sectionId"), 10, 64)

	page, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list students", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
