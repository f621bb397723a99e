package exams

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/rbac"
)

// Handler wires exam endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers exam routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	perm := func(a rbac.Action) func(http.Handler) http.Handler {
		return h.authz.RequireAny(rbac.PermissionName(a, rbac.SubjectExam))
	}

	r.Route("/exams", func(r chi.Router) {
		r.With(perm(rbac.ActionRead)).Get("/", h.handleList)
		r.With(perm(rbac.ActionRead)).Get("/{id}", h.handleGet)
		r.With(perm(rbac.ActionRead)).Get("/{id}/results", h.handleExamResults)
		r.With(perm(rbac.ActionCreate)).Post("/", h.handleCreate)
		r.With(perm(rbac.ActionUpdate)).Put("/{id}", h.handleUpdate)
		r.With(perm(rbac.ActionDelete)).Delete("/{id}", h.handleDelete)
		r.With(perm(rbac.ActionCreate)).Post("/{id}/results", h.handleSubmitResults)
		r.With(perm(rbac.ActionRead)).Get("/student/{studentId}/results", h.handleStudentResults)
	})
}

type examRequest struct {
	Name           string  `json:"name"`
	AcademicYearID int64   `json:"academicYearId"`
	SubjectID      int64   `json:"subjectId"`
	SectionID      int64   `json:"sectionId"`
	Date           string  `json:"date"`
	MaxScore       float64 `json:"maxScore"`
}

func (req examRequest) toExam(w http.ResponseWriter) (Exam, bool) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "date must use YYYY-MM-DD")
		return Exam{}, false
	}
	return Exam{
		Name:           req.Name,
		AcademicYearID: req.AcademicYearID,
		SubjectID:      req.SubjectID,
		SectionID:      req.SectionID,
		Date:           date,
		MaxScore:       req.MaxScore,
	}, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	yearID, _ := strconv.ParseInt(q.Get("academicYearId"), 10, 64)
	sectionID, _ := strconv.ParseInt(q.Get("sectionId"), 10, 64)

	exams, err := h.service.ListExams(r.Context(), yearID, sectionID)
	if err != nil {
		h.logger.Error("list exams", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": exams})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	exam, err := h.service.GetExam(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": exam})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	exam, ok := req.toExam(w)
	if !ok {
		return
	}
	created, err := h.service.CreateExam(r.Context(), exam)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req examRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	exam, ok := req.toExam(w)
	if !ok {
		return
	}
	updated, err := h.service.UpdateExam(r.Context(), id, exam)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteExam(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "exam deleted"})
}

func (h *Handler) handleSubmitResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Results []ResultEntry `json:"results"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	results, err := h.service.SubmitResults(r.Context(), id, req.Results)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": results})
}

func (h *Handler) handleExamResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	results, err := h.service.ExamResults(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": results})
}

func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "studentId")
	if !ok {
		return
	}
	results, err := h.service.StudentResults(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": results})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
