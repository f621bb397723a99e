// Package attendance records daily presence per student and section.
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/scholaris-sms/scholaris/internal/platform/db"
	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Mark enumerates the attendance states.
type Mark string

const (
	MarkPresent Mark = "PRESENT"
	MarkAbsent  Mark = "ABSENT"
	MarkLate    Mark = "LATE"
	MarkExcused Mark = "EXCUSED"
)

// Valid reports whether m is a known mark.
func (m Mark) Valid() bool {
	switch m {
	case MarkPresent, MarkAbsent, MarkLate, MarkExcused:
		return true
	}
	return false
}

// Record is one student's mark for one day. (student, date) is unique;
// re-submitting a day replaces the mark.
type Record struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"studentId"`
	SectionID int64     `json:"sectionId"`
	Date      time.Time `json:"date"`
	Mark      Mark      `json:"mark"`
	Note      string    `json:"note,omitempty"`
	TakenBy   *int64    `json:"takenBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Entry is one line in a bulk sheet submission.
type Entry struct {
	StudentID int64  `json:"studentId"`
	Mark      Mark   `json:"mark"`
	Note      string `json:"note,omitempty"`
}

// Repository is the persistence port for attendance.
type Repository interface {
	UpsertSheet(ctx context.Context, sectionID int64, date time.Time, takenBy *int64, entries []Entry) error
	ListBySection(ctx context.Context, sectionID int64, date time.Time) ([]Record, error)
	ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]Record, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// UpsertSheet writes a whole section's sheet atomically. Existing marks for
// the same (student, date) are replaced.
func (r *repository) UpsertSheet(ctx context.Context, sectionID int64, date time.Time, takenBy *int64, entries []Entry) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, e := range entries {
			_, err := tx.Exec(ctx, `
				INSERT INTO attendance_records (student_id, section_id, date, mark, note, taken_by)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (student_id, date) DO UPDATE SET
					mark = EXCLUDED.mark, note = EXCLUDED.note,
					section_id = EXCLUDED.section_id, taken_by = EXCLUDED.taken_by`,
				e.StudentID, sectionID, date, e.Mark, e.Note, takenBy,
			)
			if err != nil {
				return fmt.Errorf("attendance: upsert mark: %w", err)
			}
		}
		return nil
	})
}

func (r *repository) ListBySection(ctx context.Context, sectionID int64, date time.Time) ([]Record, error) {
	return r.list(ctx, `
		SELECT id, student_id, section_id, date, mark, coalesce(note, ''), taken_by, created_at
		FROM attendance_records
		WHERE section_id = $1 AND date = $2
		ORDER BY student_id`, sectionID, date)
}

func (r *repository) ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]Record, error) {
	return r.list(ctx, `
		SELECT id, student_id, section_id, date, mark, coalesce(note, ''), taken_by, created_at
		FROM attendance_records
		WHERE student_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`, studentID, from, to)
}

func (r *repository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("attendance: list: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.SectionID, &rec.Date, &rec.Mark,
			&rec.Note, &rec.TakenBy, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("attendance: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Service validates sheet submissions.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SubmitSheet stores a section's marks for a day.
func (s *Service) SubmitSheet(ctx context.Context, takenBy *int64, sectionID int64, date time.Time, entries []Entry) error {
	if sectionID <= 0 {
		return shared.NewValidationError(map[string]string{"sectionId": "required"})
	}
	if len(entries) == 0 {
		return shared.NewValidationError(map[string]string{"entries": "required"})
	}
	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if e.StudentID <= 0 || !e.Mark.Valid() {
			return shared.NewValidationError(map[string]string{"entries": "invalid student or mark"})
		}
		if seen[e.StudentID] {
			return shared.NewValidationError(map[string]string{"entries": "duplicate student in sheet"})
		}
		seen[e.StudentID] = true
	}
	return s.repo.UpsertSheet(ctx, sectionID, date, takenBy, entries)
}

func (s *Service) SectionSheet(ctx context.Context, sectionID int64, date time.Time) ([]Record, error) {
	return s.repo.ListBySection(ctx, sectionID, date)
}

func (s *Service) StudentHistory(ctx context.Context, studentID int64, from, to time.Time) ([]Record, error) {
	return s.repo.ListByStudent(ctx, studentID, from, to)
}

// Handler wires attendance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers attendance routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	read := h.authz.RequireAny(rbac.PermissionName(rbac.ActionRead, rbac.SubjectAttendance))
	write := h.authz.RequireAny(
		rbac.PermissionName(rbac.ActionCreate, rbac.SubjectAttendance),
		rbac.PermissionName(rbac.ActionUpdate, rbac.SubjectAttendance),
	)

	r.Route("/attendance", func(r chi.Router) {
		r.With(write).Post("/", h.handleSubmit)
		r.With(read).Get("/section/{sectionId}", h.handleSectionSheet)
		r.With(read).Get("/student/{studentId}", h.handleStudentHistory)
	})
}

type sheetRequest struct {
	SectionID int64   `json:"sectionId"`
	Date      string  `json:"date"`
	Entries   []Entry `json:"entries"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req sheetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "date must use YYYY-MM-DD")
		return
	}

	var takenBy *int64
	if id := shared.IdentityFromContext(r.Context()); id != nil {
		takenBy = &id.AccountID
	}
	if err := h.service.SubmitSheet(r.Context(), takenBy, req.SectionID, date, req.Entries); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "attendance recorded"})
}

func (h *Handler) handleSectionSheet(w http.ResponseWriter, r *http.Request) {
	sectionID, err := strconv.ParseInt(chi.URLParam(r, "sectionId"), 10, 64)
	if err != nil || sectionID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "sectionId must be a positive integer")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "date must use YYYY-MM-DD")
		return
	}
	records, err := h.service.SectionSheet(r.Context(), sectionID, date)
	if err != nil {
		h.logger.Error("section sheet", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records})
}

func (h *Handler) handleStudentHistory(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentId"), 10, 64)
	if err != nil || studentID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "studentId must be a positive integer")
		return
	}
	q := r.URL.Query()
	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "from must use YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "to must use YYYY-MM-DD")
		return
	}
	records, err := h.service.StudentHistory(r.Context(), studentID, from, to)
	if err != nil {
		h.logger.Error("student history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records})
}
