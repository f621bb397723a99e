package finance

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-sms/scholaris/internal/platform/httpx"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// SchoolNameFunc resolves the school display name for printed documents.
type SchoolNameFunc func(ctx context.Context) string

// Handler wires billing endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	authz      rbac.Middleware
	renderer   PDFRenderer
	schoolName SchoolNameFunc
}

func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware, renderer PDFRenderer, schoolName SchoolNameFunc) *Handler {
	return &Handler{logger: logger, service: service, authz: authz, renderer: renderer, schoolName: schoolName}
}

// MountRoutes registers finance routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	perm := func(a rbac.Action) func(http.Handler) http.Handler {
		return h.authz.RequireAny(rbac.PermissionName(a, rbac.SubjectFinance))
	}

	r.Route("/fee-types", func(r chi.Router) {
		r.With(perm(rbac.ActionRead)).Get("/", h.handleListFeeTypes)
		r.With(perm(rbac.ActionCreate)).Post("/", h.handleCreateFeeType)
		r.With(perm(rbac.ActionUpdate)).Put("/{id}", h.handleUpdateFeeType)
		r.With(perm(rbac.ActionDelete)).Delete("/{id}", h.handleDeleteFeeType)
	})

	r.Route("/invoices", func(r chi.Router) {
		r.With(perm(rbac.ActionRead)).Get("/", h.handleListInvoices)
		r.With(perm(rbac.ActionRead)).Get("/{id}", h.handleGetInvoice)
		r.With(perm(rbac.ActionRead)).Get("/{id}/payments", h.handleListPayments)
		r.With(perm(rbac.ActionRead)).Get("/{id}/pdf", h.handleInvoicePDF)
		r.With(perm(rbac.ActionCreate)).Post("/", h.handleDraftInvoice)
		r.With(perm(rbac.ActionUpdate)).Post("/{id}/issue", h.handleIssueInvoice)
		r.With(perm(rbac.ActionUpdate)).Post("/{id}/void", h.handleVoidInvoice)
		r.With(perm(rbac.ActionCreate)).Post("/{id}/payments", h.handleRecordPayment)
	})
}

type feeTypeRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Recurring   bool    `json:"recurring"`
}

type invoiceRequest struct {
	StudentID int64   `json:"studentId"`
	FeeTypeID int64   `json:"feeTypeId"`
	Amount    float64 `json:"amount"`
	DueDate   string  `json:"dueDate"`
}

type paymentRequest struct {
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
	Note      string  `json:"note"`
}

func (h *Handler) handleListFeeTypes(w http.ResponseWriter, r *http.Request) {
	feeTypes, err := h.service.ListFeeTypes(r.Context())
	if err != nil {
		h.logger.Error("list fee types", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": feeTypes})
}

func (h *Handler) handleCreateFeeType(w http.ResponseWriter, r *http.Request) {
	var req feeTypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	created, err := h.service.CreateFeeType(r.Context(), FeeType{
		Name: req.Name, Description: req.Description, Amount: req.Amount, Recurring: req.Recurring,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (h *Handler) handleUpdateFeeType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req feeTypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	updated, err := h.service.UpdateFeeType(r.Context(), id, FeeType{
		Name: req.Name, Description: req.Description, Amount: req.Amount, Recurring: req.Recurring,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) handleDeleteFeeType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteFeeType(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "fee type deleted"})
}

func (h *Handler) handleDraftInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "dueDate must use YYYY-MM-DD")
		return
	}
	inv, err := h.service.DraftInvoice(r.Context(), req.StudentID, req.FeeTypeID, req.Amount, dueDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": inv})
}

func (h *Handler) handleIssueInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.IssueInvoice(r.Context(), actorID(r), id)
	if err != nil {
		h.respondError(w, "issue invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

func (h *Handler) handleVoidInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.VoidInvoice(r.Context(), actorID(r), id)
	if err != nil {
		h.respondError(w, "void invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), actorID(r), id, req.Amount, req.Method, req.Reference, req.Note)
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": payment})
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := InvoiceFilters{Status: InvoiceStatus(q.Get("status"))}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.StudentID, _ = strconv.ParseInt(q.Get("studentId"), 10, 64)

	page, err := h.service.ListInvoices(r.Context(), f)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": payments})
}

func (h *Handler) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if h.renderer == nil {
		httpx.Error(w, http.StatusServiceUnavailable, "document rendering unavailable")
		return
	}
	name := "School"
	if h.schoolName != nil {
		name = h.schoolName(r.Context())
	}
	pdf, err := h.service.RenderInvoicePDF(r.Context(), h.renderer, name, "School fees", id)
	if err != nil {
		h.respondError(w, "render invoice pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=invoice.pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotDraft), errors.Is(err, ErrInvoiceNotPayable),
		errors.Is(err, ErrInvoiceHasPayments), errors.Is(err, ErrOverpayment):
		httpx.Error(w, http.StatusConflict, err.Error())
	default:
		if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrValidation) {
			h.logger.Error(op, slog.Any("error", err))
		}
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
