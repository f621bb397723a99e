package finance

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/scholaris-sms/scholaris/internal/audit"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

const moduleName = "finance"

// Service implements the billing lifecycle: fee types, invoice drafting,
// issuing, payments and the overdue sweep.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) ListFeeTypes(ctx context.Context) ([]FeeType, error) {
	return s.repo.ListFeeTypes(ctx)
}

func (s *Service) CreateFeeType(ctx context.Context, f FeeType) (FeeType, error) {
	if err := validateFeeType(&f); err != nil {
		return FeeType{}, err
	}
	if err := s.repo.CreateFeeType(ctx, &f); err != nil {
		return FeeType{}, err
	}
	return f, nil
}

func (s *Service) UpdateFeeType(ctx context.Context, id int64, f FeeType) (FeeType, error) {
	f.ID = id
	if err := validateFeeType(&f); err != nil {
		return FeeType{}, err
	}
	if err := s.repo.UpdateFeeType(ctx, f); err != nil {
		return FeeType{}, err
	}
	return f, nil
}

func (s *Service) DeleteFeeType(ctx context.Context, id int64) error {
	return s.repo.DeleteFeeType(ctx, id)
}

// DraftInvoice creates an unnumbered draft for a student and fee type.
func (s *Service) DraftInvoice(ctx context.Context, studentID, feeTypeID int64, amount float64, dueDate time.Time) (Invoice, error) {
	fields := map[string]string{}
	if studentID <= 0 {
		fields["studentId"] = "required"
	}
	if feeTypeID <= 0 {
		fields["feeTypeId"] = "required"
	}
	if amount <= 0 {
		fields["amount"] = "must be positive"
	}
	if dueDate.IsZero() {
		fields["dueDate"] = "required"
	}
	if len(fields) > 0 {
		return Invoice{}, shared.NewValidationError(fields)
	}

	inv := Invoice{
		StudentID: studentID,
		FeeTypeID: feeTypeID,
		Amount:    amount,
		Status:    StatusDraft,
		DueDate:   dueDate,
	}
	if err := s.repo.CreateInvoice(ctx, &inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// IssueInvoice allocates the INV number and opens the invoice for payment.
func (s *Service) IssueInvoice(ctx context.Context, actorID *int64, id int64) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status != StatusDraft {
		return Invoice{}, ErrInvoiceNotDraft
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		year := s.now().Year()
		seq, err := tx.NextInvoiceSeq(ctx, year)
		if err != nil {
			return err
		}
		issuedAt := s.now()
		inv.Number = InvoiceNumber(year, seq)
		inv.Status = StatusIssued
		inv.IssuedAt = &issuedAt
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionInvoiceIssue,
			Module:   moduleName,
			EntityID: &inv.ID,
			Meta:     map[string]any{"number": inv.Number, "amount": inv.Amount},
		})
	})
	if err != nil {
		return Invoice{}, err
	}

	s.logger.Info("invoice issued", slog.String("number", inv.Number))
	return inv, nil
}

// VoidInvoice cancels an invoice that has no recorded payments.
func (s *Service) VoidInvoice(ctx context.Context, actorID *int64, id int64) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status == StatusVoid || inv.Status == StatusPaid {
		return Invoice{}, ErrInvoiceNotPayable
	}
	if inv.AmountPaid > 0 {
		return Invoice{}, ErrInvoiceHasPayments
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv.Status = StatusVoid
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionInvoiceVoid,
			Module:   moduleName,
			EntityID: &inv.ID,
			Meta:     map[string]any{"number": inv.Number},
		})
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// RecordPayment applies a payment against an issued invoice. The payment row,
// balance update, status flip and audit entry share one transaction.
func (s *Service) RecordPayment(ctx context.Context, actorID *int64, invoiceID int64, amount float64, method, reference, note string) (Payment, error) {
	if amount <= 0 {
		return Payment{}, shared.NewValidationError(map[string]string{"amount": "must be positive"})
	}
	if strings.TrimSpace(method) == "" {
		return Payment{}, shared.NewValidationError(map[string]string{"method": "required"})
	}

	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Payment{}, err
	}
	if !inv.Payable() {
		return Payment{}, ErrInvoiceNotPayable
	}
	if amount > inv.Outstanding() {
		return Payment{}, ErrOverpayment
	}

	payment := Payment{
		InvoiceID:  invoiceID,
		Amount:     amount,
		Method:     strings.TrimSpace(method),
		Reference:  strings.TrimSpace(reference),
		Note:       strings.TrimSpace(note),
		PaidAt:     s.now(),
		RecordedBy: actorID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.CreatePayment(ctx, &payment); err != nil {
			return err
		}
		inv.AmountPaid += amount
		if inv.Outstanding() <= 0 {
			inv.Status = StatusPaid
		}
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionPaymentRecord,
			Module:   moduleName,
			EntityID: &invoiceID,
			Meta: map[string]any{
				"amount":  amount,
				"method":  payment.Method,
				"settled": inv.Status == StatusPaid,
			},
		})
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// SweepOverdue marks issued invoices past their due date as overdue.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	ids, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		s.logger.Info("invoices marked overdue", slog.Int("count", len(ids)))
	}
	return len(ids), nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, f InvoiceFilters) (shared.Page[Invoice], error) {
	meta := shared.NewPagination(f.Page, f.Limit, 0)
	items, total, err := s.repo.ListInvoices(ctx, f, meta.Limit, meta.Offset())
	if err != nil {
		return shared.Page[Invoice]{}, err
	}
	return shared.NewPage(items, shared.NewPagination(meta.Page, meta.Limit, total)), nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, invoiceID)
}

func validateFeeType(f *FeeType) error {
	f.Name = strings.TrimSpace(f.Name)
	fields := map[string]string{}
	if f.Name == "" {
		fields["name"] = "required"
	}
	if f.Amount <= 0 {
		fields["amount"] = "must be positive"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}
