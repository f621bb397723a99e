package finance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-sms/scholaris/internal/audit"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

type memFinanceRepo struct {
	feeTypes  map[int64]FeeType
	invoices  map[int64]Invoice
	payments  map[int64][]Payment
	seqByYear map[int]int
	auditLog  []audit.Entry
	nextID    int64
	failures  map[string]error
}

func newMemFinanceRepo() *memFinanceRepo {
	return &memFinanceRepo{
		feeTypes:  map[int64]FeeType{},
		invoices:  map[int64]Invoice{},
		payments:  map[int64][]Payment{},
		seqByYear: map[int]int{},
		failures:  map[string]error{},
	}
}

func (m *memFinanceRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	snapInvoices := make(map[int64]Invoice, len(m.invoices))
	for k, v := range m.invoices {
		snapInvoices[k] = v
	}
	snapPayments := make(map[int64][]Payment, len(m.payments))
	for k, v := range m.payments {
		snapPayments[k] = append([]Payment(nil), v...)
	}
	snapAudit := append([]audit.Entry(nil), m.auditLog...)
	snapSeq := make(map[int]int, len(m.seqByYear))
	for k, v := range m.seqByYear {
		snapSeq[k] = v
	}

	if err := fn(ctx, m); err != nil {
		m.invoices = snapInvoices
		m.payments = snapPayments
		m.auditLog = snapAudit
		m.seqByYear = snapSeq
		return err
	}
	return nil
}

func (m *memFinanceRepo) ListFeeTypes(context.Context) ([]FeeType, error) { return nil, nil }

func (m *memFinanceRepo) CreateFeeType(_ context.Context, f *FeeType) error {
	m.nextID++
	f.ID = m.nextID
	m.feeTypes[f.ID] = *f
	return nil
}

func (m *memFinanceRepo) UpdateFeeType(_ context.Context, f FeeType) error {
	m.feeTypes[f.ID] = f
	return nil
}

func (m *memFinanceRepo) DeleteFeeType(_ context.Context, id int64) error {
	delete(m.feeTypes, id)
	return nil
}

func (m *memFinanceRepo) CreateInvoice(_ context.Context, inv *Invoice) error {
	m.nextID++
	inv.ID = m.nextID
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *memFinanceRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (m *memFinanceRepo) UpdateInvoice(_ context.Context, inv Invoice) error {
	if err := m.failures["UpdateInvoice"]; err != nil {
		return err
	}
	if _, ok := m.invoices[inv.ID]; !ok {
		return shared.ErrNotFound
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *memFinanceRepo) ListInvoices(_ context.Context, f InvoiceFilters, limit, offset int) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, len(out), nil
}

func (m *memFinanceRepo) NextInvoiceSeq(_ context.Context, year int) (int, error) {
	m.seqByYear[year]++
	return m.seqByYear[year], nil
}

func (m *memFinanceRepo) MarkOverdue(_ context.Context, asOf time.Time) ([]int64, error) {
	var ids []int64
	for id, inv := range m.invoices {
		if inv.Status == StatusIssued && inv.DueDate.Before(asOf) {
			inv.Status = StatusOverdue
			m.invoices[id] = inv
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memFinanceRepo) CreatePayment(_ context.Context, p *Payment) error {
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.payments[p.InvoiceID] = append(m.payments[p.InvoiceID], *p)
	return nil
}

func (m *memFinanceRepo) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	return m.payments[invoiceID], nil
}

func (m *memFinanceRepo) RecordAudit(_ context.Context, e audit.Entry) error {
	m.auditLog = append(m.auditLog, e)
	return nil
}

func newTestService(repo *memFinanceRepo) *Service {
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func draftAndIssue(t *testing.T, svc *Service, amount float64, due time.Time) Invoice {
	t.Helper()
	ctx := context.Background()
	draft, err := svc.DraftInvoice(ctx, 1, 1, amount, due)
	require.NoError(t, err)
	issued, err := svc.IssueInvoice(ctx, nil, draft.ID)
	require.NoError(t, err)
	return issued
}

func TestIssueInvoiceAssignsSequentialNumbers(t *testing.T) {
	repo := newMemFinanceRepo()
	svc := newTestService(repo)
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	first := draftAndIssue(t, svc, 100, due)
	second := draftAndIssue(t, svc, 150, due)

	assert.Equal(t, "INV-2026-00001", first.Number)
	assert.Equal(t, "INV-2026-00002", second.Number)
	assert.Equal(t, StatusIssued, first.Status)
	require.NotEmpty(t, repo.auditLog)
	assert.Equal(t, audit.ActionInvoiceIssue, repo.auditLog[0].Action)
}

func TestIssueTwiceRejected(t *testing.T) {
	svc := newTestService(newMemFinanceRepo())
	issued := draftAndIssue(t, svc, 100, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.IssueInvoice(context.Background(), nil, issued.ID)
	assert.ErrorIs(t, err, ErrInvoiceNotDraft)
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	repo := newMemFinanceRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	issued := draftAndIssue(t, svc, 200, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.RecordPayment(ctx, nil, issued.ID, 80, "cash", "", "")
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, nil, issued.ID, 120, "transfer", "TRX-1", "")
	require.NoError(t, err)

	inv := repo.invoices[issued.ID]
	assert.Equal(t, StatusPaid, inv.Status)
	assert.InDelta(t, 200, inv.AmountPaid, 0.001)
	assert.Len(t, repo.payments[issued.ID], 2)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	svc := newTestService(newMemFinanceRepo())
	issued := draftAndIssue(t, svc, 100, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.RecordPayment(context.Background(), nil, issued.ID, 150, "cash", "", "")
	assert.ErrorIs(t, err, ErrOverpayment)
}

func TestRecordPaymentOnDraftRejected(t *testing.T) {
	svc := newTestService(newMemFinanceRepo())
	draft, err := svc.DraftInvoice(context.Background(), 1, 1, 100, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), nil, draft.ID, 50, "cash", "", "")
	assert.ErrorIs(t, err, ErrInvoiceNotPayable)
}

func TestRecordPaymentRollsBackWhenBalanceUpdateFails(t *testing.T) {
	repo := newMemFinanceRepo()
	svc := newTestService(repo)
	issued := draftAndIssue(t, svc, 100, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	repo.failures["UpdateInvoice"] = assert.AnError
	_, err := svc.RecordPayment(context.Background(), nil, issued.ID, 50, "cash", "", "")
	require.ErrorIs(t, err, assert.AnError)

	assert.Empty(t, repo.payments[issued.ID], "payment row must roll back with the balance")
	assert.InDelta(t, 0, repo.invoices[issued.ID].AmountPaid, 0.001)
}

func TestVoidInvoiceWithPaymentsRejected(t *testing.T) {
	svc := newTestService(newMemFinanceRepo())
	ctx := context.Background()
	issued := draftAndIssue(t, svc, 100, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.RecordPayment(ctx, nil, issued.ID, 50, "cash", "", "")
	require.NoError(t, err)

	_, err = svc.VoidInvoice(ctx, nil, issued.ID)
	assert.ErrorIs(t, err, ErrInvoiceHasPayments)
}

func TestSweepOverdueFlipsIssuedPastDue(t *testing.T) {
	repo := newMemFinanceRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	late := draftAndIssue(t, svc, 100, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	onTime := draftAndIssue(t, svc, 100, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	count, err := svc.SweepOverdue(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.Equal(t, StatusOverdue, repo.invoices[late.ID].Status)
	assert.Equal(t, StatusIssued, repo.invoices[onTime.ID].Status)

	payment, err := svc.RecordPayment(ctx, nil, late.ID, 100, "cash", "", "")
	require.NoError(t, err)
	assert.Equal(t, late.ID, payment.InvoiceID)
	assert.Equal(t, StatusPaid, repo.invoices[late.ID].Status)
}
