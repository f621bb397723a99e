package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-sms/scholaris/internal/audit"
	platformdb "github.com/scholaris-sms/scholaris/internal/platform/db"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// InvoiceFilters narrows an invoice listing.
type InvoiceFilters struct {
	StudentID int64
	Status    InvoiceStatus
	Page      int
	Limit     int
}

// Repository is the persistence port for billing. WithTx yields a repository
// bound to a transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	ListFeeTypes(ctx context.Context) ([]FeeType, error)
	CreateFeeType(ctx context.Context, f *FeeType) error
	UpdateFeeType(ctx context.Context, f FeeType) error
	DeleteFeeType(ctx context.Context, id int64) error

	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	ListInvoices(ctx context.Context, f InvoiceFilters, limit, offset int) ([]Invoice, int, error)
	NextInvoiceSeq(ctx context.Context, year int) (int, error)
	MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error)

	CreatePayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)

	RecordAudit(ctx context.Context, e audit.Entry) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository on Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, db: pool}
}

func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{pool: r.pool, db: tx})
	})
}

func (r *PGRepository) ListFeeTypes(ctx context.Context) ([]FeeType, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, coalesce(description, ''), amount, recurring, created_at
		FROM fee_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("finance: list fee types: %w", err)
	}
	defer rows.Close()

	out := []FeeType{}
	for rows.Next() {
		var f FeeType
		if err := rows.Scan(&f.ID, &f.Name, &f.Description, &f.Amount, &f.Recurring, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("finance: scan fee type: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PGRepository) CreateFeeType(ctx context.Context, f *FeeType) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO fee_types (name, description, amount, recurring)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		f.Name, f.Description, f.Amount, f.Recurring,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("finance: create fee type: %w", translateConstraint(err))
	}
	return nil
}

func (r *PGRepository) UpdateFeeType(ctx context.Context, f FeeType) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE fee_types SET name = $2, description = $3, amount = $4, recurring = $5 WHERE id = $1`,
		f.ID, f.Name, f.Description, f.Amount, f.Recurring,
	)
	if err != nil {
		return fmt.Errorf("finance: update fee type: %w", translateConstraint(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) DeleteFeeType(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM fee_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("finance: delete fee type: %w", translateConstraint(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) CreateInvoice(ctx context.Context, inv *Invoice) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoices (student_id, fee_type_id, amount, amount_paid, status, due_date)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id, created_at, updated_at`,
		inv.StudentID, inv.FeeTypeID, inv.Amount, inv.Status, inv.DueDate,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("finance: create invoice: %w", translateConstraint(err))
	}
	return nil
}

func (r *PGRepository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	var number *string
	err := r.db.QueryRow(ctx, `
		SELECT id, number, student_id, fee_type_id, amount, amount_paid, status, due_date,
		       issued_at, created_at, updated_at
		FROM invoices WHERE id = $1`, id,
	).Scan(&inv.ID, &number, &inv.StudentID, &inv.FeeTypeID, &inv.Amount, &inv.AmountPaid,
		&inv.Status, &inv.DueDate, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("finance: get invoice: %w", err)
	}
	if number != nil {
		inv.Number = *number
	}
	return inv, nil
}

func (r *PGRepository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	var number *string
	if inv.Number != "" {
		number = &inv.Number
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET number = $2, amount = $3, amount_paid = $4, status = $5, due_date = $6,
		    issued_at = $7, updated_at = now()
		WHERE id = $1`,
		inv.ID, number, inv.Amount, inv.AmountPaid, inv.Status, inv.DueDate, inv.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("finance: update invoice: %w", translateConstraint(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) ListInvoices(ctx context.Context, f InvoiceFilters, limit, offset int) ([]Invoice, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if f.StudentID != 0 {
		args = append(args, f.StudentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM invoices"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("finance: count invoices: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, coalesce(number, ''), student_id, fee_type_id, amount, amount_paid, status,
		       due_date, issued_at, created_at, updated_at
		FROM invoices%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("finance: list invoices: %w", err)
	}
	defer rows.Close()

	out := make([]Invoice, 0, limit)
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.StudentID, &inv.FeeTypeID, &inv.Amount,
			&inv.AmountPaid, &inv.Status, &inv.DueDate, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("finance: scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

// NextInvoiceSeq allocates the next number in the per-year sequence. The
// counter row lock serialises concurrent issues.
func (r *PGRepository) NextInvoiceSeq(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoice_counters (year, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = invoice_counters.last_seq + 1
		RETURNING last_seq`, year,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("finance: next invoice seq: %w", err)
	}
	return seq, nil
}

// MarkOverdue flips issued invoices past their due date and returns their ids.
func (r *PGRepository) MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE invoices SET status = $1, updated_at = now()
		WHERE status = $2 AND due_date < $3
		RETURNING id`,
		StatusOverdue, StatusIssued, asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("finance: mark overdue: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("finance: scan overdue id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PGRepository) CreatePayment(ctx context.Context, p *Payment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (invoice_id, amount, method, reference, note, paid_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		p.InvoiceID, p.Amount, p.Method, p.Reference, p.Note, p.PaidAt, p.RecordedBy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("finance: create payment: %w", translateConstraint(err))
	}
	return nil
}

func (r *PGRepository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, amount, method, coalesce(reference, ''), coalesce(note, ''),
		       paid_at, recorded_by, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY paid_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("finance: list payments: %w", err)
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.Note,
			&p.PaidAt, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("finance: scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepository) RecordAudit(ctx context.Context, e audit.Entry) error {
	return audit.Record(ctx, r.db, e)
}

func translateConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.NewValidationError(map[string]string{"name": "already exists"})
		case "23503":
			return shared.NewValidationError(map[string]string{"reference": "unknown reference in payload"})
		}
	}
	return err
}
