package finance

import (
	"errors"
	"fmt"
	"time"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "DRAFT"
	StatusIssued  InvoiceStatus = "ISSUED"
	StatusPaid    InvoiceStatus = "PAID"
	StatusVoid    InvoiceStatus = "VOID"
	StatusOverdue InvoiceStatus = "OVERDUE"
)

var (
	// ErrInvoiceNotDraft rejects issuing an invoice twice.
	ErrInvoiceNotDraft = errors.New("invoice is not in draft")
	// ErrInvoiceNotPayable rejects payments on invoices outside ISSUED/OVERDUE.
	ErrInvoiceNotPayable = errors.New("invoice does not accept payments")
	// ErrInvoiceHasPayments blocks voiding once money has been received.
	ErrInvoiceHasPayments = errors.New("invoice has recorded payments")
	// ErrOverpayment rejects payments above the outstanding balance.
	ErrOverpayment = errors.New("payment exceeds outstanding balance")
)

// FeeType is a billable fee category (tuition, transport, ...).
type FeeType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Amount      float64   `json:"amount"`
	Recurring   bool      `json:"recurring"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Invoice bills one student for one fee type. The number is allocated when
// the invoice is issued, not when it is drafted.
type Invoice struct {
	ID         int64         `json:"id"`
	Number     string        `json:"number,omitempty"`
	StudentID  int64         `json:"studentId"`
	FeeTypeID  int64         `json:"feeTypeId"`
	Amount     float64       `json:"amount"`
	AmountPaid float64       `json:"amountPaid"`
	Status     InvoiceStatus `json:"status"`
	DueDate    time.Time     `json:"dueDate"`
	IssuedAt   *time.Time    `json:"issuedAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Outstanding returns the unpaid remainder.
func (i Invoice) Outstanding() float64 {
	return i.Amount - i.AmountPaid
}

// Payable reports whether the invoice can accept a payment.
func (i Invoice) Payable() bool {
	return i.Status == StatusIssued || i.Status == StatusOverdue
}

// Payment is a received amount against an issued invoice.
type Payment struct {
	ID         int64     `json:"id"`
	InvoiceID  int64     `json:"invoiceId"`
	Amount     float64   `json:"amount"`
	Method     string    `json:"method"`
	Reference  string    `json:"reference,omitempty"`
	Note       string    `json:"note,omitempty"`
	PaidAt     time.Time `json:"paidAt"`
	RecordedBy *int64    `json:"recordedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// InvoiceNumber formats the invoice identifier for a year and sequence.
func InvoiceNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%05d", year, seq)
}
