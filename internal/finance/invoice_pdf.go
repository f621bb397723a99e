package finance

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

// PDFRenderer converts HTML into a PDF document.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: sans-serif; margin: 2rem; }
h1 { font-size: 1.4rem; }
table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem; text-align: left; }
.total { font-weight: bold; }
</style>
</head>
<body>
<h1>{{.SchoolName}}</h1>
<p>Invoice <strong>{{.Invoice.Number}}</strong> &mdash; issued {{.IssuedAt}}</p>
<p>Status: {{.Invoice.Status}} &middot; Due {{.DueDate}}</p>
<table>
<tr><th>Description</th><th>Amount</th></tr>
<tr><td>{{.FeeName}}</td><td>{{printf "%.2f" .Invoice.Amount}}</td></tr>
{{range .Payments}}
<tr><td>Payment ({{.Method}}) {{.Reference}}</td><td>-{{printf "%.2f" .Amount}}</td></tr>
{{end}}
<tr class="total"><td>Outstanding</td><td>{{printf "%.2f" .Invoice.Outstanding}}</td></tr>
</table>
</body>
</html>`))

type invoiceDocument struct {
	SchoolName string
	FeeName    string
	Invoice    Invoice
	Payments   []Payment
	IssuedAt   string
	DueDate    string
}

// RenderInvoicePDF produces the printable invoice via the PDF renderer.
func (s *Service) RenderInvoicePDF(ctx context.Context, renderer PDFRenderer, schoolName, feeName string, id int64) ([]byte, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Number == "" {
		return nil, ErrInvoiceNotPayable
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	doc := invoiceDocument{
		SchoolName: schoolName,
		FeeName:    feeName,
		Invoice:    inv,
		Payments:   payments,
		DueDate:    inv.DueDate.Format("02 Jan 2006"),
	}
	if inv.IssuedAt != nil {
		doc.IssuedAt = inv.IssuedAt.Format("02 Jan 2006")
	} else {
		doc.IssuedAt = time.Now().Format("02 Jan 2006")
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("finance: render invoice template: %w", err)
	}
	return renderer.RenderHTML(ctx, buf.String())
}
