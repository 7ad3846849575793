package lanes

import (
	"context"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

type receiptStrategy struct{ base }

func (s *receiptStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	in.logger(s.lane).Info("Extracting receipt data.")
	data, err := s.reason(ctx, in, ReceiptPrompt)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, models.CollectionReceiptsLog, models.Record{
		"doc_id":           in.DocID,
		"vendor_name":      data["Vendor Name"],
		"transaction_date": data["Transaction Date"],
		"total_amount":     data["Gross Receipt Total"],
		"tax_amount":       data["Tax Receipt Total"],
		"category":         "Receipt",
	}); err != nil {
		return nil, err
	}
	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionReceiptsLog,
		ElementsCaptured: []string{"Vendor Name", "Transaction Date", "Gross Receipt Total", "Tax Receipt Total", "Line Items"},
	}, nil
}

func (s *receiptStrategy) Highlights(pages []models.Page) string {
	var vendors, dates orderedSet
	var total float64
	items := 0
	for _, p := range pages {
		d := pageData(p)
		vendors.add(d["Vendor Name"])
		dates.add(d["Transaction Date"])
		if v, ok := amount(d["Gross Receipt Total"]); ok {
			total += v
		}
		items += len(list(d["Line Items"]))
	}

	var b strings.Builder
	b.WriteString("## Receipt Summary\n")
	if !vendors.empty() {
		bullet(&b, "Vendor(s)", vendors.join(", "))
	}
	if !dates.empty() {
		bullet(&b, "Date(s)", dates.join(", "))
	}
	bullet(&b, "Total Items", count(items))
	bullet(&b, "Total Amount", money(total))
	return b.String()
}

// invoiceStrategy shares the receipts collection, distinguished by category.
type invoiceStrategy struct{ base }

func (s *invoiceStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	in.logger(s.lane).Info("Extracting invoice data.")
	data, err := s.reason(ctx, in, InvoicePrompt)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, models.CollectionReceiptsLog, models.Record{
		"doc_id":           in.DocID,
		"vendor_name":      data["Vendor Name"],
		"transaction_date": data["Invoice Date"],
		"total_amount":     data["Total Amount Due"],
		"tax_amount":       data["Tax Amount"],
		"category":         "Invoice/Bill",
	}); err != nil {
		return nil, err
	}
	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionReceiptsLog,
		ElementsCaptured: []string{"Vendor Name", "Invoice Number", "Invoice Date", "Total Amount Due", "Line Items"},
	}, nil
}

func (s *invoiceStrategy) Highlights(pages []models.Page) string {
	var vendors, dates orderedSet
	var total float64
	invoices := 0
	for _, p := range pages {
		d := pageData(p)
		vendors.add(d["Vendor Name"])
		dates.add(d["Invoice Date"])
		if str(d["Invoice Number"]) != "" {
			invoices++
		}
		if v, ok := amount(d["Total Amount Due"]); ok {
			total += v
		}
	}

	var b strings.Builder
	b.WriteString("## Invoice & Bill Summary\n")
	if !vendors.empty() {
		bullet(&b, "Biller(s)", vendors.join(", "))
	}
	if !dates.empty() {
		bullet(&b, "Date(s)", dates.join(", "))
	}
	bullet(&b, "Invoices Processed", count(invoices))
	bullet(&b, "Total Due", money(total))
	return b.String()
}
