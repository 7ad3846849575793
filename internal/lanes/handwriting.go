package lanes

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

// MinOCRChars is the least amount of OCR text the handwriting lanes need
// before the reasoning endpoint is consulted.
const MinOCRChars = 10

const insufficientOCR = "Insufficient OCR text"

// ocrText runs OCR with retries. A failing OCR call is logged and treated as
// an empty transcript so the caller short-circuits.
func (b base) ocrText(ctx context.Context, in Input) string {
	text, err := retry.Do(ctx, b.deps.Retry, "ocr", func(ctx context.Context) (string, error) {
		return b.deps.OCR.ExtractText(ctx, in.PDF)
	})
	if err != nil {
		in.logger(b.lane).Error("OCR failed.", "error", err)
		return ""
	}
	return text
}

func insufficient(text string) bool {
	return len([]rune(strings.TrimSpace(text))) < MinOCRChars
}

func insufficientResult() *Result {
	return &Result{
		ExtractedData:    map[string]any{"error": insufficientOCR},
		Markdown:         "> **Error:** OCR failed to extract sufficient text from this page.",
		TableUsed:        models.CollectionEvidenceLogs,
		ElementsCaptured: []string{},
	}
}

type checkRegisterStrategy struct{ base }

func (s *checkRegisterStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	logCtx := in.logger(s.lane)

	text := s.ocrText(ctx, in)
	if insufficient(text) {
		logCtx.Warn("Insufficient OCR text detected. Skipping extraction.", "chars", len(strings.TrimSpace(text)))
		return insufficientResult(), nil
	}

	logCtx.Info("Reconstructing handwritten ledger.")
	data, err := s.reason(ctx, in, strings.Replace(CheckRegisterPrompt, OCRPlaceholder, text, 1))
	if err != nil {
		return nil, err
	}

	summary := obj(data["register_summary"])
	entity := str(summary["entity_name"])
	if entity == "" {
		entity = str(summary["entity"])
	}
	if err := s.insert(ctx, models.CollectionEvidenceLogs, models.Record{
		"doc_id":   in.DocID,
		"log_type": "check_register_reconstruction",
		"entities": data["transactions"],
		"content":  "Entity: " + entity,
	}); err != nil {
		return nil, err
	}

	return &Result{
		ExtractedData:    data,
		Markdown:         "[OCR TRANSCRIPT]\n" + text,
		TableUsed:        models.CollectionEvidenceLogs,
		ElementsCaptured: []string{"Handwritten Ledger", "OCR Text"},
	}, nil
}

func (s *checkRegisterStrategy) Highlights(pages []models.Page) string {
	var entities, periods orderedSet
	transactions := 0
	for _, p := range pages {
		d := pageData(p)
		summary := obj(d["register_summary"])
		entities.add(summary["entity_name"])
		entities.add(summary["entity"])
		periods.add(summary["period"])
		transactions += len(list(d["transactions"]))
	}

	var b strings.Builder
	b.WriteString("## Check Register Reconstruction\n")
	if !entities.empty() {
		bullet(&b, "Entity", entities.join(", "))
	}
	if !periods.empty() {
		bullet(&b, "Period", periods.join(", "))
	}
	bullet(&b, "Transactions Logged", count(transactions))
	b.WriteString("\n> Note: This ledger was reconstructed from handwriting via OCR and model review.\n\n")
	return b.String()
}

type expenseLogStrategy struct{ base }

func (s *expenseLogStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	logCtx := in.logger(s.lane)

	text := s.ocrText(ctx, in)
	if insufficient(text) {
		logCtx.Warn("Insufficient OCR text detected. Skipping extraction.", "chars", len(strings.TrimSpace(text)))
		return insufficientResult(), nil
	}

	logCtx.Info("Structuring handwritten expense log.")
	data, err := s.reason(ctx, in, strings.Replace(ExpenseLogPrompt, OCRPlaceholder, text, 1))
	if err != nil {
		return nil, err
	}

	if err := s.insert(ctx, models.CollectionEvidenceLogs, models.Record{
		"doc_id":   in.DocID,
		"log_type": "expense_log",
		"entities": data["Transactions"],
		"content":  fmt.Sprintf("Entity: %s, Period: %s", str(data["Entity Name"]), str(data["Reporting Period"])),
	}); err != nil {
		return nil, err
	}

	return &Result{
		ExtractedData:    data,
		Markdown:         expenseTable(data),
		TableUsed:        models.CollectionEvidenceLogs,
		ElementsCaptured: []string{"Entity Name", "Reporting Period", "Payee", "Amount", "Ditto Resolution"},
	}, nil
}

func expenseTable(data map[string]any) string {
	orUnknown := func(v any) string {
		if s := str(v); s != "" {
			return s
		}
		return "Unknown"
	}
	var b strings.Builder
	b.WriteString("## Handwritten Expense Log\n\n")
	fmt.Fprintf(&b, "**Entity:** %s\n", orUnknown(data["Entity Name"]))
	fmt.Fprintf(&b, "**Period:** %s\n\n", orUnknown(data["Reporting Period"]))
	b.WriteString("| Payee | Method | Amount | Modifier | Ditto? |\n|---|---|---|---|---|\n")
	for _, t := range list(data["Transactions"]) {
		row := obj(t)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			cell(row["Payee (Main)"]), cell(row["Payment Method"]), cell(row["Amount"]),
			cell(row["Payee Modifier (Margin)"]), cell(row["Ditto Resolution"]))
	}
	return b.String()
}

func cell(v any) string {
	return strings.ReplaceAll(str(v), "|", `\|`)
}

func (s *expenseLogStrategy) Highlights(pages []models.Page) string {
	var entities, periods orderedSet
	var total float64
	transactions := 0
	for _, p := range pages {
		d := pageData(p)
		entities.add(d["Entity Name"])
		periods.add(d["Reporting Period"])
		rows := list(d["Transactions"])
		transactions += len(rows)
		for _, t := range rows {
			if v, ok := amount(obj(t)["Amount"]); ok {
				total += v
			}
		}
	}

	var b strings.Builder
	b.WriteString("## Handwritten Expense Log Summary\n")
	if !entities.empty() {
		bullet(&b, "Entity", entities.join(", "))
	}
	if !periods.empty() {
		bullet(&b, "Period", periods.join(", "))
	}
	bullet(&b, "Total Transactions", count(transactions))
	bullet(&b, "Total Amount", money(total))
	b.WriteString("\n> Note: Data extracted from handwritten logs via OCR.\n\n")
	return b.String()
}
