package lanes

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ledger"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// statementStrategy serves both ledger lanes. Every extracted row is checked
// against the running balance and flagged with is_math_verified.
type statementStrategy struct {
	base
	source      string
	checkImages bool
}

func (s *statementStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	logCtx := in.logger(s.lane)

	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}

	logCtx.Info("Extracting ledger and verifying math.")
	data, err := s.reason(ctx, in, StatementPrompt)
	if err != nil {
		return nil, err
	}

	if raw, ok := data["statement_lines"]; ok {
		lines := ledger.ParseLines(raw)
		failed := ledger.Verify(lines)
		if len(failed) > 0 {
			logCtx.Warn("Math audit failed.", "failedRows", len(failed), "rows", len(lines))
		}
		verified := ledger.Verified(len(lines), failed)
		account := data["Account Number"]
		if account == nil {
			account = data["Account Number (Masked)"]
		}

		items := list(raw)
		rows := make([]models.Record, 0, len(lines))
		for i, line := range lines {
			if m, ok := items[i].(map[string]any); ok {
				m["is_math_verified"] = verified[i]
			}
			rows = append(rows, models.Record{
				"doc_id":           in.DocID,
				"page_number":      in.PageIndex,
				"account_number":   account,
				"date":             line.Date,
				"description":      line.Description,
				"amount":           line.Amount,
				"balance":          line.Balance,
				"is_math_verified": verified[i],
				"source":           s.source,
			})
		}
		if err := s.insert(ctx, models.CollectionStatementLines, rows...); err != nil {
			return nil, err
		}
	}

	elements := []string{"Account Number", "Period", "Transactions (Math Verified)"}

	if s.checkImages {
		logCtx.Info("Checking for check images.")
		checkData, err := s.reason(ctx, in, CheckImagesPrompt)
		if err != nil {
			return nil, err
		}
		checks := list(checkData["checks"])
		if len(checks) > 0 {
			logCtx.Info("Found check images.", "count", len(checks))
			if err := s.insert(ctx, models.CollectionEvidenceLogs, models.Record{
				"doc_id":   in.DocID,
				"log_type": "check_image_extraction",
				"entities": checks,
				"content":  fmt.Sprintf("Extracted %d checks from page.", len(checks)),
			}); err != nil {
				return nil, err
			}
		}
		if checks == nil {
			checks = []any{}
		}
		data["checks"] = checks
		elements = []string{"Account Number", "Period", "Transactions", "Check Images"}
	}

	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionStatementLines,
		ElementsCaptured: elements,
	}, nil
}

func (s *statementStrategy) Highlights(pages []models.Page) string {
	var accounts orderedSet
	total, failed, checks := 0, 0, 0
	for _, p := range pages {
		d := pageData(p)
		lines := list(d["statement_lines"])
		total += len(lines)
		for _, l := range lines {
			if v, ok := obj(l)["is_math_verified"].(bool); ok && !v {
				failed++
			}
		}
		checks += len(list(d["checks"]))
		accounts.add(d["Account Number"])
		accounts.add(d["Account Number (Masked)"])
	}

	var b strings.Builder
	if s.lane == models.LaneCreditCard {
		b.WriteString("## Credit Card Forensic Audit\n")
	} else {
		b.WriteString("## Forensic Math Audit\n")
	}
	if !accounts.empty() {
		bullet(&b, "Account(s)", accounts.join(", "))
	}
	bullet(&b, "Transactions", count(total))
	if failed > 0 {
		bullet(&b, "CALCULATION ERRORS", count(failed))
		fmt.Fprintf(&b, "> Warning: %d calculation mismatches. Running balance did not match transaction math.\n", failed)
	} else {
		bullet(&b, "Verification", "Clean.")
	}
	if checks > 0 {
		bullet(&b, "Check Images", count(checks))
	}
	b.WriteString("\n")
	return b.String()
}
