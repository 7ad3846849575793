package lanes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/naming"
)

type legalStrategy struct{ base }

func (s *legalStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	in.logger(s.lane).Info("Running legal analysis.")
	data, err := s.reason(ctx, in, LegalPrompt)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, models.CollectionLegalDocuments, models.Record{
		"doc_id":                in.DocID,
		"document_type":         data["Document Type"],
		"effective_date":        data["Effective Date"],
		"parties":               data["Parties"],
		"financial_obligations": data["Obligations"],
		"restrictions":          data["Restrictions"],
		"risks":                 data["Risks"],
		"timeline":              data["Timeline"],
	}); err != nil {
		return nil, err
	}
	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionLegalDocuments,
		ElementsCaptured: []string{"Parties", "Effective Date", "Obligations", "Restrictions", "Risks", "Timeline"},
	}, nil
}

// Highlights lists high-severity risks and a timeline sorted by date. Pages
// without risks or timeline events contribute nothing.
func (s *legalStrategy) Highlights(pages []models.Page) string {
	var risks, events []map[string]any
	for _, p := range pages {
		d := pageData(p)
		for _, r := range list(d["Risks"]) {
			if m := obj(r); m != nil {
				risks = append(risks, m)
			}
		}
		for _, e := range list(d["Timeline"]) {
			if m := obj(e); m != nil {
				events = append(events, m)
			}
		}
	}

	var b strings.Builder
	if len(risks) > 0 {
		b.WriteString("## Legal Risk Assessment\n")
		var high []map[string]any
		for _, r := range risks {
			if strings.EqualFold(str(r["Severity"]), "High") {
				high = append(high, r)
			}
		}
		if len(high) > 0 {
			b.WriteString("### CRITICAL RISKS\n")
			for _, r := range high {
				fmt.Fprintf(&b, "- **%s**: %s\n", str(r["Risk"]), str(r["Reasoning"]))
			}
		}
		fmt.Fprintf(&b, "\n**Total Risks:** %d\n\n", len(risks))
	}
	if len(events) > 0 {
		b.WriteString("## Constructed Timeline\n")
		sort.SliceStable(events, func(i, j int) bool {
			return naming.FormatDate(events[i]["Date"]) < naming.FormatDate(events[j]["Date"])
		})
		for _, e := range events {
			fmt.Fprintf(&b, "- **%s**: %s\n", str(e["Date"]), str(e["Event"]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

type courtStrategy struct{ base }

func (s *courtStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	in.logger(s.lane).Info("Extracting court judgment data.")
	data, err := s.reason(ctx, in, CourtPrompt)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, models.CollectionLegalDocuments, models.Record{
		"doc_id":         in.DocID,
		"document_type":  "Court Judgment",
		"effective_date": data["Judgment Date"],
		"parties": map[string]any{
			"Plaintiff": data["Plaintiff"],
			"Defendant": data["Defendant"],
			"Court":     data["Court Name"],
		},
		"financial_obligations": map[string]any{
			"amount":  data["Judgment Amount"],
			"details": data["Financial Obligations"],
		},
		"restrictions": data["Terms"],
		"risks":        data["Ruling"],
	}); err != nil {
		return nil, err
	}
	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionLegalDocuments,
		ElementsCaptured: []string{"Court Name", "Case Number", "Judgment Date", "Parties", "Judgment Amount"},
	}, nil
}

func (s *courtStrategy) Highlights(pages []models.Page) string {
	var courts, cases, rulings orderedSet
	var amounts, obligations []string
	for _, p := range pages {
		d := pageData(p)
		courts.add(d["Court Name"])
		cases.add(d["Case Number"])
		rulings.add(d["Ruling"])
		if v := str(d["Judgment Amount"]); v != "" {
			amounts = append(amounts, v)
		}
		if v := str(d["Financial Obligations"]); v != "" {
			obligations = append(obligations, v)
		}
	}

	var b strings.Builder
	b.WriteString("## Court Judgment Summary\n")
	if !courts.empty() {
		bullet(&b, "Court", courts.join(", "))
	}
	if !cases.empty() {
		bullet(&b, "Case #", cases.join(", "))
	}
	if !rulings.empty() {
		bullet(&b, "Ruling", rulings.join(", "))
	}
	if len(amounts) > 0 {
		bullet(&b, "Judgment Amount", strings.Join(amounts, ", "))
	}
	if len(obligations) > 0 {
		b.WriteString("### Financial Obligations\n")
		for _, o := range obligations {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}
	return b.String()
}
