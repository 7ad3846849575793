package lanes

import (
	"context"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

type taxStrategy struct{ base }

func (s *taxStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	in.logger(s.lane).Info("Extracting tax data.")
	data, err := s.reason(ctx, in, TaxPrompt)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, models.CollectionTaxDocuments, models.Record{
		"doc_id":                in.DocID,
		"tax_year":              data["Tax Year"],
		"form_number":           data["Form"],
		"entity_name":           data["Entity"],
		"total_income":          data["Total Income"],
		"tax_liability":         data["Tax Liability"],
		"depreciation_schedule": data["Depreciation"],
	}); err != nil {
		return nil, err
	}
	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionTaxDocuments,
		ElementsCaptured: []string{"Tax Year", "Form", "Entity", "Total Income", "Tax Liability", "Depreciation"},
	}, nil
}

// Highlights reports the first non-zero income and liability figures; the
// summary page of a return normally carries them.
func (s *taxStrategy) Highlights(pages []models.Page) string {
	var years, entities orderedSet
	var income, liability float64
	for _, p := range pages {
		d := pageData(p)
		years.add(d["Tax Year"])
		entities.add(d["Entity"])
		if income == 0 {
			if v, ok := amount(d["Total Income"]); ok {
				income = v
			}
		}
		if liability == 0 {
			if v, ok := amount(d["Tax Liability"]); ok {
				liability = v
			}
		}
	}

	var b strings.Builder
	b.WriteString("## Tax Return Summary\n")
	if !entities.empty() {
		bullet(&b, "Entity", entities.join(", "))
	}
	if !years.empty() {
		bullet(&b, "Tax Year", years.join(", "))
	}
	bullet(&b, "Total Income", money(income))
	bullet(&b, "Tax Liability", money(liability))
	b.WriteString("\n")
	return b.String()
}
