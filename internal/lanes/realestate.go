package lanes

import (
	"context"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

type realEstateStrategy struct{ base }

func (s *realEstateStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	in.logger(s.lane).Info("Extracting real estate data.")
	data, err := s.reason(ctx, in, RealEstatePrompt)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, models.CollectionRealEstate, models.Record{
		"doc_id":           in.DocID,
		"document_type":    data["Document Type"],
		"property_address": data["Property Address"],
		"execution_date":   data["Execution Date"],
		"parties":          data["Parties"],
		"financials":       data["Financials"],
	}); err != nil {
		return nil, err
	}
	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionRealEstate,
		ElementsCaptured: []string{"Document Type", "Property Address", "Execution Date", "Parties", "Financials"},
	}, nil
}

func (s *realEstateStrategy) Highlights(pages []models.Page) string {
	var kinds, properties, parties orderedSet
	var financials map[string]any
	for _, p := range pages {
		d := pageData(p)
		kinds.add(d["Document Type"])
		properties.add(d["Property Address"])
		if pt := obj(d["Parties"]); pt != nil {
			for _, name := range list(pt["Grantor_Seller_Landlord"]) {
				parties.add(name)
			}
			for _, name := range list(pt["Grantee_Buyer_Tenant"]) {
				parties.add(name)
			}
		}
		if financials == nil {
			financials = obj(d["Financials"])
		}
	}

	var b strings.Builder
	b.WriteString("## Real Estate Summary\n")
	if !kinds.empty() {
		bullet(&b, "Type", kinds.join(", "))
	}
	if !properties.empty() {
		bullet(&b, "Property", properties.join("; "))
	}
	if !parties.empty() {
		bullet(&b, "Parties", parties.join(", "))
	}
	for _, key := range []string{"Purchase Price", "Loan Amount", "Appraised Value"} {
		if v := str(financials[key]); v != "" {
			bullet(&b, key, v)
		}
	}
	return b.String()
}
