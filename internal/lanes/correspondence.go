package lanes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// correspondenceStrategy cross-references planner letters against the most
// recent restrictions record found in the legal collection.
type correspondenceStrategy struct{ base }

func (s *correspondenceStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	logCtx := in.logger(s.lane)

	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}

	restrictions, err := s.restrictions(ctx)
	if err != nil {
		return nil, err
	}
	if restrictions == NoRestrictions {
		logCtx.Info("No active restrictions record found.")
	}

	logCtx.Info("Cross-referencing letter against restrictions.")
	prompt := strings.Replace(CorrespondencePrompt, RestrictionsPlaceholder, restrictions, 1)
	data, err := s.reason(ctx, in, prompt)
	if err != nil {
		return nil, err
	}

	if err := s.insert(ctx, models.CollectionCorrespondence, models.Record{
		"doc_id":         in.DocID,
		"letter_date":    data["Letter Date"],
		"addressor_name": data["Organization"],
		"addressee_name": data["Recipients"],
		"subject":        data["Subject"],
		"analysis_data":  data["Forensic Analysis"],
	}); err != nil {
		return nil, err
	}

	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionCorrespondence,
		ElementsCaptured: []string{"Letter Date", "Organization", "Recipients", "Subject", "Forensic Analysis"},
	}, nil
}

// restrictions returns the serialized restrictions record, or NoRestrictions.
func (s *correspondenceStrategy) restrictions(ctx context.Context) (string, error) {
	rec, ok, err := s.deps.Store.LatestRestrictions(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load restrictions context: %w", err)
	}
	if !ok {
		return NoRestrictions, nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode restrictions context: %w", err)
	}
	return string(b), nil
}

// Highlights lists compliance violations, followed by the planner's analysis
// sections when the letter carried them.
func (s *correspondenceStrategy) Highlights(pages []models.Page) string {
	var violations []string
	var analysis map[string]any
	for _, p := range pages {
		fa := obj(pageData(p)["Forensic Analysis"])
		if fa == nil {
			continue
		}
		if analysis == nil {
			analysis = fa
		}
		for _, v := range list(fa["Violations"]) {
			if text := str(obj(v)["Violation"]); text != "" {
				violations = append(violations, text)
			}
		}
	}

	var b strings.Builder
	if len(violations) > 0 {
		b.WriteString("## PRENUP COMPLIANCE ALERTS\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- **Issue:** %s\n", v)
		}
		b.WriteString("\n")
	}
	sections := []struct{ key, title string }{
		{"Recommendations", "Recommendations & Actions"},
		{"Portfolio Impact", "Portfolio Impact"},
		{"Commingling Observations", "Commingling Observations"},
		{"Trust Observations", "Trust Observations"},
		{"Spousal Benefit Analysis", "Spousal Benefit Analysis"},
	}
	for _, sec := range sections {
		if v := str(analysis[sec.key]); v != "" {
			fmt.Fprintf(&b, "#### %s\n%s\n\n", sec.title, v)
		}
	}
	return b.String()
}
