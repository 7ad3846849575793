package lanes

import (
	"context"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

// Classifier labels a page with the fast multimodal model.
type Classifier struct {
	Reasoner ports.Reasoner
	Retry    retry.Policy
}

// Classify returns the model's label and the lane it maps to. An answer that
// is not valid JSON, or has no docType, is labelled "Unknown" and routes to
// the Generic lane.
func (c Classifier) Classify(ctx context.Context, pdf []byte) (models.Classification, models.Lane, error) {
	text, err := retry.Do(ctx, c.Retry, "classification", func(ctx context.Context) (string, error) {
		return c.Reasoner.Generate(ctx, ports.Prompt{
			Tier:     ports.TierFast,
			Text:     ClassificationPrompt,
			Document: pdf,
			MIMEType: pdfMIMEType,
		})
	})
	if err != nil {
		return models.Classification{}, "", err
	}

	data, _ := ParseJSON(text)
	out := models.Classification{DocType: "Unknown"}
	if s, ok := data["docType"].(string); ok && strings.TrimSpace(s) != "" {
		out.DocType = strings.TrimSpace(s)
	}
	if s, ok := data["reasoning"].(string); ok {
		out.Reasoning = s
	}
	return out, Classify(out.DocType), nil
}
