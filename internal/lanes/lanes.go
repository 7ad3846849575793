// Package lanes holds the lane mapping table, the router that selects a
// strategy for a classified page, and one strategy per lane. A strategy turns
// a single page into a Result and persists its lane-specific records; it also
// knows how to summarize a set of completed pages for the analysis artifact.
package lanes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

const pdfMIMEType = "application/pdf"

// Result is what a strategy produces for one page.
type Result struct {
	ExtractedData    map[string]any
	Markdown         string
	TableUsed        string
	ElementsCaptured []string
}

// Input identifies the page being extracted.
type Input struct {
	DocID     string
	PageIndex int
	PDF       []byte
}

func (in Input) logger(lane models.Lane) *slog.Logger {
	return slog.With("documentId", in.DocID, "pageIndex", in.PageIndex, "lane", string(lane))
}

// RecordStore is the slice of the datastore a strategy writes to.
type RecordStore interface {
	InsertRecords(ctx context.Context, collection string, records []models.Record) error
	LatestRestrictions(ctx context.Context) (map[string]any, bool, error)
}

// Deps are the collaborators shared by every strategy.
type Deps struct {
	Reasoner    ports.Reasoner
	Transcriber ports.Transcriber
	OCR         ports.OCR
	Store       RecordStore
	Retry       retry.Policy
}

// Strategy extracts and summarizes pages of one lane.
type Strategy interface {
	Lane() models.Lane
	Extract(ctx context.Context, in Input) (*Result, error)
	Highlights(pages []models.Page) string
}

// base carries the calls every strategy makes.
type base struct {
	deps Deps
	lane models.Lane
}

func (b base) Lane() models.Lane { return b.lane }

// reason sends prompt together with the page to the reasoning tier and
// decodes the JSON answer. Malformed answers decode to an empty object.
func (b base) reason(ctx context.Context, in Input, prompt string) (map[string]any, error) {
	text, err := retry.Do(ctx, b.deps.Retry, "reasoning call", func(ctx context.Context) (string, error) {
		return b.deps.Reasoner.Generate(ctx, ports.Prompt{
			Tier:     ports.TierReasoning,
			Text:     prompt,
			Document: in.PDF,
			MIMEType: pdfMIMEType,
		})
	})
	if err != nil {
		return nil, err
	}
	data, ok := ParseJSON(text)
	if !ok {
		in.logger(b.lane).Warn("Model returned malformed JSON; using an empty result.", "responseLength", len(text))
	}
	return data, nil
}

func (b base) transcribe(ctx context.Context, in Input) (string, error) {
	return retry.Do(ctx, b.deps.Retry, "transcription", func(ctx context.Context) (string, error) {
		return b.deps.Transcriber.Transcribe(ctx, in.PDF)
	})
}

func (b base) insert(ctx context.Context, collection string, records ...models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := b.deps.Store.InsertRecords(ctx, collection, records); err != nil {
		return fmt.Errorf("failed to insert %d record(s) into %s: %w", len(records), collection, err)
	}
	return nil
}

// ParseJSON decodes a model answer into an object. Markdown code fences are
// tolerated. Anything that is not a JSON object yields an empty map and false.
func ParseJSON(text string) (map[string]any, bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var out map[string]any
	if s == "" || json.Unmarshal([]byte(s), &out) != nil || out == nil {
		return map[string]any{}, false
	}
	return out, true
}
