package lanes

import (
	"context"
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// genericStrategy is the fallback lane. It always produces a result; a
// malformed model answer becomes an empty object.
type genericStrategy struct{ base }

func (s *genericStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	in.logger(s.lane).Info("Running generic extraction.")
	data, err := s.reason(ctx, in, GenericPrompt)
	if err != nil {
		return nil, err
	}
	return &Result{
		ExtractedData:    data,
		Markdown:         markdown,
		TableUsed:        models.CollectionMetadataOnly,
		ElementsCaptured: []string{"Generic Extraction"},
	}, nil
}

func (s *genericStrategy) Highlights(pages []models.Page) string {
	var entities, dates orderedSet
	var total float64
	found := false
	for _, p := range pages {
		d := pageData(p)
		meta := obj(d[models.MetadataKey])
		entities.add(first(d, "merchant", "vendor", "sender", "organization", "entity_name", "store"))
		entities.add(meta["entity_name"])
		dates.add(first(d, "date", "transaction_date", "invoice_date", "primary_date"))
		dates.add(meta["primary_date"])
		if v, ok := amount(first(d, "total", "amount", "total_amount", "grand_total")); ok {
			total += v
			found = true
		}
	}

	var b strings.Builder
	b.WriteString("## General Document Summary\n")
	if !entities.empty() {
		bullet(&b, "Entity/Source", entities.join(", "))
	}
	if !dates.empty() {
		bullet(&b, "Dates", dates.join(", "))
	}
	if found {
		bullet(&b, "Total Value", money(total))
	}
	return b.String()
}

func first(d map[string]any, keys ...string) any {
	for _, k := range keys {
		if str(d[k]) != "" {
			return d[k]
		}
	}
	return nil
}

// mediaStrategy handles transcripts of audio and video. Extraction keeps the
// transcript as content; highlights summarize its length.
type mediaStrategy struct{ base }

func (s *mediaStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	markdown, err := s.transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{
		ExtractedData:    map[string]any{"content": markdown},
		Markdown:         markdown,
		TableUsed:        models.CollectionMetadataOnly,
		ElementsCaptured: []string{"Transcript"},
	}, nil
}

func (s *mediaStrategy) Highlights(pages []models.Page) string {
	chars := 0
	preview := ""
	for _, p := range pages {
		d := pageData(p)
		text := str(d["content"])
		if text == "" {
			text = str(d["transcript"])
		}
		if text == "" {
			continue
		}
		chars += len([]rune(text))
		if preview == "" {
			r := []rune(text)
			if len(r) > 200 {
				r = r[:200]
			}
			preview = strings.ReplaceAll(string(r), "\n", " ") + "..."
		}
	}

	var b strings.Builder
	b.WriteString("## Media Transcript Analysis\n")
	bullet(&b, "Total Characters", count(chars))
	if preview != "" {
		bullet(&b, "Preview", `"`+preview+`"`)
	}
	b.WriteString("\n> Note: Full transcript available in the transcript artifact.\n\n")
	return b.String()
}
