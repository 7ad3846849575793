// Package artifacts synthesizes the archive bundle for a finished document:
// transcript, analysis, JSON snapshot, HTML preview and the two PDF copies.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/Lllllllleong/forensicdocumentflow/internal/lanes"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

// MinHighlightText is the least body text (outside headings) a highlights
// block needs before it stands on its own without a narrative summary.
const MinHighlightText = 20

const (
	noSummary      = "No summary available."
	sampleMaxChars = 5000
	samplePages    = 3
	subjectMax     = 2000
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// File is one object of the bundle.
type File struct {
	Name        string
	Data        []byte
	ContentType string
}

// Set is the full bundle for one document.
type Set struct {
	BaseName   string
	Folder     string
	Reporting  models.Reporting
	Transcript string
	Analysis   string
	HTML       string
	Snapshot   []byte
	// Summarized is true when the analysis needed a narrative summary.
	Summarized bool
}

// Source is the original upload plus its property-annotated copy.
type Source struct {
	Clean    []byte
	WithMeta []byte
}

// Files lists every object of the set. Names depend only on BaseName, so a
// second run overwrites the first run's objects.
func (s *Set) Files(src Source) []File {
	files := []File{
		{Name: s.BaseName + "_Transcript.md", Data: []byte(s.Transcript), ContentType: "text/markdown; charset=utf-8"},
		{Name: s.BaseName + "_Transcript.html", Data: []byte(s.HTML), ContentType: "text/html; charset=utf-8"},
		{Name: s.BaseName + "_Analysis.md", Data: []byte(s.Analysis), ContentType: "text/markdown; charset=utf-8"},
		{Name: s.BaseName + ".json", Data: s.Snapshot, ContentType: "application/json"},
	}
	if src.Clean != nil {
		files = append(files, File{Name: s.BaseName + "_Clean.pdf", Data: src.Clean, ContentType: "application/pdf"})
	}
	if src.WithMeta != nil {
		files = append(files, File{Name: s.BaseName + "_WithMeta.pdf", Data: src.WithMeta, ContentType: "application/pdf"})
	}
	return files
}

// Properties are the document properties written into the _WithMeta copy.
func (s *Set) Properties() map[string]string {
	subject := []rune(s.Analysis)
	if len(subject) > subjectMax {
		subject = subject[:subjectMax]
	}
	return map[string]string{
		"Title":    s.BaseName,
		"Subject":  string(subject),
		"Keywords": "LegalForensics, " + s.Reporting.Lane,
	}
}

// Builder assembles sets. Reasoner serves the narrative fallback.
type Builder struct {
	Reasoner ports.Reasoner
	Retry    retry.Policy
	Now      func() time.Time
}

// Input is everything Build needs about one document.
type Input struct {
	Document   *models.Document
	Pages      []models.Page
	Markdown   []string // per page, aligned with Pages
	Highlights string
	BaseName   string
	Folder     string
}

func (b *Builder) Build(ctx context.Context, in Input) (*Set, error) {
	var first map[string]any
	if len(in.Pages) > 0 {
		first = in.Pages[0].ExtractedData
	}
	set := &Set{
		BaseName:   in.BaseName,
		Folder:     in.Folder,
		Reporting:  models.ReportingOf(first),
		Transcript: Transcript(in.BaseName, in.Pages, in.Markdown),
	}

	analysis := AnalysisHeader(in.BaseName, set.Reporting) + in.Highlights
	if Sparse(in.Highlights) {
		slog.Info("Highlights too sparse; generating narrative summary.", "documentId", in.Document.ID, "lane", set.Reporting.Lane)
		summary, err := b.narrative(ctx, set.Reporting.Lane, in.Pages)
		if err != nil {
			return nil, err
		}
		analysis += "\n## Executive Summary\n" + summary + "\n"
		set.Summarized = true
	}
	set.Analysis = analysis

	html, err := RenderHTML(set.Transcript)
	if err != nil {
		return nil, err
	}
	set.HTML = html

	snapshot, err := b.snapshot(in, set)
	if err != nil {
		return nil, err
	}
	set.Snapshot = snapshot
	return set, nil
}

// Transcript joins the page transcripts in page order.
func Transcript(baseName string, pages []models.Page, md []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Layout-Aware Transcript: %s\n\n", baseName)
	for i, p := range pages {
		if i >= len(md) {
			break
		}
		fmt.Fprintf(&sb, "### Page %d\n\n%s\n\n---\n\n", p.PageIndex+1, md[i])
	}
	return sb.String()
}

func AnalysisHeader(baseName string, r models.Reporting) string {
	elements := "None"
	if len(r.Elements) > 0 {
		elements = strings.Join(r.Elements, ", ")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Forensic Analysis: %s\n\n", baseName)
	sb.WriteString("## Metadata\n")
	fmt.Fprintf(&sb, "- **Lane:** %s\n", r.Lane)
	fmt.Fprintf(&sb, "- **Table:** %s\n", r.Table)
	fmt.Fprintf(&sb, "- **Elements:** %s\n\n", elements)
	return sb.String()
}

// Sparse reports whether a highlights block has no heading or too little
// body text to be useful on its own.
func Sparse(highlights string) bool {
	src := []byte(highlights)
	doc := markdown.Parser().Parse(text.NewReader(src))
	headings, body := 0, 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headings++
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			body += len(strings.TrimSpace(string(node.Segment.Value(src))))
		}
		return ast.WalkContinue, nil
	})
	return headings == 0 || body < MinHighlightText
}

// RenderHTML renders markdown (with tables) into an HTML preview.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render transcript html: %w", err)
	}
	return buf.String(), nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (b *Builder) narrative(ctx context.Context, lane string, pages []models.Page) (string, error) {
	var sample []string
	for i, p := range pages {
		if i == samplePages {
			break
		}
		data, err := json.Marshal(p.ExtractedData)
		if err != nil {
			return "", fmt.Errorf("failed to encode page %d sample: %w", p.PageIndex, err)
		}
		sample = append(sample, string(data))
	}
	sampleText := strings.Join(sample, "\n")
	sampleText = truncate(sampleText, sampleMaxChars)

	summary, err := retry.Do(ctx, b.Retry, "narrative summary", func(ctx context.Context) (string, error) {
		return b.Reasoner.Generate(ctx, ports.Prompt{
			Tier: ports.TierNarrative,
			Text: fmt.Sprintf(lanes.NarrativePrompt, lane, sampleText),
		})
	})
	if err != nil {
		return "", err
	}
	if summary = strings.TrimSpace(summary); summary == "" {
		return noSummary, nil
	}
	return summary, nil
}

type snapshotMeta struct {
	DocumentID    string    `json:"documentId"`
	OriginalName  string    `json:"originalName"`
	ProcessedDate time.Time `json:"processedDate"`
	Folder        string    `json:"folder"`
	TotalPages    int       `json:"totalPages"`
}

type snapshot struct {
	Meta      snapshotMeta     `json:"meta"`
	Reporting models.Reporting `json:"reporting"`
	Summary   string           `json:"summary"`
	Pages     []map[string]any `json:"pages"`
}

func (b *Builder) snapshot(in Input, set *Set) ([]byte, error) {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	pages := make([]map[string]any, len(in.Pages))
	for i, p := range in.Pages {
		pages[i] = p.ExtractedData
	}
	out, err := json.MarshalIndent(snapshot{
		Meta: snapshotMeta{
			DocumentID:    in.Document.ID,
			OriginalName:  in.Document.Filename,
			ProcessedDate: now().UTC(),
			Folder:        in.Folder,
			TotalPages:    in.Document.TotalPages,
		},
		Reporting: set.Reporting,
		Summary:   set.Analysis,
		Pages:     pages,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return out, nil
}
