package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports/mocks"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func testBuilder(r *mocks.Reasoner) *Builder {
	return &Builder{
		Reasoner: r,
		Retry:    retry.Policy{MaxRetries: 3, Sleep: func(ctx context.Context, d time.Duration) error { return nil }},
		Now:      fixedNow,
	}
}

func testInput(highlights string) Input {
	reporting := models.Reporting{Lane: "Bank Statements", Table: "statement_lines", Elements: []string{"ledger", "account_number"}}
	return Input{
		Document: &models.Document{ID: "doc-1", Filename: "stmt.pdf", TotalPages: 2},
		Pages: []models.Page{
			{DocID: "doc-1", PageIndex: 0, ExtractedData: map[string]any{models.ReportingKey: reporting, "account_number": "1234"}},
			{DocID: "doc-1", PageIndex: 1, ExtractedData: map[string]any{"ledger": []any{}}},
		},
		Markdown:   []string{"| Date | Amount |\n|---|---|\n| 1/1 | 5 |", "Page two"},
		Highlights: highlights,
		BaseName:   "2024-01-31_Stmt_First Bank",
		Folder:     "2024-01-31_Stmt_First Bank",
	}
}

const richHighlights = "## Forensic Math Audit\n- **Account(s):** 1234\n- **Transactions:** 42\n- **Verification:** Clean.\n"

func TestSparse(t *testing.T) {
	assert.True(t, Sparse(""))
	assert.True(t, Sparse("## General Document Summary\n"), "heading without body")
	assert.True(t, Sparse("plenty of body text but no heading at all here"))
	assert.True(t, Sparse("## Audit\n- ok\n"))
	assert.False(t, Sparse(richHighlights))
}

func TestBuild_RichHighlightsSkipNarrative(t *testing.T) {
	r := &mocks.Reasoner{Default: "should not be used"}
	set, err := testBuilder(r).Build(context.Background(), testInput(richHighlights))
	require.NoError(t, err)

	assert.Equal(t, 0, r.Calls())
	assert.False(t, set.Summarized)
	assert.Equal(t, "Bank Statements", set.Reporting.Lane)
	assert.Contains(t, set.Analysis, "# Forensic Analysis: 2024-01-31_Stmt_First Bank")
	assert.Contains(t, set.Analysis, "- **Elements:** ledger, account_number")
	assert.Contains(t, set.Analysis, richHighlights)
	assert.NotContains(t, set.Analysis, "Executive Summary")
}

func TestBuild_SparseHighlightsUseNarrative(t *testing.T) {
	r := (&mocks.Reasoner{}).OnTier(ports.TierNarrative, "A two page bank statement.")
	set, err := testBuilder(r).Build(context.Background(), testInput("## General Document Summary\n"))
	require.NoError(t, err)

	assert.True(t, set.Summarized)
	assert.Contains(t, set.Analysis, "## Executive Summary\nA two page bank statement.")
	require.Len(t, r.Prompts, 1)
	assert.Contains(t, r.Prompts[0].Text, "Summarize this document (Bank Statements)")
	assert.Contains(t, r.Prompts[0].Text, `"account_number":"1234"`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "h", truncate("héllo", 2))
	assert.Equal(t, "hé", truncate("héllo", 3))
	assert.Equal(t, "", truncate("é", 1))
}

func TestBuild_NarrativeSampleStaysValidUTF8(t *testing.T) {
	r := (&mocks.Reasoner{}).OnTier(ports.TierNarrative, "Summary.")
	in := testInput("")
	// {"k":" is 6 bytes, so the first é straddles the sample limit.
	in.Pages = []models.Page{{DocID: "doc-1", PageIndex: 0, ExtractedData: map[string]any{"k": strings.Repeat("a", 4993) + "ééé"}}}
	in.Markdown = []string{"page"}

	_, err := testBuilder(r).Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, r.Prompts, 1)
	prompt := r.Prompts[0].Text
	assert.True(t, utf8.ValidString(prompt))
	assert.True(t, strings.HasSuffix(prompt, strings.Repeat("a", 16)), "sample is cut before the split character")
}

func TestBuild_EmptyNarrativeFallsBack(t *testing.T) {
	r := (&mocks.Reasoner{}).OnTier(ports.TierNarrative, "  ")
	set, err := testBuilder(r).Build(context.Background(), testInput(""))
	require.NoError(t, err)
	assert.Contains(t, set.Analysis, "## Executive Summary\nNo summary available.")
}

func TestBuild_NarrativeFailurePropagates(t *testing.T) {
	r := &mocks.Reasoner{Rules: []mocks.ReasonerRule{{Response: "", Err: errors.New("quota")}}}
	_, err := testBuilder(r).Build(context.Background(), testInput(""))
	require.Error(t, err)
	assert.Equal(t, 4, r.Calls())
}

func TestBuild_TranscriptAndSnapshot(t *testing.T) {
	set, err := testBuilder(&mocks.Reasoner{}).Build(context.Background(), testInput(richHighlights))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(set.Transcript, "# Layout-Aware Transcript: 2024-01-31_Stmt_First Bank\n\n### Page 1\n\n"))
	assert.Contains(t, set.Transcript, "### Page 2\n\nPage two\n\n---\n\n")
	assert.Contains(t, set.HTML, "<table>")

	var snap map[string]any
	require.NoError(t, json.Unmarshal(set.Snapshot, &snap))
	meta := snap["meta"].(map[string]any)
	assert.Equal(t, "stmt.pdf", meta["originalName"])
	assert.Equal(t, "2024-03-01T12:00:00Z", meta["processedDate"])
	assert.Len(t, snap["pages"], 2)
	assert.Equal(t, set.Analysis, snap["summary"])
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := testBuilder(&mocks.Reasoner{}).Build(context.Background(), testInput(richHighlights))
	require.NoError(t, err)
	b, err := testBuilder(&mocks.Reasoner{}).Build(context.Background(), testInput(richHighlights))
	require.NoError(t, err)
	assert.Equal(t, a.Files(Source{}), b.Files(Source{}))
}

func TestFiles(t *testing.T) {
	set := &Set{BaseName: "base"}
	names := func(files []File) []string {
		var out []string
		for _, f := range files {
			out = append(out, f.Name)
		}
		return out
	}
	assert.Equal(t, []string{"base_Transcript.md", "base_Transcript.html", "base_Analysis.md", "base.json"}, names(set.Files(Source{})))
	assert.Equal(t, []string{"base_Transcript.md", "base_Transcript.html", "base_Analysis.md", "base.json", "base_Clean.pdf", "base_WithMeta.pdf"},
		names(set.Files(Source{Clean: []byte("a"), WithMeta: []byte("b")})))
}

func TestProperties(t *testing.T) {
	set := &Set{BaseName: "base", Analysis: strings.Repeat("x", 3000), Reporting: models.Reporting{Lane: "Receipts"}}
	props := set.Properties()
	assert.Equal(t, "base", props["Title"])
	assert.Len(t, props["Subject"], subjectMax)
	assert.Equal(t, "LegalForensics, Receipts", props["Keywords"])
}
