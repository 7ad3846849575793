package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var (
	_ ports.Reasoner    = (*Reasoner)(nil)
	_ ports.Transcriber = (*Transcriber)(nil)
	_ ports.OCR         = (*OCR)(nil)
)

// Reasoner answers prompts from a script. A rule matches when the prompt text
// contains its Contains substring; the first matching rule wins. Unmatched
// prompts get Default.
type Reasoner struct {
	mu      sync.Mutex
	Rules   []ReasonerRule
	Default string
	Prompts []ports.Prompt
}

type ReasonerRule struct {
	Contains string
	Tier     *ports.ModelTier
	Response string
	Err      error
}

// On appends a rule and returns the reasoner for chaining.
func (r *Reasoner) On(contains, response string) *Reasoner {
	r.Rules = append(r.Rules, ReasonerRule{Contains: contains, Response: response})
	return r
}

// OnTier appends a rule that only matches prompts of the given tier.
func (r *Reasoner) OnTier(tier ports.ModelTier, response string) *Reasoner {
	t := tier
	r.Rules = append(r.Rules, ReasonerRule{Tier: &t, Response: response})
	return r
}

func (r *Reasoner) Generate(ctx context.Context, p ports.Prompt) (string, error) {
	r.mu.Lock()
	r.Prompts = append(r.Prompts, p)
	r.mu.Unlock()
	for _, rule := range r.Rules {
		if rule.Tier != nil && *rule.Tier != p.Tier {
			continue
		}
		if rule.Contains != "" && !strings.Contains(p.Text, rule.Contains) {
			continue
		}
		return rule.Response, rule.Err
	}
	return r.Default, nil
}

// Calls returns how many prompts were received.
func (r *Reasoner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Prompts)
}

// Transcriber returns a fixed markdown transcript.
type Transcriber struct {
	Markdown string
	Err      error
}

func (t *Transcriber) Transcribe(ctx context.Context, pdf []byte) (string, error) {
	return t.Markdown, t.Err
}

// OCR returns fixed text.
type OCR struct {
	Text  string
	Err   error
	Calls int
}

func (o *OCR) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	o.Calls++
	return o.Text, o.Err
}

// ErrTransient is a convenience error for retry tests.
var ErrTransient = errors.New("transient failure")
