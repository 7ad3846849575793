package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

// Model defaults, overridable with MODEL_FAST and MODEL_REASONING.
const (
	DefaultFastModel      = "gemini-2.5-flash"
	DefaultReasoningModel = "gemini-2.5-pro"
)

const transcriberSystemPrompt = "You are a document parser and markdown translator. Your task is to parse the content of a PDF document and translate it into markdown format. Accuracy, detail, and information preservation are of utmost importance."

const transcriberUserPrompt = `Translate the attached page into markdown.

Text: Parse all text content directly into markdown text.
Lists: Keep the original list structure.
Tables: Parse all tables into markdown tables. Normalize merged cells by copying the parent cell's content into each child cell.
Images: Replace each image, signature or stamp with a short description of what it shows.
Handwriting: Transcribe legible handwriting; mark illegible words as [illegible].
Headers and Footers: Drop page numbers and repeated letterhead, keep everything else.

Return only the markdown.`

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
}

// VertexConfig names the project, region and model for each tier.
type VertexConfig struct {
	ProjectID      string
	Region         string
	FastModel      string
	ReasoningModel string
}

// VertexConfigFromEnv reads PROJECT_ID, REGION, MODEL_FAST and MODEL_REASONING.
func VertexConfigFromEnv() VertexConfig {
	return VertexConfig{
		ProjectID:      GetEnv("PROJECT_ID", ""),
		Region:         GetEnv("REGION", "us-central1"),
		FastModel:      GetEnv("MODEL_FAST", DefaultFastModel),
		ReasoningModel: GetEnv("MODEL_REASONING", DefaultReasoningModel),
	}
}

// VertexClient holds the pre-configured Gemini models for every tier.
// It implements both ports.Reasoner and ports.Transcriber.
type VertexClient struct {
	fast        *genai.GenerativeModel
	reasoning   *genai.GenerativeModel
	narrative   *genai.GenerativeModel
	transcriber *genai.GenerativeModel
	baseClient  *genai.Client
}

var (
	_ ports.Reasoner    = (*VertexClient)(nil)
	_ ports.Transcriber = (*VertexClient)(nil)
)

func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// Classification and extraction answer in JSON.
	fast := baseClient.GenerativeModel(cfg.FastModel)
	fast.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	fast.SafetySettings = safetySettings

	reasoning := baseClient.GenerativeModel(cfg.ReasoningModel)
	reasoning.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	reasoning.SafetySettings = safetySettings

	narrative := baseClient.GenerativeModel(cfg.FastModel)
	narrative.GenerationConfig = genai.GenerationConfig{Temperature: genai.Ptr[float32](0.2)}
	narrative.SafetySettings = safetySettings

	transcriber := baseClient.GenerativeModel(cfg.ReasoningModel)
	transcriber.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(transcriberSystemPrompt)},
	}
	transcriber.GenerationConfig = genai.GenerationConfig{Temperature: genai.Ptr[float32](0.0)}
	transcriber.SafetySettings = safetySettings

	slog.Info("Vertex AI client initialized.", "fastModel", cfg.FastModel, "reasoningModel", cfg.ReasoningModel)
	return &VertexClient{
		fast:        fast,
		reasoning:   reasoning,
		narrative:   narrative,
		transcriber: transcriber,
		baseClient:  baseClient,
	}, nil
}

func (c *VertexClient) model(tier ports.ModelTier) *genai.GenerativeModel {
	switch tier {
	case ports.TierFast:
		return c.fast
	case ports.TierNarrative:
		return c.narrative
	default:
		return c.reasoning
	}
}

// Generate sends one prompt, with the optional inline document, to the tier's model.
func (c *VertexClient) Generate(ctx context.Context, p ports.Prompt) (string, error) {
	parts := make([]genai.Part, 0, 2)
	if len(p.Document) > 0 {
		mime := p.MIMEType
		if mime == "" {
			mime = "application/pdf"
		}
		parts = append(parts, genai.Blob{MIMEType: mime, Data: p.Document})
	}
	parts = append(parts, genai.Text(p.Text))

	resp, err := c.model(p.Tier).GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return responseText(resp), nil
}

// Transcribe converts one PDF page into markdown. A refusal is an error so the
// caller's retry policy gets another attempt.
func (c *VertexClient) Transcribe(ctx context.Context, pdf []byte) (string, error) {
	resp, err := c.transcriber.GenerateContent(ctx,
		genai.Blob{MIMEType: "application/pdf", Data: pdf},
		genai.Text(transcriberUserPrompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	markdown := ExtractMarkdown(responseText(resp))
	if IsRefusal(markdown) {
		return "", fmt.Errorf("gemini response indicates refusal")
	}
	if markdown == "" {
		slog.Warn("No markdown content extracted from response. Treating as empty page.")
	}
	return markdown, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// ExtractMarkdown strips the code fence models sometimes wrap markdown in.
func ExtractMarkdown(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func IsRefusal(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
