package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/forensicdocumentflow/internal/completion"
	"github.com/Lllllllleong/forensicdocumentflow/internal/lanes"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

// Processor classifies and extracts one page, stores its artifacts, and
// records it against the completion barrier.
type Processor struct {
	objects    ports.ObjectStore
	store      ports.Datastore
	router     *lanes.Router
	classifier lanes.Classifier
	tracker    *completion.Tracker
	config     ProcessorConfig
}

type ProcessorDeps struct {
	Objects     ports.ObjectStore
	Store       ports.Datastore
	Publisher   ports.Publisher
	Reasoner    ports.Reasoner
	Transcriber ports.Transcriber
	OCR         ports.OCR
	Retry       retry.Policy
}

func NewProcessor(cfg ProcessorConfig, deps ProcessorDeps) *Processor {
	return &Processor{
		objects: deps.Objects,
		store:   deps.Store,
		router: lanes.NewRouter(lanes.Deps{
			Reasoner:    deps.Reasoner,
			Transcriber: deps.Transcriber,
			OCR:         deps.OCR,
			Store:       deps.Store,
			Retry:       deps.Retry,
		}),
		classifier: lanes.Classifier{Reasoner: deps.Reasoner, Retry: deps.Retry},
		tracker:    completion.NewTracker(deps.Store, deps.Publisher, cfg.AggregateTopic, deps.Retry),
		config:     cfg,
	}
}

// ArtifactPaths are the per-page JSON and markdown objects next to the page file.
func ArtifactPaths(pageFile string) (jsonPath, markdownPath string) {
	stem := strings.TrimSuffix(pageFile, ".pdf")
	return stem + ".json", stem + ".md"
}

// Run processes the configured page. Any failure is recorded as an error
// page row before it is returned.
func (p *Processor) Run(ctx context.Context) (models.Completion, error) {
	logCtx := slog.With("documentId", p.config.DocID, "pageIndex", p.config.PageIndex, "gcsObject", p.config.File)
	logCtx.Info("Processing page.")

	c, err := p.process(ctx, logCtx)
	if err != nil {
		logCtx.Error("Page processing failed.", "error", err)
		if recErr := p.store.RecordPageError(ctx, p.config.DocID, p.config.PageIndex, err.Error()); recErr != nil {
			logCtx.Error("CRITICAL: Failed to record page error.", "recordError", recErr)
		}
		return models.Completion{}, err
	}
	logCtx.Info("Page complete.", "pagesComplete", c.PagesComplete, "totalPages", c.TotalPages, "aggregationTriggered", c.Trigger)
	return c, nil
}

func (p *Processor) process(ctx context.Context, logCtx *slog.Logger) (models.Completion, error) {
	pdf, err := p.objects.Download(ctx, p.config.Bucket, p.config.File)
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to download page: %w", err)
	}

	classification, lane, err := p.classifier.Classify(ctx, pdf)
	if err != nil {
		return models.Completion{}, err
	}
	logCtx = logCtx.With("docType", classification.DocType, "lane", lane.String())
	logCtx.Info("Page classified.", "reasoning", classification.Reasoning)

	if p.config.PageIndex == 0 {
		if err := p.store.SetDocumentLane(ctx, p.config.DocID, classification.DocType, lane.String()); err != nil {
			return models.Completion{}, err
		}
	}

	strategy := p.router.ForLane(lane)
	result, err := strategy.Extract(ctx, lanes.Input{DocID: p.config.DocID, PageIndex: p.config.PageIndex, PDF: pdf})
	if err != nil {
		return models.Completion{}, fmt.Errorf("%s extraction failed: %w", lane, err)
	}

	data := result.ExtractedData
	if data == nil {
		data = map[string]any{}
	}
	elements := result.ElementsCaptured
	if elements == nil {
		elements = []string{}
	}
	data[models.ReportingKey] = models.Reporting{Lane: lane.String(), Table: result.TableUsed, Elements: elements}
	data[models.DocTypeKey] = classification.DocType

	jsonPath, markdownPath, err := p.saveArtifacts(ctx, data, result.Markdown)
	if err != nil {
		return models.Completion{}, err
	}

	return p.tracker.PageCompleted(ctx, &models.Page{
		DocID:         p.config.DocID,
		PageIndex:     p.config.PageIndex,
		ExtractedData: data,
		JSONPath:      jsonPath,
		MarkdownPath:  markdownPath,
	})
}

// saveArtifacts writes the page's JSON and markdown side by side. A
// redelivered page keeps the first run's objects.
func (p *Processor) saveArtifacts(ctx context.Context, data map[string]any, markdown string) (string, string, error) {
	jsonPath, markdownPath := ArtifactPaths(p.config.File)
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode extracted data: %w", err)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return p.objects.UploadIfAbsent(gctx, p.config.Bucket, jsonPath, body, "application/json")
	})
	eg.Go(func() error {
		return p.objects.UploadIfAbsent(gctx, p.config.Bucket, markdownPath, []byte(markdown), "text/markdown; charset=utf-8")
	})
	if err := eg.Wait(); err != nil {
		return "", "", fmt.Errorf("failed to save page artifacts: %w", err)
	}
	return jsonPath, markdownPath, nil
}
