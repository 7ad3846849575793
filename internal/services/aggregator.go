package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/forensicdocumentflow/internal/artifacts"
	"github.com/Lllllllleong/forensicdocumentflow/internal/lanes"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/naming"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

// LockTTL bounds how long one aggregator run holds the per-document lock.
const LockTTL = 10 * time.Minute

// Aggregator builds the archive bundle for a finished document, archives the
// source and removes the per-page intermediates. Every step is safe to repeat.
type Aggregator struct {
	objects   ports.ObjectStore
	store     ports.Datastore
	router    *lanes.Router
	builder   *artifacts.Builder
	annotator ports.PDFAnnotator
	locker    ports.Locker
	config    AggregatorConfig
}

type AggregatorDeps struct {
	Objects   ports.ObjectStore
	Store     ports.Datastore
	Reasoner  ports.Reasoner
	Annotator ports.PDFAnnotator
	Locker    ports.Locker
	Retry     retry.Policy
	Now       func() time.Time
}

func NewAggregator(cfg AggregatorConfig, deps AggregatorDeps) *Aggregator {
	return &Aggregator{
		objects:   deps.Objects,
		store:     deps.Store,
		router:    lanes.NewRouter(lanes.Deps{Reasoner: deps.Reasoner, Store: deps.Store, Retry: deps.Retry}),
		builder:   &artifacts.Builder{Reasoner: deps.Reasoner, Retry: deps.Retry, Now: deps.Now},
		annotator: deps.Annotator,
		locker:    deps.Locker,
		config:    cfg,
	}
}

// ArchiveFolder is the per-document folder in the archive bucket. The short
// document ID keeps two documents with the same synthesized name apart.
func ArchiveFolder(baseName, docID string) string {
	short := docID
	if len(short) > 8 {
		short = short[:8]
	}
	return baseName + "_" + short
}

func isArchived(status string) bool {
	return status == models.StatusArchived || status == models.StatusArchivedWithSummary
}

func (a *Aggregator) Run(ctx context.Context) error {
	docID := a.config.DocID
	logCtx := slog.With("documentId", docID)

	lockName := "aggregate:" + docID
	acquired, err := a.locker.Acquire(ctx, lockName, LockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		logCtx.Info("Aggregation already running for this document. Skipping.")
		return nil
	}
	defer func() {
		if err := a.locker.Release(context.WithoutCancel(ctx), lockName); err != nil {
			logCtx.Warn("Failed to release aggregation lock.", "error", err)
		}
	}()

	doc, err := a.store.GetDocument(ctx, docID)
	if err != nil {
		logCtx.Error("Failed to load document", "error", err)
		return err
	}
	logCtx = logCtx.With("filename", doc.Filename)

	if isArchived(doc.Status) {
		logCtx.Info("Document already archived; finishing cleanup only.", "archivePath", doc.ArchivePath)
		a.cleanup(ctx, logCtx, doc)
		return nil
	}

	status, archivePath, err := a.archive(ctx, logCtx, doc)
	if err != nil {
		return a.handleError(ctx, logCtx, docID, "failed to aggregate document", err)
	}
	if err := a.store.MarkArchived(ctx, docID, status, archivePath); err != nil {
		return a.handleError(ctx, logCtx, docID, "failed to mark document archived", err)
	}
	logCtx.Info("Document archived.", "status", status, "archivePath", archivePath)

	a.cleanup(ctx, logCtx, doc)
	return nil
}

func (a *Aggregator) archive(ctx context.Context, logCtx *slog.Logger, doc *models.Document) (string, string, error) {
	pages, err := a.store.ListPages(ctx, doc.ID)
	if err != nil {
		return "", "", err
	}
	if len(pages) == 0 {
		return "", "", errors.New("no processed pages found")
	}
	logCtx.Info("Aggregating pages.", "pageCount", len(pages), "totalPages", doc.TotalPages)

	markdown, err := a.transcripts(ctx, logCtx, pages)
	if err != nil {
		return "", "", err
	}

	reporting := models.ReportingOf(pages[0].ExtractedData)
	lane := models.Lane(reporting.Lane)
	baseName := naming.BaseName(lane, pages[0].ExtractedData)
	folder := ArchiveFolder(baseName, doc.ID)
	logCtx = logCtx.With("baseName", baseName, "lane", reporting.Lane)

	set, err := a.builder.Build(ctx, artifacts.Input{
		Document:   doc,
		Pages:      pages,
		Markdown:   markdown,
		Highlights: a.router.ForLane(lane).Highlights(pages),
		BaseName:   baseName,
		Folder:     folder,
	})
	if err != nil {
		return "", "", err
	}

	src, err := a.source(ctx, logCtx, doc, set)
	if err != nil {
		return "", "", err
	}
	if err := a.upload(ctx, set.Folder, set.Files(src)); err != nil {
		return "", "", err
	}

	status := models.StatusArchived
	if set.Summarized {
		status = models.StatusArchivedWithSummary
	}
	return status, fmt.Sprintf("gs://%s/%s", a.config.ArchiveBucket, folder), nil
}

// transcripts downloads each page's markdown. A missing object reads as empty.
func (a *Aggregator) transcripts(ctx context.Context, logCtx *slog.Logger, pages []models.Page) ([]string, error) {
	out := make([]string, len(pages))
	for i, p := range pages {
		if p.MarkdownPath == "" {
			continue
		}
		b, err := a.objects.Download(ctx, a.config.ProcessingBucket, p.MarkdownPath)
		if errors.Is(err, ports.ErrObjectNotExist) {
			logCtx.Warn("Page transcript missing.", "pageIndex", p.PageIndex, "gcsObject", p.MarkdownPath)
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i] = string(b)
	}
	return out, nil
}

// source returns the clean original and its annotated copy. When an earlier
// run already moved the upload out of the input bucket, the archived clean
// copy stands in for it.
func (a *Aggregator) source(ctx context.Context, logCtx *slog.Logger, doc *models.Document, set *artifacts.Set) (artifacts.Source, error) {
	clean, err := a.objects.Download(ctx, a.config.InputBucket, doc.Filename)
	if errors.Is(err, ports.ErrObjectNotExist) {
		archived := set.Folder + "/" + set.BaseName + "_Clean.pdf"
		clean, err = a.objects.Download(ctx, a.config.ArchiveBucket, archived)
		if errors.Is(err, ports.ErrObjectNotExist) {
			logCtx.Warn("Source file no longer available; archiving without PDF copies.")
			return artifacts.Source{}, nil
		}
	}
	if err != nil {
		return artifacts.Source{}, fmt.Errorf("failed to download source: %w", err)
	}

	withMeta, err := a.annotator.Annotate(ctx, clean, set.Properties())
	if err != nil {
		logCtx.Warn("Failed to annotate PDF properties; skipping annotated copy.", "error", err)
		return artifacts.Source{Clean: clean}, nil
	}
	return artifacts.Source{Clean: clean, WithMeta: withMeta}, nil
}

func (a *Aggregator) upload(ctx context.Context, folder string, files []artifacts.File) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentPages)
	for _, f := range files {
		eg.Go(func() error {
			return a.objects.Upload(gctx, a.config.ArchiveBucket, folder+"/"+f.Name, f.Data, f.ContentType)
		})
	}
	return eg.Wait()
}

// cleanup removes the upload and the per-page intermediates. Objects already
// gone are fine; other failures are logged and left for a later run.
func (a *Aggregator) cleanup(ctx context.Context, logCtx *slog.Logger, doc *models.Document) {
	if err := a.objects.Delete(ctx, a.config.InputBucket, doc.Filename); err != nil && !errors.Is(err, ports.ErrObjectNotExist) {
		logCtx.Warn("Failed to remove source from input bucket.", "error", err)
	}

	names, err := a.objects.List(ctx, a.config.ProcessingBucket, doc.ID+"/")
	if err != nil {
		logCtx.Warn("Failed to list processing artifacts.", "error", err)
		return
	}
	for _, name := range names {
		if err := a.objects.Delete(ctx, a.config.ProcessingBucket, name); err != nil && !errors.Is(err, ports.ErrObjectNotExist) {
			logCtx.Warn("Failed to remove processing artifact.", "gcsObject", name, "error", err)
		}
	}
	logCtx.Info("Cleanup complete.", "removedArtifacts", len(names))
}

func (a *Aggregator) handleError(ctx context.Context, logCtx *slog.Logger, docID, message string, originalErr error) error {
	fullError := fmt.Errorf("%s: %w", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := a.store.SetDocumentStatus(ctx, docID, models.StatusError, fullError.Error()); err != nil {
		logCtx.Error("CRITICAL: Failed to update document status to error after a processing error.", "updateError", err)
	}
	return fullError
}
