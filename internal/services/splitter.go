package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/forensicdocumentflow/internal/completion"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

// maxConcurrentPages bounds parallel page uploads and publishes.
const maxConcurrentPages = 10

// Splitter partitions one uploaded file into single-page files and fans out
// one PageReady message per page.
type Splitter struct {
	objects   ports.ObjectStore
	store     ports.Datastore
	publisher ports.Publisher
	pages     ports.PageSplitter
	tracker   *completion.Tracker
	retry     retry.Policy
	config    SplitterConfig
}

type SplitterDeps struct {
	Objects   ports.ObjectStore
	Store     ports.Datastore
	Publisher ports.Publisher
	Pages     ports.PageSplitter
	Retry     retry.Policy
}

func NewSplitter(cfg SplitterConfig, deps SplitterDeps) *Splitter {
	return &Splitter{
		objects:   deps.Objects,
		store:     deps.Store,
		publisher: deps.Publisher,
		pages:     deps.Pages,
		tracker:   completion.NewTracker(deps.Store, deps.Publisher, cfg.AggregateTopic, deps.Retry),
		retry:     deps.Retry,
		config:    cfg,
	}
}

// PagePath is where page i of a document is stored in the processing bucket.
func PagePath(docID, fileName string, i int) string {
	return fmt.Sprintf("%s/%s-page-%d.pdf", docID, fileName, i)
}

// Run splits the configured file and returns the new document's ID.
func (s *Splitter) Run(ctx context.Context) (string, error) {
	logCtx := slog.With("gcsBucket", s.config.InputBucket, "gcsObject", s.config.FileName)
	logCtx.Info("Processing new upload.")

	src, err := s.objects.Download(ctx, s.config.InputBucket, s.config.FileName)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return "", fmt.Errorf("failed to download source: %w", err)
	}
	sum := sha256.Sum256(src)
	fileHash := hex.EncodeToString(sum[:])
	logCtx = logCtx.With("fileHash", fileHash)

	docID, err := s.store.CreateDocument(ctx, &models.Document{
		Filename: s.config.FileName,
		FileHash: fileHash,
		Status:   models.StatusSplitting,
	})
	if err != nil {
		logCtx.Error("Failed to create master document", "error", err)
		return "", err
	}
	logCtx = logCtx.With("documentId", docID)
	logCtx.Info("Created master document.")

	pages, err := s.pages.Split(ctx, src)
	if err != nil {
		return docID, s.handleError(ctx, logCtx, docID, "failed to split PDF", err)
	}
	if len(pages) == 0 {
		return docID, s.handleError(ctx, logCtx, docID, "failed to split PDF", errors.New("document has no pages"))
	}
	logCtx.Info("PDF split locally.", "pageCount", len(pages))

	if err := s.fanOut(ctx, logCtx, docID, pages); err != nil {
		return docID, s.handleError(ctx, logCtx, docID, "one or more pages failed to fan out", err)
	}

	// Pages may already be finishing; finalizing evaluates the barrier too.
	c, err := s.tracker.SplitFinalized(ctx, docID, len(pages))
	if err != nil {
		return docID, s.handleError(ctx, logCtx, docID, "failed to finalize split", err)
	}
	logCtx.Info("Split complete.", "totalPages", c.TotalPages, "pagesComplete", c.PagesComplete, "aggregationTriggered", c.Trigger)
	return docID, nil
}

func (s *Splitter) fanOut(ctx context.Context, logCtx *slog.Logger, docID string, pages [][]byte) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentPages)
	for i, page := range pages {
		eg.Go(func() error {
			path := PagePath(docID, s.config.FileName, i)
			if err := s.objects.Upload(gctx, s.config.ProcessingBucket, path, page, "application/pdf"); err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			msg := models.PageReady{DocID: docID, PageIndex: i, File: path, Bucket: s.config.ProcessingBucket}
			err := retry.Run(gctx, s.retry, "publish page-ready", func(ctx context.Context) error {
				return s.publisher.Publish(ctx, s.config.Topic, msg)
			})
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	logCtx.Info("All pages uploaded and published.", "topic", s.config.Topic)
	return nil
}

// handleError marks the document failed and returns the wrapped error.
func (s *Splitter) handleError(ctx context.Context, logCtx *slog.Logger, docID, message string, originalErr error) error {
	fullError := fmt.Errorf("%s: %w", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := s.store.SetDocumentStatus(ctx, docID, models.StatusError, fullError.Error()); err != nil {
		logCtx.Error("CRITICAL: Failed to update document status to error after a processing error.", "updateError", err)
	}
	return fullError
}
