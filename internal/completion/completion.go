// Package completion decides when every page of a document has finished and
// publishes the single aggregation trigger.
//
// The decision is made by the datastore in the same atomic step that records
// a completed page (or the split's page count): a pages_complete counter is
// incremented at most once per page, and an aggregation_triggered flag is set
// by exactly one caller, the one whose update made the counter reach
// total_pages.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

// ShouldTrigger reports whether a barrier update may claim the aggregation
// trigger. total is zero until the split has been finalized.
func ShouldTrigger(pagesComplete, total int, alreadyTriggered bool) bool {
	return total > 0 && pagesComplete >= total && !alreadyTriggered
}

// Store is the part of the datastore the tracker drives.
type Store interface {
	CompletePage(ctx context.Context, page *models.Page) (models.Completion, error)
	FinalizeSplit(ctx context.Context, id string, totalPages int) (models.Completion, error)
	ReleaseTrigger(ctx context.Context, id string) error
}

// Tracker records page and split completion and publishes the aggregate-ready
// event when the barrier opens.
type Tracker struct {
	store     Store
	publisher ports.Publisher
	topic     string
	retry     retry.Policy
}

func NewTracker(store Store, publisher ports.Publisher, topic string, policy retry.Policy) *Tracker {
	return &Tracker{store: store, publisher: publisher, topic: topic, retry: policy}
}

// PageCompleted records page as complete. Recording the same page twice is a
// no-op for the counter.
func (t *Tracker) PageCompleted(ctx context.Context, page *models.Page) (models.Completion, error) {
	c, err := t.store.CompletePage(ctx, page)
	if err != nil {
		return c, fmt.Errorf("failed to record page %d as complete: %w", page.PageIndex, err)
	}
	logCtx := slog.With("documentId", page.DocID, "pageIndex", page.PageIndex)
	logCtx.Info("Page recorded.", "pagesComplete", c.PagesComplete, "totalPages", c.TotalPages, "counted", c.Counted)
	if !c.Trigger {
		return c, nil
	}
	return c, t.fire(ctx, page.DocID)
}

// SplitFinalized records the page count of a freshly split document. Pages
// that finished before this call are taken into account.
func (t *Tracker) SplitFinalized(ctx context.Context, docID string, totalPages int) (models.Completion, error) {
	c, err := t.store.FinalizeSplit(ctx, docID, totalPages)
	if err != nil {
		return c, fmt.Errorf("failed to finalize split: %w", err)
	}
	if !c.Trigger {
		return c, nil
	}
	return c, t.fire(ctx, docID)
}

// fire publishes the trigger. When publishing fails the claim is released so
// a redelivery of the same page can fire again.
func (t *Tracker) fire(ctx context.Context, docID string) error {
	logCtx := slog.With("documentId", docID, "topic", t.topic)
	logCtx.Info("All pages complete. Triggering aggregator.")

	err := retry.Run(ctx, t.retry, "publish aggregate trigger", func(ctx context.Context) error {
		return t.publisher.Publish(ctx, t.topic, models.AggregateReady{DocID: docID})
	})
	if err == nil {
		return nil
	}
	logCtx.Error("Failed to publish aggregate trigger. Releasing claim.", "error", err)
	if rerr := t.store.ReleaseTrigger(ctx, docID); rerr != nil {
		return errors.Join(err, fmt.Errorf("failed to release trigger: %w", rerr))
	}
	return err
}
