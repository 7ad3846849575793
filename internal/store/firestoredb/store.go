// Package firestoredb is the Firestore-backed Datastore. The completion barrier
// runs inside a Firestore transaction: the page row, the pages_complete
// counter and the aggregation_triggered flag change together or not at all.
package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/forensicdocumentflow/internal/completion"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var _ ports.Datastore = (*Store)(nil)

// txAttempts bounds barrier transactions. Every page of a document contends on
// the same counter document.
const txAttempts = 25

type Store struct {
	client *firestore.Client
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(models.CollectionDocuments).Doc(id)
}

// pageRef is keyed by (doc, index) so a redelivered page lands on the same row.
func (s *Store) pageRef(docID string, index int) *firestore.DocumentRef {
	return s.client.Collection(models.CollectionPages).Doc(docID + "_" + strconv.Itoa(index))
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) (string, error) {
	ref := s.client.Collection(models.CollectionDocuments).NewDoc()
	if doc.ID != "" {
		ref = s.docRef(doc.ID)
	}
	d := *doc
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if _, err := ref.Create(ctx, d); err != nil {
		return "", fmt.Errorf("failed to create master document: %w", err)
	}
	return ref.ID, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	snap, err := s.docRef(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	var d models.Document
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	d.ID = snap.Ref.ID
	return &d, nil
}

func (s *Store) update(ctx context.Context, id string, updates []firestore.Update) error {
	updates = append(updates, firestore.Update{Path: "updated_at", Value: firestore.ServerTimestamp})
	if _, err := s.docRef(id).Update(ctx, updates); err != nil {
		if notFound(err) {
			return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

func (s *Store) SetDocumentLane(ctx context.Context, id, docType, lane string) error {
	return s.update(ctx, id, []firestore.Update{
		{Path: "doc_type", Value: docType},
		{Path: "processing_lane", Value: lane},
	})
}

func (s *Store) SetDocumentStatus(ctx context.Context, id, status, details string) error {
	updates := []firestore.Update{{Path: "status", Value: status}}
	if details != "" {
		updates = append(updates, firestore.Update{Path: "error_details", Value: details})
	}
	return s.update(ctx, id, updates)
}

func (s *Store) MarkArchived(ctx context.Context, id, status, archivePath string) error {
	return s.update(ctx, id, []firestore.Update{
		{Path: "status", Value: status},
		{Path: "archive_path", Value: archivePath},
	})
}

// readCounters loads the barrier fields inside tx. Firestore requires every
// read of a transaction to happen before its first write.
func readCounters(tx *firestore.Transaction, ref *firestore.DocumentRef) (models.Document, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if notFound(err) {
			return models.Document{}, fmt.Errorf("document %s: %w", ref.ID, models.ErrNotFound)
		}
		return models.Document{}, err
	}
	var d models.Document
	if err := snap.DataTo(&d); err != nil {
		return models.Document{}, fmt.Errorf("failed to decode document %s: %w", ref.ID, err)
	}
	return d, nil
}

func (s *Store) FinalizeSplit(ctx context.Context, id string, totalPages int) (models.Completion, error) {
	var c models.Completion
	ref := s.docRef(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		d, err := readCounters(tx, ref)
		if err != nil {
			return err
		}
		c = models.Completion{PagesComplete: d.PagesComplete, TotalPages: totalPages}
		c.Trigger = completion.ShouldTrigger(d.PagesComplete, totalPages, d.AggregationTriggered)
		return tx.Update(ref, []firestore.Update{
			{Path: "total_pages", Value: totalPages},
			{Path: "status", Value: models.StatusProcessing},
			{Path: "aggregation_triggered", Value: d.AggregationTriggered || c.Trigger},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	}, firestore.MaxAttempts(txAttempts))
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to finalize split for %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) CompletePage(ctx context.Context, page *models.Page) (models.Completion, error) {
	var c models.Completion
	docRef := s.docRef(page.DocID)
	pageRef := s.pageRef(page.DocID, page.PageIndex)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		d, err := readCounters(tx, docRef)
		if err != nil {
			return err
		}
		existing, err := tx.Get(pageRef)
		if err != nil && !notFound(err) {
			return err
		}
		done := err == nil && existing.Exists()

		c = models.Completion{PagesComplete: d.PagesComplete, TotalPages: d.TotalPages}
		if !done {
			p := *page
			p.Status = models.PageComplete
			if p.CreatedAt.IsZero() {
				p.CreatedAt = time.Now()
			}
			if err := tx.Create(pageRef, p); err != nil {
				return err
			}
			c.PagesComplete++
			c.Counted = true
		}
		c.Trigger = completion.ShouldTrigger(c.PagesComplete, c.TotalPages, d.AggregationTriggered)
		if !c.Counted && !c.Trigger {
			return nil
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "pages_complete", Value: c.PagesComplete},
			{Path: "aggregation_triggered", Value: d.AggregationTriggered || c.Trigger},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	}, firestore.MaxAttempts(txAttempts))
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to record page %d of %s: %w", page.PageIndex, page.DocID, err)
	}
	return c, nil
}

func (s *Store) ReleaseTrigger(ctx context.Context, id string) error {
	return s.update(ctx, id, []firestore.Update{{Path: "aggregation_triggered", Value: false}})
}

func (s *Store) RecordPageError(ctx context.Context, docID string, pageIndex int, message string) error {
	row := models.Page{
		DocID:        docID,
		PageIndex:    pageIndex,
		Status:       models.PageError,
		ErrorMessage: message,
		CreatedAt:    time.Now(),
	}
	if _, _, err := s.client.Collection(models.CollectionPages).Add(ctx, row); err != nil {
		return fmt.Errorf("failed to record error for page %d of %s: %w", pageIndex, docID, err)
	}
	return nil
}

func (s *Store) ListPages(ctx context.Context, docID string) ([]models.Page, error) {
	snaps, err := s.client.Collection(models.CollectionPages).
		Where("doc_id", "==", docID).
		Where("status", "==", models.PageComplete).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query pages for %s: %w", docID, err)
	}
	pages := make([]models.Page, 0, len(snaps))
	for _, snap := range snaps {
		var p models.Page
		if err := snap.DataTo(&p); err != nil {
			return nil, fmt.Errorf("failed to decode page %s: %w", snap.Ref.ID, err)
		}
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageIndex < pages[j].PageIndex })
	return pages, nil
}

func (s *Store) InsertRecords(ctx context.Context, collection string, records []models.Record) error {
	if !slices.Contains(models.LaneCollections, collection) {
		return fmt.Errorf("unknown collection %q", collection)
	}
	if len(records) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	for _, r := range records {
		data := make(map[string]any, len(r)+1)
		for k, v := range r {
			data[k] = v
		}
		if _, ok := data["created_at"]; !ok {
			data["created_at"] = firestore.ServerTimestamp
		}
		job, err := bw.Create(s.client.Collection(collection).NewDoc(), data)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue %s record: %w", collection, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) LatestRestrictions(ctx context.Context) (map[string]any, bool, error) {
	snaps, err := s.client.Collection(models.CollectionLegalDocuments).
		Where("document_type", "==", models.RestrictionsDocumentType).
		OrderBy("created_at", firestore.Desc).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, false, fmt.Errorf("failed to query restrictions: %w", err)
	}
	if len(snaps) == 0 {
		return nil, false, nil
	}
	data := snaps[0].Data()
	return map[string]any{
		"restrictions":          data["restrictions"],
		"financial_obligations": data["financial_obligations"],
	}, true, nil
}
