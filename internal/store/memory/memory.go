// Package memory is an in-process Datastore. It backs the package tests and
// local runs (DATASTORE=memory).
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/forensicdocumentflow/internal/completion"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var _ ports.Datastore = (*Store)(nil)

type pageKey struct {
	docID string
	index int
}

type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	docs       map[string]*models.Document
	pages      map[pageKey]models.Page
	errorPages []models.Page
	records    map[string][]models.Record
}

func New() *Store {
	return &Store{
		now:     time.Now,
		docs:    make(map[string]*models.Document),
		pages:   make(map[pageKey]models.Page),
		records: make(map[string][]models.Record),
	}
}

func (s *Store) doc(id string) (*models.Document, error) {
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return d, nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *doc
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	s.docs[d.ID] = &d
	return d.ID, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.doc(id)
	if err != nil {
		return nil, err
	}
	out := *d
	return &out, nil
}

func (s *Store) update(id string, fn func(d *models.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.doc(id)
	if err != nil {
		return err
	}
	fn(d)
	d.UpdatedAt = s.now()
	return nil
}

func (s *Store) SetDocumentLane(ctx context.Context, id, docType, lane string) error {
	return s.update(id, func(d *models.Document) {
		d.DocType = docType
		d.ProcessingLane = lane
	})
}

func (s *Store) SetDocumentStatus(ctx context.Context, id, status, details string) error {
	return s.update(id, func(d *models.Document) {
		d.Status = status
		d.ErrorDetails = details
	})
}

func (s *Store) MarkArchived(ctx context.Context, id, status, archivePath string) error {
	return s.update(id, func(d *models.Document) {
		d.Status = status
		d.ArchivePath = archivePath
	})
}

func (s *Store) FinalizeSplit(ctx context.Context, id string, totalPages int) (models.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.doc(id)
	if err != nil {
		return models.Completion{}, err
	}
	d.TotalPages = totalPages
	d.Status = models.StatusProcessing
	d.UpdatedAt = s.now()
	return s.evaluate(d, false), nil
}

func (s *Store) CompletePage(ctx context.Context, page *models.Page) (models.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.doc(page.DocID)
	if err != nil {
		return models.Completion{}, err
	}
	key := pageKey{page.DocID, page.PageIndex}
	counted := false
	if _, done := s.pages[key]; !done {
		p := *page
		p.Status = models.PageComplete
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now()
		}
		s.pages[key] = p
		d.PagesComplete++
		counted = true
	}
	return s.evaluate(d, counted), nil
}

// evaluate claims the trigger when the barrier opens. Callers hold mu.
func (s *Store) evaluate(d *models.Document, counted bool) models.Completion {
	c := models.Completion{PagesComplete: d.PagesComplete, TotalPages: d.TotalPages, Counted: counted}
	if completion.ShouldTrigger(d.PagesComplete, d.TotalPages, d.AggregationTriggered) {
		d.AggregationTriggered = true
		c.Trigger = true
	}
	return c
}

func (s *Store) ReleaseTrigger(ctx context.Context, id string) error {
	return s.update(id, func(d *models.Document) { d.AggregationTriggered = false })
}

func (s *Store) RecordPageError(ctx context.Context, docID string, pageIndex int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorPages = append(s.errorPages, models.Page{
		DocID:        docID,
		PageIndex:    pageIndex,
		Status:       models.PageError,
		ErrorMessage: message,
		CreatedAt:    s.now(),
	})
	return nil
}

func (s *Store) ListPages(ctx context.Context, docID string) ([]models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Page
	for k, p := range s.pages {
		if k.docID == docID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageIndex < out[j].PageIndex })
	return out, nil
}

func (s *Store) InsertRecords(ctx context.Context, collection string, records []models.Record) error {
	if !slices.Contains(models.LaneCollections, collection) {
		return fmt.Errorf("unknown collection %q", collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		rec := maps.Clone(r)
		if _, ok := rec["created_at"]; !ok {
			rec["created_at"] = s.now()
		}
		s.records[collection] = append(s.records[collection], rec)
	}
	return nil
}

func (s *Store) LatestRestrictions(ctx context.Context) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest models.Record
	var latestAt time.Time
	for _, r := range s.records[models.CollectionLegalDocuments] {
		if r["document_type"] != models.RestrictionsDocumentType {
			continue
		}
		at, _ := r["created_at"].(time.Time)
		if latest == nil || !at.Before(latestAt) {
			latest, latestAt = r, at
		}
	}
	if latest == nil {
		return nil, false, nil
	}
	return map[string]any{
		"restrictions":          latest["restrictions"],
		"financial_obligations": latest["financial_obligations"],
	}, true, nil
}

// Records returns a copy of every record inserted into collection.
func (s *Store) Records(collection string) []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records[collection])
}

// ErrorPages returns the error rows recorded for docID.
func (s *Store) ErrorPages(docID string) []models.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Page
	for _, p := range s.errorPages {
		if p.DocID == docID {
			out = append(out, p)
		}
	}
	return out
}
