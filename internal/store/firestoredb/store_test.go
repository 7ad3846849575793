package firestoredb

import (
	"context"
	"os"
	"sync"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// openTestStore talks to the Firestore emulator, skipping when
// FIRESTORE_EMULATOR_HOST is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "forensic-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func newDocument(t *testing.T, s *Store) string {
	t.Helper()
	id, err := s.CreateDocument(context.Background(), &models.Document{
		ID:       uuid.NewString(),
		Filename: "stmt.pdf",
		Status:   models.StatusSplitting,
	})
	require.NoError(t, err)
	return id
}

func TestStore_CompletionBarrier(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := newDocument(t, s)

	c, err := s.FinalizeSplit(ctx, id, 3)
	require.NoError(t, err)
	assert.False(t, c.Trigger)

	var mu sync.Mutex
	triggers, counted := 0, 0
	var wg sync.WaitGroup
	for i := range 3 {
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := s.CompletePage(ctx, &models.Page{DocID: id, PageIndex: i, ExtractedData: map[string]any{"n": i}})
				assert.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				if c.Trigger {
					triggers++
				}
				if c.Counted {
					counted++
				}
			}()
		}
	}
	wg.Wait()
	assert.Equal(t, 1, triggers)
	assert.Equal(t, 3, counted, "a redelivered page is counted once")

	doc, err := s.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, 3, doc.PagesComplete)
	assert.True(t, doc.AggregationTriggered)

	pages, err := s.ListPages(ctx, id)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i, p.PageIndex)
		assert.Equal(t, models.PageComplete, p.Status)
	}

	require.NoError(t, s.ReleaseTrigger(ctx, id))
	c, err = s.CompletePage(ctx, &models.Page{DocID: id, PageIndex: 0})
	require.NoError(t, err)
	assert.False(t, c.Counted)
	assert.True(t, c.Trigger, "a released trigger can be claimed again")
}

func TestStore_PagesFinishBeforeSplit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := newDocument(t, s)

	for i := range 2 {
		c, err := s.CompletePage(ctx, &models.Page{DocID: id, PageIndex: i})
		require.NoError(t, err)
		assert.True(t, c.Counted)
		assert.False(t, c.Trigger, "no trigger while total_pages is unknown")
	}
	require.NoError(t, s.RecordPageError(ctx, id, 1, "transient OCR failure"))

	c, err := s.FinalizeSplit(ctx, id, 2)
	require.NoError(t, err)
	assert.True(t, c.Trigger, "the split closes the barrier")

	c, err = s.FinalizeSplit(ctx, id, 2)
	require.NoError(t, err)
	assert.False(t, c.Trigger, "a repeated split does not fire twice")

	pages, err := s.ListPages(ctx, id)
	require.NoError(t, err)
	assert.Len(t, pages, 2, "error rows are not listed")
}

func TestStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	missing := uuid.NewString()

	_, err := s.GetDocument(ctx, missing)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.CompletePage(ctx, &models.Page{DocID: missing})
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.FinalizeSplit(ctx, missing, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.SetDocumentStatus(ctx, missing, models.StatusError, "x"), models.ErrNotFound)
}

func TestStore_LatestRestrictions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	marker := "no gifts over $10k " + uuid.NewString()

	require.NoError(t, s.InsertRecords(ctx, models.CollectionLegalDocuments, []models.Record{
		{"doc_id": uuid.NewString(), "document_type": models.RestrictionsDocumentType, "restrictions": []any{marker}},
	}))
	rec, ok, err := s.LatestRestrictions(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{marker}, rec["restrictions"])
}

func TestStore_InsertRecordsRejectsUnknownCollection(t *testing.T) {
	s := New(nil)
	err := s.InsertRecords(context.Background(), "documents", []models.Record{{"doc_id": "d"}})
	assert.ErrorContains(t, err, "unknown collection")
}
