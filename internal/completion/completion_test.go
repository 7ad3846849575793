package completion_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/forensicdocumentflow/internal/completion"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports/mocks"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store/memory"
)

const topic = "document-ready-to-aggregate"

var fastRetry = retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, Sleep: func(ctx context.Context, d time.Duration) error { return nil }}

func TestShouldTrigger(t *testing.T) {
	tests := []struct {
		complete, total int
		triggered       bool
		want            bool
	}{
		{0, 0, false, false},
		{3, 0, false, false},
		{2, 3, false, false},
		{3, 3, false, true},
		{4, 3, false, true},
		{3, 3, true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, completion.ShouldTrigger(tt.complete, tt.total, tt.triggered), "%+v", tt)
	}
}

func setup(t *testing.T, total int) (*memory.Store, *mocks.Publisher, *completion.Tracker, string) {
	t.Helper()
	store := memory.New()
	id, err := store.CreateDocument(context.Background(), &models.Document{Filename: "f.pdf", Status: models.StatusSplitting})
	require.NoError(t, err)
	pub := &mocks.Publisher{}
	tr := completion.NewTracker(store, pub, topic, fastRetry)
	if total > 0 {
		_, err := tr.SplitFinalized(context.Background(), id, total)
		require.NoError(t, err)
	}
	return store, pub, tr, id
}

func TestTracker_PublishesOnceWhenLastPageCompletes(t *testing.T) {
	ctx := context.Background()
	_, pub, tr, id := setup(t, 3)

	for i := 0; i < 3; i++ {
		c, err := tr.PageCompleted(ctx, &models.Page{DocID: id, PageIndex: i})
		require.NoError(t, err)
		assert.Equal(t, i == 2, c.Trigger)
	}
	// Redelivered page.
	_, err := tr.PageCompleted(ctx, &models.Page{DocID: id, PageIndex: 1})
	require.NoError(t, err)

	msgs := pub.OnTopic(topic)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"docId":"`+id+`"}`, string(msgs[0].Data))
}

func TestTracker_ConcurrentPagesPublishOnce(t *testing.T) {
	ctx := context.Background()
	_, pub, tr, id := setup(t, 20)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tr.PageCompleted(ctx, &models.Page{DocID: id, PageIndex: i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, pub.OnTopic(topic), 1)
}

func TestTracker_SplitFinalizedAfterPages(t *testing.T) {
	ctx := context.Background()
	_, pub, tr, id := setup(t, 0)

	for i := 0; i < 2; i++ {
		_, err := tr.PageCompleted(ctx, &models.Page{DocID: id, PageIndex: i})
		require.NoError(t, err)
	}
	assert.Empty(t, pub.Messages)

	c, err := tr.SplitFinalized(ctx, id, 2)
	require.NoError(t, err)
	assert.True(t, c.Trigger)
	assert.Len(t, pub.OnTopic(topic), 1)
}

func TestTracker_PublishFailureReleasesTrigger(t *testing.T) {
	ctx := context.Background()
	store, pub, tr, id := setup(t, 1)

	pub.Err = mocks.ErrTransient
	_, err := tr.PageCompleted(ctx, &models.Page{DocID: id, PageIndex: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, mocks.ErrTransient)

	doc, err := store.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.False(t, doc.AggregationTriggered)

	pub.Err = nil
	c, err := tr.PageCompleted(ctx, &models.Page{DocID: id, PageIndex: 0})
	require.NoError(t, err)
	assert.False(t, c.Counted)
	assert.True(t, c.Trigger)
	assert.Len(t, pub.OnTopic(topic), 1)
}

func TestTracker_UnknownDocument(t *testing.T) {
	_, _, tr, _ := setup(t, 1)
	_, err := tr.PageCompleted(context.Background(), &models.Page{DocID: "nope"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
