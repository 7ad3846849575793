package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports/mocks"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store/memory"
)

type splitterFixture struct {
	objects   *mocks.ObjectStore
	store     *memory.Store
	publisher *mocks.Publisher
	splitter  *Splitter
}

func newSplitterFixture(pages int, splitErr error) *splitterFixture {
	f := &splitterFixture{
		objects:   mocks.NewObjectStore(),
		store:     memory.New(),
		publisher: &mocks.Publisher{},
	}
	f.objects.Put(inputBucket, "stmt.pdf", []byte("%PDF-source"))
	f.splitter = NewSplitter(SplitterConfig{
		InputBucket:      inputBucket,
		ProcessingBucket: processingBucket,
		Topic:            pageTopic,
		AggregateTopic:   aggregateTopic,
		FileName:         "stmt.pdf",
	}, SplitterDeps{
		Objects:   f.objects,
		Store:     f.store,
		Publisher: f.publisher,
		Pages:     &mocks.PageSplitter{Pages: pages, Err: splitErr},
		Retry:     testRetry,
	})
	return f
}

func TestSplitter_FivePages(t *testing.T) {
	f := newSplitterFixture(5, nil)
	ctx := context.Background()

	docID, err := f.splitter.Run(ctx)
	require.NoError(t, err)

	msgs := f.publisher.OnTopic(pageTopic)
	require.Len(t, msgs, 5)
	seen := map[int]bool{}
	for _, m := range msgs {
		p := decode[models.PageReady](t, m.Data)
		assert.Equal(t, docID, p.DocID)
		assert.Equal(t, processingBucket, p.Bucket)
		assert.Equal(t, PagePath(docID, "stmt.pdf", p.PageIndex), p.File)
		_, ok := f.objects.Get(processingBucket, p.File)
		assert.True(t, ok, "page %d uploaded before publish", p.PageIndex)
		seen[p.PageIndex] = true
	}
	assert.Len(t, seen, 5)
	assert.Empty(t, f.publisher.OnTopic(aggregateTopic))

	doc, err := f.store.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.TotalPages)
	assert.Equal(t, models.StatusProcessing, doc.Status)
	assert.Equal(t, "stmt.pdf", doc.Filename)
	assert.Len(t, doc.FileHash, 64)
}

func TestPagePath(t *testing.T) {
	assert.Equal(t, "doc-1/scans/stmt.pdf-page-0.pdf", PagePath("doc-1", "scans/stmt.pdf", 0))
}

func TestSplitter_MissingSourceCreatesNothing(t *testing.T) {
	f := newSplitterFixture(5, nil)
	f.splitter.config.FileName = "absent.pdf"

	docID, err := f.splitter.Run(context.Background())
	require.ErrorIs(t, err, ports.ErrObjectNotExist)
	assert.Empty(t, docID)
	assert.Empty(t, f.publisher.Messages)
}

func TestSplitter_SplitFailureMarksDocumentError(t *testing.T) {
	f := newSplitterFixture(0, errors.New("xref table corrupt"))
	ctx := context.Background()

	docID, err := f.splitter.Run(ctx)
	require.Error(t, err)
	require.NotEmpty(t, docID)

	doc, err := f.store.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Contains(t, doc.ErrorDetails, "xref table corrupt")
	assert.Empty(t, f.publisher.Messages)
}

func TestSplitter_EmptyDocumentIsAnError(t *testing.T) {
	f := newSplitterFixture(0, nil)
	docID, err := f.splitter.Run(context.Background())
	require.ErrorContains(t, err, "no pages")

	doc, err := f.store.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, doc.Status)
}

func TestSplitter_PublishFailureMarksDocumentError(t *testing.T) {
	f := newSplitterFixture(3, nil)
	f.publisher.Err = errors.New("topic not found")
	ctx := context.Background()

	docID, err := f.splitter.Run(ctx)
	require.ErrorContains(t, err, "topic not found")

	doc, err := f.store.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Zero(t, doc.TotalPages, "total_pages is only written after every page is out")
}
