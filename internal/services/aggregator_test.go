package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/naming"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports/mocks"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store/memory"
)

const aggDocID = "0f3c9a2e-77b1-4c55-9d0e-5a1b2c3d4e5f"

type aggregatorFixture struct {
	objects  *mocks.ObjectStore
	store    *memory.Store
	reasoner *mocks.Reasoner
	locker   *mocks.Locker
}

func genericPage(i int, fields map[string]any) *models.Page {
	data := map[string]any{
		models.DocTypeKey:   "Random Thing",
		models.ReportingKey: models.Reporting{Lane: models.LaneGeneric.String(), Table: models.CollectionMetadataOnly, Elements: []string{"Generic Extraction"}},
	}
	for k, v := range fields {
		data[k] = v
	}
	stem := PagePath(aggDocID, "misc.pdf", i)
	jsonPath, mdPath := ArtifactPaths(stem)
	return &models.Page{DocID: aggDocID, PageIndex: i, ExtractedData: data, JSONPath: jsonPath, MarkdownPath: mdPath}
}

// newAggregatorFixture seeds a fully processed two-page document.
func newAggregatorFixture(t *testing.T, fields map[string]any) *aggregatorFixture {
	t.Helper()
	ctx := context.Background()
	f := &aggregatorFixture{
		objects:  mocks.NewObjectStore(),
		store:    memory.New(),
		reasoner: (&mocks.Reasoner{}).OnTier(ports.TierNarrative, "A hardware store receipt for tools."),
		locker:   &mocks.Locker{},
	}
	_, err := f.store.CreateDocument(ctx, &models.Document{ID: aggDocID, Filename: "misc.pdf", Status: models.StatusSplitting})
	require.NoError(t, err)
	_, err = f.store.FinalizeSplit(ctx, aggDocID, 2)
	require.NoError(t, err)

	f.objects.Put(inputBucket, "misc.pdf", []byte("%PDF-original"))
	for i := range 2 {
		p := genericPage(i, fields)
		f.objects.Put(processingBucket, PagePath(aggDocID, "misc.pdf", i), []byte("%PDF-page"))
		f.objects.Put(processingBucket, p.JSONPath, []byte("{}"))
		f.objects.Put(processingBucket, p.MarkdownPath, []byte("Page body "+string(rune('A'+i))))
		_, err := f.store.CompletePage(ctx, p)
		require.NoError(t, err)
	}
	return f
}

func (f *aggregatorFixture) aggregator() *Aggregator {
	return NewAggregator(AggregatorConfig{
		DocID:            aggDocID,
		InputBucket:      inputBucket,
		ProcessingBucket: processingBucket,
		ArchiveBucket:    archiveBucket,
	}, AggregatorDeps{
		Objects:   f.objects,
		Store:     f.store,
		Reasoner:  f.reasoner,
		Annotator: mocks.Annotator{},
		Locker:    f.locker,
		Retry:     testRetry,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
}

var richFields = map[string]any{"merchant": "Acme Hardware", "date": "2024-03-01", "total": "42.50"}

func expectedFolder(fields map[string]any) (string, string) {
	base := naming.BaseName(models.LaneGeneric, genericPage(0, fields).ExtractedData)
	return base, ArchiveFolder(base, aggDocID)
}

func TestArchiveFolder(t *testing.T) {
	assert.Equal(t, "Name_0f3c9a2e", ArchiveFolder("Name", aggDocID))
	assert.Equal(t, "Name_abc", ArchiveFolder("Name", "abc"))
}

func TestAggregator_ArchivesAndCleansUp(t *testing.T) {
	f := newAggregatorFixture(t, richFields)
	ctx := context.Background()

	require.NoError(t, f.aggregator().Run(ctx))

	base, folder := expectedFolder(richFields)
	for _, suffix := range []string{"_Transcript.md", "_Transcript.html", "_Analysis.md", ".json", "_Clean.pdf", "_WithMeta.pdf"} {
		_, ok := f.objects.Get(archiveBucket, folder+"/"+base+suffix)
		assert.True(t, ok, "missing %s", suffix)
	}

	transcript, _ := f.objects.Get(archiveBucket, folder+"/"+base+"_Transcript.md")
	assert.Contains(t, string(transcript), "### Page 1\n\nPage body A")
	assert.Contains(t, string(transcript), "### Page 2\n\nPage body B")

	analysis, _ := f.objects.Get(archiveBucket, folder+"/"+base+"_Analysis.md")
	assert.Contains(t, string(analysis), "Acme Hardware")
	assert.NotContains(t, string(analysis), "Executive Summary")
	assert.Zero(t, f.reasoner.Calls())

	clean, _ := f.objects.Get(archiveBucket, folder+"/"+base+"_Clean.pdf")
	assert.Equal(t, "%PDF-original", string(clean))
	withMeta, _ := f.objects.Get(archiveBucket, folder+"/"+base+"_WithMeta.pdf")
	assert.Contains(t, string(withMeta), "%Keywords=LegalForensics, Generic")

	doc, err := f.store.GetDocument(ctx, aggDocID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, doc.Status)
	assert.Equal(t, "gs://"+archiveBucket+"/"+folder, doc.ArchivePath)

	assert.Empty(t, f.objects.Names(inputBucket))
	assert.Empty(t, f.objects.Names(processingBucket))
}

func TestAggregator_RerunAfterArchiveIsCleanupOnly(t *testing.T) {
	f := newAggregatorFixture(t, richFields)
	ctx := context.Background()
	require.NoError(t, f.aggregator().Run(ctx))
	archived := f.objects.Names(archiveBucket)

	// A leftover intermediate from a crashed cleanup.
	f.objects.Put(processingBucket, aggDocID+"/stray.md", []byte("x"))
	require.NoError(t, f.aggregator().Run(ctx))

	assert.Equal(t, archived, f.objects.Names(archiveBucket))
	assert.Empty(t, f.objects.Names(processingBucket))
}

func TestAggregator_RerunAfterCrashReproducesArchive(t *testing.T) {
	f := newAggregatorFixture(t, richFields)
	ctx := context.Background()
	require.NoError(t, f.aggregator().Run(ctx))

	before := map[string][]byte{}
	for _, name := range f.objects.Names(archiveBucket) {
		before[name], _ = f.objects.Get(archiveBucket, name)
	}

	// Crash after the uploads but before the status update: the upload is
	// already gone, so the archived clean copy stands in for it.
	require.NoError(t, f.store.SetDocumentStatus(ctx, aggDocID, models.StatusProcessing, ""))
	for i := range 2 {
		_, md := ArtifactPaths(PagePath(aggDocID, "misc.pdf", i))
		f.objects.Put(processingBucket, md, []byte("Page body "+string(rune('A'+i))))
	}
	require.NoError(t, f.aggregator().Run(ctx))

	for name, data := range before {
		got, ok := f.objects.Get(archiveBucket, name)
		require.True(t, ok, name)
		assert.Equal(t, string(data), string(got), name)
	}
	doc, err := f.store.GetDocument(ctx, aggDocID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, doc.Status)
}

func TestAggregator_SparseHighlightsGetNarrative(t *testing.T) {
	f := newAggregatorFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.aggregator().Run(ctx))

	base, folder := expectedFolder(nil)
	analysis, ok := f.objects.Get(archiveBucket, folder+"/"+base+"_Analysis.md")
	require.True(t, ok)
	assert.Contains(t, string(analysis), "## Executive Summary\nA hardware store receipt for tools.")
	assert.Equal(t, 1, f.reasoner.Calls())

	doc, err := f.store.GetDocument(ctx, aggDocID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchivedWithSummary, doc.Status)
}

func TestAggregator_SkipsWhenLocked(t *testing.T) {
	f := newAggregatorFixture(t, richFields)
	ctx := context.Background()
	ok, err := f.locker.Acquire(ctx, "aggregate:"+aggDocID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.aggregator().Run(ctx))

	assert.Empty(t, f.objects.Names(archiveBucket))
	doc, err := f.store.GetDocument(ctx, aggDocID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, doc.Status)
}

func TestAggregator_NoPagesIsAnError(t *testing.T) {
	f := &aggregatorFixture{objects: mocks.NewObjectStore(), store: memory.New(), reasoner: &mocks.Reasoner{}, locker: &mocks.Locker{}}
	ctx := context.Background()
	_, err := f.store.CreateDocument(ctx, &models.Document{ID: aggDocID, Filename: "misc.pdf", Status: models.StatusProcessing})
	require.NoError(t, err)

	err = f.aggregator().Run(ctx)
	require.ErrorContains(t, err, "no processed pages")

	doc, err := f.store.GetDocument(ctx, aggDocID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, doc.Status)

	// The lock is released on failure.
	ok, err := f.locker.Acquire(ctx, "aggregate:"+aggDocID, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAggregator_UnknownDocument(t *testing.T) {
	f := &aggregatorFixture{objects: mocks.NewObjectStore(), store: memory.New(), reasoner: &mocks.Reasoner{}, locker: &mocks.Locker{}}
	err := f.aggregator().Run(context.Background())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
