// Package ports declares the external collaborators of the pipeline. Every
// service receives its collaborators through these interfaces so it can be
// exercised without a network.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// ErrObjectNotExist is returned by ObjectStore implementations for missing objects.
var ErrObjectNotExist = errors.New("object does not exist")

// ObjectStore is the object-storage service (input, processing and archive areas).
type ObjectStore interface {
	Download(ctx context.Context, bucket, object string) ([]byte, error)
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error
	// UploadIfAbsent writes only when the object does not exist yet; an
	// existing object is success, not an error.
	UploadIfAbsent(ctx context.Context, bucket, object string, data []byte, contentType string) error
	Copy(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error
	Delete(ctx context.Context, bucket, object string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Publisher publishes JSON messages onto a queue topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// JobLauncher starts one execution of a named job with the given parameters.
type JobLauncher interface {
	Launch(ctx context.Context, job string, params map[string]string) error
}

// ModelTier selects which reasoning model serves a prompt.
type ModelTier int

const (
	// TierFast is the cheap multimodal model used for classification.
	TierFast ModelTier = iota
	// TierReasoning is the structured-extraction model; it answers in JSON.
	TierReasoning
	// TierNarrative answers in free text; used for summaries.
	TierNarrative
)

// Prompt is one request to the reasoning endpoint. Document, when set, is
// attached inline with MIMEType.
type Prompt struct {
	Tier     ModelTier
	Text     string
	Document []byte
	MIMEType string
}

// Reasoner is the large-language-model inference endpoint.
type Reasoner interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Transcriber is the layout-aware text-extraction service: one page in, markdown out.
type Transcriber interface {
	Transcribe(ctx context.Context, pdf []byte) (string, error)
}

// OCR extracts raw text from a scanned (image-only) page.
type OCR interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// PageSplitter partitions a PDF into isolated single-page PDFs, in page order.
type PageSplitter interface {
	Split(ctx context.Context, src []byte) ([][]byte, error)
}

// PDFAnnotator rewrites a PDF's document properties.
type PDFAnnotator interface {
	Annotate(ctx context.Context, src []byte, props map[string]string) ([]byte, error)
}

// Locker is a named, TTL-bounded mutual exclusion primitive.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Datastore is the shared, append-mostly record store. Every method is
// individually atomic; none spans another.
type Datastore interface {
	CreateDocument(ctx context.Context, doc *models.Document) (string, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	SetDocumentLane(ctx context.Context, id, docType, lane string) error
	SetDocumentStatus(ctx context.Context, id, status, details string) error
	MarkArchived(ctx context.Context, id, status, archivePath string) error

	// FinalizeSplit records total_pages and moves the document to processing.
	// It evaluates the completion barrier in the same atomic step.
	FinalizeSplit(ctx context.Context, id string, totalPages int) (models.Completion, error)
	// CompletePage records a successful page exactly once per (doc, index) and
	// evaluates the completion barrier in the same atomic step.
	CompletePage(ctx context.Context, page *models.Page) (models.Completion, error)
	// ReleaseTrigger clears a claimed aggregation trigger whose publish failed.
	ReleaseTrigger(ctx context.Context, id string) error
	// RecordPageError appends an error row. Duplicates are tolerated.
	RecordPageError(ctx context.Context, docID string, pageIndex int, message string) error
	// ListPages returns the complete pages of a document ordered by index.
	ListPages(ctx context.Context, docID string) ([]models.Page, error)

	InsertRecords(ctx context.Context, collection string, records []models.Record) error
	// LatestRestrictions returns the newest active restrictions record from
	// the legal-document collection, or ok=false when none exists.
	LatestRestrictions(ctx context.Context) (record map[string]any, ok bool, err error)
}
