package models

import (
	"errors"
	"time"
)

// Document lifecycle states.
const (
	StatusSplitting           = "splitting"
	StatusProcessing          = "processing"
	StatusArchived            = "archived"
	StatusArchivedWithSummary = "archived_with_summary"
	StatusError               = "error"
)

// Page states.
const (
	PageComplete = "complete"
	PageError    = "error"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrMissingConfig = errors.New("missing required configuration")
)

// Document is the master record for one ingested file.
// It is created by the splitter, annotated by the processor (type, lane) and
// finalized by the aggregator. Documents are never deleted.
type Document struct {
	ID                   string    `firestore:"-" json:"id"`
	Filename             string    `firestore:"filename" json:"filename"`
	FileHash             string    `firestore:"file_hash,omitempty" json:"file_hash,omitempty"`
	Status               string    `firestore:"status" json:"status"`
	DocType              string    `firestore:"doc_type,omitempty" json:"doc_type,omitempty"`
	ProcessingLane       string    `firestore:"processing_lane,omitempty" json:"processing_lane,omitempty"`
	TotalPages           int       `firestore:"total_pages" json:"total_pages"`
	PagesComplete        int       `firestore:"pages_complete" json:"pages_complete"`
	AggregationTriggered bool      `firestore:"aggregation_triggered" json:"aggregation_triggered"`
	ArchivePath          string    `firestore:"archive_path,omitempty" json:"archive_path,omitempty"`
	ErrorDetails         string    `firestore:"error_details,omitempty" json:"error_details,omitempty"`
	CreatedAt            time.Time `firestore:"created_at" json:"created_at"`
	UpdatedAt            time.Time `firestore:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Page is the result of processing one page of a Document, keyed by (DocID, PageIndex).
type Page struct {
	DocID         string         `firestore:"doc_id" json:"doc_id"`
	PageIndex     int            `firestore:"page_index" json:"page_index"`
	Status        string         `firestore:"status" json:"status"`
	ExtractedData map[string]any `firestore:"extracted_data,omitempty" json:"extracted_data,omitempty"`
	JSONPath      string         `firestore:"gcs_json_path,omitempty" json:"gcs_json_path,omitempty"`
	MarkdownPath  string         `firestore:"gcs_markdown_path,omitempty" json:"gcs_markdown_path,omitempty"`
	ErrorMessage  string         `firestore:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt     time.Time      `firestore:"created_at" json:"created_at"`
}

// Reporting is the reserved "_reporting" block stored inside every page's extracted data.
type Reporting struct {
	Lane     string   `firestore:"lane" json:"lane"`
	Table    string   `firestore:"table" json:"table"`
	Elements []string `firestore:"elements" json:"elements"`
}

// Reserved keys inside Page.ExtractedData.
const (
	ReportingKey = "_reporting"
	MetadataKey  = "_metadata"
	DocTypeKey   = "_meta_doc_type"
)

// ReportingOf reads the reserved reporting block back out of extracted data.
// Data round-tripped through a datastore comes back as generic maps, so both
// shapes are accepted.
func ReportingOf(data map[string]any) Reporting {
	out := Reporting{Lane: "Unknown", Table: "Unknown"}
	switch r := data[ReportingKey].(type) {
	case Reporting:
		return r
	case *Reporting:
		if r != nil {
			return *r
		}
	case map[string]any:
		if v, ok := r["lane"].(string); ok && v != "" {
			out.Lane = v
		}
		if v, ok := r["table"].(string); ok && v != "" {
			out.Table = v
		}
		switch el := r["elements"].(type) {
		case []string:
			out.Elements = el
		case []any:
			for _, e := range el {
				if s, ok := e.(string); ok {
					out.Elements = append(out.Elements, s)
				}
			}
		}
	}
	return out
}

// Completion is the state of the completion barrier after an atomic page or split update.
type Completion struct {
	PagesComplete int
	TotalPages    int
	// Counted is true when this call was the one that recorded the page as complete.
	Counted bool
	// Trigger is true for exactly one caller per document: the one whose update
	// made PagesComplete reach TotalPages.
	Trigger bool
}
