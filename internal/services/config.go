package services

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Lllllllleong/forensicdocumentflow/internal/gcp"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// DefaultAggregateTopic carries AggregateReady messages.
const DefaultAggregateTopic = "document-ready-to-aggregate"

// env reads configuration and remembers every required key that is missing,
// so one error names all of them.
type env struct {
	missing []error
}

func (e *env) required(key string) string {
	v := gcp.GetEnv(key, "")
	if v == "" {
		e.missing = append(e.missing, fmt.Errorf("%s environment variable must be set", key))
	}
	return v
}

func (e *env) optional(key, fallback string) string {
	return gcp.GetEnv(key, fallback)
}

func (e *env) integer(key string) int {
	raw := e.required(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		e.missing = append(e.missing, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw))
	}
	return n
}

func (e *env) err() error {
	if len(e.missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", models.ErrMissingConfig, errors.Join(e.missing...))
}

// SplitterConfig configures one splitter job run.
type SplitterConfig struct {
	ProjectID        string
	InputBucket      string
	ProcessingBucket string
	Topic            string
	AggregateTopic   string
	FileName         string
}

func LoadSplitterConfig() (SplitterConfig, error) {
	var e env
	cfg := SplitterConfig{
		ProjectID:        e.required("PROJECT_ID"),
		InputBucket:      e.required("INPUT_BUCKET"),
		ProcessingBucket: e.required("PROCESSING_BUCKET"),
		Topic:            e.required("TOPIC_NAME"),
		AggregateTopic:   e.optional("AGGREGATE_TOPIC", DefaultAggregateTopic),
		FileName:         e.required("FILE_NAME"),
	}
	return cfg, e.err()
}

// ProcessorConfig configures one page-processor job run.
type ProcessorConfig struct {
	ProjectID      string
	Bucket         string
	File           string
	DocID          string
	PageIndex      int
	AggregateTopic string
}

func LoadProcessorConfig() (ProcessorConfig, error) {
	var e env
	cfg := ProcessorConfig{
		ProjectID:      e.required("PROJECT_ID"),
		Bucket:         e.required("BUCKET"),
		File:           e.required("FILE"),
		DocID:          e.required("DOC_ID"),
		PageIndex:      e.integer("PAGE_INDEX"),
		AggregateTopic: e.optional("AGGREGATE_TOPIC", DefaultAggregateTopic),
	}
	return cfg, e.err()
}

// AggregatorConfig configures one aggregator job run.
type AggregatorConfig struct {
	ProjectID        string
	DocID            string
	InputBucket      string
	ProcessingBucket string
	ArchiveBucket    string
}

func LoadAggregatorConfig() (AggregatorConfig, error) {
	var e env
	cfg := AggregatorConfig{
		ProjectID:        e.required("PROJECT_ID"),
		DocID:            e.required("DOC_ID"),
		InputBucket:      e.required("INPUT_BUCKET"),
		ProcessingBucket: e.required("PROCESSING_BUCKET"),
		ArchiveBucket:    e.required("ARCHIVE_BUCKET"),
	}
	return cfg, e.err()
}

// DispatcherConfig configures the dispatcher service. Job names are checked
// per request, so a missing one fails only the route that needs it.
type DispatcherConfig struct {
	ProjectID     string
	Region        string
	JobBackend    string
	SplitterJob   string
	ProcessorJob  string
	AggregatorJob string
	MediaJob      string
	Forward       map[string]string
}

// forwardedKeys are passed through to every launched job when set. A key the
// route sets itself, such as the uploaded file's INPUT_BUCKET, wins.
var forwardedKeys = []string{
	"PROJECT_ID",
	"INPUT_BUCKET",
	"PROCESSING_BUCKET",
	"ARCHIVE_BUCKET",
	"TOPIC_NAME",
	"AGGREGATE_TOPIC",
	"DATASTORE",
}

func LoadDispatcherConfig() (DispatcherConfig, error) {
	var e env
	cfg := DispatcherConfig{
		ProjectID:     e.required("PROJECT_ID"),
		Region:        e.optional("REGION", "us-central1"),
		JobBackend:    e.optional("JOB_BACKEND", "cloudrun"),
		SplitterJob:   e.optional("SPLITTER_JOB_NAME", ""),
		ProcessorJob:  e.optional("PROCESSOR_JOB_NAME", ""),
		AggregatorJob: e.optional("AGGREGATOR_JOB_NAME", ""),
		MediaJob:      e.optional("MEDIA_PROCESSOR_JOB_NAME", ""),
		Forward:       make(map[string]string),
	}
	for _, k := range forwardedKeys {
		if v := e.optional(k, ""); v != "" {
			cfg.Forward[k] = v
		}
	}
	return cfg, e.err()
}
