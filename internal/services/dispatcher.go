package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

// mediaExtensions route to the media job instead of the splitter.
var mediaExtensions = map[string]bool{
	".mov": true,
	".mp3": true,
	".wav": true,
	".m4a": true,
	".mp4": true,
}

// IsMedia reports whether name is an audio or video upload.
func IsMedia(name string) bool {
	return mediaExtensions[strings.ToLower(path.Ext(name))]
}

var (
	errBadRequest = errors.New("bad request")
	errConfig     = errors.New("configuration error")
)

// Dispatcher turns queue deliveries into job launches. It keeps no state and
// never retries; a non-2xx answer makes the queue redeliver.
type Dispatcher struct {
	launcher ports.JobLauncher
	config   DispatcherConfig
}

func NewDispatcher(cfg DispatcherConfig, launcher ports.JobLauncher) *Dispatcher {
	return &Dispatcher{launcher: launcher, config: cfg}
}

// Handler serves all three routes, for local runs outside the functions framework.
func (d *Dispatcher) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trigger-splitter", d.TriggerSplitter)
	mux.HandleFunc("POST /trigger-processor", d.TriggerProcessor)
	mux.HandleFunc("POST /trigger-aggregator", d.TriggerAggregator)
	return mux
}

// decodePush unwraps a push envelope's base64 JSON payload into v.
func decodePush(r *http.Request, v any) error {
	var env models.PushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: invalid envelope: %v", errBadRequest, err)
	}
	if env.Message.Data == "" {
		return fmt.Errorf("%w: missing message data", errBadRequest)
	}
	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return fmt.Errorf("%w: message data is not base64: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: message data is not JSON: %v", errBadRequest, err)
	}
	return nil
}

func (d *Dispatcher) respond(w http.ResponseWriter, route string, err error, ok string) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ok)
	case errors.Is(err, errBadRequest):
		slog.Warn("Rejected delivery.", "route", route, "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
	case errors.Is(err, errConfig):
		slog.Error("Dispatcher misconfigured.", "route", route, "error", err)
		http.Error(w, "Configuration Error", http.StatusInternalServerError)
	default:
		slog.Error("Failed to launch job.", "route", route, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// launch adds the forwarded process-wide settings and starts job.
func (d *Dispatcher) launch(ctx context.Context, jobEnv, job string, params map[string]string) error {
	if job == "" {
		return fmt.Errorf("%w: %s environment variable not set", errConfig, jobEnv)
	}
	for k, v := range d.config.Forward {
		if _, set := params[k]; !set {
			params[k] = v
		}
	}
	return d.launcher.Launch(ctx, job, params)
}

// RouteUpload starts the media job for audio/video and the splitter for
// everything else.
func (d *Dispatcher) RouteUpload(ctx context.Context, req models.SplitRequest) (string, error) {
	if req.Bucket == "" || req.Name == "" {
		return "", fmt.Errorf("%w: upload event needs bucket and name", errBadRequest)
	}
	logCtx := slog.With("gcsBucket", req.Bucket, "gcsObject", req.Name)
	if IsMedia(req.Name) {
		logCtx.Info("Multimedia detected. Routing to media processor.")
		return "Routed to Media Lane", d.launch(ctx, "MEDIA_PROCESSOR_JOB_NAME", d.config.MediaJob, map[string]string{
			"INPUT_BUCKET": req.Bucket,
			"INPUT_FILE":   req.Name,
		})
	}
	logCtx.Info("Document detected. Routing to splitter.")
	return "Routed to Splitter Lane", d.launch(ctx, "SPLITTER_JOB_NAME", d.config.SplitterJob, map[string]string{
		"INPUT_BUCKET": req.Bucket,
		"FILE_NAME":    req.Name,
	})
}

func (d *Dispatcher) TriggerSplitter(w http.ResponseWriter, r *http.Request) {
	var req models.SplitRequest
	if err := decodePush(r, &req); err != nil {
		d.respond(w, "trigger-splitter", err, "")
		return
	}
	msg, err := d.RouteUpload(r.Context(), req)
	d.respond(w, "trigger-splitter", err, msg)
}

func (d *Dispatcher) TriggerProcessor(w http.ResponseWriter, r *http.Request) {
	var msg models.PageReady
	err := decodePush(r, &msg)
	if err == nil && (msg.DocID == "" || msg.File == "" || msg.Bucket == "") {
		err = fmt.Errorf("%w: page-ready needs docId, file and bucket", errBadRequest)
	}
	if err == nil {
		slog.Info("Received page ready.", "documentId", msg.DocID, "pageIndex", msg.PageIndex, "gcsObject", msg.File)
		err = d.launch(r.Context(), "PROCESSOR_JOB_NAME", d.config.ProcessorJob, map[string]string{
			"BUCKET":     msg.Bucket,
			"FILE":       msg.File,
			"DOC_ID":     msg.DocID,
			"PAGE_INDEX": strconv.Itoa(msg.PageIndex),
		})
	}
	d.respond(w, "trigger-processor", err, "Processor Triggered")
}

func (d *Dispatcher) TriggerAggregator(w http.ResponseWriter, r *http.Request) {
	var msg models.AggregateReady
	err := decodePush(r, &msg)
	if err == nil && msg.DocID == "" {
		err = fmt.Errorf("%w: aggregate-ready needs docId", errBadRequest)
	}
	if err == nil {
		slog.Info("Received aggregation request.", "documentId", msg.DocID)
		err = d.launch(r.Context(), "AGGREGATOR_JOB_NAME", d.config.AggregatorJob, map[string]string{
			"DOC_ID": msg.DocID,
		})
	}
	d.respond(w, "trigger-aggregator", err, "Aggregator Triggered")
}

// HandleUploadEvent is the CloudEvent entry point for direct Cloud Storage
// finalize notifications.
func (d *Dispatcher) HandleUploadEvent(ctx context.Context, e cloudevents.Event) error {
	var req models.SplitRequest
	if err := json.Unmarshal(e.Data(), &req); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	_, err := d.RouteUpload(ctx, req)
	return err
}
