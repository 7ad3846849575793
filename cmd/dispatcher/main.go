package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/forensicdocumentflow/internal/gcp"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/services"
)

var (
	dispatcher *services.Dispatcher
	once       sync.Once
	initErr    error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("trigger-splitter", withDispatcher(func(d *services.Dispatcher) http.HandlerFunc { return d.TriggerSplitter }))
	functions.HTTP("trigger-processor", withDispatcher(func(d *services.Dispatcher) http.HandlerFunc { return d.TriggerProcessor }))
	functions.HTTP("trigger-aggregator", withDispatcher(func(d *services.Dispatcher) http.HandlerFunc { return d.TriggerAggregator }))
	functions.CloudEvent("route-upload", routeUpload)
}

func setup() {
	cfg, err := services.LoadDispatcherConfig()
	if err != nil {
		initErr = err
		return
	}
	var launcher ports.JobLauncher
	switch cfg.JobBackend {
	case "cloudrun":
		launcher, err = gcp.NewCloudRunLauncher(context.Background(), cfg.ProjectID, cfg.Region)
	case "workflows":
		launcher, err = gcp.NewWorkflowLauncher(context.Background(), cfg.ProjectID, cfg.Region)
	default:
		err = fmt.Errorf("unknown JOB_BACKEND %q", cfg.JobBackend)
	}
	if err != nil {
		initErr = err
		return
	}
	dispatcher = services.NewDispatcher(cfg, launcher)
}

func withDispatcher(route func(*services.Dispatcher) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(setup)
		if initErr != nil {
			slog.Error("Critical: dispatcher initialization failed", "error", initErr)
			http.Error(w, "Configuration Error", http.StatusInternalServerError)
			return
		}
		route(dispatcher)(w, r)
	}
}

func routeUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(setup)
	if initErr != nil {
		slog.Error("Critical: dispatcher initialization failed", "error", initErr)
		return initErr
	}
	return dispatcher.HandleUploadEvent(ctx, e)
}

func main() {
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}
