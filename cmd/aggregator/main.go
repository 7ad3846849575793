// Command aggregator is the Cloud Run job that archives one finished document.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/forensicdocumentflow/internal/gcp"
	"github.com/Lllllllleong/forensicdocumentflow/internal/lock"
	"github.com/Lllllllleong/forensicdocumentflow/internal/pdf"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
	"github.com/Lllllllleong/forensicdocumentflow/internal/services"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background()); err != nil {
		slog.Error("Aggregator job failed", "error", err)
		os.Exit(1)
	}
}

// locker uses Redis when REDIS_ADDR is set. Without it, runs rely on the
// archived-status check alone.
func locker(ctx context.Context) (ports.Locker, func() error, error) {
	addr := gcp.GetEnv("REDIS_ADDR", "")
	if addr == "" {
		slog.Warn("REDIS_ADDR not set; aggregation runs are not serialized.")
		return lock.Noop{}, func() error { return nil }, nil
	}
	l, err := lock.Dial(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	return l, l.Close, nil
}

func run(ctx context.Context) error {
	cfg, err := services.LoadAggregatorConfig()
	if err != nil {
		return err
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return err
	}
	objects := gcp.NewObjectStore(storageClient)
	defer objects.Close()

	datastore, closeStore, err := store.Open(ctx, store.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer closeStore()

	vertex, err := gcp.NewVertexClient(ctx, gcp.VertexConfigFromEnv())
	if err != nil {
		return err
	}
	defer vertex.Close()

	l, closeLock, err := locker(ctx)
	if err != nil {
		return err
	}
	defer closeLock()

	aggregator := services.NewAggregator(cfg, services.AggregatorDeps{
		Objects:   objects,
		Store:     datastore,
		Reasoner:  vertex,
		Annotator: pdf.Annotator{},
		Locker:    l,
		Retry:     retry.Default(),
		Now:       time.Now,
	})
	return aggregator.Run(ctx)
}
