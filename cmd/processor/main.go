// Command processor is the Cloud Run job that classifies and extracts one page.
package main

import (
	"context"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/forensicdocumentflow/internal/gcp"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ocr"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
	"github.com/Lllllllleong/forensicdocumentflow/internal/services"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background()); err != nil {
		slog.Error("Processor job failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := services.LoadProcessorConfig()
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

	publisher, err := gcp.NewPublisher(ctx, cfg.ProjectID)
	if err != nil {
		return err
	}
	defer publisher.Close()

	vertex, err := gcp.NewVertexClient(ctx, gcp.VertexConfigFromEnv())
	if err != nil {
		return err
	}
	defer vertex.Close()

	processor := services.NewProcessor(cfg, services.ProcessorDeps{
		Objects:     objects,
		Store:       datastore,
		Publisher:   publisher,
		Reasoner:    vertex,
		Transcriber: vertex,
		OCR:         ocr.New(gcp.GetEnv("OCR_LANGUAGE", "")),
		Retry:       retry.Default(),
	})
	_, err = processor.Run(ctx)
	return err
}
