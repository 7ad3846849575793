// Command splitter is the Cloud Run job that splits one uploaded file into
// pages and fans out a page-ready message per page.
package main

import (
	"context"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/forensicdocumentflow/internal/gcp"
	"github.com/Lllllllleong/forensicdocumentflow/internal/pdf"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
	"github.com/Lllllllleong/forensicdocumentflow/internal/services"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background()); err != nil {
		slog.Error("Splitter job failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := services.LoadSplitterConfig()
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

	splitter := services.NewSplitter(cfg, services.SplitterDeps{
		Objects:   objects,
		Store:     datastore,
		Publisher: publisher,
		Pages:     pdf.Splitter{},
		Retry:     retry.Default(),
	})
	_, err = splitter.Run(ctx)
	return err
}
