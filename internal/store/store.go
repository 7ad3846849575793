// Package store selects the Datastore backend named by DATASTORE.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/forensicdocumentflow/internal/gcp"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store/firestoredb"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store/memory"
	"github.com/Lllllllleong/forensicdocumentflow/internal/store/postgres"
)

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

type Config struct {
	Backend     string
	ProjectID   string
	DatabaseURL string
}

// ConfigFromEnv reads DATASTORE, PROJECT_ID and DATABASE_URL.
func ConfigFromEnv() Config {
	return Config{
		Backend:     gcp.GetEnv("DATASTORE", BackendFirestore),
		ProjectID:   gcp.GetEnv("PROJECT_ID", ""),
		DatabaseURL: gcp.GetEnv("DATABASE_URL", ""),
	}
}

// Open connects to the configured backend. The returned close function
// releases its client and is never nil.
func Open(ctx context.Context, cfg Config) (ports.Datastore, func() error, error) {
	switch cfg.Backend {
	case BackendFirestore, "":
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Datastore initialized.", "backend", BackendFirestore, "projectId", cfg.ProjectID)
		return firestoredb.New(client), client.Close, nil
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL environment variable must be set for the postgres datastore")
		}
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("Datastore initialized.", "backend", BackendPostgres)
		return postgres.New(db), db.Close, nil
	case BackendMemory:
		slog.Warn("Using in-memory datastore; state is lost when the process exits.")
		return memory.New(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown DATASTORE %q", cfg.Backend)
	}
}
