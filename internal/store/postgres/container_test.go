package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	container     *tcpostgres.PostgresContainer
	containerURL  string
	containerErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if container != nil {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("Failed to terminate postgres container: %v", err)
		}
	}
	os.Exit(code)
}

// testDatabaseURL returns TEST_DATABASE_URL, or starts one throwaway Postgres
// container shared by every test in the package.
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		t.Skip("TEST_DATABASE_URL not set and Docker not available")
	}
	containerOnce.Do(func() {
		containerURL, containerErr = startContainer(context.Background())
	})
	if containerErr != nil {
		t.Fatalf("failed to start postgres container: %v", containerErr)
	}
	return containerURL
}

func startContainer(ctx context.Context) (string, error) {
	c, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("forensic_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if c != nil {
		container = c
	}
	if err != nil {
		return "", err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgres://test:test@%s:%s/forensic_test?sslmode=disable", host, port.Port()), nil
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}
