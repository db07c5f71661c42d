package pgtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ory/dockertest"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	postgresVersion  = "14"
	postgresPassword = "pqstream"
	postgresDatabase = "pqstream"

	// IntegrationEnv must be set for tests that need a real server.
	IntegrationEnv = "PQSTREAM_INTEGRATION"
	// DSNEnv points the tests at an already running server instead of starting a container.
	DSNEnv = "PQSTREAM_TEST_DSN"
)

// PostgresContainer is a reference to the docker container running PostgreSQL.
type PostgresContainer struct {
	DSN      string
	postgres *dockertest.Resource
}

// Stop the container.
func (c *PostgresContainer) Stop() error {
	if c == nil || c.postgres == nil {
		return nil
	}
	return c.postgres.Close()
}

// RequirePostgres skips the test unless integration tests are enabled, then returns a reachable server. If DSNEnv is
// set that server is used, otherwise a disposable container is started and removed when the test ends.
func RequirePostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	if os.Getenv(IntegrationEnv) == "" {
		t.Skipf("set %s to run integration tests", IntegrationEnv)
	}
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		log.Warn("Using PostgreSQL from " + DSNEnv)
		return &PostgresContainer{DSN: dsn}
	}
	return runPostgres(t)
}

func runPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	pool.MaxWait = 60 * time.Second

	log.Info("Starting PostgreSQL " + postgresVersion)
	container, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        postgresVersion,
		Env: []string{
			"POSTGRES_PASSWORD=" + postgresPassword,
			"POSTGRES_DB=" + postgresDatabase,
			"TZ=UTC",
		},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := pool.Purge(container); err != nil {
			t.Logf("failed to remove postgres container: %v", err)
		}
	})

	dsn := fmt.Sprintf("postgres://postgres:%s@localhost:%s/%s?sslmode=disable",
		postgresPassword, container.GetPort("5432/tcp"), postgresDatabase)
	err = pool.Retry(func() error {
		err := checkPostgresHealth(dsn)
		if err != nil {
			log.Infof("postgres connection not ready: %v", err)
		}
		return err
	})
	require.NoError(t, err)

	return &PostgresContainer{DSN: dsn, postgres: container}
}

func checkPostgresHealth(dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pg, err := pgconn.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return pg.Close(ctx)
}
