package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "PRODUCTROOM_SKIP_INTEGRATION_TESTS"

// PgStoreSuite is a test suite for the PostgreSQL ProductStore implementation.
type PgStoreSuite struct {
	suite.Suite                             // Embedding testify's suite for structured testing
	pgContainer *postgres.PostgresContainer // PostgreSQL container for integration tests
	dbPool      *pgxpool.Pool               // PostgreSQL connection pool for integration tests
	store       *PgStore                    //
	logger      *slog.Logger                // Logger for the test suite
	ctx         context.Context             // Context for the test suite, used for cancellation and timeouts
}

// SetupSuite starts a PostgreSQL container, applies migrations and creates the store.
func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// 1. Start a PostgreSQL container with the specified configuration. Wait for the container to be ready.
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase(DatabaseName),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	// 2. Get the connection string from the container
	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	// 3. create a new pgxpool instance using the connection string
	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	// 3.1 Ping the database to ensure the connection is established
	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	// 4. Database migration from the embedded sources
	version, err := MigratePostgres(connStr)
	require.NoError(s.T(), err, "Failed to apply migrations")
	require.Equal(s.T(), uint(SchemaVersion), version)
	s.logger.Info("Migrations applied for integration tests")

	s.store = NewPgStore(s.dbPool)
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *PgStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

// SetupTest empties the products table before each test.
func (s *PgStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products")
	require.NoError(s.T(), err, "Failed to truncate products table")
}

// TestPgStoreIntegration runs the PgStore integration tests.
func TestPgStoreIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PgStoreSuite))
}

func (s *PgStoreSuite) TestContract() {
	runStoreContract(s.T(), func(t *testing.T) ProductStore {
		_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products")
		require.NoError(t, err)
		return s.store
	})
}

func (s *PgStoreSuite) TestRejectsNegativeQuantity() {
	_, err := s.store.Insert(s.ctx, "Broken", -1)
	s.Error(err)
}

func (s *PgStoreSuite) TestListenReportsChangesFromOtherConnections() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	live, err := NewLiveStore(ctx, s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(s.T(), err)
	go func() { _ = live.Run(ctx) }()

	// write through a separate connection, bypassing the decorator
	require.Eventually(s.T(), func() bool {
		_, err := s.dbPool.Exec(s.ctx, "INSERT INTO products (product_name, quantity) VALUES ('External', 4)")
		if err != nil {
			return false
		}
		return len(live.Products().Load()) > 0
	}, 10*time.Second, 200*time.Millisecond)

	all := live.Products().Load()
	assert.Equal(s.T(), "External", all[0].ProductName)
	assert.Equal(s.T(), int32(4), all[0].Quantity)
}
