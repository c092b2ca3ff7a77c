package clickhouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	runTestMigrations(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// runTestMigrations applies the schema from the migrations package
// directory, falling back to an inline schema when the files are not
// reachable from the test working directory.
func runTestMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join("..", "migrations", "clickhouse", "001_signal_metrics.sql")
	if content, err := os.ReadFile(path); err == nil {
		require.NoError(t, conn.Exec(ctx, trimTrailingSemicolon(string(content))))
		return
	}

	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS signal_metrics (
			signal_id            String,
			company_symbol       String,
			filing_type          String,
			confidence           Float64,
			threshold_value      Float64,
			percentage_sold      Float64,
			effective_percentage Float64,
			num_transactions     UInt32,
			num_unique_insiders  UInt32,
			role_multiplier      Float64,
			time_clustered       Bool,
			detected_at_ms       UInt64
		) ENGINE = MergeTree()
		ORDER BY (company_symbol, detected_at_ms)
		SETTINGS index_granularity = 8192
	`)
	require.NoError(t, err)
}

// trimTrailingSemicolon strips the statement terminator; the driver
// rejects multi-statement Exec.
func trimTrailingSemicolon(sql string) string {
	for len(sql) > 0 {
		last := sql[len(sql)-1]
		if last == ';' || last == '\n' || last == ' ' || last == '\t' {
			sql = sql[:len(sql)-1]
			continue
		}
		break
	}
	return sql
}
