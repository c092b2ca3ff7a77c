// Package main runs the full service: EDGAR polling, signal detection,
// and the HTTP/websocket API, backed by PostgreSQL and ClickHouse (or
// in-memory stores for local runs).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"insider-signal-lab/internal/api"
	"insider-signal-lab/internal/attest"
	"insider-signal-lab/internal/edgar"
	"insider-signal-lab/internal/ingestion"
	"insider-signal-lab/internal/proof"
	"insider-signal-lab/internal/storage"
	chstore "insider-signal-lab/internal/storage/clickhouse"
	"insider-signal-lab/internal/storage/memory"
	"insider-signal-lab/internal/storage/migrations"
	pgstore "insider-signal-lab/internal/storage/postgres"
)

const version = "1.0.0"

// allStores holds all storage implementations.
type allStores struct {
	filings      storage.FilingStore
	transactions storage.TransactionStore
	signals      storage.SignalStore
	metrics      storage.SignalMetricsStore
}

func main() {
	// Load .env file if exists; system env vars take precedence.
	_ = godotenv.Load()

	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	ciks := flag.String("ciks", os.Getenv("WATCH_CIKS"), "Comma-separated CIKs to poll")
	filingType := flag.String("filing-type", envOr("FILING_TYPE", "4"), "SEC filing type to fetch")
	threshold := flag.Float64("threshold", ingestion.DefaultThreshold, "Percentage-sold detection threshold")
	pollInterval := flag.Duration("poll-interval", 5*time.Minute, "Interval between EDGAR polling passes")
	edgarBaseURL := flag.String("edgar-base-url", os.Getenv("EDGAR_BASE_URL"), "Override EDGAR base URL")
	edgarUserAgent := flag.String("edgar-user-agent", os.Getenv("EDGAR_USER_AGENT"), "User-Agent for EDGAR requests")
	circuitDir := flag.String("circuit-dir", envOr("CIRCUIT_DIR", proof.DefaultCircuitDir), "Compiled circuit artifacts directory")
	attestSeed := flag.String("attest-seed", os.Getenv("ATTEST_SEED"), "Base58 ed25519 seed for signal attestations")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	signer, err := createSigner(*attestSeed)
	if err != nil {
		logger.Fatalf("Failed to create attestation signer: %v", err)
	}
	logger.Printf("Attestation key: %s", signer.PublicKey())

	var clientOpts []edgar.ClientOption
	if *edgarBaseURL != "" {
		clientOpts = append(clientOpts, edgar.WithBaseURL(*edgarBaseURL))
	}
	if *edgarUserAgent != "" {
		clientOpts = append(clientOpts, edgar.WithUserAgent(*edgarUserAgent))
	}

	hub := api.NewHub(logger)

	service := ingestion.NewService(ingestion.ServiceOptions{
		Client:       edgar.NewClient(clientOpts...),
		FilingStore:  stores.filings,
		Transactions: stores.transactions,
		SignalStore:  stores.signals,
		MetricsStore: stores.metrics,
		Threshold:    *threshold,
		Logger:       log.New(os.Stdout, "[ingestion] ", log.LstdFlags|log.Lshortfile),
		Publish:      hub.Publish,
	})

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Service:      service,
		CIKs:         splitCIKs(*ciks),
		FilingType:   *filingType,
		PollInterval: *pollInterval,
		Logger:       log.New(os.Stdout, "[runner] ", log.LstdFlags|log.Lshortfile),
	})

	server := api.NewServer(api.ServerOptions{
		Service: service,
		Signals: stores.signals,
		Prover:  proof.NewProver(proof.WithCircuitDir(*circuitDir)),
		Signer:  signer,
		Hub:     hub,
		Logger:  logger,
		Version: version,
	})

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, *listenAddr, server, hub, runner)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run starts the polling runner, the broadcast hub and the HTTP server,
// and blocks until the context is cancelled or a component fails.
func run(ctx context.Context, logger *log.Logger, addr string, server *api.Server, hub *api.Hub, runner *ingestion.Runner) error {
	errCh := make(chan error, 2)

	go hub.Run(ctx)

	go func() {
		err := runner.Run(ctx)
		if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
			errCh <- fmt.Errorf("runner: %w", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("Starting HTTP server on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// createStores creates all required stores, running migrations for the
// database-backed variants.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			filings:      memory.NewFilingStore(),
			transactions: memory.NewTransactionStore(),
			signals:      memory.NewSignalStore(),
			metrics:      memory.NewSignalMetricsStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		filings:      pgstore.NewFilingStore(pool),
		transactions: pgstore.NewTransactionStore(pool),
		signals:      pgstore.NewSignalStore(pool),
		metrics:      chstore.NewSignalMetricsStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// createSigner restores the attestation signer from the configured seed,
// or generates an ephemeral one.
func createSigner(seed string) (*attest.Signer, error) {
	if seed != "" {
		return attest.NewSignerFromSeed(seed)
	}
	return attest.NewSigner()
}

func splitCIKs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
