// Package main generates a groth16 threshold proof for a filing hash
// and prints it as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"insider-signal-lab/internal/proof"
)

func main() {
	filingHash := flag.String("filing-hash", "", "Hex sha256 filing hash (64 chars)")
	threshold := flag.Int64("threshold", 40, "Percentage-sold threshold (public signal)")
	totalShares := flag.Int64("total-shares", 0, "Total shares before plus sold (private)")
	sharesSold := flag.Int64("shares-sold", 0, "Shares sold (private)")
	circuitDir := flag.String("circuit-dir", envOr("CIRCUIT_DIR", proof.DefaultCircuitDir), "Compiled circuit artifacts directory")
	timeout := flag.Duration("timeout", 5*time.Minute, "Proof generation timeout")
	flag.Parse()

	logger := log.New(os.Stderr, "[prove] ", log.LstdFlags)

	if *filingHash == "" {
		logger.Fatal("--filing-hash is required")
	}

	in, err := proof.BuildInput(*filingHash, *threshold, *totalShares, *sharesSold)
	if err != nil {
		logger.Fatalf("build input: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	prover := proof.NewProver(proof.WithCircuitDir(*circuitDir), proof.WithLogger(logger))
	p, err := prover.Generate(ctx, in)
	if err != nil {
		logger.Fatalf("generate proof: %v", err)
	}

	out := map[string]any{
		"proof":          json.RawMessage(p.ProofJSON),
		"public_signals": p.PublicSignals,
		"filing_hash":    *filingHash,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatalf("encode proof: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
