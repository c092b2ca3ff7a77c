// Package main analyzes a single filing, from EDGAR or a local file,
// and prints the detection result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/edgar"
	"insider-signal-lab/internal/ingestion"
	"insider-signal-lab/internal/storage/memory"
)

func main() {
	cik := flag.String("cik", "", "CIK to fetch the latest filing for")
	file := flag.String("file", "", "Local filing file to analyze instead of fetching")
	filingType := flag.String("filing-type", "4", "SEC filing type to fetch")
	threshold := flag.Float64("threshold", ingestion.DefaultThreshold, "Percentage-sold detection threshold")
	edgarBaseURL := flag.String("edgar-base-url", os.Getenv("EDGAR_BASE_URL"), "Override EDGAR base URL")
	edgarUserAgent := flag.String("edgar-user-agent", os.Getenv("EDGAR_USER_AGENT"), "User-Agent for EDGAR requests")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	logger := log.New(os.Stderr, "[analyze] ", log.LstdFlags)

	// Exit codes: 0 signal detected, 1 no signal, 2 error.
	if (*cik == "") == (*file == "") {
		logger.Println("exactly one of --cik or --file is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var clientOpts []edgar.ClientOption
	if *edgarBaseURL != "" {
		clientOpts = append(clientOpts, edgar.WithBaseURL(*edgarBaseURL))
	}
	if *edgarUserAgent != "" {
		clientOpts = append(clientOpts, edgar.WithUserAgent(*edgarUserAgent))
	}

	service := ingestion.NewService(ingestion.ServiceOptions{
		Client:       edgar.NewClient(clientOpts...),
		FilingStore:  memory.NewFilingStore(),
		Transactions: memory.NewTransactionStore(),
		SignalStore:  memory.NewSignalStore(),
		Threshold:    *threshold,
		Logger:       logger,
	})

	sig, err := analyze(ctx, service, *cik, *file, *filingType)
	if errors.Is(err, edgar.ErrFilingNotFound) {
		logger.Printf("no %s filings found for CIK %s", *filingType, *cik)
		os.Exit(2)
	}
	if err != nil {
		logger.Printf("analyze: %v", err)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if sig == nil {
		enc.Encode(map[string]string{"status": "no_signal"})
		os.Exit(1)
	}

	if err := enc.Encode(sig); err != nil {
		logger.Printf("encode signal: %v", err)
		os.Exit(2)
	}
}

// analyze runs one filing through the detection service.
func analyze(ctx context.Context, service *ingestion.Service, cik, file, filingType string) (*domain.SignalRecord, error) {
	if cik != "" {
		return service.AnalyzeCIK(ctx, cik, filingType)
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	return service.AnalyzeDocument(ctx, &edgar.Document{
		CIK:        "local",
		FilingType: filingType,
		URL:        "file://" + file,
		Content:    content,
	})
}
