package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"insider-signal-lab/internal/edgar"
	"insider-signal-lab/internal/observability"
)

// Runner polls EDGAR for the latest filings of a fixed set of companies
// and feeds each unseen document through the analysis service.
type Runner struct {
	service      *Service
	ciks         []string
	filingType   string
	pollInterval time.Duration
	logger       *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Service    *Service
	CIKs       []string
	FilingType string // default "4"

	// PollInterval between full passes over the CIK list. EDGAR asks
	// automated clients to stay well under 10 requests/second; one pass
	// every few minutes is far below that.
	PollInterval time.Duration
	Logger       *log.Logger
}

// NewRunner creates a polling runner.
func NewRunner(opts RunnerOptions) *Runner {
	filingType := opts.FilingType
	if filingType == "" {
		filingType = "4"
	}

	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = 5 * time.Minute
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		service:      opts.Service,
		ciks:         opts.CIKs,
		filingType:   filingType,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run polls until the context is cancelled. The first pass starts
// immediately.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.ciks) == 0 {
		r.logger.Println("no CIKs configured, runner idle")
		<-ctx.Done()
		return ctx.Err()
	}

	r.logger.Printf("polling %d companies for %s filings every %v", len(r.ciks), r.filingType, r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("runner stopping")
			return ctx.Err()
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll runs one pass over the configured CIK list.
func (r *Runner) poll(ctx context.Context) {
	for _, cik := range r.ciks {
		if ctx.Err() != nil {
			return
		}

		sig, err := r.service.AnalyzeCIK(ctx, cik, r.filingType)
		switch {
		case errors.Is(err, ErrFilingSeen):
			// Unchanged since last pass.
		case errors.Is(err, edgar.ErrFilingNotFound):
			r.logger.Printf("no %s filings listed for CIK %s", r.filingType, cik)
		case err != nil:
			r.logger.Printf("analyze CIK %s: %v", cik, err)
		case sig != nil:
			r.logger.Printf("CIK %s fired %s (confidence %.2f)", cik, sig.SignalType, sig.Confidence)
		}
	}

	observability.DefaultMetrics.LastSuccessfulPoll.Set(float64(time.Now().Unix()))
}
