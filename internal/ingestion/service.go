// Package ingestion pulls ownership filings into storage and runs the
// detection engine over them.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/edgar"
	"insider-signal-lab/internal/filinghash"
	"insider-signal-lab/internal/observability"
	"insider-signal-lab/internal/signal"
	"insider-signal-lab/internal/storage"
)

// ErrFilingSeen is returned when a fetched document's content hash is
// already stored. The caller can look up earlier signals by filing hash.
var ErrFilingSeen = errors.New("filing already analyzed")

// DefaultThreshold is the percentage-sold threshold applied when none
// is configured.
const DefaultThreshold = 40.0

// Service runs the fetch-parse-detect-store path for one filing at a
// time. It is shared by the polling runner and the HTTP API.
type Service struct {
	client       *edgar.Client
	filings      storage.FilingStore
	transactions storage.TransactionStore
	signals      storage.SignalStore
	metrics      storage.SignalMetricsStore // optional analytics sink
	detector     *signal.Detector
	threshold    float64
	logger       *log.Logger
	publish      func(*domain.SignalRecord)
}

// ServiceOptions contains configuration for creating a Service.
type ServiceOptions struct {
	Client       *edgar.Client
	FilingStore  storage.FilingStore
	Transactions storage.TransactionStore
	SignalStore  storage.SignalStore
	MetricsStore storage.SignalMetricsStore
	Threshold    float64
	Logger       *log.Logger

	// Publish is invoked for every stored signal, after persistence.
	Publish func(*domain.SignalRecord)
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		client:       opts.Client,
		filings:      opts.FilingStore,
		transactions: opts.Transactions,
		signals:      opts.SignalStore,
		metrics:      opts.MetricsStore,
		detector:     signal.NewDetector(),
		threshold:    threshold,
		logger:       logger,
		publish:      opts.Publish,
	}
}

// Threshold returns the configured detection threshold.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// AnalyzeCIK fetches the latest filing of the given type for a CIK and
// runs it through detection. Returns ErrFilingSeen when the document's
// content is already stored, and a nil signal when no signal fires.
func (s *Service) AnalyzeCIK(ctx context.Context, cik, filingType string) (*domain.SignalRecord, error) {
	doc, err := s.client.FetchLatestFiling(ctx, cik, filingType)
	if err != nil {
		observability.RecordFetchError("fetch")
		return nil, fmt.Errorf("fetch filing for CIK %s: %w", cik, err)
	}
	observability.RecordFilingFetched(filingType)

	return s.AnalyzeDocument(ctx, doc)
}

// AnalyzeDocument hashes, stores and analyzes one fetched document.
// Everything derived from the document (filing row, transactions,
// signal, analytics row) is written before the signal is published.
func (s *Service) AnalyzeDocument(ctx context.Context, doc *edgar.Document) (*domain.SignalRecord, error) {
	filingHash := filinghash.ContentHash(doc.Content)

	seen, err := s.filings.Exists(ctx, filingHash)
	if err != nil {
		return nil, fmt.Errorf("check filing exists: %w", err)
	}
	if seen {
		observability.DefaultMetrics.FilingsDuplicate.Inc()
		return nil, ErrFilingSeen
	}

	form, err := edgar.ParseForm4(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("parse filing %s: %w", filingHash, err)
	}
	observability.DefaultMetrics.FilingsParsed.Inc()

	filing := &domain.Filing{
		FilingID:    filingHash,
		CIK:         doc.CIK,
		AccessionNo: doc.AccessionNo,
		FilingType:  doc.FilingType,
		FilingURL:   doc.URL,
		CID:         filinghash.CIDv0(doc.Content),
		RawContent:  string(doc.Content),
		FetchedAt:   time.Now().UnixMilli(),
	}
	if err := s.filings.Insert(ctx, filing); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrFilingSeen
		}
		return nil, fmt.Errorf("store filing: %w", err)
	}

	records := form.Transactions
	for i := range records {
		records[i].FilingID = filingHash
	}
	if err := s.transactions.InsertBulk(ctx, recordPtrs(records)); err != nil {
		return nil, fmt.Errorf("store transactions: %w", err)
	}
	observability.DefaultMetrics.TransactionsRecorded.Add(float64(len(records)))

	observability.DefaultMetrics.FilingsAnalyzed.Inc()
	sig := s.detector.Detect(records, s.threshold)
	if sig == nil {
		s.logger.Printf("no signal for filing %s (%d transactions)", shortHash(filingHash), len(records))
		return nil, nil
	}

	sig.CompanySymbol = form.IssuerSymbol
	sig.FilingType = doc.FilingType
	sig.FilingURL = doc.URL
	sig.FilingHash = filingHash
	sig.CID = filing.CID
	sig.SignalID = filinghash.ComputeSignalID(filingHash, sig.SignalType, sig.DetectedAt.UnixMilli())

	if err := s.signals.Insert(ctx, sig); err != nil {
		return nil, fmt.Errorf("store signal: %w", err)
	}
	observability.RecordSignalDetected(sig.SignalType, sig.Confidence)
	observability.DefaultMetrics.LastSignalDetected.Set(float64(time.Now().Unix()))

	if s.metrics != nil {
		if err := s.metrics.InsertBulk(ctx, []*domain.SignalMetric{domain.MetricFromSignal(sig)}); err != nil {
			// Analytics is best-effort; the signal is already durable.
			s.logger.Printf("store signal metric %s: %v", sig.SignalID, err)
		}
	}

	s.logger.Printf("signal %s: %s %.2f%% sold (threshold %.1f), confidence %.2f",
		shortHash(sig.SignalID), sig.CompanySymbol, sig.ThresholdValue, s.threshold, sig.Confidence)

	if s.publish != nil {
		s.publish(sig)
	}
	return sig, nil
}

func recordPtrs(records []domain.TransactionRecord) []*domain.TransactionRecord {
	out := make([]*domain.TransactionRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
