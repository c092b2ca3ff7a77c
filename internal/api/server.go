// Package api exposes the analysis engine over HTTP: on-demand filing
// analysis, signal queries, proof generation, attestations and a live
// websocket feed.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"insider-signal-lab/internal/attest"
	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/edgar"
	"insider-signal-lab/internal/filinghash"
	"insider-signal-lab/internal/ingestion"
	"insider-signal-lab/internal/observability"
	"insider-signal-lab/internal/proof"
	"insider-signal-lab/internal/storage"
)

const (
	serviceName = "insider-signal-lab"

	// maxUploadBytes bounds /analyze/upload bodies. Form 4 documents are
	// tens of kilobytes; anything near this limit is not a filing.
	maxUploadBytes = 10 << 20
)

// Server wires the analysis service, signal store, prover and signer
// into an HTTP handler.
type Server struct {
	service *ingestion.Service
	signals storage.SignalStore
	prover  *proof.Prover
	signer  *attest.Signer
	hub     *Hub
	logger  *log.Logger
	version string

	mu        sync.Mutex
	startedAt time.Time
}

// ServerOptions contains configuration for creating a Server.
type ServerOptions struct {
	Service *ingestion.Service
	Signals storage.SignalStore

	// Prover is optional; /proof/generate returns 503 without it.
	Prover *proof.Prover
	// Signer is optional; attestation endpoints return 503 without it.
	Signer *attest.Signer
	// Hub is optional; /ws/signals returns 503 without it.
	Hub *Hub

	Logger  *log.Logger
	Version string
}

// NewServer creates a Server.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		service:   opts.Service,
		signals:   opts.Signals,
		prover:    opts.Prover,
		signer:    opts.Signer,
		hub:       opts.Hub,
		logger:    logger,
		version:   version,
		startedAt: time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", instrument("/", s.handleRoot))
	mux.Handle("GET /health", instrument("/health", s.handleHealth))
	mux.Handle("GET /status", instrument("/status", s.handleStatus))
	mux.Handle("GET /stats", instrument("/stats", s.handleStats))
	mux.Handle("POST /analyze/filing", instrument("/analyze/filing", s.handleAnalyzeFiling))
	mux.Handle("POST /analyze/upload", instrument("/analyze/upload", s.handleAnalyzeUpload))
	mux.Handle("POST /proof/generate", instrument("/proof/generate", s.handleGenerateProof))
	mux.Handle("GET /signals/recent", instrument("/signals/recent", s.handleRecentSignals))
	mux.Handle("GET /signals/{id}", instrument("/signals/{id}", s.handleGetSignal))
	mux.Handle("GET /signals/{id}/attestation", instrument("/signals/{id}/attestation", s.handleAttestation))
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /ws/signals", s.handleWS)

	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "online",
		"service":   serviceName,
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Service          string  `json:"service"`
	Version          string  `json:"version"`
	StartedAt        string  `json:"started_at"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TotalSignals     int64   `json:"total_signals"`
	WebsocketClients int64   `json:"websocket_clients"`
	Threshold        float64 `json:"threshold"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, err := s.signals.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("count signals: %v", err))
		return
	}

	s.mu.Lock()
	started := s.startedAt
	s.mu.Unlock()

	resp := statusResponse{
		Service:       serviceName,
		Version:       s.version,
		StartedAt:     started.UTC().Format(time.RFC3339),
		UptimeSeconds: time.Since(started).Seconds(),
		TotalSignals:  total,
		Threshold:     s.service.Threshold(),
	}
	if s.hub != nil {
		resp.WebsocketClients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, err := s.signals.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("count signals: %v", err))
		return
	}

	stats := map[string]any{
		"total_signals":       total,
		"detection_threshold": s.service.Threshold(),
	}
	if s.signer != nil {
		stats["attestation_key"] = s.signer.PublicKey()
	}
	writeJSON(w, http.StatusOK, stats)
}

type analyzeFilingRequest struct {
	CIK        string `json:"cik"`
	FilingType string `json:"filing_type"`
}

func (s *Server) handleAnalyzeFiling(w http.ResponseWriter, r *http.Request) {
	var req analyzeFilingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if req.CIK == "" {
		writeError(w, http.StatusBadRequest, "cik is required")
		return
	}
	if req.FilingType == "" {
		req.FilingType = "4"
	}

	sig, err := s.service.AnalyzeCIK(r.Context(), req.CIK, req.FilingType)
	s.writeAnalysis(w, r, sig, err)
}

func (s *Server) handleAnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if len(content) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}
	if len(content) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}

	cik := r.URL.Query().Get("cik")
	if cik == "" {
		cik = "upload"
	}

	doc := &edgar.Document{
		CIK:        cik,
		FilingType: "4",
		Content:    content,
	}
	sig, err := s.service.AnalyzeDocument(r.Context(), doc)
	if errors.Is(err, ingestion.ErrFilingSeen) {
		// Point the caller at the earlier analysis of this content.
		hash := filinghash.ContentHash(content)
		earlier, lookupErr := s.signals.GetByFilingHash(r.Context(), hash)
		if lookupErr != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("look up earlier signals: %v", lookupErr))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "already_analyzed",
			"filing_hash": hash,
			"signals":     earlier,
		})
		return
	}
	s.writeAnalysis(w, r, sig, err)
}

// writeAnalysis maps one analysis outcome onto a response.
func (s *Server) writeAnalysis(w http.ResponseWriter, r *http.Request, sig *domain.SignalRecord, err error) {
	switch {
	case errors.Is(err, ingestion.ErrFilingSeen):
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "already_analyzed",
			"message": "filing content unchanged since last analysis",
		})
	case errors.Is(err, edgar.ErrFilingNotFound):
		writeError(w, http.StatusNotFound, "filing not found")
	case err != nil:
		s.logger.Printf("analyze %s: %v", r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	case sig == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "no_signal",
			"message": "no abnormal activity detected",
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "signal_detected",
			"signal": sig,
		})
	}
}

type generateProofRequest struct {
	FilingHash  string `json:"filing_hash"`
	Threshold   int64  `json:"threshold"`
	TotalShares int64  `json:"total_shares"`
	SharesSold  int64  `json:"shares_sold"`
}

type proofResponse struct {
	Proof         json.RawMessage `json:"proof"`
	PublicSignals []string        `json:"public_signals"`
	FilingHash    string          `json:"filing_hash"`
	GeneratedAt   string          `json:"generated_at"`
}

func (s *Server) handleGenerateProof(w http.ResponseWriter, r *http.Request) {
	if s.prover == nil {
		writeError(w, http.StatusServiceUnavailable, "proof generation not configured")
		return
	}

	var req generateProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	in, err := proof.BuildInput(req.FilingHash, req.Threshold, req.TotalShares, req.SharesSold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	p, err := s.prover.Generate(r.Context(), in)
	observability.RecordProof(time.Since(start).Seconds(), err)
	if err != nil {
		s.logger.Printf("generate proof for %s: %v", req.FilingHash, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("proof generation failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, proofResponse{
		Proof:         json.RawMessage(p.ProofJSON),
		PublicSignals: p.PublicSignals,
		FilingHash:    req.FilingHash,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRecentSignals(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1, 1000]")
			return
		}
		limit = n
	}

	sigs, err := s.signals.GetRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("load signals: %v", err))
		return
	}
	if sigs == nil {
		sigs = []*domain.SignalRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signals": sigs,
		"count":   len(sigs),
	})
}

func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	sig, ok := s.loadSignal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) handleAttestation(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		writeError(w, http.StatusServiceUnavailable, "attestation key not configured")
		return
	}

	sig, ok := s.loadSignal(w, r)
	if !ok {
		return
	}

	att := s.signer.Sign(sig)
	observability.DefaultMetrics.AttestationsMade.Inc()
	writeJSON(w, http.StatusOK, att)
}

// loadSignal resolves the {id} path segment; on failure it has already
// written the error response.
func (s *Server) loadSignal(w http.ResponseWriter, r *http.Request) (*domain.SignalRecord, bool) {
	id := r.PathValue("id")
	sig, err := s.signals.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "signal not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("load signal: %v", err))
		return nil, false
	}
	return sig, true
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live feed not configured")
		return
	}
	s.hub.HandleWS(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request count and latency under a fixed path label
// so parameterized routes do not explode metric cardinality.
func instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		observability.RecordHTTPRequest(path, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}
