package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insider-signal-lab/internal/attest"
	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/edgar"
	"insider-signal-lab/internal/filinghash"
	"insider-signal-lab/internal/ingestion"
	"insider-signal-lab/internal/storage/memory"
)

const sellingForm4 = `<?xml version="1.0"?>
<ownershipDocument>
  <issuer><issuerTradingSymbol>ACME</issuerTradingSymbol></issuer>
  <reportingOwner>
    <reportingOwnerName>John Doe</reportingOwnerName>
    <reportingOwnerTitle>Chief Executive Officer</reportingOwnerTitle>
  </reportingOwner>
  <nonDerivativeTable>
    <nonDerivativeTransaction>
      <transactionDate><value>2025-01-15</value></transactionDate>
      <transactionCode><value>S</value></transactionCode>
      <transactionShares><value>150000</value></transactionShares>
      <sharesOwnedFollowingTransaction><value>100000</value></sharesOwnedFollowingTransaction>
    </nonDerivativeTransaction>
  </nonDerivativeTable>
</ownershipDocument>`

const quietForm4 = `<?xml version="1.0"?>
<ownershipDocument>
  <issuer><issuerTradingSymbol>CALM</issuerTradingSymbol></issuer>
  <reportingOwner>
    <reportingOwnerName>Jane Smith</reportingOwnerName>
    <reportingOwnerTitle>Director</reportingOwnerTitle>
  </reportingOwner>
  <nonDerivativeTable>
    <nonDerivativeTransaction>
      <transactionDate><value>2025-01-15</value></transactionDate>
      <transactionCode><value>S</value></transactionCode>
      <transactionShares><value>1000</value></transactionShares>
      <sharesOwnedFollowingTransaction><value>99000</value></sharesOwnedFollowingTransaction>
    </nonDerivativeTransaction>
  </nonDerivativeTable>
</ownershipDocument>`

type serverFixture struct {
	srv     *httptest.Server
	signals *memory.SignalStore
	hub     *Hub
	cancel  context.CancelFunc
}

func newServerFixture(t *testing.T, opts func(*ServerOptions)) *serverFixture {
	t.Helper()

	signals := memory.NewSignalStore()
	logger := log.New(io.Discard, "", 0)

	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	service := ingestion.NewService(ingestion.ServiceOptions{
		FilingStore:  memory.NewFilingStore(),
		Transactions: memory.NewTransactionStore(),
		SignalStore:  signals,
		Logger:       logger,
		Publish:      hub.Publish,
	})

	serverOpts := ServerOptions{
		Service: service,
		Signals: signals,
		Hub:     hub,
		Logger:  logger,
		Version: "test",
	}
	if opts != nil {
		opts(&serverOpts)
	}

	srv := httptest.NewServer(NewServer(serverOpts).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &serverFixture{srv: srv, signals: signals, hub: hub, cancel: cancel}
}

func (f *serverFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func (f *serverFixture) upload(t *testing.T, content string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/analyze/upload", "application/xml", strings.NewReader(content))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	f := newServerFixture(t, nil)

	resp, err := http.Get(f.srv.URL + "/")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, serviceName, body["service"])

	resp, err = http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestAnalyzeUpload_SignalDetected(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.upload(t, sellingForm4)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "signal_detected", body["status"])

	sig := body["signal"].(map[string]any)
	assert.Equal(t, domain.SignalTypeInsiderSelling, sig["signal_type"])
	assert.Equal(t, "ACME", sig["company_symbol"])
	assert.InDelta(t, 60.0, sig["threshold_value"].(float64), 0.01)
}

func TestAnalyzeUpload_NoSignal(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.upload(t, quietForm4)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "no_signal", body["status"])
}

func TestAnalyzeUpload_AlreadyAnalyzedReturnsEarlierSignals(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.upload(t, sellingForm4)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.upload(t, sellingForm4)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "already_analyzed", body["status"])
	assert.Equal(t, filinghash.ContentHash([]byte(sellingForm4)), body["filing_hash"])

	earlier := body["signals"].([]any)
	require.Len(t, earlier, 1)
}

func TestAnalyzeUpload_EmptyBody(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.upload(t, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAnalyzeFiling_FetchesFromEDGAR(t *testing.T) {
	var edgarSrv *httptest.Server
	edgarSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/browse-edgar":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry><content>
    <filing-href>%s/Archives/latest.xml</filing-href>
    <accession-nunber>0000000111-25-000001</accession-nunber>
  </content></entry>
</feed>`, edgarSrv.URL)
		case "/Archives/latest.xml":
			fmt.Fprint(w, sellingForm4)
		default:
			http.NotFound(w, r)
		}
	}))
	defer edgarSrv.Close()

	f := newServerFixture(t, func(o *ServerOptions) {
		o.Service = ingestion.NewService(ingestion.ServiceOptions{
			Client:       edgar.NewClient(edgar.WithBaseURL(edgarSrv.URL)),
			FilingStore:  memory.NewFilingStore(),
			Transactions: memory.NewTransactionStore(),
			SignalStore:  o.Signals.(*memory.SignalStore),
			Logger:       log.New(io.Discard, "", 0),
		})
	})

	resp := f.postJSON(t, "/analyze/filing", map[string]string{"cik": "0000000111"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "signal_detected", body["status"])

	// Same content on the second request.
	resp = f.postJSON(t, "/analyze/filing", map[string]string{"cik": "0000000111"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "already_analyzed", body["status"])
}

func TestAnalyzeFiling_MissingCIK(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.postJSON(t, "/analyze/filing", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRecentSignals(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.upload(t, sellingForm4)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(f.srv.URL + "/signals/recent?limit=5")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["count"])
	assert.Len(t, body["signals"].([]any), 1)
}

func TestRecentSignals_InvalidLimit(t *testing.T) {
	f := newServerFixture(t, nil)

	for _, limit := range []string{"0", "-3", "1001", "abc"} {
		resp, err := http.Get(f.srv.URL + "/signals/recent?limit=" + limit)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", limit)
		resp.Body.Close()
	}
}

func TestGetSignalByID(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.upload(t, sellingForm4)
	body := decodeBody(t, resp)
	id := body["signal"].(map[string]any)["signal_id"].(string)

	resp, err := http.Get(f.srv.URL + "/signals/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody(t, resp)
	assert.Equal(t, id, got["signal_id"])

	resp, err = http.Get(f.srv.URL + "/signals/does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAttestation(t *testing.T) {
	signer, err := attest.NewSigner()
	require.NoError(t, err)

	f := newServerFixture(t, func(o *ServerOptions) {
		o.Signer = signer
	})

	resp := f.upload(t, sellingForm4)
	body := decodeBody(t, resp)
	id := body["signal"].(map[string]any)["signal_id"].(string)

	resp, err = http.Get(f.srv.URL + "/signals/" + id + "/attestation")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var att attest.Attestation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&att))
	resp.Body.Close()
	assert.Equal(t, id, att.SignalID)
	assert.Equal(t, signer.PublicKey(), att.PublicKey)

	sig, err := f.signals.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.NoError(t, attest.Verify(&att, sig))
}

func TestAttestation_NoSignerConfigured(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.upload(t, sellingForm4)
	body := decodeBody(t, resp)
	id := body["signal"].(map[string]any)["signal_id"].(string)

	resp, err := http.Get(f.srv.URL + "/signals/" + id + "/attestation")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestGenerateProof_NotConfigured(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.postJSON(t, "/proof/generate", map[string]any{
		"filing_hash":  strings.Repeat("ab", 32),
		"threshold":    40,
		"total_shares": 250000,
		"shares_sold":  150000,
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestStatusAndStats(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.upload(t, sellingForm4)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(f.srv.URL + "/status")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, serviceName, body["service"])
	assert.EqualValues(t, 1, body["total_signals"])
	assert.InDelta(t, ingestion.DefaultThreshold, body["threshold"].(float64), 0.001)

	resp, err = http.Get(f.srv.URL + "/stats")
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total_signals"])
}

func TestWebsocketFeed(t *testing.T) {
	f := newServerFixture(t, nil)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/signals"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Fire a signal after the subscriber is connected.
	resp := f.upload(t, sellingForm4)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var sig domain.SignalRecord
	require.NoError(t, json.Unmarshal(msg, &sig))
	assert.Equal(t, domain.SignalTypeInsiderSelling, sig.SignalType)
	assert.Equal(t, "ACME", sig.CompanySymbol)
}
