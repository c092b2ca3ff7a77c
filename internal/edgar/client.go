// Package edgar fetches and parses ownership filings from SEC EDGAR.
// It is the ingestion boundary: everything handed to the detection engine
// has already been classified and numerically parsed here.
package edgar

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://www.sec.gov"
	DefaultUserAgent  = "insider-signal-lab/1.0 (research@example.com)"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// ErrFilingNotFound is returned when EDGAR lists no filing for the query.
var ErrFilingNotFound = errors.New("filing not found")

// Client fetches filings from the EDGAR full-text endpoints.
// SEC requires a descriptive User-Agent with a contact address.
type Client struct {
	baseURL     string
	userAgent   string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the EDGAR base URL (used by tests).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithUserAgent sets the User-Agent header sent to EDGAR.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new EDGAR client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		userAgent:   DefaultUserAgent,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: 2.0,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Document is one fetched filing document.
type Document struct {
	CIK         string
	FilingType  string
	AccessionNo string
	URL         string
	Content     []byte
}

// atomFeed models the subset of the EDGAR browse atom feed we consume.
// EDGAR spells the accession tag "accession-nunber".
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Content struct {
		FilingHRef  string `xml:"filing-href"`
		AccessionNo string `xml:"accession-nunber"`
	} `xml:"content"`
}

// FetchLatestFiling downloads the most recent filing of the given type for
// a CIK. It queries the browse-edgar atom index first, then fetches the
// referenced filing document. Returns ErrFilingNotFound when EDGAR lists
// nothing for the query.
func (c *Client) FetchLatestFiling(ctx context.Context, cik, filingType string) (*Document, error) {
	params := url.Values{
		"action": {"getcompany"},
		"CIK":    {cik},
		"type":   {filingType},
		"owner":  {"include"},
		"count":  {"1"},
		"output": {"atom"},
	}
	indexURL := c.baseURL + "/cgi-bin/browse-edgar?" + params.Encode()

	body, err := c.get(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch filing index: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse filing index: %w", err)
	}

	if len(feed.Entries) == 0 || feed.Entries[0].Content.FilingHRef == "" {
		return nil, ErrFilingNotFound
	}
	entry := feed.Entries[0]

	content, err := c.get(ctx, entry.Content.FilingHRef)
	if err != nil {
		return nil, fmt.Errorf("fetch filing document: %w", err)
	}

	return &Document{
		CIK:         cik,
		FilingType:  filingType,
		AccessionNo: entry.Content.AccessionNo,
		URL:         entry.Content.FilingHRef,
		Content:     content,
	}, nil
}

// get performs a GET with retries and exponential backoff.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// EDGAR throttles aggressively; back off and retry
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrFilingNotFound
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
