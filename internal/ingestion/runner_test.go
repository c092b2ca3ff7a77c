package ingestion

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insider-signal-lab/internal/edgar"
)

func TestRunner_PollDetectsAndDeduplicates(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/browse-edgar":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry><content>
    <filing-href>%s/Archives/latest.xml</filing-href>
    <accession-nunber>0000000111-25-000001</accession-nunber>
  </content></entry>
</feed>`, srv.URL)
		case "/Archives/latest.xml":
			fmt.Fprint(w, sellingForm4)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFixture(t)
	f.service.client = edgar.NewClient(edgar.WithBaseURL(srv.URL))

	runner := NewRunner(RunnerOptions{
		Service:      f.service,
		CIKs:         []string{"0000000111"},
		PollInterval: 10 * time.Millisecond,
		Logger:       log.New(io.Discard, "", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The filing fired once; later polls saw unchanged content.
	n, err := f.signals.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, f.published, 1)
}

func TestRunner_NoCIKsIdlesUntilCancelled(t *testing.T) {
	runner := NewRunner(RunnerOptions{
		Service: NewService(ServiceOptions{}),
		Logger:  log.New(io.Discard, "", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
