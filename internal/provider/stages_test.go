package provider_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/provider"
	"github.com/raysh454/repscan/internal/ratelimit"
	"github.com/raysh454/repscan/internal/retry"
	"github.com/raysh454/repscan/internal/testutil"
)

const testInterval = 2 * time.Millisecond

func countingServer(t *testing.T, hits *atomic.Int32, h func(n int32, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(hits.Add(1), w)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestSubmitter_SustainedTimeoutUsesExactlyThreeAttempts(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := hangingServer(t, &hits)

	logger := &testutil.DummyLogger{}
	sub := provider.NewSubmitter(newClient(t, ts.URL, 20*time.Millisecond), ratelimit.NewWithInterval(testInterval), 3, logger)

	_, err := sub.Submit(context.Background(), "https://slow.example")
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", got)
	}
	if len(logger.Warns) != 2 {
		t.Errorf("expected 2 retry notices, got %d", len(logger.Warns))
	}
}

func TestSubmitter_ServerErrorIsTerminal(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := countingServer(t, &hits, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	sub := provider.NewSubmitter(newClient(t, ts.URL, time.Second), ratelimit.NewWithInterval(testInterval), 3, nil)
	_, err := sub.Submit(context.Background(), "https://a.example")
	if !errors.Is(err, provider.ErrUnexpectedStatus) || errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected terminal status error, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestSubmitter_QuotaThenSuccess(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := countingServer(t, &hits, func(n int32, w http.ResponseWriter) {
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"id":"u-9"}}`)
	})

	sub := provider.NewSubmitter(newClient(t, ts.URL, time.Second), ratelimit.NewWithInterval(testInterval), 3, nil)
	h, err := sub.Submit(context.Background(), "https://a.example")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.AnalysisID != "u-9" || hits.Load() != 2 {
		t.Errorf("got %q after %d attempts", h.AnalysisID, hits.Load())
	}
}

func TestSubmitter_BackoffSpacesAttempts(t *testing.T) {
	t.Parallel()
	const interval = 15 * time.Millisecond
	var hits atomic.Int32
	ts := countingServer(t, &hits, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	sub := provider.NewSubmitter(newClient(t, ts.URL, time.Second), ratelimit.NewWithInterval(interval), 3, nil)
	start := time.Now()
	_, _ = sub.Submit(context.Background(), "https://a.example")
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("3 attempts finished in %s, expected at least %s", elapsed, 2*interval)
	}
}

// A retry waits out one interval of backoff, after which its turn on the
// limiter is already due: consecutive attempts land one interval apart, not
// two.
func TestSubmitter_RetryGapIsOneInterval(t *testing.T) {
	t.Parallel()
	const interval = 40 * time.Millisecond
	arrivals := make(chan time.Time, 3)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrivals <- time.Now()
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	sub := provider.NewSubmitter(newClient(t, ts.URL, time.Second), ratelimit.NewWithInterval(interval), 3, nil)
	if _, err := sub.Submit(context.Background(), "https://a.example"); !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected exhausted budget, got %v", err)
	}
	close(arrivals)

	var prev time.Time
	for at := range arrivals {
		if !prev.IsZero() {
			// Arrival times carry a little transport jitter on top of the
			// limiter's spacing.
			if gap := at.Sub(prev); gap < interval-5*time.Millisecond || gap >= 2*interval {
				t.Errorf("retry gap %s, want about %s and under %s", gap, interval, 2*interval)
			}
		}
		prev = at
	}
}

func TestPoller_RetriesServerErrorsThenSucceeds(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := countingServer(t, &hits, func(n int32, w http.ResponseWriter) {
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"attributes":{"status":"completed","stats":{"malicious":0,"suspicious":2,"harmless":1,"undetected":1}}}}`)
	})

	p := provider.NewPoller(newClient(t, ts.URL, time.Second), ratelimit.NewWithInterval(testInterval), 3, nil)
	r, err := p.FetchReport(context.Background(), model.AnalysisHandle{AnalysisID: "u-1"})
	if err != nil {
		t.Fatalf("FetchReport: %v", err)
	}
	if r.Suspicious != 2 || hits.Load() != 3 {
		t.Errorf("got %+v after %d attempts", r, hits.Load())
	}
}

func TestPoller_PendingUntilExhausted(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := countingServer(t, &hits, func(_ int32, w http.ResponseWriter) {
		_, _ = io.WriteString(w, `{"data":{"attributes":{"status":"queued"}}}`)
	})

	p := provider.NewPoller(newClient(t, ts.URL, time.Second), ratelimit.NewWithInterval(testInterval), 3, nil)
	_, err := p.FetchReport(context.Background(), model.AnalysisHandle{AnalysisID: "u-1"})
	if !errors.Is(err, retry.ErrExhausted) || !errors.Is(err, provider.ErrAnalysisPending) {
		t.Fatalf("expected exhausted pending analysis, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestPoller_MalformedIsTerminal(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := countingServer(t, &hits, func(_ int32, w http.ResponseWriter) {
		_, _ = io.WriteString(w, `{"data":{"attributes":{"status":"completed","stats":{"malicious":1}}}}`)
	})

	p := provider.NewPoller(newClient(t, ts.URL, time.Second), ratelimit.NewWithInterval(testInterval), 3, nil)
	_, err := p.FetchReport(context.Background(), model.AnalysisHandle{AnalysisID: "u-1"})
	if !errors.Is(err, provider.ErrMalformedResponse) {
		t.Fatalf("expected malformed, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", hits.Load())
	}
}

func TestPoller_TimeoutRetried(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := hangingServer(t, &hits)

	p := provider.NewPoller(newClient(t, ts.URL, 20*time.Millisecond), ratelimit.NewWithInterval(testInterval), 3, nil)
	_, err := p.FetchReport(context.Background(), model.AnalysisHandle{AnalysisID: "u-1"})
	if !errors.Is(err, retry.ErrExhausted) || hits.Load() != 3 {
		t.Fatalf("expected 3 timed-out attempts, got err=%v hits=%d", err, hits.Load())
	}
}
