package mockprovider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/repscan/internal/mockprovider"
	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/provider"
	"github.com/raysh454/repscan/internal/ratelimit"
	"github.com/raysh454/repscan/internal/scanner"
	"github.com/raysh454/repscan/internal/testutil"
	"github.com/raysh454/repscan/internal/webclient"
)

func submit(t *testing.T, h http.Handler, key, target string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"url": {target}}
	req := httptest.NewRequest(http.MethodPost, mockprovider.BasePath+"/urls", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-apikey", key)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func lookup(t *testing.T, h http.Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, mockprovider.BasePath+"/analyses/"+id, nil)
	req.Header.Set("x-apikey", mockprovider.DefaultAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func analysisID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if body.Data.ID == "" {
		t.Fatal("empty analysis id")
	}
	return body.Data.ID
}

func analysisStatus(t *testing.T, rec *httptest.ResponseRecorder) (string, map[string]uint) {
	t.Helper()
	var body struct {
		Data struct {
			Attributes struct {
				Status string          `json:"status"`
				Stats  map[string]uint `json:"stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode analysis response: %v", err)
	}
	return body.Data.Attributes.Status, body.Data.Attributes.Stats
}

// ─── Handlers ──────────────────────────────────────────────────────────

func TestServer_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	s := mockprovider.NewServer(mockprovider.DefaultConfig(), nil)

	rec := submit(t, s, "wrong", "https://a.example")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestServer_SubmitRequiresURL(t *testing.T) {
	t.Parallel()
	s := mockprovider.NewServer(mockprovider.DefaultConfig(), nil)

	rec := submit(t, s, mockprovider.DefaultAPIKey, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_PendingThenCompleted(t *testing.T) {
	t.Parallel()
	cfg := mockprovider.DefaultConfig()
	cfg.PendingPolls = 2
	cfg.Scripts = map[string]mockprovider.Script{
		"https://bad.example": {Stats: model.AnalysisReport{Malicious: 3, Harmless: 50}},
	}
	s := mockprovider.NewServer(cfg, nil)

	id := analysisID(t, submit(t, s, mockprovider.DefaultAPIKey, "https://bad.example"))
	for i := 0; i < 2; i++ {
		status, stats := analysisStatus(t, lookup(t, s, id))
		if status != "queued" || stats["malicious"] != 0 {
			t.Fatalf("poll %d: expected queued with zero stats, got %s %v", i+1, status, stats)
		}
	}
	status, stats := analysisStatus(t, lookup(t, s, id))
	if status != "completed" || stats["malicious"] != 3 || stats["harmless"] != 50 {
		t.Errorf("expected completed scripted stats, got %s %v", status, stats)
	}
	if s.Submits() != 1 || s.Lookups() != 3 {
		t.Errorf("counters submits=%d lookups=%d", s.Submits(), s.Lookups())
	}
}

func TestServer_UnknownAnalysis(t *testing.T) {
	t.Parallel()
	s := mockprovider.NewServer(mockprovider.DefaultConfig(), nil)
	if rec := lookup(t, s, "u-missing"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_RejectSubmits(t *testing.T) {
	t.Parallel()
	cfg := mockprovider.DefaultConfig()
	cfg.Scripts = map[string]mockprovider.Script{"https://a.example": {RejectSubmits: 1}}
	s := mockprovider.NewServer(cfg, nil)

	if rec := submit(t, s, mockprovider.DefaultAPIKey, "https://a.example"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec := submit(t, s, mockprovider.DefaultAPIKey, "https://a.example"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on second submit, got %d", rec.Code)
	}
}

// ─── End to end ────────────────────────────────────────────────────────

type stack struct {
	mock *mockprovider.Server
	sink *testutil.RecordingSink
	orch *scanner.Orchestrator
}

func newStack(t *testing.T, cfg mockprovider.Config, timeout time.Duration, scanCfg scanner.Config) *stack {
	t.Helper()
	mock := mockprovider.NewServer(cfg, nil)
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	logger := &testutil.DummyLogger{}
	wc, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: timeout}, logger, nil)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	client, err := provider.NewClient(provider.Config{
		BaseURL: srv.URL + mockprovider.BasePath,
		APIKey:  mockprovider.DefaultAPIKey,
		Timeout: timeout,
	}, wc, logger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	limiter := ratelimit.NewWithInterval(2 * time.Millisecond)
	sink := &testutil.RecordingSink{}
	orch, err := scanner.NewOrchestrator(scanCfg,
		provider.NewSubmitter(client, limiter, provider.DefaultMaxAttempts, logger),
		provider.NewPoller(client, limiter, provider.DefaultMaxAttempts, logger),
		limiter, sink, logger)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return &stack{mock: mock, sink: sink, orch: orch}
}

func TestEndToEnd_GoodAndBad(t *testing.T) {
	t.Parallel()
	cfg := mockprovider.DefaultConfig()
	cfg.PendingPolls = 1
	cfg.Scripts = map[string]mockprovider.Script{
		"https://good.example": {Stats: model.AnalysisReport{Harmless: 70}},
		"https://bad.example":  {Stats: model.AnalysisReport{Malicious: 3, Harmless: 60}},
	}
	st := newStack(t, cfg, time.Second, scanner.Config{})

	summary, err := st.orch.Run(context.Background(), []string{"https://good.example", "https://bad.example"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	recs := st.sink.Snapshot()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Verdict != model.VerdictGood || recs[1].Verdict != model.VerdictMalicious {
		t.Errorf("unexpected verdicts %s, %s", recs[0].Verdict, recs[1].Verdict)
	}
	for _, r := range recs {
		if r.Status != model.StatusScanned {
			t.Errorf("%s: expected Scanned, got %s", r.URL, r.Status)
		}
	}
	if summary.Scanned != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	// One pending lookup plus the completed one for each URL.
	if st.mock.Lookups() != 4 {
		t.Errorf("expected 4 lookups, got %d", st.mock.Lookups())
	}
}

func TestEndToEnd_SustainedTimeoutsStillProduceRecords(t *testing.T) {
	t.Parallel()
	cfg := mockprovider.DefaultConfig()
	cfg.Scripts = map[string]mockprovider.Script{"https://slow.example": {Hang: true}}
	st := newStack(t, cfg, 50*time.Millisecond, scanner.Config{})

	if _, err := st.orch.Run(context.Background(), []string{"https://slow.example", "https://ok.example"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	recs := st.sink.Snapshot()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Status != model.StatusNotScanned || recs[0].Verdict != model.VerdictUnknown {
		t.Errorf("timed-out url: %+v", recs[0])
	}
	if recs[1].Status != model.StatusScanned || recs[1].Verdict != model.VerdictGood {
		t.Errorf("healthy url: %+v", recs[1])
	}
	// Three attempts for the hanging url, one for the healthy one.
	if st.mock.Submits() != 4 {
		t.Errorf("expected 4 submissions, got %d", st.mock.Submits())
	}
}

func TestEndToEnd_PendingExhaustionPolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  scanner.Config
		want model.Status
	}{
		{"not scanned", scanner.Config{}, model.StatusNotScanned},
		{"scanned", scanner.Config{CountUnresolvedAsScanned: true}, model.StatusScanned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := mockprovider.DefaultConfig()
			cfg.PendingPolls = 10
			st := newStack(t, cfg, time.Second, tt.cfg)

			if _, err := st.orch.Run(context.Background(), []string{"https://queued.example"}); err != nil {
				t.Fatalf("Run: %v", err)
			}
			recs := st.sink.Snapshot()
			if len(recs) != 1 || recs[0].Status != tt.want || recs[0].Verdict != model.VerdictUnknown {
				t.Fatalf("unexpected records %+v", recs)
			}
			if st.mock.Lookups() != provider.DefaultMaxAttempts {
				t.Errorf("expected %d lookups, got %d", provider.DefaultMaxAttempts, st.mock.Lookups())
			}
		})
	}
}

func TestEndToEnd_MissingStatsIsTerminal(t *testing.T) {
	t.Parallel()
	cfg := mockprovider.DefaultConfig()
	cfg.Scripts = map[string]mockprovider.Script{"https://odd.example": {OmitStats: true}}
	st := newStack(t, cfg, time.Second, scanner.Config{})

	if _, err := st.orch.Run(context.Background(), []string{"https://odd.example"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	recs := st.sink.Snapshot()
	if len(recs) != 1 || recs[0].Verdict != model.VerdictUnknown {
		t.Fatalf("unexpected records %+v", recs)
	}
	if st.mock.Lookups() != 1 {
		t.Errorf("malformed report should not be retried, got %d lookups", st.mock.Lookups())
	}
}
