package provider_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/provider"
	"github.com/raysh454/repscan/internal/webclient"
)

func newClient(t *testing.T, baseURL string, timeout time.Duration) *provider.Client {
	t.Helper()
	wc, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: timeout}, nil, nil)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	c, err := provider.NewClient(provider.Config{BaseURL: baseURL, APIKey: "k", Timeout: timeout}, wc, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClient_Submit_PostsFormAndReturnsID(t *testing.T) {
	t.Parallel()
	var gotURL, gotKey, gotCT string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/urls" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		gotURL = form.Get("url")
		gotKey = r.Header.Get(provider.APIKeyHeader)
		gotCT = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"data":{"type":"analysis","id":"u-123"}}`)
	}))
	defer ts.Close()

	h, err := newClient(t, ts.URL, time.Second).Submit(context.Background(), "https://good.example/?a=1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.AnalysisID != "u-123" {
		t.Errorf("expected u-123, got %q", h.AnalysisID)
	}
	if gotURL != "https://good.example/?a=1" || gotKey != "k" || gotCT != "application/x-www-form-urlencoded" {
		t.Errorf("unexpected request: url=%q key=%q ct=%q", gotURL, gotKey, gotCT)
	}
}

func TestClient_Submit_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"missing id", 200, `{"data":{}}`, func(err error) bool { return errors.Is(err, provider.ErrMalformedResponse) }},
		{"not json", 200, `<html>`, func(err error) bool { return errors.Is(err, provider.ErrMalformedResponse) }},
		{"unauthorized", 401, `{"error":{}}`, func(err error) bool {
			return errors.Is(err, provider.ErrUnexpectedStatus) && !provider.SubmitRetryable(err)
		}},
		{"quota", 429, `{}`, func(err error) bool { return provider.IsQuotaExceeded(err) && provider.SubmitRetryable(err) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			_, err := newClient(t, ts.URL, time.Second).Submit(context.Background(), "https://a.example")
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestClient_Submit_EmptyURL(t *testing.T) {
	t.Parallel()
	c := newClient(t, "http://127.0.0.1:1", time.Second)
	if _, err := c.Submit(context.Background(), " "); !errors.Is(err, provider.ErrEmptyURL) {
		t.Errorf("expected ErrEmptyURL, got %v", err)
	}
}

func TestClient_Analysis_ParsesStats(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyses/u-1" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"id":"u-1","attributes":{"status":"completed",
			"stats":{"malicious":3,"suspicious":1,"harmless":60,"undetected":9}}}}`)
	}))
	defer ts.Close()

	r, err := newClient(t, ts.URL, time.Second).Analysis(context.Background(), model.AnalysisHandle{AnalysisID: "u-1"})
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	want := model.AnalysisReport{Malicious: 3, Suspicious: 1, Harmless: 60, Undetected: 9}
	if r != want {
		t.Errorf("got %+v, want %+v", r, want)
	}
}

func TestClient_Analysis_ShapeChecks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want error
	}{
		{"queued", `{"data":{"attributes":{"status":"queued","stats":{"malicious":0,"suspicious":0,"harmless":0,"undetected":0}}}}`, provider.ErrAnalysisPending},
		{"missing stats", `{"data":{"attributes":{"status":"completed"}}}`, provider.ErrMalformedResponse},
		{"missing counter", `{"data":{"attributes":{"status":"completed","stats":{"malicious":0,"suspicious":0,"harmless":4}}}}`, provider.ErrMalformedResponse},
		{"negative counter", `{"data":{"attributes":{"stats":{"malicious":-1,"suspicious":0,"harmless":0,"undetected":0}}}}`, provider.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			_, err := newClient(t, ts.URL, time.Second).Analysis(context.Background(), model.AnalysisHandle{AnalysisID: "x"})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestClient_Analysis_EscapesID(t *testing.T) {
	t.Parallel()
	var rawPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		_, _ = io.WriteString(w, `{"data":{"attributes":{"stats":{"malicious":0,"suspicious":0,"harmless":0,"undetected":0}}}}`)
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL, time.Second).Analysis(context.Background(), model.AnalysisHandle{AnalysisID: "u-a/b"})
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	if rawPath != "/analyses/u-a%2Fb" {
		t.Errorf("unexpected path %q", rawPath)
	}
}

// hangingServer never answers before the client's deadline.
func hangingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		ts.Close()
	})
	return ts
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := hangingServer(t, &hits)

	_, err := newClient(t, ts.URL, 20*time.Millisecond).Submit(context.Background(), "https://a.example")
	if !webclient.IsTimeout(err) || !provider.SubmitRetryable(err) {
		t.Fatalf("expected retryable timeout, got %v", err)
	}
}

func TestStatusError_Message(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("wrapped: %w", &provider.StatusError{Code: 500, Body: "oops"})
	if !errors.Is(err, provider.ErrUnexpectedStatus) {
		t.Errorf("expected ErrUnexpectedStatus match: %v", err)
	}
	if err.Error() != "wrapped: provider: http 500: oops" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
