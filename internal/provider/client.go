// Package provider talks to the URL reputation service: it submits URLs for
// analysis and looks up analysis results, with the retry and pacing rules of
// each stage.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/webclient"
)

// DefaultBaseURL is the VirusTotal v3 API root.
const DefaultBaseURL = "https://www.virustotal.com/api/v3"

// APIKeyHeader carries the API key on every call.
const APIKeyHeader = "x-apikey"

type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each individual call.
	Timeout time.Duration
}

// API is the single-shot surface of the provider: one call, one outcome.
type API interface {
	Submit(ctx context.Context, rawURL string) (model.AnalysisHandle, error)
	Analysis(ctx context.Context, handle model.AnalysisHandle) (model.AnalysisReport, error)
}

// Client implements API over a WebClient.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	wc      webclient.WebClient
	logger  logging.Logger
}

var _ API = (*Client)(nil)

func NewClient(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Client, error) {
	if wc == nil {
		return nil, fmt.Errorf("provider: nil webclient")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("provider: invalid base url %q: %w", base, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = webclient.DefaultTimeout
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		wc:      wc,
		logger:  logger.With(logging.Field{Key: "component", Value: "provider"}),
	}, nil
}

// Submit posts rawURL to the submission endpoint and returns the analysis
// identifier.
func (c *Client) Submit(ctx context.Context, rawURL string) (model.AnalysisHandle, error) {
	if strings.TrimSpace(rawURL) == "" {
		return model.AnalysisHandle{}, ErrEmptyURL
	}

	hdrs := c.headers()
	hdrs.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.do(ctx, &webclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/urls",
		Headers: hdrs,
		Body:    []byte(url.Values{"url": {rawURL}}.Encode()),
	})
	if err != nil {
		return model.AnalysisHandle{}, fmt.Errorf("submit %s: %w", rawURL, err)
	}

	var body submitResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return model.AnalysisHandle{}, fmt.Errorf("submit %s: %w: %v", rawURL, ErrMalformedResponse, err)
	}
	if body.Data.ID == "" {
		return model.AnalysisHandle{}, fmt.Errorf("submit %s: %w: missing data.id", rawURL, ErrMalformedResponse)
	}
	return model.AnalysisHandle{AnalysisID: body.Data.ID}, nil
}

// Analysis fetches the analysis for handle. A not-yet-completed analysis is
// ErrAnalysisPending; missing counters are ErrMalformedResponse.
func (c *Client) Analysis(ctx context.Context, handle model.AnalysisHandle) (model.AnalysisReport, error) {
	if handle.AnalysisID == "" {
		return model.AnalysisReport{}, ErrEmptyAnalysisID
	}

	resp, err := c.do(ctx, &webclient.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/analyses/" + url.PathEscape(handle.AnalysisID),
		Headers: c.headers(),
	})
	if err != nil {
		return model.AnalysisReport{}, fmt.Errorf("analysis %s: %w", handle.AnalysisID, err)
	}
	return parseAnalysis(handle.AnalysisID, resp.Body)
}

func parseAnalysis(id string, raw []byte) (model.AnalysisReport, error) {
	var body analysisResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return model.AnalysisReport{}, fmt.Errorf("analysis %s: %w: %v", id, ErrMalformedResponse, err)
	}

	attrs := body.Data.Attributes
	if attrs.Status != "" && attrs.Status != StatusCompleted {
		return model.AnalysisReport{}, fmt.Errorf("analysis %s: %w (status %q)", id, ErrAnalysisPending, attrs.Status)
	}

	s := attrs.Stats
	if s == nil {
		return model.AnalysisReport{}, fmt.Errorf("analysis %s: %w: missing stats", id, ErrMalformedResponse)
	}
	var missing []string
	for _, f := range []struct {
		name string
		v    *uint
	}{
		{"malicious", s.Malicious},
		{"suspicious", s.Suspicious},
		{"harmless", s.Harmless},
		{"undetected", s.Undetected},
	} {
		if f.v == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return model.AnalysisReport{}, fmt.Errorf("analysis %s: %w: missing stats.%s", id, ErrMalformedResponse, strings.Join(missing, ","))
	}

	return model.AnalysisReport{
		Malicious:  *s.Malicious,
		Suspicious: *s.Suspicious,
		Harmless:   *s.Harmless,
		Undetected: *s.Undetected,
	}, nil
}

func (c *Client) do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.wc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(resp.Body), 256)}
	}
	return resp, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set(APIKeyHeader, c.apiKey)
	h.Set("Accept", "application/json")
	return h
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
