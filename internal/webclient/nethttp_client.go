package webclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/raysh454/repscan/internal/logging"
)

// ErrTimeout is matched by errors.Is when an exchange exceeded its time bound.
var ErrTimeout = errors.New("webclient: request timed out")

// maxBody caps how much of a response body is read.
const maxBody = 5 * 1024 * 1024

// net/http backed implementation of webclient.
type NetHTTPClient struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    logging.Logger
}

// NewNetHTTPClient builds the client. If httpClient is nil a client with
// cfg.Timeout (or DefaultTimeout) is constructed.
func NewNetHTTPClient(cfg Config, logger logging.Logger, httpClient *http.Client) (*NetHTTPClient, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	componentLogger := logger.With(logging.Field{Key: "backend", Value: "nethttp"})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	componentLogger.Debug("created nethttp webclient",
		logging.Field{Key: "timeout", Value: timeout.String()})

	return &NetHTTPClient{
		client:    httpClient,
		timeout:   timeout,
		userAgent: cfg.UserAgent,
		logger:    componentLogger,
	}, nil
}

// Do executes req under the configured per-call timeout. Timeouts are
// reported wrapped in ErrTimeout.
func (nhc *NetHTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithTimeout(ctx, nhc.timeout)
	defer cancel()

	nhc.logger.Debug("sending http request",
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "url", Value: req.URL})

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if nhc.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", nhc.userAgent)
	}

	resp, err := nhc.client.Do(httpReq)
	if err != nil {
		nhc.logger.Warn("http request failed",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: req.URL},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, classify("http do", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		nhc.logger.Warn("failed to read response body",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: req.URL},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, classify("read body", err)
	}

	return &Response{
		Request:    req,
		Body:       body,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now(),
	}, nil
}

func (nhc *NetHTTPClient) Close() error {
	nhc.client.CloseIdleConnections()
	return nil
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classify(op string, err error) error {
	if IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
