package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/raysh454/repscan/internal/webclient"
)

var (
	ErrEmptyURL          = errors.New("provider: empty url")
	ErrEmptyAnalysisID   = errors.New("provider: empty analysis id")
	ErrMalformedResponse = errors.New("provider: malformed response")
	ErrAnalysisPending   = errors.New("provider: analysis not completed yet")
	ErrUnexpectedStatus  = errors.New("provider: unexpected http status")
)

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider: http %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// IsQuotaExceeded reports whether the provider rejected the call for quota.
func IsQuotaExceeded(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// SubmitRetryable is the retry predicate of the submit stage: only timeouts
// and quota rejections are transient, everything else ends the URL.
func SubmitRetryable(err error) bool {
	return webclient.IsTimeout(err) || IsQuotaExceeded(err)
}

// PollRetryable is the retry predicate of the lookup stage. Transport and
// status failures are retried along with pending analyses; a response that
// does not carry the expected counters is final.
func PollRetryable(err error) bool {
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrEmptyAnalysisID) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
