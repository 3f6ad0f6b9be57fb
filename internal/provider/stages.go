package provider

import (
	"context"
	"time"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/retry"
)

// DefaultMaxAttempts is the attempt budget of each stage.
const DefaultMaxAttempts = 3

// Pacer is the rate limiter contract the stages need.
type Pacer interface {
	WaitTurn(ctx context.Context) error
	Interval() time.Duration
}

// Submitter sends a URL for analysis, retrying timeouts and quota
// rejections. Every attempt takes a turn from the Pacer first, and a failed
// attempt is followed by one extra pacing interval of backoff.
type Submitter struct {
	api    API
	policy retry.Policy
	logger logging.Logger
}

func NewSubmitter(api API, pacer Pacer, maxAttempts int, logger logging.Logger) *Submitter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With(logging.Field{Key: "component", Value: "submitter"})
	return &Submitter{
		api:    api,
		policy: stagePolicy(pacer, maxAttempts, SubmitRetryable, logger, "submit timed out, retrying"),
		logger: logger,
	}
}

// Submit returns the analysis handle for rawURL. A non-transient failure is
// returned at once; an exhausted budget returns an error matching
// retry.ErrExhausted.
func (s *Submitter) Submit(ctx context.Context, rawURL string) (model.AnalysisHandle, error) {
	if rawURL == "" {
		return model.AnalysisHandle{}, ErrEmptyURL
	}
	h, err := retry.Do(ctx, s.policy, func(ctx context.Context) (model.AnalysisHandle, error) {
		return s.api.Submit(ctx, rawURL)
	})
	if err != nil {
		s.logger.Error("error scanning url",
			logging.Field{Key: "url", Value: rawURL},
			logging.Field{Key: "error", Value: err.Error()})
		return model.AnalysisHandle{}, err
	}
	s.logger.Info("analysis submitted",
		logging.Field{Key: "url", Value: rawURL},
		logging.Field{Key: "analysis_id", Value: h.AnalysisID})
	return h, nil
}

// Poller fetches analysis reports. Unlike submission, every failure except a
// malformed report is retried within the budget, pending analyses included.
type Poller struct {
	api    API
	policy retry.Policy
	logger logging.Logger
}

func NewPoller(api API, pacer Pacer, maxAttempts int, logger logging.Logger) *Poller {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With(logging.Field{Key: "component", Value: "poller"})
	return &Poller{
		api:    api,
		policy: stagePolicy(pacer, maxAttempts, PollRetryable, logger, "report not available, retrying"),
		logger: logger,
	}
}

// FetchReport returns the counts of the analysis behind handle.
func (p *Poller) FetchReport(ctx context.Context, handle model.AnalysisHandle) (model.AnalysisReport, error) {
	r, err := retry.Do(ctx, p.policy, func(ctx context.Context) (model.AnalysisReport, error) {
		return p.api.Analysis(ctx, handle)
	})
	if err != nil {
		p.logger.Error("error retrieving scan report",
			logging.Field{Key: "analysis_id", Value: handle.AnalysisID},
			logging.Field{Key: "error", Value: err.Error()})
		return model.AnalysisReport{}, err
	}
	p.logger.Info("report retrieved",
		logging.Field{Key: "analysis_id", Value: handle.AnalysisID},
		logging.Field{Key: "malicious", Value: r.Malicious},
		logging.Field{Key: "suspicious", Value: r.Suspicious},
		logging.Field{Key: "harmless", Value: r.Harmless},
		logging.Field{Key: "undetected", Value: r.Undetected})
	return r, nil
}

func stagePolicy(pacer Pacer, maxAttempts int, retryable func(error) bool, logger logging.Logger, notice string) retry.Policy {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	p := retry.Policy{
		MaxAttempts: maxAttempts,
		Retryable:   retryable,
		OnRetry: func(attempt int, err error) {
			logger.Warn(notice,
				logging.Field{Key: "attempt", Value: attempt},
				logging.Field{Key: "error", Value: err.Error()})
		},
	}
	if pacer != nil {
		p.Backoff = pacer.Interval()
		p.BeforeAttempt = pacer.WaitTurn
	}
	return p
}
