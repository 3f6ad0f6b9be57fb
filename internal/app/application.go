package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/provider"
	"github.com/raysh454/repscan/internal/ratelimit"
	"github.com/raysh454/repscan/internal/scanner"
	"github.com/raysh454/repscan/internal/server"
	"github.com/raysh454/repscan/internal/sink"
	"github.com/raysh454/repscan/internal/source"
	"github.com/raysh454/repscan/internal/webclient"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

// Application owns one scan run: it acquires the URL source and the sinks,
// wires the provider stages to the orchestrator, runs the batch and
// releases everything it acquired.
type Application struct {
	Config *Config
	Logger logging.Logger

	// Stdout receives console sink output.
	Stdout io.Writer

	// ProgressAddr is filled with the bound progress API address once it is
	// listening.
	ProgressAddr string

	// OnProgressReady, when set, is called with the bound address before
	// scanning starts.
	OnProgressReady func(addr string)
}

// NewApplication constructs an Application from the provided parts.
func NewApplication(cfg *Config, logger logging.Logger, stdout io.Writer) *Application {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Application{
		Config: cfg,
		Logger: logger,
		Stdout: stdout,
	}
}

// Run executes the batch. Source and sink acquisition failures are fatal
// and are returned after releasing whatever was already acquired; per-URL
// failures only show up in the records and the summary.
func (a *Application) Run(ctx context.Context) (summary model.Summary, err error) {
	if a == nil || a.Config == nil {
		return model.Summary{}, errors.New("app: application is not configured")
	}
	cfg := a.Config
	if err := cfg.Validate(); err != nil {
		return model.Summary{}, err
	}

	src, err := source.Open(ctx, cfg.Source, a.Logger)
	if err != nil {
		return model.Summary{}, fmt.Errorf("acquire url source: %w", err)
	}
	defer a.release("source", src.Close)

	urls, err := source.Load(ctx, src)
	if err != nil {
		return model.Summary{}, fmt.Errorf("load urls: %w", err)
	}

	sinks, err := sink.Open(ctx, cfg.Sink, a.Stdout, a.Logger)
	if err != nil {
		return model.Summary{}, fmt.Errorf("acquire sinks: %w", err)
	}
	defer func() {
		if cerr := sinks.Close(); cerr != nil {
			a.Logger.Error("closing sinks", logging.Field{Key: "error", Value: cerr.Error()})
			if err == nil {
				err = fmt.Errorf("close sinks: %w", cerr)
			}
		}
	}()

	orch, err := a.buildOrchestrator(sinks)
	if err != nil {
		return model.Summary{}, err
	}

	if cfg.ProgressAddr != "" {
		stop, err := a.startProgress(ctx, orch)
		if err != nil {
			return model.Summary{}, fmt.Errorf("start progress api: %w", err)
		}
		defer stop()
	}

	a.Logger.Info("starting scan",
		logging.Field{Key: "urls", Value: len(urls)},
		logging.Field{Key: "source", Value: cfg.Source.Kind},
		logging.Field{Key: "sinks", Value: cfg.Sink.Kinds},
		logging.Field{Key: "quota", Value: cfg.Quota})

	summary, err = orch.Run(ctx, urls)
	a.Logger.Info("scan summary",
		logging.Field{Key: "run_id", Value: summary.RunID},
		logging.Field{Key: "total", Value: summary.Total},
		logging.Field{Key: "scanned", Value: summary.Scanned},
		logging.Field{Key: "not_scanned", Value: summary.NotScanned},
		logging.Field{Key: "malicious", Value: summary.Verdicts[model.VerdictMalicious]},
		logging.Field{Key: "suspicious", Value: summary.Verdicts[model.VerdictSuspicious]},
		logging.Field{Key: "good", Value: summary.Verdicts[model.VerdictGood]},
		logging.Field{Key: "unknown", Value: summary.Verdicts[model.VerdictUnknown]})
	return summary, err
}

func (a *Application) buildOrchestrator(s scanner.Sink) (*scanner.Orchestrator, error) {
	cfg := a.Config

	limiter, err := ratelimit.New(cfg.Quota)
	if err != nil {
		return nil, err
	}
	wc, err := webclient.NewNetHTTPClient(webclient.Config{
		Timeout:   cfg.Provider.Timeout,
		UserAgent: cfg.Provider.UserAgent,
	}, a.Logger, nil)
	if err != nil {
		return nil, fmt.Errorf("create webclient: %w", err)
	}
	client, err := provider.NewClient(provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	}, wc, a.Logger)
	if err != nil {
		return nil, err
	}

	return scanner.NewOrchestrator(
		scanner.Config{CountUnresolvedAsScanned: cfg.CountUnresolvedAsScanned},
		provider.NewSubmitter(client, limiter, cfg.MaxAttempts, a.Logger),
		provider.NewPoller(client, limiter, cfg.MaxAttempts, a.Logger),
		limiter,
		s,
		a.Logger,
	)
}

func (a *Application) startProgress(ctx context.Context, orch *scanner.Orchestrator) (func(), error) {
	hub := server.NewHub(server.DefaultSubscriberBuffer)
	srv := server.NewServer(server.Config{ListenAddr: a.Config.ProgressAddr, Logger: a.Logger}, hub)
	addr, stop, err := srv.Start(ctx)
	if err != nil {
		return nil, err
	}
	orch.SetObserver(hub.Observe)
	a.ProgressAddr = addr
	if a.OnProgressReady != nil {
		a.OnProgressReady(addr)
	}
	return stop, nil
}

func (a *Application) release(what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		a.Logger.Warn("releasing "+what, logging.Field{Key: "error", Value: err.Error()})
	}
}
