// Package scanner sequences the submit, wait, poll and classify steps for
// each URL of a batch and forwards exactly one record per URL to the sink.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/utils"
	"github.com/raysh454/repscan/internal/verdict"
)

type Submitter interface {
	Submit(ctx context.Context, rawURL string) (model.AnalysisHandle, error)
}

type Poller interface {
	FetchReport(ctx context.Context, handle model.AnalysisHandle) (model.AnalysisReport, error)
}

// Pauser provides the wait between a submission and its first poll.
type Pauser interface {
	Pause(ctx context.Context) error
}

type Sink interface {
	Write(ctx context.Context, rec model.ScanRecord) error
}

type Config struct {
	// CountUnresolvedAsScanned records a URL whose submission succeeded but
	// whose report never became available as Scanned instead of Not Scanned.
	// The verdict is Unknown either way.
	CountUnresolvedAsScanned bool
}

// Orchestrator processes URLs strictly one at a time; the pacing of the
// provider stages assumes a single in-flight stream.
type Orchestrator struct {
	cfg       Config
	submitter Submitter
	poller    Poller
	pauser    Pauser
	sink      Sink
	logger    logging.Logger
	observer  Observer

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(cfg Config, submitter Submitter, poller Poller, pauser Pauser, sink Sink, logger logging.Logger) (*Orchestrator, error) {
	if submitter == nil || poller == nil || sink == nil {
		return nil, fmt.Errorf("scanner: submitter, poller and sink are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Orchestrator{
		cfg:       cfg,
		submitter: submitter,
		poller:    poller,
		pauser:    pauser,
		sink:      sink,
		logger:    logger.With(logging.Field{Key: "component", Value: "scanner"}),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}, nil
}

// SetObserver registers a callback receiving progress events. It must be
// called before Run.
func (o *Orchestrator) SetObserver(obs Observer) {
	o.observer = obs
}

// Run scans urls in order. Per-URL failures become records; Run only stops
// early when ctx is cancelled between URLs or the sink rejects a record.
// The returned summary covers every record written.
func (o *Orchestrator) Run(ctx context.Context, urls []string) (model.Summary, error) {
	summary := model.Summary{
		RunID:    o.newID(),
		ScanDate: o.now(),
		Verdicts: make(map[model.Verdict]int),
	}
	log := o.logger.With(logging.Field{Key: "run_id", Value: summary.RunID})
	log.Info("scan run started", logging.Field{Key: "urls", Value: len(urls)})

	for i, raw := range urls {
		if err := ctx.Err(); err != nil {
			log.Warn("scan run cancelled",
				logging.Field{Key: "processed", Value: summary.Total},
				logging.Field{Key: "remaining", Value: len(urls) - i})
			return summary, err
		}

		pos := position{runID: summary.RunID, index: i, total: len(urls), url: raw}
		// A started cycle runs to completion so its record is still written.
		rec := o.scan(context.WithoutCancel(ctx), pos, summary.ScanDate)

		if err := o.sink.Write(context.WithoutCancel(ctx), rec); err != nil {
			log.Error("failed to write scan record",
				logging.Field{Key: "url", Value: raw},
				logging.Field{Key: "error", Value: err.Error()})
			return summary, fmt.Errorf("scanner: write record for %s: %w", raw, err)
		}
		summary.Add(rec)
		o.emit(pos.event(StageDone, &rec))
	}

	log.Info("scan run finished",
		logging.Field{Key: "total", Value: summary.Total},
		logging.Field{Key: "scanned", Value: summary.Scanned},
		logging.Field{Key: "not_scanned", Value: summary.NotScanned})
	return summary, nil
}

func (o *Orchestrator) scan(ctx context.Context, pos position, scanDate time.Time) model.ScanRecord {
	rec := model.ScanRecord{
		URL:      pos.url,
		Status:   model.StatusNotScanned,
		ScanDate: scanDate,
		Verdict:  model.VerdictUnknown,
		RunID:    pos.runID,
	}
	log := o.logger.With(logging.Field{Key: "url", Value: pos.url})

	// Pending
	o.emit(pos.event(StagePending, nil))
	if err := utils.ValidateScanURL(pos.url); err != nil {
		log.Warn("skipping invalid url", logging.Field{Key: "error", Value: err.Error()})
		rec.Error = err.Error()
		return rec
	}
	log.Info("scanning url",
		logging.Field{Key: "index", Value: pos.index + 1},
		logging.Field{Key: "total", Value: pos.total})

	handle, err := o.submitter.Submit(ctx, pos.url)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	// Submitted: give the provider time to process before the first poll.
	o.emit(pos.event(StageSubmitted, nil))
	if o.pauser != nil {
		if err := o.pauser.Pause(ctx); err != nil {
			rec.Error = err.Error()
			return rec
		}
	}

	// Polling
	o.emit(pos.event(StagePolling, nil))
	report, err := o.poller.FetchReport(ctx, handle)
	if err != nil {
		rec.Error = err.Error()
		rec.Verdict = verdict.ClassifyResult(nil, err)
		if o.cfg.CountUnresolvedAsScanned {
			rec.Status = model.StatusScanned
		}
		log.Warn("no usable report",
			logging.Field{Key: "status", Value: string(rec.Status)},
			logging.Field{Key: "error", Value: err.Error()})
		return rec
	}

	rec.Status = model.StatusScanned
	rec.Report = &report
	rec.Verdict = verdict.ClassifyResult(&report, nil)
	log.Info("url classified",
		logging.Field{Key: "verdict", Value: string(rec.Verdict)},
		logging.Field{Key: "malicious", Value: report.Malicious},
		logging.Field{Key: "suspicious", Value: report.Suspicious},
		logging.Field{Key: "harmless", Value: report.Harmless},
		logging.Field{Key: "undetected", Value: report.Undetected})
	return rec
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer != nil {
		o.observer(ev)
	}
}
