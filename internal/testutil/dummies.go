// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── Sink ──────────────────────────────────────────────────────────────

// RecordingSink keeps every written record in order.
// Set FailAfter > 0 to make the write after that many records fail.
type RecordingSink struct {
	mu        sync.Mutex
	Records   []model.ScanRecord
	FailAfter int
	Closed    bool
}

var ErrSinkFull = errors.New("dummy sink: write refused")

func (s *RecordingSink) Write(_ context.Context, rec model.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAfter > 0 && len(s.Records) >= s.FailAfter {
		return ErrSinkFull
	}
	s.Records = append(s.Records, rec)
	return nil
}

func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Snapshot returns a copy of the records written so far.
func (s *RecordingSink) Snapshot() []model.ScanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ScanRecord(nil), s.Records...)
}

// ─── Provider stages ───────────────────────────────────────────────────

// ScriptedSubmitter returns handles "id:<url>" unless Errs[url] is set.
type ScriptedSubmitter struct {
	mu    sync.Mutex
	Errs  map[string]error
	Calls []string
}

func (s *ScriptedSubmitter) Submit(_ context.Context, rawURL string) (model.AnalysisHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, rawURL)
	if err := s.Errs[rawURL]; err != nil {
		return model.AnalysisHandle{}, err
	}
	return model.AnalysisHandle{AnalysisID: "id:" + rawURL}, nil
}

// ScriptedPoller answers from Reports keyed by analysis ID; Errs wins.
type ScriptedPoller struct {
	mu      sync.Mutex
	Reports map[string]model.AnalysisReport
	Errs    map[string]error
	Calls   []string
}

func (p *ScriptedPoller) FetchReport(_ context.Context, h model.AnalysisHandle) (model.AnalysisReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, h.AnalysisID)
	if err := p.Errs[h.AnalysisID]; err != nil {
		return model.AnalysisReport{}, err
	}
	return p.Reports[h.AnalysisID], nil
}

// NoPause satisfies the orchestrator's pacing dependency without sleeping.
type NoPause struct {
	mu    sync.Mutex
	Count int
}

func (p *NoPause) Pause(ctx context.Context) error {
	p.mu.Lock()
	p.Count++
	p.mu.Unlock()
	return ctx.Err()
}
