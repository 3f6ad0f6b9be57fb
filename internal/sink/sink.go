// Package sink persists scan records. Every sink is append-only: records
// already written survive later failures and repeated runs accumulate.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/model"
)

var (
	ErrUnknownKind = errors.New("sink: unknown kind")
	ErrNoSinks     = errors.New("sink: no sinks configured")
	ErrClosed      = errors.New("sink: closed")
)

const (
	KindConsole = "console"
	KindCSV     = "csv"
	KindSQLite  = "sqlite"
	KindXLSX    = "xlsx"
)

// Kinds lists every supported sink kind.
var Kinds = []string{KindConsole, KindCSV, KindSQLite, KindXLSX}

// Sink accepts one record per scanned URL.
type Sink interface {
	Write(ctx context.Context, rec model.ScanRecord) error
	Close() error
}

type Config struct {
	Kinds      []string `yaml:"kinds"`
	CSVPath    string   `yaml:"csv_path"`
	SQLitePath string   `yaml:"sqlite_path"`
	XLSXPath   string   `yaml:"xlsx_path"`
}

// KnownKind reports whether kind names a supported sink.
func KnownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Open acquires every sink named in cfg.Kinds. If any of them fails the
// ones already opened are closed before the error is returned.
func Open(ctx context.Context, cfg Config, console io.Writer, logger logging.Logger) (*Multi, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if len(cfg.Kinds) == 0 {
		return nil, ErrNoSinks
	}

	var opened []Sink
	release := func() {
		for _, s := range opened {
			_ = s.Close()
		}
	}

	for _, kind := range cfg.Kinds {
		var (
			s   Sink
			err error
		)
		switch kind {
		case KindConsole:
			s = NewConsole(console)
		case KindCSV:
			s, err = OpenCSV(cfg.CSVPath)
		case KindSQLite:
			s, err = OpenSQLite(ctx, cfg.SQLitePath)
		case KindXLSX:
			s, err = OpenXLSX(cfg.XLSXPath)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
		if err != nil {
			release()
			return nil, err
		}
		logger.Debug("sink opened", logging.Field{Key: "kind", Value: kind})
		opened = append(opened, s)
	}
	return NewMulti(opened...), nil
}

// Multi fans a record out to several sinks in order.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Write stops at the first failing sink.
func (m *Multi) Write(ctx context.Context, rec model.ScanRecord) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
