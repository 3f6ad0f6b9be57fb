// Package source provides the ordered URL lists a scan run consumes: a
// static list, a text file, the homepage/news union of a SQLite or Postgres
// database, the anchors of a saved HTML document, or the links found by
// crawling a site.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/utils"
	"github.com/raysh454/repscan/internal/webclient"
)

var (
	ErrUnknownKind = errors.New("source: unknown kind")
	ErrMissingPath = errors.New("source: path is required")
	ErrMissingDSN  = errors.New("source: dsn is required")
)

const (
	KindStatic   = "static"
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindHTML     = "html"
	KindCrawl    = "crawl"
)

// Kinds lists every supported source kind.
var Kinds = []string{KindStatic, KindFile, KindSQLite, KindPostgres, KindHTML, KindCrawl}

// Source yields the URLs to scan. Close releases any connection the source
// holds and is safe to call more than once.
type Source interface {
	URLs(ctx context.Context) ([]string, error)
	Close() error
}

type Config struct {
	Kind string `yaml:"kind"`

	// Path is the file or database path; for the crawl kind it is the start
	// URL.
	Path string   `yaml:"path"`
	DSN  string   `yaml:"dsn"`
	URLs []string `yaml:"urls"`

	// Depth bounds the crawl kind in same-host hops from the start page.
	Depth int `yaml:"depth"`
}

// KnownKind reports whether kind names a supported source.
func KnownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Open acquires the source described by cfg. For database kinds the
// connection is established here so acquisition failures surface before
// any scanning starts.
func Open(ctx context.Context, cfg Config, logger logging.Logger) (Source, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With(logging.Field{Key: "component", Value: "source"}, logging.Field{Key: "kind", Value: cfg.Kind})

	switch cfg.Kind {
	case KindStatic, "":
		return NewStatic(cfg.URLs), nil
	case KindFile:
		if cfg.Path == "" {
			return nil, ErrMissingPath
		}
		return NewFile(cfg.Path), nil
	case KindHTML:
		if cfg.Path == "" {
			return nil, ErrMissingPath
		}
		return NewHTMLLinks(cfg.Path), nil
	case KindCrawl:
		if cfg.Path == "" {
			return nil, ErrMissingPath
		}
		wc, err := webclient.NewNetHTTPClient(webclient.Config{UserAgent: "repscan-crawler"}, logger, nil)
		if err != nil {
			return nil, err
		}
		return NewCrawl(cfg.Path, cfg.Depth, wc, logger), nil
	case KindSQLite:
		if cfg.Path == "" && cfg.DSN == "" {
			return nil, ErrMissingPath
		}
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path
		}
		return OpenSQLite(ctx, dsn, logger)
	case KindPostgres:
		if cfg.DSN == "" {
			return nil, ErrMissingDSN
		}
		return OpenPostgres(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// Load reads src and returns its URLs with exact duplicates removed, first
// occurrence first. Empty and invalid entries are kept; the scanner records
// them as Not Scanned.
func Load(ctx context.Context, src Source) ([]string, error) {
	urls, err := src.URLs(ctx)
	if err != nil {
		return nil, err
	}
	return utils.DedupeURLs(urls), nil
}

// Static serves a fixed list.
type Static struct {
	urls []string
}

func NewStatic(urls []string) *Static {
	return &Static{urls: append([]string(nil), urls...)}
}

func (s *Static) URLs(_ context.Context) ([]string, error) {
	return append([]string(nil), s.urls...), nil
}

func (s *Static) Close() error { return nil }
