package source

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/raysh454/repscan/internal/logging"
	_ "modernc.org/sqlite" // SQLite driver
)

// UnionQuery selects every non-empty company homepage and news URL once.
const UnionQuery = `SELECT homepage FROM New_Company WHERE homepage IS NOT NULL AND homepage <> ''
UNION
SELECT news_url FROM News WHERE news_url IS NOT NULL AND news_url <> ''
ORDER BY 1`

// SQLite reads the union of New_Company.homepage and News.news_url.
type SQLite struct {
	db     *sql.DB
	logger logging.Logger
	once   sync.Once
}

// OpenSQLite opens dsn with the modernc driver and checks the connection.
func OpenSQLite(ctx context.Context, dsn string, logger logging.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("source: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("source: ping sqlite: %w", err)
	}
	return NewSQLite(db, logger), nil
}

// NewSQLite wraps an already open database; Close closes it.
func NewSQLite(db *sql.DB, logger logging.Logger) *SQLite {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SQLite{db: db, logger: logger}
}

func (s *SQLite) URLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, UnionQuery)
	if err != nil {
		return nil, fmt.Errorf("source: query urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("source: scan url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: iterate urls: %w", err)
	}
	s.logger.Info("loaded urls from database", logging.Field{Key: "count", Value: len(urls)})
	return urls, nil
}

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}

// Postgres reads the same union through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	once   sync.Once
}

// OpenPostgres connects to dsn and pings it.
func OpenPostgres(ctx context.Context, dsn string, logger logging.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("source: invalid database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("source: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("source: ping postgres: %w", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) URLs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, UnionQuery)
	if err != nil {
		return nil, fmt.Errorf("source: query urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("source: scan url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: iterate urls: %w", err)
	}
	p.logger.Info("loaded urls from database", logging.Field{Key: "count", Value: len(urls)})
	return urls, nil
}

func (p *Postgres) Close() error {
	p.once.Do(p.pool.Close)
	return nil
}
