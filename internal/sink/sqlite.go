package sink

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/raysh454/repscan/internal/model"
	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultSQLitePath is the database used when none is configured.
const DefaultSQLitePath = "scan_results.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scan_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	url         TEXT NOT NULL,
	status      TEXT NOT NULL,
	scan_date   TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	malicious   INTEGER,
	suspicious  INTEGER,
	harmless    INTEGER,
	undetected  INTEGER,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_scan_results_run ON scan_results(run_id);
`

const insertRecordSQL = `INSERT INTO scan_results
	(run_id, url, status, scan_date, verdict, malicious, suspicious, harmless, undetected, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite inserts one row per record into scan_results.
type SQLite struct {
	db   *sql.DB
	once sync.Once
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sink: set pragma %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Write(ctx context.Context, rec model.ScanRecord) error {
	var counts [4]sql.NullInt64
	if r := rec.Report; r != nil {
		for i, v := range []uint{r.Malicious, r.Suspicious, r.Harmless, r.Undetected} {
			counts[i] = sql.NullInt64{Int64: int64(v), Valid: true}
		}
	}
	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, insertRecordSQL,
		rec.RunID, rec.URL, string(rec.Status), rec.ScanDate.UTC().Format(time.RFC3339), string(rec.Verdict),
		counts[0], counts[1], counts[2], counts[3], errText)
	if err != nil {
		return fmt.Errorf("sink: insert record: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for queries over stored results.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}
