package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/raysh454/repscan/internal/model"
)

// DefaultCSVPath is the results file used when none is configured.
const DefaultCSVPath = "scan_results.csv"

var csvHeader = []string{"URL", "Status", "Scan Date", "Results"}

// CSV appends one row per record. The header is written only when the file
// is new or empty.
type CSV struct {
	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	closed bool
}

func OpenCSV(path string) (*CSV, error) {
	if path == "" {
		path = DefaultCSVPath
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open csv: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: stat csv: %w", err)
	}

	c := &CSV{file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := c.writeRow(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *CSV) Write(_ context.Context, rec model.ScanRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.writeRow([]string{
		rec.URL,
		string(rec.Status),
		rec.ScanDate.Format(time.RFC3339),
		string(rec.Verdict),
	})
}

func (c *CSV) writeRow(row []string) error {
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("sink: write csv row: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("sink: flush csv: %w", err)
	}
	return nil
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}
