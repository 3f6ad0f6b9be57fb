package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/raysh454/repscan/internal/model"
)

// Console prints a one-line verdict per record.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole writes to w, or stdout when w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

func (c *Console) Write(_ context.Context, rec model.ScanRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("%-11s %-10s %s", rec.Status, rec.Verdict, rec.URL)
	if r := rec.Report; r != nil {
		line += fmt.Sprintf("  (malicious=%d suspicious=%d harmless=%d undetected=%d)",
			r.Malicious, r.Suspicious, r.Harmless, r.Undetected)
	} else if rec.Error != "" {
		line += "  (" + rec.Error + ")"
	}
	_, err := fmt.Fprintln(c.w, line)
	return err
}

func (c *Console) Close() error { return nil }
