package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/raysh454/repscan/internal/model"
)

// DefaultXLSXPath is the workbook used when none is configured.
const DefaultXLSXPath = "scan_results.xlsx"

// XLSXSheet is the worksheet records are appended to.
const XLSXSheet = "Scans"

var xlsxHeader = []any{"URL", "Status", "Scan Date", "Results", "Malicious", "Suspicious", "Harmless", "Undetected", "Run ID"}

// XLSX appends one row per record to an existing or new workbook and saves
// after every row.
type XLSX struct {
	mu     sync.Mutex
	path   string
	file   *excelize.File
	row    int
	closed bool
}

func OpenXLSX(path string) (*XLSX, error) {
	if path == "" {
		path = DefaultXLSXPath
	}

	var (
		f   *excelize.File
		err error
	)
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		f, err = newWorkbook()
	} else {
		f, err = excelize.OpenFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("sink: open xlsx: %w", err)
	}

	if idx, _ := f.GetSheetIndex(XLSXSheet); idx < 0 {
		if _, err := f.NewSheet(XLSXSheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("sink: add sheet: %w", err)
		}
	}
	rows, err := f.GetRows(XLSXSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: read sheet: %w", err)
	}

	x := &XLSX{path: path, file: f, row: len(rows)}
	if x.row == 0 {
		if err := x.appendRow(xlsxHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return x, nil
}

func newWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), XLSXSheet); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (x *XLSX) Write(_ context.Context, rec model.ScanRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrClosed
	}

	row := []any{rec.URL, string(rec.Status), rec.ScanDate.Format(time.RFC3339), string(rec.Verdict)}
	if r := rec.Report; r != nil {
		row = append(row, r.Malicious, r.Suspicious, r.Harmless, r.Undetected)
	} else {
		row = append(row, "", "", "", "")
	}
	row = append(row, rec.RunID)
	return x.appendRow(row)
}

func (x *XLSX) appendRow(values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row+1)
	if err != nil {
		return fmt.Errorf("sink: cell name: %w", err)
	}
	if err := x.file.SetSheetRow(XLSXSheet, cell, &values); err != nil {
		return fmt.Errorf("sink: set row: %w", err)
	}
	if err := x.file.SaveAs(x.path); err != nil {
		return fmt.Errorf("sink: save xlsx: %w", err)
	}
	x.row++
	return nil
}

func (x *XLSX) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.file.Close()
}
