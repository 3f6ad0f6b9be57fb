package model

import "time"

// ScanRequest is one URL queued for analysis.
type ScanRequest struct {
	URL string `json:"url"`
}

// AnalysisHandle is the provider-assigned identifier that correlates a
// submission with its eventual report. It is opaque to everything but the
// provider client.
type AnalysisHandle struct {
	AnalysisID string `json:"analysis_id"`
}

// AnalysisReport holds the per-category engine counts of a completed analysis.
type AnalysisReport struct {
	Malicious  uint `json:"malicious"`
	Suspicious uint `json:"suspicious"`
	Harmless   uint `json:"harmless"`
	Undetected uint `json:"undetected"`
}

// Verdict is the three-tier classification of a URL plus Unknown for
// URLs without a usable report.
type Verdict string

const (
	VerdictMalicious  Verdict = "Malicious"
	VerdictSuspicious Verdict = "Suspicious"
	VerdictGood       Verdict = "Good"
	VerdictUnknown    Verdict = "Unknown"
)

// Status records whether a report was obtained for the URL.
type Status string

const (
	StatusScanned    Status = "Scanned"
	StatusNotScanned Status = "Not Scanned"
)

// ScanRecord is the terminal output unit: exactly one per input URL.
type ScanRecord struct {
	URL      string    `json:"url"`
	Status   Status    `json:"status"`
	ScanDate time.Time `json:"scan_date"`
	Verdict  Verdict   `json:"verdict"`

	// RunID identifies the batch run that produced the record.
	RunID string `json:"run_id,omitempty"`

	// Report is nil when no report was obtained.
	Report *AnalysisReport `json:"report,omitempty"`

	// Error is the reason a URL ended without a usable report.
	Error string `json:"error,omitempty"`
}

// Summary aggregates one batch run.
type Summary struct {
	RunID      string          `json:"run_id"`
	ScanDate   time.Time       `json:"scan_date"`
	Total      int             `json:"total"`
	Scanned    int             `json:"scanned"`
	NotScanned int             `json:"not_scanned"`
	Verdicts   map[Verdict]int `json:"verdicts"`
}

// Add folds a record into the summary.
func (s *Summary) Add(rec ScanRecord) {
	if s.Verdicts == nil {
		s.Verdicts = make(map[Verdict]int)
	}
	s.Total++
	if rec.Status == StatusScanned {
		s.Scanned++
	} else {
		s.NotScanned++
	}
	s.Verdicts[rec.Verdict]++
}
