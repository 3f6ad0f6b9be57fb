package server

import (
	"time"

	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/scanner"
)

// Snapshot is the state of the current (or last) run.
type Snapshot struct {
	RunID      string                `json:"run_id"`
	Total      int                   `json:"total"`
	Completed  int                   `json:"completed"`
	Scanned    int                   `json:"scanned"`
	NotScanned int                   `json:"not_scanned"`
	Verdicts   map[model.Verdict]int `json:"verdicts"`
	CurrentURL string                `json:"current_url,omitempty"`
	Stage      scanner.Stage         `json:"stage,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
