package scanner

import "github.com/raysh454/repscan/internal/model"

// Stage is the per-URL state of the scan cycle.
type Stage string

const (
	StagePending   Stage = "pending"
	StageSubmitted Stage = "submitted"
	StagePolling   Stage = "polling"
	StageDone      Stage = "done"
)

// Event reports progress of a run. Record is set only on StageDone, after
// the record has been written to the sink.
type Event struct {
	RunID  string            `json:"run_id"`
	Index  int               `json:"index"`
	Total  int               `json:"total"`
	URL    string            `json:"url"`
	Stage  Stage             `json:"stage"`
	Record *model.ScanRecord `json:"record,omitempty"`
}

// Observer receives events synchronously on the scanning goroutine; it
// should not block.
type Observer func(Event)

type position struct {
	runID string
	index int
	total int
	url   string
}

func (p position) event(stage Stage, rec *model.ScanRecord) Event {
	return Event{RunID: p.runID, Index: p.index, Total: p.total, URL: p.url, Stage: stage, Record: rec}
}
