package server

import (
	"sync"
	"time"

	"github.com/raysh454/repscan/internal/model"
	"github.com/raysh454/repscan/internal/scanner"
)

// Hub folds scanner events into a snapshot and fans them out to
// subscribers. Publishing never blocks the scanning goroutine: a full
// subscriber buffer drops the event for that subscriber.
type Hub struct {
	mu      sync.Mutex
	snap    Snapshot
	records []model.ScanRecord
	subs    map[chan scanner.Event]struct{}
	buffer  int
	now     func() time.Time
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		snap:   Snapshot{Verdicts: make(map[model.Verdict]int)},
		subs:   make(map[chan scanner.Event]struct{}),
		buffer: buffer,
		now:    time.Now,
	}
}

// Observe is a scanner.Observer.
func (h *Hub) Observe(ev scanner.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.RunID != h.snap.RunID {
		h.snap = Snapshot{RunID: ev.RunID, Verdicts: make(map[model.Verdict]int)}
		h.records = nil
	}
	h.snap.Total = ev.Total
	h.snap.CurrentURL = ev.URL
	h.snap.Stage = ev.Stage
	h.snap.UpdatedAt = h.now()
	if ev.Stage == scanner.StageDone && ev.Record != nil {
		rec := *ev.Record
		h.records = append(h.records, rec)
		h.snap.Completed++
		if rec.Status == model.StatusScanned {
			h.snap.Scanned++
		} else {
			h.snap.NotScanned++
		}
		h.snap.Verdicts[rec.Verdict]++
	}

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Snapshot returns a copy of the current state.
func (h *Hub) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.snap
	s.Verdicts = make(map[model.Verdict]int, len(h.snap.Verdicts))
	for k, v := range h.snap.Verdicts {
		s.Verdicts[k] = v
	}
	return s
}

// Records returns the records finished in the current run.
func (h *Hub) Records() []model.ScanRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.ScanRecord(nil), h.records...)
}

// Subscribe registers a new event channel. The returned func unregisters
// and closes it.
func (h *Hub) Subscribe() (<-chan scanner.Event, func()) {
	ch := make(chan scanner.Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Close unregisters every subscriber, ending their streams.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
