package mockprovider

import (
	"time"

	"github.com/raysh454/repscan/internal/model"
)

// Config holds configuration for the mock provider.
type Config struct {
	// Addr is the listen address used by ListenAndServe.
	Addr string

	// APIKey is the value required in the x-apikey header.
	APIKey string

	// PendingPolls is how many lookups of a new analysis answer "queued"
	// before the stats are released.
	PendingPolls int

	// Latency delays every response.
	Latency time.Duration

	// Scripts fixes the outcome for specific URLs. Unscripted URLs are
	// reported harmless.
	Scripts map[string]Script
}

// Script controls how the mock provider treats one URL.
type Script struct {
	Stats model.AnalysisReport

	// RejectSubmits answers that many submissions with 429 first.
	RejectSubmits int

	// FailLookups answers that many lookups with 502 first.
	FailLookups int

	// OmitStats drops the stats object from completed analyses.
	OmitStats bool

	// Hang blocks submissions until the client gives up.
	Hang bool
}

// DefaultAPIKey is accepted when no key is configured.
const DefaultAPIKey = "mock-key"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:   ":8089",
		APIKey: DefaultAPIKey,
	}
}

// DefaultStats is reported for URLs without a script.
var DefaultStats = model.AnalysisReport{Harmless: 68, Undetected: 24}
