package server

import "github.com/raysh454/repscan/internal/logging"

type Config struct {
	// ListenAddr is the HTTP listen address of the progress API.
	ListenAddr string

	// Logger defaults to a stdout JSON logger.
	Logger logging.Logger

	// SubscriberBuffer is the per-websocket event backlog; a subscriber
	// that falls further behind misses events.
	SubscriberBuffer int
}

// DefaultSubscriberBuffer is used when Config leaves it unset.
const DefaultSubscriberBuffer = 64
