package webclient

import "time"

// DefaultTimeout bounds every request unless Config overrides it.
const DefaultTimeout = 10 * time.Second

type Config struct {
	// Timeout bounds a whole exchange, body read included.
	Timeout time.Duration

	// UserAgent is sent when the request does not set one.
	UserAgent string
}
