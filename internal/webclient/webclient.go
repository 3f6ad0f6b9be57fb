package webclient

import "context"

// WebClient executes a single HTTP exchange.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}
