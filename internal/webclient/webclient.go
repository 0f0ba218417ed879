package webclient

import "context"

// WebClient executes outbound HTTP requests.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}
