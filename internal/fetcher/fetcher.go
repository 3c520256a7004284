// Package fetcher downloads remote resources and decodes tabular payloads
// (delimited text, XLS, XLSX) and ZIP archives.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher retrieves a remote resource in one request.
type Fetcher interface {
	// Fetch downloads the URL and returns the full response body.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TransportError reports a response with a non-2xx status.
type TransportError struct {
	StatusCode int
	URL        string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch: unexpected status %d from %s", e.StatusCode, e.URL)
}

// ParseError reports that a decoder rejected its input. It is the only
// failure the loader treats as a reason to retry from extracted files.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
