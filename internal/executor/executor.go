// Package executor provides script executor implementations. An executor
// attaches the network resource a descriptor points at and reports the
// outcome exactly once through a single-shot callback; the loader owns the
// timeout alarm.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/atlanticdynamic/scriptgate/internal/plugins"
)

// Resource is the handle an HTTP executor attaches to a descriptor's Tag.
// The executor owns the fetched payload for the descriptor's lifetime.
type Resource struct {
	URL         string
	ContentType string
	Size        int64
	FetchedAt   time.Time
}

// HTTP fetches the descriptor's URL over the network. Success is any 2xx
// response; everything else reports as a load failure.
type HTTP struct {
	client *http.Client
	logger *slog.Logger
}

var _ plugins.Executor = (*HTTP)(nil)

// Option configures an HTTP executor.
type Option func(*HTTP)

// WithClient replaces the default HTTP client.
func WithClient(client *http.Client) Option {
	return func(h *HTTP) { h.client = client }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *HTTP) { h.logger = logger }
}

// NewHTTP creates an HTTP executor. The client carries no timeout of its
// own; the loader's alarm bounds the fetch via the request context.
func NewHTTP(opts ...Option) *HTTP {
	h := &HTTP{
		client: &http.Client{},
		logger: slog.Default().WithGroup("executor"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute fetches the script asynchronously and calls done exactly once.
func (h *HTTP) Execute(ctx context.Context, d *plugins.Descriptor, done func(error)) {
	once := single(done)
	go func() {
		once(h.fetch(ctx, d))
	}()
}

func (h *HTTP) fetch(ctx context.Context, d *plugins.Descriptor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return fmt.Errorf("invalid script url %q: %w", d.URL, err)
	}
	for _, attr := range d.Attributes {
		req.Header.Add(attr.Key, attr.Value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch script: %w", err)
	}
	defer resp.Body.Close()

	size, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read script body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("script fetch returned status %d", resp.StatusCode)
	}

	d.Tag = &Resource{
		URL:         d.URL,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        size,
		FetchedAt:   time.Now(),
	}
	h.logger.Debug("script fetched", "plugin", d.Name, "url", d.URL, "bytes", size)
	return nil
}

// single wraps a completion callback so only the first invocation lands.
func single(done func(error)) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() { done(err) })
	}
}
