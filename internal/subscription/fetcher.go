package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	pkgerrors "shadowdeck/pkg/errors"
)

// maxBodySize caps a downloaded link list.
const maxBodySize = 4 << 20

// FetcherConfig configures how link lists are downloaded.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Attempts is the total number of tries for one URL.
	Attempts int
	// Backoff is multiplied by the attempt number between tries.
	Backoff time.Duration
	// SOCKSAddr, when set, routes downloads through a SOCKS5 listener such
	// as the one of a running backend.
	SOCKSAddr string
}

// DefaultFetcherConfig returns the settings used when none are given.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		UserAgent: "shadowdeck",
		Timeout:   30 * time.Second,
		Attempts:  3,
		Backoff:   2 * time.Second,
	}
}

// Fetcher downloads link lists over HTTP(S).
type Fetcher struct {
	client *http.Client
	cfg    FetcherConfig
}

// NewFetcher builds a Fetcher. A bad SOCKSAddr is reported on Fetch.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SOCKSAddr != "" {
		transport.Proxy = nil
		transport.DialContext = socksDialContext(cfg.SOCKSAddr)
	}
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		cfg:    cfg,
	}
}

func socksDialContext(addr string) func(ctx context.Context, network, address string) (net.Conn, error) {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		d, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
		if err != nil {
			return nil, err
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, address)
		}
		return d.Dial(network, address)
	}
}

// Fetch downloads url. Client errors (4xx) are returned at once, anything
// else is retried until the attempts run out.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var err error
	for attempt := 1; attempt <= f.cfg.Attempts; attempt++ {
		var body []byte
		if body, err = f.get(ctx, url); err == nil {
			return body, nil
		}

		var statusErr *HTTPError
		if ctx.Err() != nil || (errors.As(err, &statusErr) && statusErr.clientSide()) {
			break
		}
		if attempt == f.cfg.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.cfg.Backoff * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", pkgerrors.ErrFetchFailed, url, err)
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// HTTPError is a non-200 answer.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s answered %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *HTTPError) clientSide() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
