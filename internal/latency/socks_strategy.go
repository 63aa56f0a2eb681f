package latency

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	"shadowdeck/internal/storage/models"
)

const defaultProbeURL = "https://www.gstatic.com/generate_204"

// SOCKSStrategy measures latency by making an HTTP request through the
// backend's local SOCKS5 listener. It exercises the whole chain and so only
// works for the profile the backend is currently running.
type SOCKSStrategy struct {
	URL string
}

// NewSOCKSStrategy creates a socks strategy fetching url.
func NewSOCKSStrategy(url string) *SOCKSStrategy {
	if url == "" {
		url = defaultProbeURL
	}
	return &SOCKSStrategy{URL: url}
}

func (s *SOCKSStrategy) Name() string { return "socks" }

func (s *SOCKSStrategy) Test(ctx context.Context, profile models.Profile) (int, error) {
	socksAddr := net.JoinHostPort(profile.LocalAddr, profile.LocalPort)

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return 0, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return 0, fmt.Errorf("SOCKS5 dialer does not support contexts")
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialContext:       contextDialer.DialContext,
			DisableKeepAlives: true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request through %s failed: %w", socksAddr, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode >= 500 {
		return 0, fmt.Errorf("probe returned %s", resp.Status)
	}
	return int(elapsed.Milliseconds()), nil
}
