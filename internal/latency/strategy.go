package latency

import (
	"context"
	"fmt"
	"net"
	"time"

	"shadowdeck/internal/storage/models"
)

// Strategy measures one profile.
type Strategy interface {
	// Name is the identifier stored with each result.
	Name() string
	// Test returns the measured round trip in milliseconds.
	Test(ctx context.Context, profile models.Profile) (latencyMS int, err error)
}

// TCPStrategy times a plain TCP connect to the profile's server. A success
// says nothing about the password or cipher.
type TCPStrategy struct {
	Dialer net.Dialer
}

func (s *TCPStrategy) Name() string { return "tcp" }

func (s *TCPStrategy) Test(ctx context.Context, p models.Profile) (int, error) {
	began := time.Now()
	conn, err := s.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(p.Server, p.ServerPort))
	if err != nil {
		return 0, fmt.Errorf("connect %s: %w", p.Server, err)
	}
	rtt := time.Since(began)
	conn.Close()
	return int(rtt.Milliseconds()), nil
}

// NewStrategy maps a strategy name to its implementation. probeURL is only
// read by the socks strategy.
func NewStrategy(name, probeURL string) (Strategy, error) {
	switch name {
	case "", "tcp":
		return &TCPStrategy{}, nil
	case "socks":
		return NewSOCKSStrategy(probeURL), nil
	}
	return nil, fmt.Errorf("unknown test strategy %q, want tcp or socks", name)
}
