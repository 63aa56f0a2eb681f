package latency

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowdeck/internal/storage/models"
)

type memRecorder struct {
	mu      sync.Mutex
	results []*models.LatencyTest
}

func (m *memRecorder) RecordLatency(_ context.Context, l *models.LatencyTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, l)
	return nil
}

func listen(t *testing.T) (net.Listener, string, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	return ln, host, port
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	return port
}

func profile(name, host, port string) models.Profile {
	p := models.NewProfile(name)
	p.Server = host
	p.ServerPort = port
	return p
}

func TestTCPStrategy(t *testing.T) {
	_, host, port := listen(t)

	ms, err := (&TCPStrategy{}).Test(context.Background(), profile("up", host, port))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, 0)

	_, err = (&TCPStrategy{}).Test(context.Background(), profile("down", "127.0.0.1", closedPort(t)))
	assert.Error(t, err)
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("", "")
	require.NoError(t, err)
	assert.Equal(t, "tcp", s.Name())

	s, err = NewStrategy("socks", "")
	require.NoError(t, err)
	assert.Equal(t, defaultProbeURL, s.(*SOCKSStrategy).URL)

	_, err = NewStrategy("icmp", "")
	assert.Error(t, err)
}

func TestTestBatchSortsAndRecords(t *testing.T) {
	_, host, port := listen(t)
	rec := &memRecorder{}
	tester := NewTester(rec, TesterConfig{Workers: 2, Timeout: 2 * time.Second})

	profiles := []models.Profile{
		profile("down", "127.0.0.1", closedPort(t)),
		profile("up", host, port),
	}

	var calls int32
	batch := tester.TestBatch(context.Background(), profiles, func(_ *TestResult, current, total int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 2, total)
	})

	assert.Equal(t, 2, batch.Tested)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.Len(t, batch.Results, 2)
	assert.Equal(t, "up", batch.Results[0].Profile.Name)
	assert.False(t, batch.Results[1].Latency.Success)
	assert.NotEmpty(t, batch.Results[1].Latency.ErrorMessage)

	assert.Len(t, rec.results, 2)
	for _, r := range rec.results {
		assert.Equal(t, "tcp", r.TestStrategy)
	}
}

// serveSOCKS5 runs a minimal no-auth SOCKS5 CONNECT proxy.
func serveSOCKS5(t *testing.T) (host, port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleSOCKS5(conn)
		}
	}()

	host, port, _ = net.SplitHostPort(ln.Addr().String())
	return host, port
}

func handleSOCKS5(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 262)
	// greeting: VER NMETHODS METHODS...
	if _, err := io.ReadFull(conn, buf[:2]); err != nil {
		return
	}
	if _, err := io.ReadFull(conn, buf[:buf[1]]); err != nil {
		return
	}
	conn.Write([]byte{5, 0})

	// request: VER CMD RSV ATYP
	if _, err := io.ReadFull(conn, buf[:4]); err != nil {
		return
	}
	var host string
	switch buf[3] {
	case 1:
		io.ReadFull(conn, buf[:4])
		host = net.IP(buf[:4]).String()
	case 3:
		io.ReadFull(conn, buf[:1])
		n := int(buf[0])
		io.ReadFull(conn, buf[:n])
		host = string(buf[:n])
	default:
		return
	}
	io.ReadFull(conn, buf[:2])
	port := binary.BigEndian.Uint16(buf[:2])

	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		conn.Write([]byte{5, 5, 0, 1, 0, 0, 0, 0, 0, 0})
		return
	}
	defer target.Close()
	conn.Write([]byte{5, 0, 0, 1, 0, 0, 0, 0, 0, 0})

	go io.Copy(target, conn)
	io.Copy(conn, target)
}

func TestSOCKSStrategy(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	host, port := serveSOCKS5(t)
	p := profile("running", "203.0.113.7", "8388")
	p.LocalAddr = host
	p.LocalPort = port

	ms, err := NewSOCKSStrategy(srv.URL).Test(context.Background(), p)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, 0)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	p.LocalPort = closedPort(t)
	_, err = NewSOCKSStrategy(srv.URL).Test(context.Background(), p)
	assert.Error(t, err)
}

func TestSchedulerRunsImmediately(t *testing.T) {
	_, host, port := listen(t)
	tester := NewTester(nil, TesterConfig{Timeout: time.Second})

	results := make(chan *BatchResult, 4)
	s, err := NewScheduler(tester, func() []models.Profile {
		return []models.Profile{profile("up", host, port)}
	}, time.Hour, func(b *BatchResult) { results <- b }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(ctx))

	select {
	case b := <-results:
		assert.Equal(t, 1, b.Succeeded)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled probe did not run")
	}

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.Error(t, s.Stop())
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	_, err := NewScheduler(NewTester(nil, TesterConfig{}), func() []models.Profile { return nil }, 0, nil, nil)
	assert.Error(t, err)
}
