package subscription

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowdeck/internal/config/parser"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/models"
	pkgerrors "shadowdeck/pkg/errors"
)

func link(name, server string) string {
	p := models.NewProfile(name)
	p.Server = server
	p.ServerPort = "8388"
	p.Method = "aes-256-gcm"
	p.Password = "pw"
	return parser.Encode(p)
}

func fastFetcher() *Fetcher {
	return NewFetcher(FetcherConfig{
		UserAgent: "test",
		Timeout:   2 * time.Second,
		Attempts:  3,
		Backoff:   time.Millisecond,
	})
}

func TestImportFromFile(t *testing.T) {
	dir := t.TempDir()
	store := storage.New(filepath.Join(dir, "gui-config.json"))
	store.AddProfile("existing")

	content := strings.Join([]string{
		link("a", "198.51.100.1"),
		link("", "198.51.100.2"),
		link("dup", "198.51.100.1"),
		"ss://broken",
	}, "\n")
	src := filepath.Join(dir, "links.txt")
	require.NoError(t, os.WriteFile(src, []byte(content), 0600))

	result, err := NewImporter(fastFetcher(), nil).Import(context.Background(), src, store)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Errors, 1)

	assert.Equal(t, []string{"existing", "a", "198.51.100.2:8388"}, store.Names())
	assert.Equal(t, 0, store.CurrentIndex(), "selection is kept")

	loaded, err := storage.Load(store.Path())
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
}

func TestImportFromStdin(t *testing.T) {
	store := storage.New(filepath.Join(t.TempDir(), "gui-config.json"))
	imp := NewImporter(fastFetcher(), nil)
	imp.stdin = strings.NewReader(base64.StdEncoding.EncodeToString([]byte(link("x", "203.0.113.1"))))

	result, err := imp.Import(context.Background(), "-", store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 0, store.CurrentIndex())
}

func TestImportFromURLRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "test", r.UserAgent())
		w.Write([]byte(link("remote", "203.0.113.2")))
	}))
	defer srv.Close()

	store := storage.New(filepath.Join(t.TempDir(), "gui-config.json"))
	result, err := NewImporter(fastFetcher(), nil).Import(context.Background(), srv.URL, store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrFetchFailed))

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestImportEmpty(t *testing.T) {
	src := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(src, []byte("vmess://nothing-for-us\n"), 0600))

	store := storage.New("")
	_, err := NewImporter(fastFetcher(), nil).Import(context.Background(), src, store)
	assert.True(t, errors.Is(err, pkgerrors.ErrImportEmpty))
}

func TestFetchThroughUnreachableSOCKS(t *testing.T) {
	cfg := DefaultFetcherConfig()
	cfg.Attempts = 1
	cfg.Timeout = 2 * time.Second
	cfg.SOCKSAddr = "127.0.0.1:1"

	_, err := NewFetcher(cfg).Fetch(context.Background(), "http://203.0.113.9/list.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrFetchFailed)
}
