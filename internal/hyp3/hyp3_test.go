package hyp3

import (
	"archive/zip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, "jdoe", "hunter2")
	c.HTTP = srv.Client()
	return c
}

func TestSubscriptionsAndProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "jdoe", r.URL.Query().Get("username"))
		require.Equal(t, "hunter2", r.URL.Query().Get("password"))

		switch r.URL.Path {
		case "/subscriptions":
			json.NewEncoder(w).Encode(map[string]any{
				"subscriptions": []Subscription{
					{ID: 101, Name: "alaska-rtc", Process: "rtc_gamma", Enabled: true},
				},
			})
		case "/products":
			require.Equal(t, "101", r.URL.Query().Get("sub_id"))
			json.NewEncoder(w).Encode(map[string]any{
				"products": []Product{
					{ID: 1, Name: "S1A_20180118", URL: "http://example.com/a.zip", FlightDirection: "ASCENDING"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	sub, err := c.FindSubscription(context.Background(), "alaska-rtc")
	require.NoError(t, err)
	assert.Equal(t, 101, sub.ID)

	products, err := c.Products(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "ASCENDING", products[0].FlightDirection)

	_, err = c.FindSubscription(context.Background(), "nope")
	assert.Error(t, err)
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newTestClient(srv).Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDownloadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload-" + r.URL.Path))
	}))
	defer srv.Close()

	d := &Downloader{Client: newTestClient(srv), Workers: 2}
	products := []Product{
		{Name: "scene-a", URL: srv.URL + "/a"},
		{Name: "scene-b", URL: srv.URL + "/b"},
	}

	dest := t.TempDir()
	paths, err := d.DownloadAll(context.Background(), products, dest, discardLog{})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "payload-/a", string(data))
	assert.Equal(t, filepath.Join(dest, "scene-a.zip"), paths[0])
}

func TestDownloadRetriesOnThrottle(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := &Downloader{
		Client:  newTestClient(srv),
		Workers: 1,
		Retry: &RetryStrategy{
			Intervals:  []time.Duration{time.Millisecond},
			MaxRetries: 5,
		},
	}
	paths, err := d.DownloadAll(context.Background(), []Product{{Name: "p", URL: srv.URL}}, t.TempDir(), discardLog{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDownloadGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := &Downloader{
		Client:  newTestClient(srv),
		Workers: 1,
		Retry: &RetryStrategy{
			Intervals:  []time.Duration{time.Millisecond},
			MaxRetries: 2,
		},
	}
	_, err := d.DownloadAll(context.Background(), []Product{{Name: "p", URL: srv.URL}}, t.TempDir(), discardLog{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestDownloadDoesNotRetryHardFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := &Downloader{Client: newTestClient(srv), Workers: 1}
	_, err := d.DownloadAll(context.Background(), []Product{{Name: "p", URL: srv.URL}}, t.TempDir(), discardLog{})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, body := range entries {
		ew, err := w.Create(name)
		require.NoError(t, err)
		_, err = ew.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestUnzip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "product.zip")
	writeZip(t, archive, map[string]string{
		"granule/scene-vv.tif":  "raster",
		"granule/scene.iso.xml": "<xml>ASCENDING</xml>",
	})

	dest := t.TempDir()
	require.NoError(t, Unzip(archive, dest))

	data, err := os.ReadFile(filepath.Join(dest, "granule", "scene-vv.tif"))
	require.NoError(t, err)
	assert.Equal(t, "raster", string(data))
}

func TestUnzipRejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../escape.txt": "nope"})

	err := Unzip(archive, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe path")
}

func TestExtractAll(t *testing.T) {
	src := t.TempDir()
	writeZip(t, filepath.Join(src, "a.zip"), map[string]string{"a/a-vv.tif": "x"})
	writeZip(t, filepath.Join(src, "b.zip"), map[string]string{"b/b-vv.tif": "y"})

	dest := t.TempDir()
	require.NoError(t, ExtractAll(src, dest))
	for _, p := range []string{"a/a-vv.tif", "b/b-vv.tif"} {
		_, err := os.Stat(filepath.Join(dest, p))
		assert.NoError(t, err)
	}

	assert.Error(t, ExtractAll(t.TempDir(), dest))
}

type discardLog struct{}

func (discardLog) Printf(string, ...any) {}
