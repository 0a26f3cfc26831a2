package hyp3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// RetryStrategy defines the backoff intervals applied when the service
// throttles or sheds load.
type RetryStrategy struct {
	Intervals  []time.Duration
	MaxRetries int
}

// DefaultRetryStrategy backs off gently before giving up.
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			2 * time.Second,
			5 * time.Second,
			15 * time.Second,
			30 * time.Second,
			60 * time.Second,
		},
		MaxRetries: 5,
	}
}

func (r *RetryStrategy) interval(attempt int) time.Duration {
	if attempt < len(r.Intervals) {
		return r.Intervals[attempt]
	}
	return r.Intervals[len(r.Intervals)-1]
}

// retryable reports whether an HTTP status is worth waiting out.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// Logger is the narrow run-log surface the downloader needs.
type Logger interface {
	Printf(format string, args ...any)
}

// Downloader fetches product archives concurrently, a fixed number of
// transfers in flight at once.
type Downloader struct {
	Client  *Client
	Workers int
	Retry   *RetryStrategy
}

// DownloadAll fetches every product archive into destDir and returns
// the local paths in the products' order. Partial downloads are removed
// on failure.
func (d *Downloader) DownloadAll(ctx context.Context, products []Product, destDir string, log Logger) ([]string, error) {
	workers := d.Workers
	if workers <= 0 {
		workers = 4
	}
	retry := d.Retry
	if retry == nil {
		retry = DefaultRetryStrategy()
	}

	sem := semaphore.NewWeighted(int64(workers))
	paths := make([]string, len(products))
	errs := make([]error, len(products))

	var wg sync.WaitGroup
	for i, p := range products {
		wg.Add(1)
		go func(i int, p Product) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				return
			}
			defer sem.Release(1)

			dst := filepath.Join(destDir, p.Name+".zip")
			log.Printf("Downloading %s", p.Name)
			if err := d.downloadOne(ctx, p.URL, dst, retry, log); err != nil {
				errs[i] = fmt.Errorf("failed to download %s: %w", p.Name, err)
				return
			}
			paths[i] = dst
		}(i, p)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func (d *Downloader) downloadOne(ctx context.Context, rawURL, dst string, retry *RetryStrategy, log Logger) error {
	for attempt := 0; ; attempt++ {
		status, err := d.fetch(ctx, rawURL, dst)
		if err == nil {
			return nil
		}
		if !retryable(status) || attempt >= retry.MaxRetries {
			return err
		}
		wait := retry.interval(attempt)
		log.Printf("Service throttled (HTTP %d); retrying %s in %s", status, filepath.Base(dst), wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// fetch performs one transfer attempt. The HTTP status is returned
// alongside the error so the caller can decide whether to back off.
func (d *Downloader) fetch(ctx context.Context, rawURL, dst string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.Client.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("download returned HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return resp.StatusCode, err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dst)
		return resp.StatusCode, err
	}
	return resp.StatusCode, out.Close()
}
