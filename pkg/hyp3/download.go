package hyp3

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
)

// Statuses worth retrying: throttling and transient server faults. Anything
// else fails the transfer immediately.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

const (
	defaultDownloadRetries = 2
	defaultInitialBackoff  = time.Second
)

// Downloader streams product files to disk, retrying transient server
// errors with exponential backoff. Retries are local to one file transfer;
// they never interact with job polling.
//
// Product URLs are pre-signed, so the downloader deliberately uses its own
// unauthenticated client rather than the API session.
type Downloader struct {
	client         *http.Client
	maxRetries     uint64
	initialBackoff time.Duration
}

// DownloaderConfig tunes a Downloader. Zero values select the defaults:
// 2 retries starting at a 1s backoff.
type DownloaderConfig struct {
	HTTPClient     *http.Client
	MaxRetries     int
	InitialBackoff time.Duration
}

// NewDownloader builds a Downloader.
func NewDownloader(cfg DownloaderConfig) *Downloader {
	d := &Downloader{
		client:         cfg.HTTPClient,
		maxRetries:     defaultDownloadRetries,
		initialBackoff: defaultInitialBackoff,
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if cfg.MaxRetries > 0 {
		d.maxRetries = uint64(cfg.MaxRetries)
	}
	if cfg.InitialBackoff > 0 {
		d.initialBackoff = cfg.InitialBackoff
	}
	return d
}

var defaultDownloader = NewDownloader(DownloaderConfig{})

// DownloadFile streams the file at rawURL into path, creating or truncating
// it. Transient server errors (429, 500, 502, 503, 504) are retried with
// exponential backoff; any other failure is permanent. Failures are wrapped
// in a DownloadError naming the URL.
func (d *Downloader) DownloadFile(ctx context.Context, rawURL, path string) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newExponentialBackoff(d.initialBackoff), d.maxRetries), ctx)

	transfer := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if retryableStatuses[resp.StatusCode] {
				return err
			}
			return backoff.Permanent(err)
		}

		return writeFile(path, resp)
	}

	if err := backoff.Retry(transfer, policy); err != nil {
		return &DownloadError{URL: rawURL, Err: err}
	}
	return nil
}

func writeFile(path string, resp *http.Response) error {
	f, err := os.Create(path)
	if err != nil {
		return backoff.Permanent(err)
	}
	if _, err := f.ReadFrom(resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func newExponentialBackoff(initial time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	return b
}

// DownloadOptions tunes a job or batch download. Use
// DefaultDownloadOptions as a starting point; a nil *DownloadOptions means
// the defaults.
type DownloadOptions struct {
	// Create makes the destination directory, parents included, when it
	// does not exist. When false a missing directory is an error.
	Create bool
	// Downloader overrides the default retrying downloader.
	Downloader *Downloader
}

// DefaultDownloadOptions creates missing destination directories and uses
// the default downloader.
func DefaultDownloadOptions() *DownloadOptions {
	return &DownloadOptions{Create: true}
}

// DownloadFiles downloads every product file of a succeeded job into dir,
// returning the written paths in the same order as the job's file list.
//
// Preconditions are checked before any network traffic: the job must have
// succeeded (ErrJobNotSucceeded) and its products must not have expired
// (ErrJobExpired). The first failed transfer aborts with a DownloadError;
// batch downloads catch that per job, single-job callers decide themselves.
func (j Job) DownloadFiles(ctx context.Context, dir string, opts *DownloadOptions) ([]string, error) {
	if opts == nil {
		opts = DefaultDownloadOptions()
	}
	downloader := opts.Downloader
	if downloader == nil {
		downloader = defaultDownloader
	}

	if !j.Succeeded() {
		return nil, fmt.Errorf("%w: job %s has status %s", ErrJobNotSucceeded, j.JobID, j.StatusCode)
	}
	if expired, err := j.Expired(); err == nil && expired {
		return nil, fmt.Errorf("%w: job %s expired at %s", ErrJobExpired, j.JobID,
			j.ExpirationTime.Format(timeFormat))
	}

	if opts.Create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating destination directory: %w", err)
		}
	} else if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("destination directory does not exist: %s", dir)
	}

	ctx, span := startSpan(ctx, "hyp3.download",
		attribute.String("hyp3.job_id", j.JobID),
		attribute.Int("hyp3.file_count", len(j.Files)))
	defer span.End()

	paths := make([]string, 0, len(j.Files))
	for _, file := range j.Files {
		path := filepath.Join(dir, file.Filename)
		if err := downloader.DownloadFile(ctx, file.URL, path); err != nil {
			recordError(span, err)
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
