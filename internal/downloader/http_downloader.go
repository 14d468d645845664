package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
)

const partSuffix = ".part"

// errGone marks media the host reports as missing; retrying cannot help.
var errGone = errors.New("media gone from host")

// HTTPDownloader implements Downloader using plain HTTP GETs authenticated
// by a cookie snapshot.
type HTTPDownloader struct {
	// streamClient has no overall timeout; stalls are caught per read
	streamClient *http.Client
	userAgent    string
	referer      string
	minFree      int64
	cfg          config.DownloadConfig
	logger       *slog.Logger
}

// NewHTTPDownloader creates a new HTTP media downloader. jar may be nil for
// public media.
func NewHTTPDownloader(cfg config.DownloadConfig, jar http.CookieJar) *HTTPDownloader {
	streamTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: cfg.HeaderTimeout,
	}

	return &HTTPDownloader{
		streamClient: &http.Client{
			Transport: streamTransport,
			Jar:       jar,
		},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for download progress reporting.
func (d *HTTPDownloader) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetReferer sets the Referer header sent with media requests.
func (d *HTTPDownloader) SetReferer(referer string) {
	d.referer = referer
}

// SetMinFreeBytes sets how much space must stay free on the destination volume.
func (d *HTTPDownloader) SetMinFreeBytes(n int64) {
	d.minFree = n
}

// ShouldSkip reports whether target already holds a finished file and its
// policy is skip-if-exists.
func (d *HTTPDownloader) ShouldSkip(target domain.DownloadTarget) bool {
	if target.Policy != domain.PolicySkipIfExists {
		return false
	}
	return fileExists(target.DestinationPath)
}

// Download streams mediaURL into target.DestinationPath through a temp file
// in the same directory, retrying per the configured policy.
func (d *HTTPDownloader) Download(ctx context.Context, mediaURL string, target domain.DownloadTarget) domain.DownloadResult {
	if d.ShouldSkip(target) {
		return domain.SkippedExists(target)
	}

	dir := filepath.Dir(target.DestinationPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return domain.Failed(target, fmt.Errorf("%w: create directory: %v", domain.ErrTransfer, err))
	}

	n, err := RetryWithCheck(ctx, RetryConfigFrom(d.cfg), func() (int64, error) {
		return d.downloadOnce(ctx, mediaURL, target.DestinationPath)
	}, isRetryableError)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
		}
		return domain.Failed(target, err)
	}

	d.logger.Info("media saved",
		"path", target.DestinationPath,
		"size", humanize.Bytes(uint64(n)),
	)
	return domain.Downloaded(target, n)
}

func (d *HTTPDownloader) downloadOnce(ctx context.Context, mediaURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %v", domain.ErrTransfer, err)
	}

	// Mimic the browser that owns the session
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if d.referer != "" {
		req.Header.Set("Referer", d.referer)
	}

	resp, err := d.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: send request: %v", domain.ErrTransfer, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return 0, fmt.Errorf("%w: %w (status %d)", domain.ErrTransfer, domain.ErrURLExpired, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return 0, fmt.Errorf("%w: %w (status %d)", domain.ErrTransfer, errGone, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, fmt.Errorf("%w: %w", domain.ErrTransfer, domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, fmt.Errorf("%w: unexpected status code: %d", domain.ErrTransfer, resp.StatusCode)
	}

	size := resp.ContentLength
	if err := d.checkFreeSpace(filepath.Dir(dest), size); err != nil {
		return 0, err
	}

	progress := newProgressReader(resp.Body, size, d.cfg.ReadTimeout, d.logger, mediaURL)
	defer progress.Close()

	n, err := writeAtomically(dest, progress, size)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrTransfer, err)
	}
	return n, nil
}

func (d *HTTPDownloader) checkFreeSpace(dir string, size int64) error {
	if d.minFree <= 0 && size <= 0 {
		return nil
	}
	free := getFreeDiskSpace(dir)
	if free <= 0 {
		// unknown
		return nil
	}
	need := d.minFree
	if size > 0 {
		need += size
	}
	if free < need {
		return fmt.Errorf("%w: %w: need %s, have %s", domain.ErrTransfer, domain.ErrStorageFull,
			humanize.Bytes(uint64(need)), humanize.Bytes(uint64(free)))
	}
	return nil
}

// SaveFile writes r to dest with the same temp-then-rename guarantee as
// media downloads, creating parent directories.
func SaveFile(dest string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	return writeAtomically(dest, r, 0)
}

// writeAtomically copies r into a temp file next to dest, syncs it and
// renames it over dest. The temp file is removed on any failure, including
// a body shorter than a known expected size.
func writeAtomically(dest string, r io.Reader, expected int64) (int64, error) {
	tempPath := dest + "." + uuid.New().String()[:8] + partSuffix

	f, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(f, r)
	if err == nil && expected > 0 && n != expected {
		err = fmt.Errorf("short body: got %d of %d bytes", n, expected)
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return n, fmt.Errorf("write media: %w", err)
	}

	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return n, fmt.Errorf("move media to final location: %w", err)
	}
	return n, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isRetryableError(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrURLExpired), errors.Is(err, domain.ErrStorageFull), errors.Is(err, errGone):
		return false
	}
	return true
}

// progressReader wraps an io.ReadCloser to track download progress
// and detect stalls (no data for readTimeout).
type progressReader struct {
	reader      io.ReadCloser
	total       int64
	downloaded  int64
	readTimeout time.Duration
	lastRead    time.Time
	lastLog     time.Time
	logger      *slog.Logger
	url         string
	mu          sync.Mutex
	closed      bool
	stall       *time.Timer
	stalled     bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, logger *slog.Logger, url string) *progressReader {
	now := time.Now()
	p := &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastRead:    now,
		lastLog:     now,
		logger:      logger,
		url:         url,
	}
	if readTimeout > 0 {
		// A blocked Read never returns on its own; closing the body unblocks it.
		p.stall = time.AfterFunc(readTimeout, p.onStall)
	}
	return p
}

func (p *progressReader) onStall() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.stalled = true
	p.mu.Unlock()
	p.reader.Close()
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stalled {
		return n, fmt.Errorf("download stalled: no data received for %v", p.readTimeout)
	}

	if n > 0 {
		p.downloaded += int64(n)
		p.lastRead = time.Now()
		if p.stall != nil {
			p.stall.Reset(p.readTimeout)
		}

		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.stall != nil {
		p.stall.Stop()
	}
	p.mu.Unlock()

	return p.reader.Close()
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"url", p.url,
			"downloaded", humanize.Bytes(uint64(p.downloaded)),
			"total", humanize.Bytes(uint64(p.total)),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("download progress",
			"url", p.url,
			"downloaded", humanize.Bytes(uint64(p.downloaded)),
		)
	}
}
