// Package download fetches a file from an exchange endpoint and turns it into
// a table, whatever the payload turns out to be: a zip archive, CSV text or a
// workbook. Declared content types are ignored.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sharmasourab93/market-gen/internal/sniff"
	"github.com/sharmasourab93/market-gen/internal/table"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultCookieTimeout = 10 * time.Second
	DefaultMaxBodyBytes  = 64 << 20
)

// Options configures a Downloader. Zero values fall back to the defaults.
type Options struct {
	Timeout       time.Duration
	CookieTimeout time.Duration
	// MaxBodyBytes caps both the response body and an extracted zip entry.
	MaxBodyBytes int64
	// RequestsPerSecond throttles the main request. Zero disables throttling.
	RequestsPerSecond float64
	Retry             RetryPolicy
	Logger            *slog.Logger
	Transport         http.RoundTripper
}

// Downloader runs the acquisition pipeline. It is safe for concurrent use;
// each call gets its own cookie session.
type Downloader struct {
	client  *http.Client
	cookies *CookieProvider
	limiter *rate.Limiter
	maxBody int64
	logger  *slog.Logger
}

// New returns a Downloader for opts.
func New(opts Options) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CookieTimeout <= 0 {
		opts.CookieTimeout = DefaultCookieTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &Downloader{
		client: &http.Client{Transport: opts.Transport, Timeout: opts.Timeout},
		cookies: &CookieProvider{
			Transport: opts.Transport,
			Timeout:   opts.CookieTimeout,
			Retry:     opts.Retry,
			Logger:    opts.Logger,
		},
		maxBody: opts.MaxBodyBytes,
		logger:  opts.Logger,
	}
	if opts.RequestsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, int(opts.RequestsPerSecond)))
	}
	return d
}

// Download fetches rawURL and returns its contents as a table.
func (d *Downloader) Download(ctx context.Context, rawURL string, headers map[string]string) (*table.Table, error) {
	logger := d.logger.With("download_id", uuid.NewString(), "url", rawURL)
	start := time.Now()

	target := rawURL
	if !strings.Contains(target, "://") {
		target = "https://" + strings.TrimSpace(target)
	}
	root, err := DomainRoot(target)
	if err != nil {
		return nil, err
	}

	cookies, err := d.cookies.Acquire(ctx, root, headers)
	if err != nil {
		logger.Error("cookie warm-up failed", "domain", root, "error", err)
		return nil, err
	}
	logger.Debug("session established", "domain", root, "cookies", len(cookies))

	resp, err := d.fetch(ctx, target, headers, cookies)
	if err != nil {
		return nil, err
	}
	if _, err := ClassifyStatus(resp); err != nil {
		logger.Warn("request rejected", "status", resp.StatusCode)
		return nil, err
	}
	logger.Debug("response received", "size", humanize.Bytes(uint64(len(resp.Body))))

	t, err := d.decode(resp.Body, logger)
	if err != nil {
		logger.Error("could not read payload", "error", err)
		return nil, err
	}
	logger.Info("download complete",
		"rows", t.NumRows(),
		"columns", t.NumColumns(),
		"size", humanize.Bytes(uint64(len(resp.Body))),
		"elapsed", time.Since(start))
	return t, nil
}

// Decode runs the format detection and parsing steps on a payload that has
// already been fetched.
func (d *Downloader) Decode(body []byte) (*table.Table, error) {
	return d.decode(body, d.logger)
}

func (d *Downloader) fetch(ctx context.Context, target string, headers, cookies map[string]string) (RawResponse, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return RawResponse{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return RawResponse{}, fmt.Errorf("build request: %w", err)
	}
	setHeaders(req, headers)
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		req.AddCookie(&http.Cookie{Name: name, Value: cookies[name]})
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return RawResponse{}, ctx.Err()
		}
		return RawResponse{}, fmt.Errorf("%w: %w", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, d.maxBody)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return RawResponse{}, err
		}
		return RawResponse{}, fmt.Errorf("%w: read body: %w", ErrTransientNetwork, err)
	}
	return RawResponse{Body: body, StatusCode: resp.StatusCode, URL: target}, nil
}

// decode unwraps a zip container, dispatches on the content and, if that fails
// at the value level, dispatches once more on the bytes as received.
func (d *Downloader) decode(raw []byte, logger *slog.Logger) (*table.Table, error) {
	work := raw
	extracted := false
	if sniff.IsZip(raw) {
		name, entry, err := firstEntry(raw, d.maxBody)
		if err != nil {
			return nil, &ContentError{Detail: "zip", Err: err}
		}
		logger.Debug("extracted zip entry", "entry", name, "size", humanize.Bytes(uint64(len(entry))))
		work = entry
		extracted = true
	}

	t, err := dispatch(work, logger)
	if err == nil {
		return t, nil
	}
	if !valueLevel(err) || !extracted {
		return nil, asContentError(raw, err)
	}

	logger.Warn("extracted entry unreadable, retrying on raw response", "error", err)
	t, err = dispatch(raw, logger)
	if err != nil {
		return nil, asContentError(raw, err)
	}
	return t, nil
}

func dispatch(b []byte, logger *slog.Logger) (*table.Table, error) {
	res := sniff.ClassifyContent(b)
	logger.Debug("classified payload", "kind", res.Kind)

	switch res.Kind {
	case sniff.CSV:
		return table.ReadCSV(bytes.NewReader(res.Text), table.CSVOptions{
			Delimiter:        res.Dialect.Delimiter,
			TrimLeadingSpace: res.Dialect.SkipInitialSpace,
		})
	case sniff.Spreadsheet:
		return readSpreadsheet(b, logger)
	default:
		return nil, &ContentError{Detail: sniff.Describe(b).String()}
	}
}

// Workbook engines in fallback order, and the reader that runs one of them.
var (
	spreadsheetEngines = table.Engines
	readWorkbook       = table.ReadSpreadsheet
)

// readSpreadsheet tries each engine in turn, moving on only after a
// value-level failure.
func readSpreadsheet(b []byte, logger *slog.Logger) (*table.Table, error) {
	var err error
	for _, engine := range spreadsheetEngines {
		var t *table.Table
		t, err = readWorkbook(b, engine)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, table.ErrValue) {
			return nil, err
		}
		logger.Warn("spreadsheet engine failed", "engine", engine, "error", err)
	}
	return nil, err
}

func valueLevel(err error) bool {
	return errors.Is(err, table.ErrValue) || errors.Is(err, ErrUnrecognizedContent)
}

func asContentError(raw []byte, err error) error {
	var ce *ContentError
	if errors.As(err, &ce) {
		return err
	}
	if !valueLevel(err) {
		return err
	}
	return &ContentError{Detail: sniff.Describe(raw).String(), Err: err}
}
