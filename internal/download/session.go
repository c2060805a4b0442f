package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// CookieProvider warms up a session against a domain root and hands back the
// cookies the server set.
type CookieProvider struct {
	Transport http.RoundTripper
	Timeout   time.Duration
	Retry     RetryPolicy
	Logger    *slog.Logger
}

// Acquire GETs domainURL with headers and returns the cookies set for it.
// The status of the warm-up response is ignored. Connection failures and
// timeouts are retried per the policy.
func (p *CookieProvider) Acquire(ctx context.Context, domainURL string, headers map[string]string) (map[string]string, error) {
	root, err := url.Parse(domainURL)
	if err != nil {
		return nil, fmt.Errorf("parse domain %q: %w", domainURL, err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cookies map[string]string
	err = p.Retry.Do(ctx, func() error {
		c, err := p.fetch(ctx, root, headers)
		if err != nil {
			return err
		}
		cookies = c
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		logger.Warn("cookie warm-up failed, retrying",
			"domain", root.Host,
			"attempt", attempt,
			"wait", wait,
			"error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("acquire cookies from %s: %w", root.Host, err)
	}
	return cookies, nil
}

// fetch runs one warm-up request on a fresh jar.
func (p *CookieProvider) fetch(ctx context.Context, root *url.URL, headers map[string]string) (map[string]string, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	client := &http.Client{Transport: p.Transport, Jar: jar, Timeout: p.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root.String(), nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req, headers)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for _, c := range jar.Cookies(root) {
		out[c.Name] = c.Value
	}
	// The jar drops cookies scoped to a path other than "/".
	for _, c := range resp.Cookies() {
		if _, ok := out[c.Name]; !ok {
			out[c.Name] = c.Value
		}
	}
	return out, nil
}

func setHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
