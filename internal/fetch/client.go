// Package fetch is the outbound HTTP layer shared by the catalog resolver and the
// tabular readers. Every call carries a dial timeout and a per-attempt overall timeout,
// and is retried with exponential backoff on network errors and configured statuses.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"earapi/internal/apperr"
	"earapi/internal/config"
	"earapi/internal/logging"
	"earapi/internal/metrics"
)

// StatusError represents a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string // first 512 bytes
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client performs GET/HEAD requests with timeouts and bounded retries.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	httpClient      *http.Client
	retries         int
	backoffInitial  time.Duration
	retryOn         map[int]bool
	catalogTimeout  time.Duration
	downloadTimeout time.Duration
	metrics         *metrics.Pipeline
}

// Option configures Client behavior.
type Option func(*Client)

// WithMetrics records retries on m.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client from cfg. The transport is instrumented with otelhttp.
func New(cfg config.FetchConfig, opts ...Option) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = dialer.DialContext
	tr.TLSHandshakeTimeout = cfg.ConnectTimeout

	retryOn := make(map[int]bool, len(cfg.RetryStatuses))
	for _, s := range cfg.RetryStatuses {
		retryOn[s] = true
	}

	c := &Client{
		httpClient:      &http.Client{Transport: otelhttp.NewTransport(tr)},
		retries:         cfg.Retries,
		backoffInitial:  cfg.BackoffInitial,
		retryOn:         retryOn,
		catalogTimeout:  cfg.CatalogTimeout,
		downloadTimeout: cfg.DownloadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches url with the catalog timeout and decodes the body into dest.
// Transport failures are ErrUpstreamFetch; an undecodable body is ErrUpstreamProtocol.
func (c *Client) GetJSON(ctx context.Context, url string, dest any) error {
	resp, err := c.do(ctx, http.MethodGet, url, nil, c.catalogTimeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.ErrUpstreamFetch, "read "+url, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return apperr.Wrap(apperr.ErrUpstreamProtocol, "decode "+url, err)
	}
	return nil
}

// Open starts a streaming GET with the download timeout. The timeout covers reading
// the body; closing the returned reader releases the connection.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil, c.downloadTimeout)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Download reads the whole body of url into memory.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	body, err := c.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstreamFetch, "download "+url, err)
	}
	return data, nil
}

// do runs one request per attempt. A successful response's body is bound to the
// attempt's timeout context, which is released when the body is closed.
func (c *Client) do(ctx context.Context, method, url string, header http.Header, timeout time.Duration) (*http.Response, error) {
	op := func() (*http.Response, error) {
		actx, cancel := context.WithTimeout(ctx, timeout)

		req, err := http.NewRequestWithContext(actx, method, url, nil)
		if err != nil {
			cancel()
			return nil, backoff.Permanent(err)
		}
		for k, v := range header {
			req.Header[k] = v
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()

		serr := &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(snippet)}
		if c.retryOn[resp.StatusCode] {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoffInitial
	b.Multiplier = 2
	b.MaxInterval = 10 * time.Second

	notify := func(err error, wait time.Duration) {
		c.metrics.UpstreamRetry()
		logging.FromContext(ctx).Warn("upstream request failed, retrying",
			"method", method, "url", url, "error", err, "wait", wait)
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstreamFetch, method+" "+url, err)
	}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
