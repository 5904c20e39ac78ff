package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsharvest/internal/domain"
)

// FailureKind classifies why a fetch did not yield a usable body.
type FailureKind string

const (
	FailTimeout    FailureKind = "timeout"
	FailConnection FailureKind = "connection"
	FailHTTP       FailureKind = "http_error"
	FailOther      FailureKind = "other"
)

// Error is a classified fetch failure.
type Error struct {
	URL        string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == FailHTTP {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DomainKind maps the transport failure onto the job error taxonomy.
func (e *Error) DomainKind() domain.ErrorKind {
	switch e.Kind {
	case FailTimeout:
		return domain.ErrKindTimeout
	case FailConnection:
		return domain.ErrKindConnection
	case FailHTTP:
		return domain.ErrKindHTTP
	default:
		return domain.ErrKindConnection
	}
}

// Options tunes the client. Zero values fall back to conservative defaults.
type Options struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	Politeness time.Duration
	UserAgents []string
}

// Client issues browser-like HTTP requests with one retry on transient
// failures and a per-host politeness interval. Safe for concurrent use.
type Client struct {
	http       *http.Client
	userAgents []string
	retryDelay time.Duration
	politeness time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// NewClient builds a fetcher from options.
func NewClient(opts Options, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	agents := opts.UserAgents
	if len(agents) == 0 {
		agents = []string{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"}
	}

	return &Client{
		http:       &http.Client{Timeout: timeout},
		userAgents: agents,
		retryDelay: retryDelay,
		politeness: opts.Politeness,
		logger:     logger,
		last:       map[string]time.Time{},
	}
}

// Fetch retrieves the page body. Timeout and connection failures are
// retried once after a short backoff; HTTP status failures are not.
// Failures are returned as *Error.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, ferr := c.do(ctx, rawURL)
	if ferr == nil {
		return body, nil
	}

	if ferr.Kind != FailTimeout && ferr.Kind != FailConnection {
		return nil, ferr
	}

	c.debug("retrying after transient failure", "url", rawURL, "kind", ferr.Kind)

	select {
	case <-ctx.Done():
		return nil, ferr
	case <-time.After(c.retryDelay):
	}

	body, ferr = c.do(ctx, rawURL)
	if ferr != nil {
		return nil, ferr
	}
	return body, nil
}

// FetchDocument retrieves and parses the page as HTML.
func (c *Client) FetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{URL: rawURL, Kind: FailOther, Err: err}
	}
	return doc, nil
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, *Error) {
	if err := c.waitPoliteness(ctx, rawURL); err != nil {
		return nil, &Error{URL: rawURL, Kind: FailConnection, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Kind: FailOther, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Kind: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &Error{URL: rawURL, Kind: FailHTTP, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: rawURL, Kind: FailConnection, Err: err}
	}

	return body, nil
}

// Sources reject default Go clients, so present a realistic browser.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgents[rand.Intn(len(c.userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func (c *Client) waitPoliteness(ctx context.Context, rawURL string) error {
	if c.politeness <= 0 {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := parsed.Hostname()

	c.mu.Lock()
	now := time.Now()
	next := c.last[host].Add(c.politeness)
	wait := next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.last[host] = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func classifyTransport(err error) FailureKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailTimeout
	}
	return FailConnection
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
