package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Request is one HTTP exchange as seen by the protocol client.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response carries the status, headers, and the fully read, decoded body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs HTTP exchanges for a Client. Implementations must
// return a decoded body; Content-Encoding is already removed.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxAttempts = 1
	defaultUserAgent   = "git/grit"

	// responseLimit bounds both the raw and the decoded response body.
	responseLimit = 1 << 30
)

// HTTPOptions configures the net/http transport.
type HTTPOptions struct {
	Timeout     time.Duration // whole-exchange timeout (default 5s)
	MaxAttempts int           // attempts per request (default 1: no retry)
	UserAgent   string
	Logger      *slog.Logger
	Client      *http.Client // optional; Timeout is applied to a copy
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client    *http.Client
	retry     retryPolicy
	userAgent string
	logger    *slog.Logger
}

// NewHTTPTransport creates a transport. Zero-value fields in opts receive
// defaults.
func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	client := &http.Client{}
	if opts.Client != nil {
		c := *opts.Client
		client = &c
	}
	client.Timeout = opts.Timeout

	return &HTTPTransport{
		client:    client,
		retry:     newRetryPolicy(opts.MaxAttempts),
		userAgent: opts.UserAgent,
		logger:    loggerOrDiscard(opts.Logger),
	}
}

// Do sends req and reads the whole response body.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse request URL: %w", err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	build := func() (*http.Request, error) {
		var body io.Reader
		if req.Body != nil {
			body = bytes.NewReader(req.Body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
		if err != nil {
			return nil, err
		}
		for k, vs := range req.Header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		httpReq.Header.Set("User-Agent", t.userAgent)
		httpReq.Header.Set("Accept-Encoding", acceptEncoding)
		return httpReq, nil
	}

	start := time.Now()
	resp, err := t.retry.do(ctx, t.client, build, t.logger)
	if err != nil {
		t.logger.Debug("http request failed", "method", req.Method, "url", u.Redacted(), "error", err)
		return nil, fmt.Errorf("%s %s: %w", req.Method, u.Redacted(), err)
	}
	defer resp.Body.Close()

	raw, err := readLimited(resp.Body, responseLimit)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", req.Method, u.Redacted(), err)
	}
	decoded, err := decodeContentEncoding(resp.Header.Get("Content-Encoding"), raw, responseLimit)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, u.Redacted(), err)
	}

	t.logger.Debug("http request",
		"method", req.Method,
		"url", u.Redacted(),
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"bytes", len(decoded),
		"elapsed", time.Since(start),
	)

	header := resp.Header.Clone()
	header.Del("Content-Encoding")
	header.Del("Content-Length")
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       decoded,
	}, nil
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
