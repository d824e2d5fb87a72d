// Package upstream is the shared HTTP client for the external APIs the
// command handlers proxy: templated endpoints, a timeout, a shared rate
// limit, jq extraction, fallbacks and capped binary downloads.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/itchyny/gojq"
	"golang.org/x/time/rate"

	"github.com/roelfdiedericks/wabot/internal/metrics"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Options configures a Client
type Options struct {
	Timeout          time.Duration
	MaxDownloadBytes int64
	RatePerSecond    float64
	Burst            int
	UserAgent        string
	AllowPrivate     bool // let user-supplied URLs reach internal addresses (tests, trusted setups)
	HTTPClient       *http.Client
}

// Client performs upstream calls. Safe for concurrent use.
type Client struct {
	opts    Options
	http    *http.Client // configured endpoints
	guarded *http.Client // user-supplied URLs
	limiter *rate.Limiter
	calls   atomic.Int64

	queries sync.Map // jq expression -> *gojq.Code
}

// New creates a Client, filling zero options with defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxDownloadBytes <= 0 {
		opts.MaxDownloadBytes = 64 << 20
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "wabot/1.0"
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	c := &Client{
		opts:    opts,
		http:    hc,
		guarded: hc,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
	}
	if !opts.AllowPrivate {
		c.guarded = guardedClient(hc)
	}
	return c
}

// Calls returns how many HTTP requests the client has issued.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// FetchJSON calls the endpoint (then each fallback once, in order, while the
// previous one fails), runs its Extract expression over the JSON body and
// decodes the first result into out.
func (c *Client) FetchJSON(ctx context.Context, service string, ep Endpoint, vars Vars, out any) error {
	defer metrics.MetricTimer("upstream", service)()

	var lastErr error
	for i, e := range ep.chain() {
		body, err := c.call(ctx, e, vars)
		if err == nil {
			err = c.extract(body, e.Extract, out)
		}
		if err == nil {
			if i > 0 {
				L_info("upstream: fallback succeeded", "service", service, "fallback", i)
			}
			metrics.MetricSuccess("upstream", service)
			return nil
		}
		L_warn("upstream: call failed", "service", service, "attempt", i+1, "error", err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	metrics.MetricFail("upstream", service, failureReason(lastErr))
	return &Error{Service: service, Err: lastErr}
}

// FetchText performs a GET on a user-supplied URL and returns the body,
// capped at the download limit.
func (c *Client) FetchText(ctx context.Context, service, rawURL string) ([]byte, string, error) {
	blob, err := c.Download(ctx, service, rawURL)
	if err != nil {
		return nil, "", err
	}
	return blob.Data, blob.FinalURL, nil
}

// Blob is a downloaded binary payload
type Blob struct {
	Data     []byte
	MIME     string
	Ext      string
	FinalURL string
}

// Download fetches rawURL into memory, refusing bodies larger than the
// configured cap. The MIME type is sniffed from the content.
func (c *Client) Download(ctx context.Context, service, rawURL string) (*Blob, error) {
	defer metrics.MetricTimer("download", service)()
	blob, err := c.download(ctx, service, rawURL)
	if err != nil {
		metrics.MetricFail("download", service, failureReason(err))
		return nil, err
	}
	metrics.MetricSuccess("download", service)
	return blob, nil
}

func (c *Client) download(ctx context.Context, service, rawURL string) (*Blob, error) {
	wrap := func(err error) error { return &Error{Service: service, Err: err} }

	if !c.opts.AllowPrivate {
		if err := checkTarget(rawURL); err != nil {
			return nil, wrap(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, wrap(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.send(ctx, c.guarded, req)
	if err != nil {
		return nil, wrap(err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > c.opts.MaxDownloadBytes {
		return nil, wrap(ErrTooLarge)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxDownloadBytes+1))
	if err != nil {
		return nil, wrap(classify(ctx, err))
	}
	if int64(len(data)) > c.opts.MaxDownloadBytes {
		return nil, wrap(ErrTooLarge)
	}
	if len(data) == 0 {
		return nil, wrap(fmt.Errorf("%w: empty body", ErrMalformed))
	}

	mt := mimetype.Detect(data)
	return &Blob{
		Data:     data,
		MIME:     mt.String(),
		Ext:      mt.Extension(),
		FinalURL: resp.Request.URL.String(),
	}, nil
}

// call performs one request for an endpoint and returns the body.
func (c *Client) call(ctx context.Context, ep Endpoint, vars Vars) ([]byte, error) {
	target, err := ep.Expand(vars)
	if err != nil {
		return nil, err
	}
	headers, err := ep.ExpandHeaders(vars)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	method := strings.ToUpper(ep.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.send(ctx, c.http, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, classify(ctx, err)
	}
	return body, nil
}

// send waits for the limiter, issues the request and maps non-2xx replies.
func (c *Client) send(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(ctx, err)
	}

	c.calls.Add(1)
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		var safety *URLSafetyError
		if errors.As(err, &safety) {
			return nil, safety
		}
		return nil, classify(ctx, err)
	}
	L_debug("upstream: response", "host", req.URL.Host, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	return resp, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// extract runs expr over body and decodes the first result into out.
// An empty expr decodes the body as-is.
func (c *Client) extract(body []byte, expr string, out any) error {
	if expr == "" {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil
	}

	code, err := c.compile(expr)
	if err != nil {
		return err
	}

	var input any
	if err := json.Unmarshal(body, &input); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	iter := code.Run(input)
	v, ok := iter.Next()
	if !ok || v == nil {
		return fmt.Errorf("%w: extraction produced nothing", ErrMalformed)
	}
	if err, isErr := v.(error); isErr {
		return fmt.Errorf("%w: jq: %v", ErrMalformed, err)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *Client) compile(expr string) (*gojq.Code, error) {
	if cached, ok := c.queries.Load(expr); ok {
		return cached.(*gojq.Code), nil //nolint:errcheck // only *gojq.Code is stored
	}
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid extract expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("invalid extract expression %q: %w", expr, err)
	}
	c.queries.Store(expr, code)
	return code, nil
}
