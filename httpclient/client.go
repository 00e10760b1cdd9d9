package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/sdkcore/logger"
	"github.com/gaborage/sdkcore/middleware"
)

// Client implements Invoker on top of an *http.Client whose transport carries the
// full pipeline. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	codec      Codec
	logger     logger.Logger
	group      *singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared context of one coalesced call and the number of callers
// still waiting for it. The call is cancelled when the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Client.
type Option func(*Client)

// WithCodec replaces DefaultCodec.
func WithCodec(codec Codec) Option {
	return func(c *Client) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithLogger enables debug summaries of requests and responses.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithCoalescedGets shares one in-flight GET among concurrent identical calls.
// Every caller receives its own copy of the response.
func WithCoalescedGets() Option {
	return func(c *Client) {
		c.group = &singleflight.Group{}
		c.flights = make(map[string]*flight)
	}
}

// New returns a Client sending requests through httpClient. baseURL must be absolute.
func New(httpClient *http.Client, baseURL string, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, &RequestError{Op: "create client", Err: errors.New("http client is nil")}
	}
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, &RequestError{Op: "create client", Err: fmt.Errorf("base URL %q is not absolute", baseURL)}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		codec:      DefaultCodec,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Codec returns the codec used for payloads and typed decoding.
func (c *Client) Codec() Codec { return c.codec }

// BaseURL returns the URL endpoints are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Get issues a GET.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodGet, endpoint, nil, opts))
}

// Post issues a POST with a JSON payload.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodPost, endpoint, payload, opts))
}

// Put issues a PUT with a JSON payload.
func (c *Client) Put(ctx context.Context, endpoint string, payload any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodPut, endpoint, payload, opts))
}

// Patch issues a PATCH with a JSON payload.
func (c *Client) Patch(ctx context.Context, endpoint string, payload any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodPatch, endpoint, payload, opts))
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodDelete, endpoint, nil, opts))
}

// Upload sends file as multipart/form-data with POST.
func (c *Client) Upload(ctx context.Context, endpoint string, file UploadFile, opts ...CallOption) (*Response, error) {
	body, contentType, err := encodeMultipart(file)
	if err != nil {
		return nil, &RequestError{Op: "encode upload", Err: err}
	}
	req := newRequest(http.MethodPost, endpoint, nil, opts)
	req.Body = body
	req.ContentType = contentType
	return c.Do(ctx, req)
}

// Do issues req. A non-2xx response is returned together with a *StatusError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, &RequestError{Op: "validate request", Err: errors.New("request cannot be nil")}
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	var (
		resp *Response
		err  error
	)
	if c.group != nil && req.Method == http.MethodGet && req.Payload == nil && req.Body == nil {
		resp, err = c.coalesce(ctx, req)
	} else {
		resp, err = c.send(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return resp, resp.EnsureSuccess()
	}
	return resp, nil
}

func newRequest(method, endpoint string, payload any, opts []CallOption) *Request {
	req := &Request{Method: method, Endpoint: endpoint, Payload: payload}
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	return req
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	ctx = middleware.EnsureAttemptCounter(ctx)
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.logRequest(httpReq)
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Elapsed:    time.Since(start),
		Attempts:   middleware.Attempts(ctx),
	}
	c.logResponse(httpReq, resp)
	return resp, nil
}

// coalesce runs one shared call per key. A caller whose ctx ends stops waiting;
// the shared call is cancelled only once no caller is waiting for it.
func (c *Client) coalesce(ctx context.Context, req *Request) (*Response, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	key := coalesceKey(target, req.Headers)

	c.mu.Lock()
	f, ok := c.flights[key]
	if !ok {
		sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: sctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	ch := c.group.DoChan(key, func() (any, error) {
		return c.send(f.ctx, req)
	})
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.leave(key, f, true)
		return nil, ctx.Err()
	case res := <-ch:
		c.leave(key, f, false)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Response).clone(), nil
	}
}

func (c *Client) leave(key string, f *flight, abandoned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	if abandoned {
		// Later callers must start a new call instead of joining the cancelled one.
		c.group.Forget(key)
	}
	f.cancel()
}

func coalesceKey(target string, headers http.Header) string {
	var b strings.Builder
	b.WriteString(target)
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(k)
		b.WriteString(":")
		b.WriteString(strings.Join(headers[k], ","))
	}
	return b.String()
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Body != nil:
		body = bytes.NewReader(req.Body)
		contentType = req.ContentType
	case req.Payload != nil:
		encoded, err := c.codec.Marshal(req.Payload)
		if err != nil {
			return nil, &RequestError{Op: "encode payload", Err: err}
		}
		body = bytes.NewReader(encoded)
		contentType = c.codec.ContentType()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &RequestError{Op: "create request", Err: err}
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" && httpReq.Header.Get(HeaderContentType) == "" {
		httpReq.Header.Set(HeaderContentType, contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	return httpReq, nil
}

// resolve joins the endpoint to the base URL and appends the query.
func (c *Client) resolve(req *Request) (string, error) {
	target := JoinURL(c.baseURL, req.Endpoint)
	if len(req.Query) == 0 {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", &RequestError{Op: "parse endpoint", Err: err}
	}
	q := u.Query()
	for k, vs := range req.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// JoinURL resolves endpoint against base. Absolute endpoints are returned as is.
func JoinURL(base, endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.IsAbs() {
		return endpoint
	}
	if endpoint == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) logRequest(req *http.Request) {
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int64("content_length", req.ContentLength).
		Msg("SDK request")
}

func (c *Client) logResponse(req *http.Request, resp *Response) {
	c.logger.Debug().
		Str("direction", "inbound").
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Int("attempts", resp.Attempts).
		Dur("elapsed", resp.Elapsed).
		Msg("SDK response")
}
