package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// HeaderContinuation carries the paging token of list endpoints.
	HeaderContinuation = "X-Continuation"
	// HeaderContentType is set from the codec for JSON payloads.
	HeaderContentType = "Content-Type"
)

// Invoker issues calls relative to a client's base URL.
type Invoker interface {
	Get(ctx context.Context, endpoint string, opts ...CallOption) (*Response, error)
	Post(ctx context.Context, endpoint string, payload any, opts ...CallOption) (*Response, error)
	Put(ctx context.Context, endpoint string, payload any, opts ...CallOption) (*Response, error)
	Patch(ctx context.Context, endpoint string, payload any, opts ...CallOption) (*Response, error)
	Delete(ctx context.Context, endpoint string, opts ...CallOption) (*Response, error)
	Upload(ctx context.Context, endpoint string, file UploadFile, opts ...CallOption) (*Response, error)
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is the envelope of one logical call.
type Request struct {
	Method string
	// Endpoint is joined to the base URL unless it is absolute.
	Endpoint string
	Headers  http.Header
	Query    url.Values
	// Payload is encoded with the client's codec. Ignored when Body is set.
	Payload any
	// Body is sent as is with ContentType.
	Body        []byte
	ContentType string
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	// Elapsed covers every attempt of the call.
	Elapsed time.Duration
	// Attempts is the number of times the request reached the transport.
	Attempts int
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// EnsureSuccess returns a *StatusError unless the status is 2xx.
func (r *Response) EnsureSuccess() error {
	if r.IsSuccess() {
		return nil
	}
	if r == nil {
		return &StatusError{}
	}
	return &StatusError{StatusCode: r.StatusCode, Body: r.Body, Attempts: r.Attempts}
}

// ContinuationToken returns the X-Continuation header, empty on the last page.
func (r *Response) ContinuationToken() string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(HeaderContinuation)
}

func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = r.Headers.Clone()
	out.Body = append([]byte(nil), r.Body...)
	return &out
}

// UploadFile is one multipart/form-data file part plus optional form fields.
type UploadFile struct {
	// FieldName defaults to "file".
	FieldName   string
	FileName    string
	ContentType string
	Content     io.Reader
	Fields      map[string]string
}

// CallOption adjusts a single call.
type CallOption func(*Request)

// WithHeader sets one request header.
func WithHeader(key, value string) CallOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(http.Header)
		}
		r.Headers.Set(key, value)
	}
}

// WithHeaders sets several request headers.
func WithHeaders(headers map[string]string) CallOption {
	return func(r *Request) {
		for k, v := range headers {
			WithHeader(k, v)(r)
		}
	}
}

// WithQuery adds a query parameter. Repeated keys accumulate.
func WithQuery(key, value string) CallOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = make(url.Values)
		}
		r.Query.Add(key, value)
	}
}
