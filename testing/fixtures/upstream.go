// Package fixtures provides a scripted fake upstream API for pipeline tests.
package fixtures

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// Reply is one scripted response.
type Reply struct {
	Status  int
	Body    string
	Headers map[string]string
	// Delay holds the response back; the handler gives up when the client disconnects.
	Delay time.Duration
}

// RecordedRequest is what the upstream saw on the wire.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Upstream is an echo server that replays scripted replies per route and records
// every request. Routes without a script answer 404.
type Upstream struct {
	Echo   *echo.Echo
	Server *httptest.Server

	mu       sync.Mutex
	script   map[string][]Reply
	requests []RecordedRequest
}

// NewUpstream starts an upstream that is closed when the test ends.
func NewUpstream(t testing.TB) *Upstream {
	t.Helper()

	u := &Upstream{script: make(map[string][]Reply)}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Any("/*", u.handle)

	u.Echo = e
	u.Server = httptest.NewServer(e)
	t.Cleanup(u.Server.Close)
	return u
}

// URL returns the server's base URL.
func (u *Upstream) URL() string {
	return u.Server.URL
}

// Reply scripts the responses for method and path in order. The last reply repeats.
func (u *Upstream) Reply(method, path string, replies ...Reply) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.script[method+" "+path] = replies
}

// Requests returns a copy of everything received so far.
func (u *Upstream) Requests() []RecordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]RecordedRequest(nil), u.requests...)
}

// Count returns how many requests matched method and path.
func (u *Upstream) Count(method, path string) int {
	n := 0
	for _, r := range u.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (u *Upstream) handle(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}

	u.mu.Lock()
	u.requests = append(u.requests, RecordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.Query(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	key := req.Method + " " + req.URL.Path
	replies := u.script[key]
	var reply Reply
	found := len(replies) > 0
	if found {
		reply = replies[0]
		if len(replies) > 1 {
			u.script[key] = replies[1:]
		}
	}
	u.mu.Unlock()

	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "no scripted reply"})
	}

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-req.Context().Done():
			return nil
		}
	}

	for k, v := range reply.Headers {
		c.Response().Header().Set(k, v)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.Body == "" {
		return c.NoContent(status)
	}
	contentType := c.Response().Header().Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(status, contentType, []byte(reply.Body))
}
