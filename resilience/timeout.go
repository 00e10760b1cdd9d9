package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gaborage/sdkcore/middleware"
)

// AttemptTimeout bounds each attempt. The deadline stays attached to the response
// body and is released when the body is closed. Zero disables the stage.
func AttemptTimeout(d time.Duration) middleware.Middleware {
	return deadline(d, false)
}

// TotalTimeout bounds the whole call, retries and waits included. Zero disables it.
func TotalTimeout(d time.Duration) middleware.Middleware {
	return deadline(d, true)
}

func deadline(d time.Duration, total bool) middleware.Middleware {
	if d <= 0 {
		return middleware.Passthrough()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return middleware.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			parent := req.Context()
			ctx, cancel := context.WithTimeout(parent, d)

			resp, err := next.RoundTrip(req.WithContext(ctx))
			if err != nil {
				cancel()
				if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
					return nil, &TimeoutError{Limit: d, Total: total, Err: err}
				}
				return nil, err
			}
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		})
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.once.Do(c.cancel)
	return err
}
