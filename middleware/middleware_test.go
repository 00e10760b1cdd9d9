package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/identity"
	"github.com/gaborage/sdkcore/logger"
	obtest "github.com/gaborage/sdkcore/observability/testing"
	"github.com/gaborage/sdkcore/telemetry"
	"github.com/gaborage/sdkcore/testing/mocks"
	"github.com/gaborage/sdkcore/trace"
)

const testBaseURL = "https://deliver.example.com/env-1"

// recorder is a base transport that records what reached it.
type recorder struct {
	requests []*http.Request
	status   int
	err      error
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("{}")),
		Request:    req,
	}, nil
}

func (r *recorder) last() *http.Request {
	return r.requests[len(r.requests)-1]
}

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	return req
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(req)
			})
		}
	}

	base := &recorder{}
	rt := Chain(base, tag("outer"), nil, tag("middle"), Passthrough(), tag("inner"))
	_, err := rt.RoundTrip(newRequest(t, testBaseURL))

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "middle", "inner"}, order)
	assert.Len(t, base.requests, 1)
}

func TestChainNilBaseUsesDefaultTransport(t *testing.T) {
	assert.Equal(t, http.DefaultTransport, Chain(nil))
}

func TestAttemptCounter(t *testing.T) {
	assert.Equal(t, 0, Attempts(context.Background()))

	ctx := EnsureAttemptCounter(context.Background())
	assert.Equal(t, ctx, EnsureAttemptCounter(ctx), "existing counter is reused")

	base := &recorder{}
	rt := Chain(base, CountAttempts())
	for range 3 {
		_, err := rt.RoundTrip(newRequest(t, testBaseURL).WithContext(ctx))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, Attempts(ctx))

	_, err := rt.RoundTrip(newRequest(t, testBaseURL))
	require.NoError(t, err, "requests without a counter pass through")
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name     string
		opts     config.Options
		found    bool
		url      string
		wantAuth string
	}{
		{
			name:     "key_configured",
			opts:     &config.ClientOptions{BaseURL: testBaseURL, APIKey: "secret"},
			found:    true,
			url:      testBaseURL + "/items",
			wantAuth: "Bearer secret",
		},
		{
			name:  "no_key",
			opts:  &config.ClientOptions{BaseURL: testBaseURL},
			found: true,
			url:   testBaseURL + "/items",
		},
		{
			name:  "whitespace_key",
			opts:  &config.ClientOptions{BaseURL: testBaseURL, APIKey: "  "},
			found: true,
			url:   testBaseURL + "/items",
		},
		{
			name:  "other_host",
			opts:  &config.ClientOptions{BaseURL: testBaseURL, APIKey: "secret"},
			found: true,
			url:   "https://cdn.example.net/asset.png",
		},
		{
			name: "unknown_client",
			url:  testBaseURL + "/items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &mocks.MockOptionsSource{}
			source.On("Current", "delivery").Return(tt.opts, tt.found)

			base := &recorder{}
			req := newRequest(t, tt.url)
			_, err := Chain(base, Authentication(source, "delivery")).RoundTrip(req)

			require.NoError(t, err)
			assert.Equal(t, tt.wantAuth, base.last().Header.Get(HeaderAuthorization))
			assert.Empty(t, req.Header.Get(HeaderAuthorization), "caller's request is not modified")
			source.AssertExpectations(t)
		})
	}
}

func TestAuthenticationReadsLiveOptions(t *testing.T) {
	monitor := config.NewMonitor()
	require.NoError(t, monitor.Set("delivery", &config.ClientOptions{EnvironmentID: "env", BaseURL: testBaseURL, APIKey: "first"}))

	base := &recorder{}
	rt := Chain(base, Authentication(monitor, "delivery"))

	_, err := rt.RoundTrip(newRequest(t, testBaseURL))
	require.NoError(t, err)
	assert.Equal(t, "Bearer first", base.last().Header.Get(HeaderAuthorization))

	require.NoError(t, monitor.Set("delivery", &config.ClientOptions{EnvironmentID: "env", BaseURL: testBaseURL, APIKey: "rotated"}))
	_, err = rt.RoundTrip(newRequest(t, testBaseURL))
	require.NoError(t, err)
	assert.Equal(t, "Bearer rotated", base.last().Header.Get(HeaderAuthorization))
}

func TestTracking(t *testing.T) {
	sdk := identity.MustNew("delivery-sdk", "1.2.3")

	t.Run("with_source", func(t *testing.T) {
		base := &recorder{}
		tr := identity.NewTracking(sdk, "", identity.Source{Name: "shop", Version: "2.0.0"}, true)
		_, err := Chain(base, Tracking(tr)).RoundTrip(newRequest(t, testBaseURL))

		require.NoError(t, err)
		assert.Equal(t, "pkg.go.dev;delivery-sdk;1.2.3", base.last().Header.Get(HeaderSDKID))
		assert.Equal(t, "shop;2.0.0", base.last().Header.Get(HeaderSource))
	})

	t.Run("without_source", func(t *testing.T) {
		base := &recorder{}
		tr := identity.NewTracking(sdk, "", identity.Source{}, false)
		_, err := Chain(base, Tracking(tr)).RoundTrip(newRequest(t, testBaseURL))

		require.NoError(t, err)
		assert.NotEmpty(t, base.last().Header.Get(HeaderSDKID))
		assert.Empty(t, base.last().Header.Values(HeaderSource))
	})

	t.Run("every_attempt", func(t *testing.T) {
		base := &recorder{}
		rt := Chain(base, Tracking(identity.NewTracking(sdk, "", identity.Source{}, false)))
		req := newRequest(t, testBaseURL)
		for range 3 {
			_, err := rt.RoundTrip(req)
			require.NoError(t, err)
		}
		require.Len(t, base.requests, 3)
		for _, r := range base.requests {
			assert.Len(t, r.Header.Values(HeaderSDKID), 1, "header is set, not appended")
		}
	})
}

func TestRequestID(t *testing.T) {
	t.Run("from_context", func(t *testing.T) {
		base := &recorder{}
		req := newRequest(t, testBaseURL)
		req = req.WithContext(trace.WithRequestID(req.Context(), "req-42"))

		_, err := Chain(base, RequestID("")).RoundTrip(req)
		require.NoError(t, err)
		assert.Equal(t, "req-42", base.last().Header.Get(trace.HeaderXRequestID))
	})

	t.Run("generated", func(t *testing.T) {
		base := &recorder{}
		_, err := Chain(base, RequestID("X-Correlation-ID")).RoundTrip(newRequest(t, testBaseURL))
		require.NoError(t, err)
		assert.NotEmpty(t, base.last().Header.Get("X-Correlation-ID"))
	})

	t.Run("caller_header_kept", func(t *testing.T) {
		base := &recorder{}
		req := newRequest(t, testBaseURL)
		req.Header.Set(trace.HeaderXRequestID, "mine")

		_, err := Chain(base, RequestID("")).RoundTrip(req)
		require.NoError(t, err)
		assert.Equal(t, "mine", base.last().Header.Get(trace.HeaderXRequestID))
	})
}

func TestTelemetryReportsOutcome(t *testing.T) {
	listener := (&mocks.MockListener{}).ExpectAny()
	base := &recorder{status: http.StatusServiceUnavailable}
	rt := Chain(base, Telemetry(listener, telemetry.LogAndContinue, logger.Nop(), "delivery"), CountAttempts())

	resp, err := rt.RoundTrip(newRequest(t, testBaseURL))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	events := listener.Events()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "delivery", e.ClientName)
	assert.Equal(t, http.StatusServiceUnavailable, e.StatusCode())
	assert.Equal(t, 1, e.Attempts)
	assert.NotEmpty(t, e.RequestID)
	assert.Same(t, base.last(), e.Request)
	listener.AssertNumberOfCalls(t, "OnRequestStart", 1)
}

func TestTelemetryReportsTransportError(t *testing.T) {
	listener := (&mocks.MockListener{}).ExpectAny()
	base := &recorder{err: context.Canceled}
	rt := Chain(base, Telemetry(listener, telemetry.LogAndContinue, logger.Nop(), "delivery"))

	_, err := rt.RoundTrip(newRequest(t, testBaseURL))
	require.ErrorIs(t, err, context.Canceled)

	events := listener.Events()
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, context.Canceled)
	assert.Nil(t, events[0].Response)
}

var errListener = errors.New("listener down")

func TestTelemetryLogAndContinue(t *testing.T) {
	tests := []struct {
		name     string
		listener telemetry.Listener
	}{
		{
			name:     "start_error",
			listener: telemetry.Funcs{Start: func(context.Context, *http.Request) error { return errListener }},
		},
		{
			name:     "end_error",
			listener: telemetry.Funcs{End: func(context.Context, telemetry.Event) error { return errListener }},
		},
		{
			name:     "start_panic",
			listener: telemetry.Funcs{Start: func(context.Context, *http.Request) error { panic("boom") }},
		},
		{
			name:     "end_panic",
			listener: telemetry.Funcs{End: func(context.Context, telemetry.Event) error { panic("boom") }},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := &recorder{}
			rt := Chain(base, Telemetry(tt.listener, telemetry.LogAndContinue, logger.NewWithWriter("info", &buf, nil), "delivery"))

			resp, err := rt.RoundTrip(newRequest(t, testBaseURL))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Len(t, base.requests, 1)
			assert.Contains(t, buf.String(), "Telemetry listener failed")
		})
	}
}

func TestTelemetryPropagate(t *testing.T) {
	t.Run("start_error_aborts", func(t *testing.T) {
		base := &recorder{}
		listener := telemetry.Funcs{Start: func(context.Context, *http.Request) error { return errListener }}
		rt := Chain(base, Telemetry(listener, telemetry.Propagate, logger.Nop(), "delivery"))

		resp, err := rt.RoundTrip(newRequest(t, testBaseURL))
		assert.Nil(t, resp)
		var lerr *telemetry.ListenerError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, telemetry.PhaseStart, lerr.Phase)
		assert.ErrorIs(t, err, errListener)
		assert.Empty(t, base.requests)
	})

	t.Run("start_error_ends_started_span", func(t *testing.T) {
		tp := obtest.NewTestTraceProvider(t)
		mp := obtest.NewTestMeterProvider(t)
		otelListener, err := telemetry.NewOTelListener(tp, mp)
		require.NoError(t, err)

		var ended []telemetry.Event
		failing := telemetry.Funcs{
			Start: func(context.Context, *http.Request) error { return errListener },
			End: func(_ context.Context, e telemetry.Event) error {
				ended = append(ended, e)
				return nil
			},
		}
		base := &recorder{}
		listeners := telemetry.Listeners{otelListener, failing}
		rt := Chain(base, Telemetry(listeners, telemetry.Propagate, logger.Nop(), "delivery"))

		_, err = rt.RoundTrip(newRequest(t, testBaseURL))
		require.ErrorIs(t, err, errListener)
		assert.Empty(t, base.requests)

		spans := tp.Exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		obtest.AssertInt64Sum(t, obtest.FindMetric(t, mp.Collect(t), telemetry.MetricRequestsInFlight), 0)

		require.Len(t, ended, 1)
		var lerr *telemetry.ListenerError
		require.ErrorAs(t, ended[0].Err, &lerr)
		assert.Equal(t, telemetry.PhaseStart, lerr.Phase)
	})

	t.Run("end_error_wraps_outcome", func(t *testing.T) {
		base := &recorder{err: io.ErrUnexpectedEOF}
		listener := telemetry.Funcs{End: func(context.Context, telemetry.Event) error { return errListener }}
		rt := Chain(base, Telemetry(listener, telemetry.Propagate, logger.Nop(), "delivery"))

		_, err := rt.RoundTrip(newRequest(t, testBaseURL))
		var lerr *telemetry.ListenerError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, telemetry.PhaseEnd, lerr.Phase)
		assert.ErrorIs(t, err, errListener)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestTelemetryNilListener(t *testing.T) {
	base := &recorder{}
	_, err := Chain(base, Telemetry(nil, telemetry.LogAndContinue, nil, "delivery")).RoundTrip(newRequest(t, testBaseURL))
	require.NoError(t, err)
}

func TestTelemetryStartSeesClientName(t *testing.T) {
	listener := &mocks.MockListener{}
	listener.On("OnRequestStart", mock.MatchedBy(func(ctx context.Context) bool {
		return telemetry.ClientNameFromContext(ctx) == "management"
	}), mock.Anything).Return(nil).Once()
	listener.On("OnRequestEnd", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := Chain(&recorder{}, Telemetry(listener, telemetry.LogAndContinue, logger.Nop(), "management")).
		RoundTrip(httptest.NewRequest(http.MethodGet, testBaseURL, http.NoBody))
	require.NoError(t, err)
	listener.AssertExpectations(t)
}
