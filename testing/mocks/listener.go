package mocks

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/sdkcore/telemetry"
)

// MockListener provides a testify-based mock implementation of telemetry.Listener.
//
// Example usage:
//
//	listener := &mocks.MockListener{}
//	listener.On("OnRequestStart", mock.Anything, mock.Anything).Return(nil)
//	listener.On("OnRequestEnd", mock.Anything, mock.MatchedBy(func(e telemetry.Event) bool {
//		return e.StatusCode() == http.StatusOK
//	})).Return(nil)
type MockListener struct {
	mock.Mock
}

var _ telemetry.Listener = (*MockListener)(nil)

// OnRequestStart implements telemetry.Listener
func (m *MockListener) OnRequestStart(ctx context.Context, req *http.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// OnRequestEnd implements telemetry.Listener
func (m *MockListener) OnRequestEnd(ctx context.Context, event telemetry.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// ExpectAny accepts every start and end notification and returns m.
func (m *MockListener) ExpectAny() *MockListener {
	m.On("OnRequestStart", mock.Anything, mock.Anything).Return(nil)
	m.On("OnRequestEnd", mock.Anything, mock.Anything).Return(nil)
	return m
}

// Events returns the events passed to OnRequestEnd in call order.
func (m *MockListener) Events() []telemetry.Event {
	var out []telemetry.Event
	for _, c := range m.Calls {
		if c.Method == "OnRequestEnd" {
			out = append(out, c.Arguments.Get(1).(telemetry.Event))
		}
	}
	return out
}
