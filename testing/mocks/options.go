package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/gaborage/sdkcore/config"
)

// MockOptionsSource provides a testify-based mock implementation of config.OptionsSource.
//
// Example usage:
//
//	source := &mocks.MockOptionsSource{}
//	source.On("Current", "delivery").Return(&config.ClientOptions{APIKey: "k"}, true)
type MockOptionsSource struct {
	mock.Mock
}

var _ config.OptionsSource = (*MockOptionsSource)(nil)

// Current implements config.OptionsSource
func (m *MockOptionsSource) Current(name string) (config.Options, bool) {
	args := m.Called(name)
	opts, _ := args.Get(0).(config.Options)
	return opts, args.Bool(1)
}
