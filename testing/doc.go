// Package testing provides test utilities for code built on sdkcore.
//
// # Mocks
//
// The mocks subpackage provides testify-based mock implementations of the
// pipeline's extension points:
//   - telemetry.Listener (MockListener)
//   - config.OptionsSource (MockOptionsSource)
//
// # Fixtures
//
// The fixtures subpackage provides a scripted upstream API built on echo that
// records every request it receives and replays a sequence of responses per route,
// which is how retry, timeout and header behavior are asserted end to end.
//
// # Usage
//
//	import (
//		"github.com/gaborage/sdkcore/testing/fixtures"
//		"github.com/gaborage/sdkcore/testing/mocks"
//	)
package testing
