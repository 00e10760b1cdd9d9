// Package registry assembles named clients from options.
//
// A Builder produces one Client whose *http.Client carries the full pipeline:
//
//	telemetry -> resilience -> custom middleware -> tracking -> authentication -> request id -> transport
//
// Tracking, authentication and the request id sit inside the retry boundary, so
// every attempt is sent with fresh headers. A Factory keeps several named clients
// that share one config.Monitor for live options.
package registry
