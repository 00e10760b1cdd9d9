// Package httpclient is the verb-shaped façade SDKs use on top of a named client's
// *http.Client.
//
// Payloads are encoded with the SDK JSON convention: camelCase member names with
// null members omitted. Responses are decoded case-insensitively and may contain
// // and /* */ comments.
//
// Errors
//   - Untyped calls return the response together with *StatusError when the status
//     is not 2xx.
//   - Typed helpers (GetJSON, PostJSON, ...) never fail on status. Check
//     TypedResponse.IsSuccess instead.
//   - Malformed bodies produce *DeserializationError.
//   - Transport, timeout and circuit breaker errors are returned as produced by the
//     pipeline, wrapped in *url.Error by net/http.
package httpclient
