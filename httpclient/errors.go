package httpclient

import (
	"errors"
	"fmt"
)

// ClientError is implemented by every error this package creates.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType is the category of a ClientError.
type ErrorType string

const (
	StatusErrorType          ErrorType = "status"
	DeserializationErrorType ErrorType = "deserialization"
	RequestErrorType         ErrorType = "request"
)

// maxSnippet bounds the body excerpt kept by DeserializationError.
const maxSnippet = 256

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unsuccessful status %d after %d attempt(s)", e.StatusCode, e.Attempts)
}

func (e *StatusError) Type() ErrorType { return StatusErrorType }

// DeserializationError reports a body that could not be decoded into Target.
type DeserializationError struct {
	Target  string
	Snippet string
	Err     error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("decode response into %s: %v (body: %q)", e.Target, e.Err, e.Snippet)
}

func (e *DeserializationError) Type() ErrorType { return DeserializationErrorType }

func (e *DeserializationError) Unwrap() error { return e.Err }

// RequestError reports a request that could not be built, so nothing was sent.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Type() ErrorType { return RequestErrorType }

func (e *RequestError) Unwrap() error { return e.Err }

func newDeserializationError(target string, body []byte, err error) *DeserializationError {
	snippet := body
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return &DeserializationError{Target: target, Snippet: string(snippet), Err: err}
}

// IsErrorType reports whether err wraps a ClientError of type t.
func IsErrorType(err error, t ErrorType) bool {
	var ce ClientError
	if errors.As(err, &ce) {
		return ce.Type() == t
	}
	return false
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
