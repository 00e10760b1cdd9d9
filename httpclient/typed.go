package httpclient

import (
	"context"
	"errors"
	"net/http"
)

// TypedResponse is a Response with its decoded 2xx body.
type TypedResponse[T any] struct {
	*Response
	Content T
}

type codecProvider interface {
	Codec() Codec
}

// GetJSON issues a GET and decodes a 2xx body into T.
func GetJSON[T any](ctx context.Context, inv Invoker, endpoint string, opts ...CallOption) (*TypedResponse[T], error) {
	return Send[T](ctx, inv, newRequest(http.MethodGet, endpoint, nil, opts))
}

// PostJSON issues a POST and decodes a 2xx body into T.
func PostJSON[T any](ctx context.Context, inv Invoker, endpoint string, payload any, opts ...CallOption) (*TypedResponse[T], error) {
	return Send[T](ctx, inv, newRequest(http.MethodPost, endpoint, payload, opts))
}

// PutJSON issues a PUT and decodes a 2xx body into T.
func PutJSON[T any](ctx context.Context, inv Invoker, endpoint string, payload any, opts ...CallOption) (*TypedResponse[T], error) {
	return Send[T](ctx, inv, newRequest(http.MethodPut, endpoint, payload, opts))
}

// PatchJSON issues a PATCH and decodes a 2xx body into T.
func PatchJSON[T any](ctx context.Context, inv Invoker, endpoint string, payload any, opts ...CallOption) (*TypedResponse[T], error) {
	return Send[T](ctx, inv, newRequest(http.MethodPatch, endpoint, payload, opts))
}

// DeleteJSON issues a DELETE and decodes a 2xx body into T.
func DeleteJSON[T any](ctx context.Context, inv Invoker, endpoint string, opts ...CallOption) (*TypedResponse[T], error) {
	return Send[T](ctx, inv, newRequest(http.MethodDelete, endpoint, nil, opts))
}

// UploadJSON uploads file and decodes a 2xx body into T.
func UploadJSON[T any](ctx context.Context, inv Invoker, endpoint string, file UploadFile, opts ...CallOption) (*TypedResponse[T], error) {
	resp, err := inv.Upload(ctx, endpoint, file, opts...)
	return typed[T](inv, resp, err)
}

// Send issues req through inv. Non-2xx responses are returned without decoding and
// without error.
func Send[T any](ctx context.Context, inv Invoker, req *Request) (*TypedResponse[T], error) {
	resp, err := inv.Do(ctx, req)
	return typed[T](inv, resp, err)
}

func typed[T any](inv Invoker, resp *Response, err error) (*TypedResponse[T], error) {
	if err != nil {
		var se *StatusError
		if resp == nil || !errors.As(err, &se) {
			return nil, err
		}
	}
	out := &TypedResponse[T]{Response: resp}
	if !resp.IsSuccess() {
		return out, nil
	}

	codec := DefaultCodec
	if p, ok := inv.(codecProvider); ok {
		codec = p.Codec()
	}
	content, err := decodeBody[T](codec, resp.Body)
	if err != nil {
		return out, err
	}
	out.Content = content
	return out, nil
}
