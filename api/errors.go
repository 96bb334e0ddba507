package api

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrMissingURL is returned when a call has no request URL.
	ErrMissingURL = errors.New("request url is required")

	// ErrTooManyArgs is returned when more arguments follow the URL than a
	// data value, a success callback and a failure callback.
	ErrTooManyArgs = errors.New("too many arguments")
)

// ArgumentError reports a call whose arguments do not fit the calling
// convention. It is a programming error and is never sent.
type ArgumentError struct {
	Method   string
	Position int
	Value    interface{}
	Err      error
}

func (e *ArgumentError) Error() string {
	if e.Position == 0 {
		return fmt.Sprintf("%s: %s", e.Method, e.Err)
	}
	return fmt.Sprintf("%s: argument %d (%T): %s", e.Method, e.Position, e.Value, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// ResponseError is the error returned when the billing server responds with
// a non-2xx status.
type ResponseError struct {
	// HTTPMethod is the HTTP method for the request (PUT, GET, etc).
	HTTPMethod string

	// URL is the URL of the request.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Messages are the human-readable messages extracted from the body.
	Messages []string

	// RawBody is the unparsed response body.
	RawBody []byte
}

func (r *ResponseError) Error() string {
	var errBody bytes.Buffer
	errBody.WriteString("Error making API request.\n\n")
	errBody.WriteString(fmt.Sprintf("URL: %s %s\n", r.HTTPMethod, r.URL))
	errBody.WriteString(fmt.Sprintf("Code: %d. Errors:\n\n", r.StatusCode))
	for _, m := range r.Messages {
		errBody.WriteString(fmt.Sprintf("* %s\n", m))
	}

	return errBody.String()
}
