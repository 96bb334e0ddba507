package api

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"

	"github.com/mitchellh/copystructure"
)

// SuccessFunc receives the decoded body and status of a 2xx response. The
// body is nil when the response was not JSON.
type SuccessFunc func(body interface{}, status int)

// FailureFunc receives the response of a failed request: a non-2xx status,
// or a transport error with StatusCode zero.
type FailureFunc func(resp *Response)

// Descriptor is the resolved shape of a call.
type Descriptor struct {
	URL       string
	Data      interface{}
	Form      *Form
	OnSuccess SuccessFunc
	OnFailure FailureFunc

	// DefaultFailure is set when OnFailure is the client's message renderer
	// rather than a callback supplied by the caller.
	DefaultFailure bool
}

// Options is the typed alternative to positional arguments.
type Options struct {
	Data      interface{}
	Form      *Form
	OnSuccess SuccessFunc
	OnFailure FailureFunc
}

// argument slots, in the only order they may appear
const (
	slotData = iota
	slotSuccess
	slotFailure
	slotDone
)

// ResolveArgs maps the arguments following a URL onto a Descriptor. The
// arguments are, in order and each optional: a data value, a success
// callback, a failure callback. An untyped nil or a nil callback holds a
// slot without filling it, so Post(url, nil, nil, onErr) is valid.
//
// Data is deep-copied, so the descriptor does not change when the caller
// later mutates the value it passed.
func ResolveArgs(method, requestURL string, args ...interface{}) (*Descriptor, error) {
	if requestURL == "" {
		return nil, &ArgumentError{Method: method, Err: ErrMissingURL}
	}
	if len(args) > slotDone {
		return nil, &ArgumentError{Method: method, Position: slotDone + 1, Value: args[slotDone], Err: ErrTooManyArgs}
	}

	d := &Descriptor{URL: requestURL}
	next := slotData
	for i, arg := range args {
		pos := i + 1
		argErr := func(err error) error {
			return &ArgumentError{Method: method, Position: pos, Value: arg, Err: err}
		}
		if next == slotDone {
			return nil, argErr(ErrTooManyArgs)
		}

		switch v := arg.(type) {
		case nil:
			next++

		case SuccessFunc:
			if next > slotSuccess {
				return nil, argErr(errors.New("success callback must precede the failure callback"))
			}
			d.OnSuccess = v
			next = slotFailure
		case func(interface{}, int):
			if next > slotSuccess {
				return nil, argErr(errors.New("success callback must precede the failure callback"))
			}
			d.OnSuccess = v
			next = slotFailure

		case FailureFunc:
			if next != slotFailure {
				return nil, argErr(errors.New("failure callback must follow a success callback"))
			}
			d.OnFailure = v
			next = slotDone
		case func(*Response):
			if next != slotFailure {
				return nil, argErr(errors.New("failure callback must follow a success callback"))
			}
			d.OnFailure = v
			next = slotDone

		default:
			if next != slotData {
				return nil, argErr(errors.New("data must be the first argument after the url"))
			}
			if err := checkDataShape(method, v); err != nil {
				return nil, argErr(err)
			}
			if isNilPointer(v) {
				next = slotSuccess
				continue
			}
			copied, err := copystructure.Copy(v)
			if err != nil {
				return nil, argErr(fmt.Errorf("failed to copy data: %w", err))
			}
			d.Data = copied
			next = slotSuccess
		}
	}

	return d, nil
}

// Resolve is ResolveArgs with the client's message renderer standing in for
// a missing failure callback.
func (c *Client) Resolve(method, requestURL string, args ...interface{}) (*Descriptor, error) {
	d, err := ResolveArgs(method, requestURL, args...)
	if err != nil {
		return nil, err
	}
	if d.OnFailure == nil {
		d.OnFailure = c.ShowErrorMessages
		d.DefaultFailure = true
	}
	return d, nil
}

func checkDataShape(method string, v interface{}) error {
	switch v.(type) {
	case map[string]interface{}, map[string]string, url.Values:
		return nil
	case *Multipart:
		if isQueryMethod(method) {
			return fmt.Errorf("%s requests cannot carry a multipart body", method)
		}
		return nil
	case *Form, Form:
		return errors.New("a form is not request data, pass it as Options.Form")
	case *Page, Page, *Response, Response, *Descriptor, Descriptor, Options, *Options, *Request, Request:
		return fmt.Errorf("%T is not request data", v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return nil
		}
		return errors.New("data mappings must have string keys")
	case reflect.Struct:
		return nil
	case reflect.Ptr:
		if rv.Type().Elem().Kind() == reflect.Struct {
			return nil
		}
	case reflect.Func:
		return errors.New("callbacks must be a SuccessFunc or a FailureFunc")
	}
	return errors.New("data must be a mapping or a struct")
}

func isNilPointer(v interface{}) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map:
		return rv.IsNil()
	}
	return false
}
