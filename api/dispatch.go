package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-secure-stdlib/strutil"
)

// queryMethods carry their data in the query string.
var queryMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodTrace,
}

func isQueryMethod(method string) bool {
	return strutil.StrListContains(queryMethods, strings.ToUpper(method))
}

// Get issues a GET request. The arguments following the path are an
// optional query mapping, an optional SuccessFunc and an optional
// FailureFunc, in that order.
func (c *Client) Get(ctx context.Context, path string, args ...interface{}) (*Response, error) {
	return c.dispatch(ctx, http.MethodGet, path, args)
}

// Head issues a HEAD request with the same arguments as Get.
func (c *Client) Head(ctx context.Context, path string, args ...interface{}) (*Response, error) {
	return c.dispatch(ctx, http.MethodHead, path, args)
}

// Options issues an OPTIONS request with the same arguments as Get.
func (c *Client) Options(ctx context.Context, path string, args ...interface{}) (*Response, error) {
	return c.dispatch(ctx, http.MethodOptions, path, args)
}

// Delete issues a DELETE request with the same arguments as Get.
func (c *Client) Delete(ctx context.Context, path string, args ...interface{}) (*Response, error) {
	return c.dispatch(ctx, http.MethodDelete, path, args)
}

// Post issues a POST request. The arguments following the path are an
// optional body (a mapping, a struct or a *Multipart), an optional
// SuccessFunc and an optional FailureFunc, in that order.
func (c *Client) Post(ctx context.Context, path string, args ...interface{}) (*Response, error) {
	return c.dispatch(ctx, http.MethodPost, path, args)
}

// Put issues a PUT request with the same arguments as Post.
func (c *Client) Put(ctx context.Context, path string, args ...interface{}) (*Response, error) {
	return c.dispatch(ctx, http.MethodPut, path, args)
}

// Patch issues a PATCH request with the same arguments as Post.
func (c *Client) Patch(ctx context.Context, path string, args ...interface{}) (*Response, error) {
	return c.dispatch(ctx, http.MethodPatch, path, args)
}

// Send issues a request described by named options instead of positional
// arguments.
func (c *Client) Send(ctx context.Context, method, path string, opts Options) (*Response, error) {
	d, err := c.Resolve(method, path, opts.Data, opts.OnSuccess, opts.OnFailure)
	if err != nil {
		return nil, err
	}
	d.Form = opts.Form
	return c.Do(ctx, method, d)
}

func (c *Client) dispatch(ctx context.Context, method, path string, args []interface{}) (*Response, error) {
	d, err := c.Resolve(method, path, args...)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, method, d)
}

// Do sends the request a descriptor resolved to and fires its callbacks.
// Errors building the request are returned without calling either callback.
func (c *Client) Do(ctx context.Context, method string, d *Descriptor) (*Response, error) {
	r, err := c.requestFromDescriptor(method, d)
	if err != nil {
		return nil, err
	}

	resp, err := c.RawRequestWithContext(ctx, r)
	if err != nil {
		if resp == nil {
			resp = &Response{Request: r, Err: err}
		}
		if d.OnFailure != nil {
			d.OnFailure(resp)
		}
		return resp, err
	}

	if d.OnSuccess != nil {
		d.OnSuccess(resp.Data, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) requestFromDescriptor(method string, d *Descriptor) (*Request, error) {
	if d == nil || d.URL == "" {
		return nil, &ArgumentError{Method: method, Err: ErrMissingURL}
	}

	r := c.NewRequest(method, d.URL)
	r.Form = d.Form

	if d.Data == nil {
		return r, nil
	}

	if isQueryMethod(r.Method) {
		values, err := QueryValues(d.Data)
		if err != nil {
			return nil, &ArgumentError{Method: method, Position: 1, Value: d.Data, Err: err}
		}
		for k, vs := range values {
			for _, v := range vs {
				r.Params.Add(k, v)
			}
		}
		return r, nil
	}

	switch data := d.Data.(type) {
	case *Multipart:
		r.SetMultipartBody(data)
	case url.Values:
		if err := r.SetJSONBody(valuesToMap(data)); err != nil {
			return nil, err
		}
	default:
		if err := r.SetJSONBody(data); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// QueryValues converts a data mapping or struct into query parameters.
// Sequences become repeated parameters and nil values are dropped.
func QueryValues(data interface{}) (url.Values, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case url.Values:
		out := make(url.Values, len(v))
		for k, vs := range v {
			out[k] = append([]string(nil), vs...)
		}
		return out, nil
	case map[string]string:
		out := make(url.Values, len(v))
		for k, s := range v {
			out.Set(k, s)
		}
		return out, nil
	case map[string]interface{}:
		return mapToValues(v)
	case *Multipart:
		return nil, fmt.Errorf("a multipart payload cannot be encoded as a query")
	}

	// Structs and other mappings go through their JSON form so field tags
	// name the parameters.
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, fmt.Errorf("query data must encode to a mapping: %w", err)
	}
	return mapToValues(m)
}

func mapToValues(m map[string]interface{}) (url.Values, error) {
	out := make(url.Values, len(m))
	for k, raw := range m {
		switch v := raw.(type) {
		case nil:
		case []interface{}:
			for _, item := range v {
				s, err := queryString(item)
				if err != nil {
					return nil, fmt.Errorf("query parameter %q: %w", k, err)
				}
				out.Add(k, s)
			}
		case []string:
			for _, s := range v {
				out.Add(k, s)
			}
		default:
			s, err := queryString(v)
			if err != nil {
				return nil, fmt.Errorf("query parameter %q: %w", k, err)
			}
			out.Set(k, s)
		}
	}
	return out, nil
}

func queryString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case time.Time:
		return t.Format(time.RFC3339), nil
	case fmt.Stringer:
		return t.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return fmt.Sprint(t), nil
	case float32, float64:
		buf, err := json.Marshal(t)
		return string(buf), err
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func valuesToMap(values url.Values) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}
