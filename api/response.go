package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Response is a raw response that wraps an HTTP response. The body has been
// read and, when it was JSON, decoded into Data.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header

	// Data is the decoded JSON body, or nil when the body was empty or not
	// JSON.
	Data interface{}

	RawBody []byte

	// Err is set when the request never produced an HTTP response.
	Err error

	Request *Request
}

func newResponse(r *Request, httpResp *http.Response) (*Response, error) {
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		RawBody:    raw,
		Request:    r,
	}
	if err != nil {
		resp.Err = err
		return resp, fmt.Errorf("failed to read response body: %w", err)
	}

	// Some successful responses are not JSON; they simply carry no data.
	if len(bytes.TrimSpace(raw)) > 0 {
		var data interface{}
		if err := json.Unmarshal(raw, &data); err == nil {
			resp.Data = data
		} else if resp.StatusCode >= 400 && strings.HasPrefix(httpResp.Header.Get("Content-Type"), "text/plain") {
			resp.Data = strings.TrimSpace(string(raw))
		}
	}

	return resp, nil
}

// Success reports whether the response carries a 2xx status.
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusText returns the reason phrase of the response status.
func (r *Response) StatusText() string {
	if r == nil {
		return ""
	}
	if code, text, ok := strings.Cut(r.Status, " "); ok && code == strconv.Itoa(r.StatusCode) && text != "" {
		return text
	}
	return http.StatusText(r.StatusCode)
}

// DecodeJSON decodes the raw body into out.
func (r *Response) DecodeJSON(out interface{}) error {
	if len(bytes.TrimSpace(r.RawBody)) == 0 {
		return nil
	}
	return json.Unmarshal(r.RawBody, out)
}

// Error returns a *ResponseError when the status is not 2xx, and nil
// otherwise.
func (r *Response) Error() error {
	if r.Success() {
		return nil
	}

	respErr := &ResponseError{
		StatusCode: r.StatusCode,
		RawBody:    r.RawBody,
	}
	if r.Request != nil {
		respErr.HTTPMethod = r.Request.Method
		respErr.URL = r.Request.URL.String()
	}
	respErr.Messages, _ = ErrorMessages(r, MessageOptions{})
	return respErr
}
