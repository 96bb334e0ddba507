package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// Request is a raw request configuration structure used to initiate
// API requests to the billing server.
type Request struct {
	Method    string
	URL       *url.URL
	Params    url.Values
	Headers   http.Header
	RequestID string

	// Form is the form the request originates from. Its hidden CSRF field
	// takes precedence over the page meta tag, and its field names decide
	// which error keys are displayed inline.
	Form *Form

	BodyBytes []byte
	Multipart *Multipart

	// Body is used when BodyBytes and Multipart are unset.
	Body     io.Reader
	BodySize int64
}

// SetJSONBody encodes val as the JSON body of the request.
func (r *Request) SetJSONBody(val interface{}) error {
	buf, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	r.Multipart = nil
	r.Body = nil
	r.BodySize = int64(len(buf))
	r.BodyBytes = buf
	return nil
}

// ResetJSONBody clears any body previously set on the request.
func (r *Request) ResetJSONBody() {
	r.BodyBytes = nil
	r.Multipart = nil
	r.Body = nil
	r.BodySize = 0
}

// SetMultipartBody uses the pre-encoded payload as the body. The content type
// carries the boundary the payload was encoded with.
func (r *Request) SetMultipartBody(m *Multipart) {
	r.BodyBytes = nil
	r.Body = nil
	r.Multipart = m
	if m != nil {
		r.BodySize = int64(len(m.Body))
	}
}

func (r *Request) hasJSONBody() bool {
	return r.BodyBytes != nil
}

func (r *Request) toRetryableHTTP() (*retryablehttp.Request, error) {
	// Encode the query parameters
	r.URL.RawQuery = r.Params.Encode()

	var body interface{}
	switch {
	case r.Multipart != nil:
		body = r.Multipart.Body
	case r.BodyBytes != nil:
		body = r.BodyBytes
	case r.Body != nil:
		body = r.Body
	}

	req, err := retryablehttp.NewRequest(r.Method, r.URL.RequestURI(), body)
	if err != nil {
		return nil, err
	}

	req.URL.User = r.URL.User
	req.URL.Scheme = r.URL.Scheme
	req.URL.Host = r.URL.Host
	req.Host = r.URL.Host

	if r.Headers != nil {
		for header, vals := range r.Headers {
			for _, val := range vals {
				req.Header.Add(header, val)
			}
		}
	}

	switch {
	case r.Multipart != nil:
		req.Header.Set("Content-Type", r.Multipart.ContentType)
	case r.hasJSONBody():
		req.Header.Set("Content-Type", ContentTypeJSON)
	}

	if r.RequestID != "" {
		req.Header.Set(HeaderRequestID, r.RequestID)
	}

	return req, nil
}

var duplicateSlashes = regexp.MustCompile(`/{2,}`)

// JoinPath joins URL path segments with a single separator between them.
// Unlike path.Join it leaves dot segments alone and keeps the trailing slash
// of the last segment, which the API uses to tell collections from items.
func JoinPath(elems ...string) string {
	var parts []string
	for _, e := range elems {
		if e != "" {
			parts = append(parts, e)
		}
	}
	if len(parts) == 0 {
		return "/"
	}

	trailing := strings.HasSuffix(parts[len(parts)-1], "/")
	joined := collapseSlashes("/" + strings.Join(parts, "/"))
	if trailing {
		if !strings.HasSuffix(joined, "/") {
			joined += "/"
		}
	} else if len(joined) > 1 {
		joined = strings.TrimSuffix(joined, "/")
	}
	return joined
}

func collapseSlashes(p string) string {
	return duplicateSlashes.ReplaceAllString(p, "/")
}
