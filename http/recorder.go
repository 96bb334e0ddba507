package http

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// RecordedRequest is a request as the server received it.
type RecordedRequest struct {
	Method   string
	Path     string
	Query    url.Values
	Header   http.Header
	Body     []byte
	RemoteIP string
}

// Recorder keeps the requests a handler received, in arrival order.
type Recorder struct {
	mu       sync.Mutex
	requests []RecordedRequest
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Wrap records each request, then hands it to h with its body restored.
func (rec *Recorder) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(r.Body)
			if err != nil {
				RespondError(w, http.StatusRequestEntityTooLarge, err.Error())
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		rec.mu.Lock()
		rec.requests = append(rec.requests, RecordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			Query:    r.URL.Query(),
			Header:   r.Header.Clone(),
			Body:     body,
			RemoteIP: parseRemoteIPAddress(r),
		})
		rec.mu.Unlock()

		h.ServeHTTP(w, r)
	})
}

// Requests returns a copy of the requests recorded so far.
func (rec *Recorder) Requests() []RecordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]RecordedRequest(nil), rec.requests...)
}

// Last returns the most recent request. ok is false when none was recorded.
func (rec *Recorder) Last() (r RecordedRequest, ok bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.requests) == 0 {
		return RecordedRequest{}, false
	}
	return rec.requests[len(rec.requests)-1], true
}

// Len returns the number of requests recorded.
func (rec *Recorder) Len() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.requests)
}

func (rec *Recorder) Reset() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.requests = nil
}
