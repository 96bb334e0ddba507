package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
)

// TestServer is a running handler and the recorder attached to it.
type TestServer struct {
	*httptest.Server
	Recorder *Recorder
}

// NewTestServer starts a server for the given routes, mounted under
// DefaultAPIBase. It is closed when the test ends.
func NewTestServer(tb testing.TB, routes map[string]http.Handler) *TestServer {
	tb.Helper()

	rec := NewRecorder()
	handler := Handler(&HandlerProperties{
		Routes:   routes,
		Recorder: rec,
		Logger:   hclog.NewNullLogger(),
	})

	return TestServerWithHandler(tb, handler, rec)
}

// TestServerWithHandler starts a server for an arbitrary handler. rec may be
// nil.
func TestServerWithHandler(tb testing.TB, handler http.Handler, rec *Recorder) *TestServer {
	tb.Helper()

	ts := httptest.NewServer(handler)
	tb.Cleanup(ts.Close)

	return &TestServer{Server: ts, Recorder: rec}
}
