package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/stretchr/testify/require"
)

func TestHandler_routesUnderAPIBase(t *testing.T) {
	t.Parallel()

	ts := NewTestServer(t, map[string]http.Handler{
		"/invoices/": JSONHandler(http.StatusOK, map[string]interface{}{"count": 0}),
	})
	client := cleanhttp.DefaultClient()

	resp, err := client.Get(ts.URL + "/api/invoices/?page=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, float64(0), body["count"])

	last, ok := ts.Recorder.Last()
	require.True(t, ok)
	require.Equal(t, http.MethodGet, last.Method)
	require.Equal(t, "/api/invoices/", last.Path)
	require.Equal(t, "2", last.Query.Get("page"))
	require.Equal(t, "127.0.0.1", last.RemoteIP)
}

func TestHandler_notFound(t *testing.T) {
	t.Parallel()

	ts := NewTestServer(t, nil)
	client := cleanhttp.DefaultClient()

	for _, path := range []string{"/api/missing/", "/elsewhere/"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		require.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		require.JSONEq(t, `{"detail":"Not found."}`, string(body))
	}
}

func TestRecorder_keepsBody(t *testing.T) {
	t.Parallel()

	ts := NewTestServer(t, map[string]http.Handler{"/": EchoHandler()})
	client := cleanhttp.DefaultClient()

	resp, err := client.Post(ts.URL+"/api/plans/", "application/json", strings.NewReader(`{"name":"basic"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var echoed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&echoed))
	require.Equal(t, "/plans/", echoed["path"])
	require.Equal(t, map[string]interface{}{"name": "basic"}, echoed["body"])

	require.Equal(t, 1, ts.Recorder.Len())
	require.JSONEq(t, `{"name":"basic"}`, string(ts.Recorder.Requests()[0].Body))

	ts.Recorder.Reset()
	require.Zero(t, ts.Recorder.Len())
}

func TestStripPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		prefix, path string
		want         string
		ok           bool
	}{
		{"/api", "/api/invoices/", "/invoices/", true},
		{"/api", "/api", "/", true},
		{"/api", "/apix/", "", false},
		{"/api", "/other", "", false},
	}
	for _, tc := range cases {
		got, ok := stripPrefix(tc.prefix, tc.path)
		require.Equal(t, tc.ok, ok, tc.path)
		require.Equal(t, tc.want, got, tc.path)
	}
}
