package api

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		elems []string
		want  string
	}{
		{[]string{"/api", "/invoices/"}, "/api/invoices/"},
		{[]string{"/api/", "/invoices/"}, "/api/invoices/"},
		{[]string{"/api/", "invoices"}, "/api/invoices"},
		{[]string{"", "/api", "//invoices//7/"}, "/api/invoices/7/"},
		{[]string{"/prefix", "/api", "/invoices"}, "/prefix/api/invoices"},
		{[]string{"", "", ""}, "/"},
		{[]string{"/api", "/"}, "/api/"},
		{[]string{"/api", "../x"}, "/api/../x"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, JoinPath(tc.elems...), "%q", tc.elems)
	}
}

func TestClientNewRequest(t *testing.T) {
	t.Parallel()

	client, err := NewClient(&Config{Address: "https://billing.example.com/app", APIBase: "/api"})
	require.NoError(t, err)

	r := client.NewRequest("get", "/invoices/?status=draft")
	require.Equal(t, "GET", r.Method)
	require.Equal(t, "https", r.URL.Scheme)
	require.Equal(t, "billing.example.com", r.URL.Host)
	require.Equal(t, "/app/api/invoices/", r.URL.Path)
	require.Equal(t, url.Values{"status": {"draft"}}, r.Params)

	r = client.NewRequest("POST", "https://other.example.com//hooks//stripe/")
	require.Equal(t, "other.example.com", r.URL.Host)
	require.Equal(t, "/hooks/stripe/", r.URL.Path)

	r = client.NewRequest("GET", "/profile/a%2Fb/")
	require.Equal(t, "/app/api/profile/a%2Fb/", r.URL.EscapedPath())
	require.Equal(t, "https://billing.example.com/app/api/profile/a%2Fb/", r.URL.String())

	r = client.NewRequest("GET", "/profile//a%2F%2Fb/")
	require.Equal(t, "/app/api/profile/a%2F%2Fb/", r.URL.EscapedPath())

	r = client.NewRequest("GET", "https://other.example.com/files/x%2Fy")
	require.Equal(t, "/files/x%2Fy", r.URL.EscapedPath())

	client.SetAPIBase("")
	r = client.NewRequest("GET", "plans")
	require.Equal(t, "/app/plans", r.URL.Path)
}

func TestRequest_toRetryableHTTP(t *testing.T) {
	t.Parallel()

	r := &Request{
		Method:    "POST",
		URL:       &url.URL{Scheme: "http", Host: "127.0.0.1:8000", Path: "/api/plans/"},
		Params:    url.Values{"a": {"1"}},
		Headers:   map[string][]string{"X-Test": {"yes"}},
		RequestID: "req-1",
	}
	require.NoError(t, r.SetJSONBody(map[string]interface{}{"name": "basic"}))

	req, err := r.toRetryableHTTP()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8000/api/plans/?a=1", req.URL.String())
	require.Equal(t, ContentTypeJSON, req.Header.Get("Content-Type"))
	require.Equal(t, "yes", req.Header.Get("X-Test"))
	require.Equal(t, "req-1", req.Header.Get(HeaderRequestID))

	mp, err := NewMultipart(map[string]string{"name": "basic"})
	require.NoError(t, err)
	r.SetMultipartBody(mp)
	require.Nil(t, r.BodyBytes)

	req, err = r.toRetryableHTTP()
	require.NoError(t, err)
	require.Equal(t, mp.ContentType, req.Header.Get("Content-Type"))

	r.ResetJSONBody()
	req, err = r.toRetryableHTTP()
	require.NoError(t, err)
	require.Empty(t, req.Header.Get("Content-Type"))
}
