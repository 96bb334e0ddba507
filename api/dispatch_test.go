package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/armon/go-metrics"
	"github.com/saasbill/billing/helper/metricsutil"
	billinghttp "github.com/saasbill/billing/http"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, ts *billinghttp.TestServer) *Client {
	t.Helper()

	client, err := NewClient(&Config{Address: ts.URL, APIBase: "/api"})
	require.NoError(t, err)
	client.ClearToken()
	return client
}

func TestClientGet_query(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{"/": billinghttp.EchoHandler()})
	client := testClient(t, ts)

	var gotBody interface{}
	var gotStatus int
	resp, err := client.Get(context.Background(), "/invoices/?status=draft", map[string]interface{}{
		"page":     2,
		"customer": []interface{}{"a", "b"},
		"skip":     nil,
	}, SuccessFunc(func(body interface{}, status int) {
		gotBody, gotStatus = body, status
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, http.StatusOK, gotStatus)
	require.Equal(t, resp.Data, gotBody)

	last, ok := ts.Recorder.Last()
	require.True(t, ok)
	require.Equal(t, "/api/invoices/", last.Path)
	require.Equal(t, url.Values{
		"status":   {"draft"},
		"page":     {"2"},
		"customer": {"a", "b"},
	}, last.Query)
	require.Empty(t, last.Body)
	require.Empty(t, last.Header.Get("Content-Type"))
	require.NotEmpty(t, last.Header.Get(HeaderRequestID))
	require.True(t, strings.HasPrefix(last.Header.Get(HeaderUserAgent), "billing-client/"))
}

func TestClientPost_jsonBody(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{
		"/plans/": billinghttp.JSONHandler(http.StatusCreated, map[string]interface{}{"id": 7}),
	})
	client := testClient(t, ts)

	data := map[string]interface{}{"name": "basic", "price": 10}
	resp, err := client.Post(context.Background(), "plans/", data)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, map[string]interface{}{"id": float64(7)}, resp.Data)

	last, _ := ts.Recorder.Last()
	require.Equal(t, http.MethodPost, last.Method)
	require.Equal(t, "/api/plans/", last.Path)
	require.Equal(t, ContentTypeJSON, last.Header.Get("Content-Type"))
	require.JSONEq(t, `{"name":"basic","price":10}`, string(last.Body))
}

func TestClientPatch_multipart(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{"/": billinghttp.JSONHandler(http.StatusOK, map[string]interface{}{})})
	client := testClient(t, ts)

	mp, err := NewMultipart(map[string]string{"name": "logo"}, MultipartFile{
		Field:    "file",
		Filename: "logo.png",
		Content:  strings.NewReader("png-bytes"),
	})
	require.NoError(t, err)

	_, err = client.Patch(context.Background(), "/customers/1/", mp)
	require.NoError(t, err)

	last, _ := ts.Recorder.Last()
	require.Equal(t, mp.ContentType, last.Header.Get("Content-Type"))
	require.True(t, strings.HasPrefix(last.Header.Get("Content-Type"), "multipart/form-data; boundary="))
	require.Equal(t, mp.Body, last.Body)
}

func TestClientPost_nonJSONSuccess(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{"/": billinghttp.TextHandler(http.StatusOK, "ok")})
	client := testClient(t, ts)

	called := false
	resp, err := client.Post(context.Background(), "/ping/", SuccessFunc(func(body interface{}, status int) {
		called = true
		require.Nil(t, body)
		require.Equal(t, http.StatusOK, status)
	}))
	require.NoError(t, err)
	require.True(t, called)
	require.Nil(t, resp.Data)
	require.Equal(t, "ok", string(resp.RawBody))
}

func TestClientDelete_failure(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{
		"/invoices/": billinghttp.JSONHandler(http.StatusBadRequest, map[string]interface{}{
			"detail": "Paid invoices cannot be deleted.",
		}),
	})
	client := testClient(t, ts)

	var failed *Response
	succeeded := false
	resp, err := client.Delete(context.Background(), "/invoices/9/", nil,
		SuccessFunc(func(interface{}, int) { succeeded = true }),
		FailureFunc(func(r *Response) { failed = r }))
	require.Error(t, err)
	require.False(t, succeeded)
	require.NotNil(t, failed)
	require.Same(t, resp, failed)
	require.Equal(t, http.StatusBadRequest, failed.StatusCode)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, http.MethodDelete, respErr.HTTPMethod)
	require.Equal(t, []string{"Paid invoices cannot be deleted."}, respErr.Messages)
	require.Contains(t, err.Error(), "Code: 400")
}

func TestClient_defaultFailureRendersMessages(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{
		"/plans/": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			billinghttp.RespondFieldErrors(w, map[string][]string{
				"name":  {"This field is required."},
				"other": {"Unknown."},
			})
		}),
	})

	list := &MessageList{}
	client, err := NewClient(&Config{Address: ts.URL, APIBase: "/api", Notifier: list})
	require.NoError(t, err)
	client.ClearToken()

	form := parseTestPage(t).Form("plan-form")
	_, err = client.Send(context.Background(), http.MethodPost, "/plans/", Options{
		Data: map[string]interface{}{"price": 5},
		Form: form,
	})
	require.Error(t, err)

	require.Equal(t, []string{"other: Unknown."}, list.Messages())
	require.Equal(t, map[string]string{"name": "This field is required."}, list.FieldErrors())

	last, _ := ts.Recorder.Last()
	require.Equal(t, "form-token", last.Header.Get(HeaderCSRFToken))
}

func TestClient_textErrorBody(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{"/": billinghttp.TextHandler(http.StatusForbidden, "CSRF verification failed.\n")})
	client := testClient(t, ts)

	resp, err := client.Post(context.Background(), "/plans/", nil, nil, FailureFunc(func(*Response) {}))
	require.Error(t, err)

	msgs, _ := ErrorMessages(resp, MessageOptions{})
	require.Equal(t, []string{"CSRF verification failed."}, msgs)
}

func TestClient_transportError(t *testing.T) {
	t.Parallel()

	// Reserve an address, then close it so nothing is listening.
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	client, err := NewClient(&Config{Address: addr})
	require.NoError(t, err)

	var failed *Response
	resp, err := client.Get(context.Background(), "/plans/", nil, nil, FailureFunc(func(r *Response) { failed = r }))
	require.Error(t, err)
	require.NotNil(t, failed)
	require.Same(t, resp, failed)
	require.Zero(t, failed.StatusCode)
	require.Error(t, failed.Err)

	msgs, _ := ErrorMessages(failed, MessageOptions{})
	require.Equal(t, []string{failed.Err.Error()}, msgs)
}

func TestClient_argumentErrorNotSent(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, nil)
	client := testClient(t, ts)

	resp, err := client.Post(context.Background(), "/plans/", "not a mapping")
	require.Nil(t, resp)
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))

	_, err = client.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingURL)

	resp, err = client.Post(context.Background(), "/plans/", parseTestPage(t).Form("plan-form"))
	require.Nil(t, resp)
	require.True(t, errors.As(err, &argErr))
	require.Contains(t, err.Error(), "Options.Form")

	require.Zero(t, ts.Recorder.Len())
}

func TestClient_credentialHeaders(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{"/": billinghttp.JSONHandler(http.StatusOK, nil)})
	client := testClient(t, ts)
	client.SetPage(parseTestPage(t))

	ctx := context.Background()

	_, err := client.Get(ctx, "/plans/")
	require.NoError(t, err)
	last, _ := ts.Recorder.Last()
	require.Empty(t, last.Header.Get(HeaderCSRFToken))
	require.Empty(t, last.Header.Get(HeaderAuthorize))

	_, err = client.Put(ctx, "/plans/1/", map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	last, _ = ts.Recorder.Last()
	require.Equal(t, "page-token", last.Header.Get(HeaderCSRFToken))
	require.Empty(t, last.Header.Get(HeaderAuthorize))

	client.SetToken("secret")
	_, err = client.Put(ctx, "/plans/1/", map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	last, _ = ts.Recorder.Last()
	require.Empty(t, last.Header.Get(HeaderCSRFToken))
	require.Equal(t, "Bearer secret", last.Header.Get(HeaderAuthorize))
}

func TestClient_absoluteURLBypassesBase(t *testing.T) {
	t.Parallel()

	ts := billinghttp.TestServerWithHandler(t, billinghttp.Handler(&billinghttp.HandlerProperties{
		APIBase:  "/",
		Routes:   map[string]http.Handler{"/": billinghttp.JSONHandler(http.StatusOK, nil)},
		Recorder: billinghttp.NewRecorder(),
	}), nil)

	client, err := NewClient(&Config{Address: "http://127.0.0.1:1", APIBase: "/api"})
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), ts.URL+"/hooks//status/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/hooks/status/", resp.Request.URL.Path)
}

func TestClient_metrics(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{"/": billinghttp.JSONHandler(http.StatusOK, nil)})

	inm := metrics.NewInmemSink(time.Minute, time.Minute)
	client, err := NewClient(&Config{
		Address:    ts.URL,
		APIBase:    "/api",
		MetricSink: metricsutil.NewClientMetricSink("test", inm),
	})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/plans/")
	require.NoError(t, err)

	data := inm.Data()
	require.NotEmpty(t, data)

	found := false
	for name := range data[0].Counters {
		if strings.HasPrefix(name, "billing.request;") {
			found = true
		}
	}
	require.True(t, found, "request counter not recorded")
}

func TestClient_limiterHonoursContext(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, nil)
	client := testClient(t, ts)
	client.SetLimiter(0.001, 1)

	// The first request consumes the burst.
	_, _ = client.Get(context.Background(), "/plans/", nil, nil, FailureFunc(func(*Response) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Get(ctx, "/plans/", nil, nil, FailureFunc(func(*Response) {}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limiter")
}

func TestResponse_DecodeJSON(t *testing.T) {
	t.Parallel()

	resp := &Response{RawBody: []byte(`{"count":2,"results":[]}`)}
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, resp.DecodeJSON(&out))
	require.Equal(t, 2, out.Count)

	require.NoError(t, (&Response{}).DecodeJSON(&out))

	var raw json.RawMessage
	require.NoError(t, resp.DecodeJSON(&raw))
}
