package api

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		resp       *Response
		opts       MessageOptions
		want       []string
		wantFields map[string]string
	}{
		{
			name: "field list",
			resp: &Response{StatusCode: 400, Data: map[string]interface{}{"title": []interface{}{"required"}}},
			want: []string{"title: required"},
		},
		{
			name: "top-level detail",
			resp: &Response{StatusCode: 404, Data: map[string]interface{}{"detail": "Not found"}},
			want: []string{"Not found"},
		},
		{
			name: "server error with empty body",
			resp: &Response{StatusCode: 503, Status: "503 Service Unavailable"},
			want: []string{"Err 503: Service Unavailable"},
		},
		{
			name: "server error overrides the body",
			resp: &Response{StatusCode: 500, Data: map[string]interface{}{"detail": "boom"}},
			opts: MessageOptions{ProviderNotified: "We have been notified."},
			want: []string{"Err 500: Internal Server Error We have been notified."},
		},
		{
			name: "plain string",
			resp: &Response{StatusCode: 400, Data: "Invalid page."},
			want: []string{"Invalid page."},
		},
		{
			name: "list flattened",
			resp: &Response{StatusCode: 400, Data: []interface{}{"first", []interface{}{"second", "third"}}},
			want: []string{"first", "second", "third"},
		},
		{
			name: "keys sorted and lists joined",
			resp: &Response{StatusCode: 400, Data: map[string]interface{}{
				"zip":   []interface{}{"too long", "invalid"},
				"email": []interface{}{"taken"},
				"seats": []interface{}{float64(3), map[string]interface{}{"min": float64(1)}},
			}},
			want: []string{"email: taken", "seats: 3, {\"min\":1}", "zip: too long, invalid"},
		},
		{
			name: "nested detail",
			resp: &Response{StatusCode: 403, Data: map[string]interface{}{
				"plan": map[string]interface{}{"detail": "Plan is archived."},
			}},
			want: []string{"plan: Plan is archived."},
		},
		{
			name: "fields split from messages",
			resp: &Response{StatusCode: 400, Data: map[string]interface{}{
				"name":             []interface{}{"This field is required."},
				"non_field_errors": []interface{}{"Invalid combination."},
			}},
			opts:       MessageOptions{Fields: []string{"name", "price"}},
			want:       []string{"non_field_errors: Invalid combination."},
			wantFields: map[string]string{"name": "This field is required."},
		},
		{
			name: "only fields and no provider message",
			resp: &Response{StatusCode: 400, Data: map[string]interface{}{
				"name": []interface{}{"required"},
			}},
			opts:       MessageOptions{Fields: []string{"name"}},
			wantFields: map[string]string{"name": "required"},
		},
		{
			name: "only fields with provider message",
			resp: &Response{StatusCode: 400, Data: map[string]interface{}{
				"name": []interface{}{"required"},
			}},
			opts:       MessageOptions{Fields: []string{"name"}, ProviderNotified: "Please review the form."},
			want:       []string{"Please review the form."},
			wantFields: map[string]string{"name": "required"},
		},
		{
			name: "empty body",
			resp: &Response{StatusCode: 409, Status: "409 Conflict"},
			want: []string{"Err 409: Conflict"},
		},
		{
			name: "empty mapping",
			resp: &Response{StatusCode: 400, Data: map[string]interface{}{}},
			want: []string{"Err 400: Bad Request"},
		},
		{
			name: "transport error",
			resp: &Response{Err: errors.New("dial tcp: connection refused")},
			want: []string{"dial tcp: connection refused"},
		},
		{
			name: "body read error on success status",
			resp: &Response{StatusCode: 200, Status: "200 OK", Err: errors.New("unexpected EOF")},
			want: []string{"unexpected EOF"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, fields := ErrorMessages(tc.resp, tc.opts)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.wantFields, fields)
		})
	}
}

func TestErrorMessages_nil(t *testing.T) {
	t.Parallel()

	got, fields := ErrorMessages(nil, MessageOptions{})
	require.Nil(t, got)
	require.Nil(t, fields)
}

func TestClientShowErrorMessages(t *testing.T) {
	t.Parallel()

	list := &MessageList{}
	client, err := NewClient(&Config{
		Address:          DefaultAddress,
		Notifier:         list,
		ProviderNotified: "Support has been notified.",
	})
	require.NoError(t, err)

	form := parseTestPage(t).Form("plan-form")
	resp := &Response{
		StatusCode: 400,
		Request:    &Request{Form: form},
		Data: map[string]interface{}{
			"price":  []interface{}{"Must be positive."},
			"detail": "Could not save the plan.",
		},
	}
	client.ShowErrorMessages(resp)

	require.Equal(t, []string{"Could not save the plan."}, list.Messages())
	require.Equal(t, []string{StyleError}, list.Styles())
	require.Equal(t, map[string]string{"price": "Must be positive."}, list.FieldErrors())

	list.Reset()
	client.ShowErrorMessages(&Response{StatusCode: 502, Status: "502 Bad Gateway"})
	require.Equal(t, []string{"Err 502: Bad Gateway Support has been notified."}, list.Messages())
	require.Empty(t, list.FieldErrors())
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	n := &LogNotifier{Logger: hclog.NewNullLogger()}
	n.ShowMessages([]string{"a", "b"}, StyleError)
	n.ShowMessages([]string{"c"}, StyleInfo)
	n.ShowFieldErrors(map[string]string{"name": "required"})
}
