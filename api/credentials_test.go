package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("token expired")
}

func TestCredentialsApply(t *testing.T) {
	t.Parallel()

	page := parseTestPage(t)
	form := page.Form("plan-form")

	cases := []struct {
		name       string
		token      string
		form       *Form
		method     string
		wantBearer string
		wantCSRF   string
	}{
		{name: "bearer on unsafe", token: "tok", method: "POST", wantBearer: "Bearer tok"},
		{name: "bearer on safe", token: "tok", method: "GET", wantBearer: "Bearer tok"},
		{name: "bearer wins over form", token: "tok", form: form, method: "PATCH", wantBearer: "Bearer tok"},
		{name: "page csrf on unsafe", method: "POST", wantCSRF: "page-token"},
		{name: "form csrf over page", form: form, method: "PUT", wantCSRF: "form-token"},
		{name: "delete is unsafe", method: "DELETE", wantCSRF: "page-token"},
		{name: "get carries nothing", method: "GET"},
		{name: "head carries nothing", form: form, method: "HEAD"},
		{name: "options carries nothing", method: "OPTIONS"},
		{name: "trace carries nothing", method: "TRACE"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			creds := NewCredentials(nil, page)
			if tc.token != "" {
				creds.SetTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tc.token}))
			}

			r := &Request{Method: tc.method, Headers: make(http.Header), Form: tc.form}
			// A stale CSRF header never survives next to a bearer token.
			r.Headers.Set(HeaderCSRFToken, "stale")
			if tc.wantBearer == "" {
				r.Headers.Del(HeaderCSRFToken)
			}

			require.NoError(t, creds.Apply(r))
			require.Equal(t, tc.wantBearer, r.Headers.Get(HeaderAuthorize))
			require.Equal(t, tc.wantCSRF, r.Headers.Get(HeaderCSRFToken))

			// At most one credential header is attached.
			require.False(t, r.Headers.Get(HeaderAuthorize) != "" && r.Headers.Get(HeaderCSRFToken) != "")
		})
	}
}

func TestCredentialsApply_dropsClientAuthorization(t *testing.T) {
	t.Parallel()

	creds := NewCredentials(nil, parseTestPage(t))

	r := &Request{Method: "POST", Headers: make(http.Header)}
	r.Headers.Set(HeaderAuthorize, "Basic c3RhbGU=")

	require.NoError(t, creds.Apply(r))
	require.Equal(t, "page-token", r.Headers.Get(HeaderCSRFToken))
	require.Empty(t, r.Headers.Get(HeaderAuthorize))
}

func TestCredentials_noPage(t *testing.T) {
	t.Parallel()

	creds := NewCredentials(nil, nil)
	r := &Request{Method: "POST", Headers: make(http.Header)}
	require.NoError(t, creds.Apply(r))
	require.Empty(t, r.Headers)

	token, err := creds.BearerToken()
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestCredentials_tokenSourceError(t *testing.T) {
	t.Parallel()

	creds := NewCredentials(failingTokenSource{}, nil)
	r := &Request{Method: "GET", Headers: make(http.Header)}
	err := creds.Apply(r)
	require.Error(t, err)
	require.Contains(t, err.Error(), "token expired")
}

func TestClientToken(t *testing.T) {
	t.Parallel()

	client, err := NewClient(&Config{Address: DefaultAddress})
	require.NoError(t, err)

	client.SetToken("abc")
	require.Equal(t, "abc", client.Token())

	client.ClearToken()
	require.Empty(t, client.Token())

	client.SetTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "xyz"}))
	require.Equal(t, "xyz", client.Token())

	client.SetToken("")
	require.Empty(t, client.Token())
}

func TestIsCSRFSafeMethod(t *testing.T) {
	t.Parallel()

	for _, m := range []string{"GET", "get", "HEAD", "OPTIONS", "TRACE"} {
		require.True(t, IsCSRFSafeMethod(m), m)
	}
	for _, m := range []string{"POST", "PUT", "PATCH", "DELETE"} {
		require.False(t, IsCSRFSafeMethod(m), m)
	}
}
