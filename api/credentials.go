package api

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// Credentials holds what a request may be authenticated with: a bearer
// token, or a CSRF token discovered from a page. It is shared by every
// request a client sends and is only read while dispatching.
type Credentials struct {
	mu          sync.RWMutex
	tokenSource oauth2.TokenSource
	page        *Page
}

// NewCredentials returns a credential context. Either argument may be nil.
func NewCredentials(ts oauth2.TokenSource, page *Page) *Credentials {
	return &Credentials{tokenSource: ts, page: page}
}

// SetTokenSource replaces the bearer token source. A nil source removes the
// bearer token.
func (c *Credentials) SetTokenSource(ts oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = ts
}

// SetPage replaces the page the CSRF meta token is read from.
func (c *Credentials) SetPage(p *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = p
}

// BearerToken returns the current bearer token, or "" when none is set.
func (c *Credentials) BearerToken() (string, error) {
	c.mu.RLock()
	ts := c.tokenSource
	c.mu.RUnlock()

	if ts == nil {
		return "", nil
	}
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("failed to read bearer token: %w", err)
	}
	if tok == nil {
		return "", nil
	}
	return tok.AccessToken, nil
}

// CSRFToken returns the CSRF token for a request originating from form: the
// form's hidden field when present, else the page meta tag.
func (c *Credentials) CSRFToken(form *Form) string {
	if form != nil {
		if token := form.CSRFToken(); token != "" {
			return token
		}
	}

	c.mu.RLock()
	page := c.page
	c.mu.RUnlock()

	if page == nil {
		return ""
	}
	return page.CSRFToken()
}

// Apply attaches at most one credential header to the request. A bearer
// token always wins; otherwise a CSRF token is attached to unsafe methods
// only.
func (c *Credentials) Apply(r *Request) error {
	token, err := c.BearerToken()
	if err != nil {
		return err
	}
	if token != "" {
		r.Headers.Del(HeaderCSRFToken)
		r.Headers.Set(HeaderAuthorize, "Bearer "+token)
		return nil
	}

	if IsCSRFSafeMethod(r.Method) {
		return nil
	}
	if csrf := c.CSRFToken(r.Form); csrf != "" {
		r.Headers.Del(HeaderAuthorize)
		r.Headers.Set(HeaderCSRFToken, csrf)
	}
	return nil
}

// IsCSRFSafeMethod reports whether method never carries a CSRF token.
func IsCSRFSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS", "TRACE":
		return true
	}
	return false
}
