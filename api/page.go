package api

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// CSRFMetaName is the name of the meta tag carrying the page CSRF token.
	CSRFMetaName = "csrf-token"

	// CSRFFieldName is the name of the hidden form input carrying the CSRF
	// token.
	CSRFFieldName = "csrfmiddlewaretoken"
)

// Page is a parsed HTML document requests may originate from.
type Page struct {
	root *html.Node
}

// Form is a form element within a Page.
type Form struct {
	node *html.Node
}

// ParsePage parses an HTML document.
func ParsePage(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Page{root: root}, nil
}

// CSRFToken returns the content of the csrf-token meta tag, or "".
func (p *Page) CSRFToken() string {
	if p == nil {
		return ""
	}
	var token string
	walk(p.root, func(n *html.Node) bool {
		if n.DataAtom == atom.Meta && attr(n, "name") == CSRFMetaName {
			token = attr(n, "content")
			return false
		}
		return true
	})
	return token
}

// Form returns the form whose id, or failing that whose name, is key.
func (p *Page) Form(key string) *Form {
	if p == nil || key == "" {
		return nil
	}
	var byName *Form
	var found *Form
	walk(p.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if attr(n, "id") == key {
			found = &Form{node: n}
			return false
		}
		if byName == nil && n.DataAtom == atom.Form && attr(n, "name") == key {
			byName = &Form{node: n}
		}
		return true
	})
	if found != nil {
		return found
	}
	return byName
}

// Forms returns every form on the page in document order.
func (p *Page) Forms() []*Form {
	if p == nil {
		return nil
	}
	var forms []*Form
	walk(p.root, func(n *html.Node) bool {
		if n.DataAtom == atom.Form {
			forms = append(forms, &Form{node: n})
		}
		return true
	})
	return forms
}

// ID returns the id attribute of the form.
func (f *Form) ID() string {
	if f == nil {
		return ""
	}
	return attr(f.node, "id")
}

// CSRFToken returns the value of the hidden csrfmiddlewaretoken input, or "".
func (f *Form) CSRFToken() string {
	if f == nil {
		return ""
	}
	var token string
	walk(f.node, func(n *html.Node) bool {
		if n.DataAtom == atom.Input && attr(n, "name") == CSRFFieldName {
			token = attr(n, "value")
			return false
		}
		return true
	})
	return token
}

// FieldNames returns the distinct names of the form's input, select and
// textarea elements, excluding the CSRF field.
func (f *Form) FieldNames() []string {
	if f == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	walk(f.node, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.Input, atom.Select, atom.Textarea:
			name := attr(n, "name")
			if name == "" || name == CSRFFieldName {
				return true
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
		return true
	})
	return names
}

// walk visits n and its descendants depth first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
