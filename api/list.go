package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ListParams are the paging, sorting and filtering parameters accepted by
// collection endpoints.
type ListParams struct {
	Page     int
	PageSize int

	// Query is a free-text filter.
	Query string

	// Ordering lists the fields to sort on. A leading "-" sorts descending.
	Ordering []string

	StartAt  time.Time
	EndsAt   time.Time
	Timezone string
}

// Values encodes the parameters, omitting the ones left unset.
func (p ListParams) Values() url.Values {
	v := make(url.Values)
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	for _, o := range p.Ordering {
		v.Add("o", o)
	}
	if !p.StartAt.IsZero() {
		v.Set("start_at", p.StartAt.Format(time.RFC3339))
	}
	if !p.EndsAt.IsZero() {
		v.Set("ends_at", p.EndsAt.Format(time.RFC3339))
	}
	if p.Timezone != "" {
		v.Set("timezone", p.Timezone)
	}
	return v
}

// ToggleOrdering sorts on field first. A field already first flips its
// direction, anything else becomes the ascending primary key.
func (p *ListParams) ToggleOrdering(field string) {
	field = strings.TrimPrefix(field, "-")

	primary := ""
	if len(p.Ordering) > 0 {
		primary = p.Ordering[0]
	}

	rest := make([]string, 0, len(p.Ordering))
	for _, o := range p.Ordering {
		if strings.TrimPrefix(o, "-") != field {
			rest = append(rest, o)
		}
	}

	next := field
	if primary == field {
		next = "-" + field
	}
	p.Ordering = append([]string{next}, rest...)
}

// Collection is a page of results returned by a collection endpoint.
type Collection struct {
	Count    int           `json:"count"`
	Next     string        `json:"next"`
	Previous string        `json:"previous"`
	Results  []interface{} `json:"results"`
}

// HasNext reports whether another page follows this one.
func (c *Collection) HasNext() bool {
	return c != nil && c.Next != ""
}

// List fetches one page of a collection.
func (c *Client) List(ctx context.Context, path string, params ListParams) (*Collection, error) {
	resp, err := c.Get(ctx, path, params.Values())
	if err != nil {
		return nil, err
	}

	var out Collection
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return &out, nil
}
