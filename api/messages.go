package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Message styles understood by notifiers.
const (
	StyleError   = "error"
	StyleSuccess = "success"
	StyleInfo    = "info"
)

// MessageOptions tunes how an error response is turned into messages.
type MessageOptions struct {
	// Fields are the names of the inputs displayed next to the request. Body
	// keys naming one of them are reported as field errors instead of global
	// messages.
	Fields []string

	// ProviderNotified is appended to 5xx messages, and shown alone when
	// only field errors were found.
	ProviderNotified string
}

// ErrorMessages flattens a failed response into global messages and field
// errors keyed by input name.
func ErrorMessages(resp *Response, opts MessageOptions) ([]string, map[string]string) {
	if resp == nil {
		return nil, nil
	}

	if resp.Err != nil {
		return []string{resp.Err.Error()}, nil
	}
	if resp.StatusCode == 0 {
		return []string{statusLine(resp)}, nil
	}

	if resp.StatusCode >= 500 {
		msg := statusLine(resp)
		if opts.ProviderNotified != "" {
			msg += " " + opts.ProviderNotified
		}
		return []string{msg}, nil
	}

	fields := make(map[string]struct{}, len(opts.Fields))
	for _, f := range opts.Fields {
		fields[f] = struct{}{}
	}

	fieldErrors := make(map[string]string)
	messages := flattenMessages(resp.Data, fields, fieldErrors)

	if len(messages) == 0 {
		switch {
		case len(fieldErrors) == 0:
			messages = []string{statusLine(resp)}
		case opts.ProviderNotified != "":
			messages = []string{opts.ProviderNotified}
		}
	}
	if len(fieldErrors) == 0 {
		fieldErrors = nil
	}
	return messages, fieldErrors
}

func statusLine(resp *Response) string {
	return fmt.Sprintf("Err %d: %s", resp.StatusCode, resp.StatusText())
}

func flattenMessages(body interface{}, fields map[string]struct{}, fieldErrors map[string]string) []string {
	switch v := body.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []interface{}:
		var messages []string
		for _, item := range v {
			messages = append(messages, flattenMessages(item, fields, fieldErrors)...)
		}
		return messages
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var messages []string
		for _, key := range keys {
			message := entryMessage(v[key])
			if key == "detail" {
				messages = append(messages, message)
				continue
			}
			if _, ok := fields[key]; ok {
				fieldErrors[key] = message
				continue
			}
			messages = append(messages, key+": "+message)
		}
		return messages
	}
	return []string{jsonString(body)}
}

func entryMessage(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
				continue
			}
			parts = append(parts, jsonString(item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		if detail, ok := v["detail"]; ok {
			if s, ok := detail.(string); ok {
				return s
			}
			return jsonString(detail)
		}
	}
	return jsonString(val)
}

func jsonString(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(buf)
}

// Notifier displays messages to the user: the global message area and the
// per-field feedback next to inputs.
type Notifier interface {
	ShowMessages(messages []string, style string)
	ShowFieldErrors(fieldErrors map[string]string)
}

// ShowErrorMessages is the failure handler used when a call supplies none.
// It extracts messages from the response and hands them to the client's
// notifier.
func (c *Client) ShowErrorMessages(resp *Response) {
	c.modifyLock.RLock()
	notifier := c.notifier
	c.modifyLock.RUnlock()

	if notifier == nil {
		return
	}

	opts := MessageOptions{ProviderNotified: c.config.ProviderNotified}
	if resp != nil && resp.Request != nil && resp.Request.Form != nil {
		opts.Fields = resp.Request.Form.FieldNames()
	}

	messages, fieldErrors := ErrorMessages(resp, opts)
	if len(fieldErrors) > 0 {
		notifier.ShowFieldErrors(fieldErrors)
	}
	if len(messages) > 0 {
		notifier.ShowMessages(messages, StyleError)
	}
}

// LogNotifier writes messages to a logger.
type LogNotifier struct {
	Logger hclog.Logger
}

func (n *LogNotifier) ShowMessages(messages []string, style string) {
	for _, m := range messages {
		if style == StyleError {
			n.Logger.Error(m)
			continue
		}
		n.Logger.Info(m, "style", style)
	}
}

func (n *LogNotifier) ShowFieldErrors(fieldErrors map[string]string) {
	for field, m := range fieldErrors {
		n.Logger.Error(m, "field", field)
	}
}

// MessageList is a Notifier that keeps what it was shown.
type MessageList struct {
	mu          sync.Mutex
	messages    []string
	styles      []string
	fieldErrors map[string]string
}

func (l *MessageList) ShowMessages(messages []string, style string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range messages {
		l.messages = append(l.messages, m)
		l.styles = append(l.styles, style)
	}
}

func (l *MessageList) ShowFieldErrors(fieldErrors map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fieldErrors == nil {
		l.fieldErrors = make(map[string]string, len(fieldErrors))
	}
	for k, v := range fieldErrors {
		l.fieldErrors[k] = v
	}
}

// Messages returns the messages shown so far.
func (l *MessageList) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

// Styles returns the style each message was shown with, in the same order
// as Messages.
func (l *MessageList) Styles() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.styles...)
}

// FieldErrors returns the field errors shown so far.
func (l *MessageList) FieldErrors() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.fieldErrors))
	for k, v := range l.fieldErrors {
		out[k] = v
	}
	return out
}

// Reset forgets everything shown so far.
func (l *MessageList) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
	l.styles = nil
	l.fieldErrors = nil
}
