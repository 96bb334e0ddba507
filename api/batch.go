package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// BatchItem is one member of a batch.
type BatchItem struct {
	Method string      `json:"method"`
	URL    string      `json:"url"`
	Data   interface{} `json:"data,omitempty"`
}

// BatchSuccessFunc receives every response of a batch, in item order.
type BatchSuccessFunc func(responses []*Response)

type batchFailure struct {
	index int
	resp  *Response
	err   error
}

// Multiple sends every item concurrently and joins on them. onSuccess fires
// once, after every item succeeded. The first failing item fires onFailure
// once and returns immediately; onSuccess then never fires. Items still in
// flight at that point complete in the background and their responses are
// discarded. A nil onFailure falls back to ShowErrorMessages.
//
// Items are validated before anything is sent, so an argument error in one
// item sends none of them.
func (c *Client) Multiple(ctx context.Context, items []BatchItem, onSuccess BatchSuccessFunc, onFailure FailureFunc) ([]*Response, error) {
	if onFailure == nil {
		onFailure = c.ShowErrorMessages
	}

	methods := make([]string, len(items))
	descriptors := make([]*Descriptor, len(items))
	for i, item := range items {
		method := strings.ToUpper(item.Method)
		if method == "" {
			method = http.MethodGet
		}
		d, err := ResolveArgs(method, item.URL, item.Data)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		methods[i] = method
		descriptors[i] = d
	}

	c.config.modifyLock.RLock()
	limit := c.config.BatchConcurrency
	c.config.modifyLock.RUnlock()

	logger := c.logger.Named("batch")
	logger.Debug("dispatching batch", "items", len(items), "concurrency", limit)

	responses := make([]*Response, len(items))
	failed := atomic.NewBool(false)
	failures := make(chan batchFailure, 1)
	done := make(chan struct{})

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	go func() {
		defer close(done)
		for i := range items {
			i := i
			g.Go(func() error {
				// Members queued behind the concurrency limit are not
				// started once the batch has failed.
				if failed.Load() {
					return nil
				}
				resp, err := c.Do(ctx, methods[i], descriptors[i])
				if err != nil {
					if failed.CompareAndSwap(false, true) {
						failures <- batchFailure{index: i, resp: resp, err: err}
					}
					return err
				}
				responses[i] = resp
				return nil
			})
		}
		g.Wait()
	}()

	select {
	case f := <-failures:
		return c.batchFailed(f, onFailure)
	case <-done:
	}

	// Every member has returned; one of them may still have failed.
	select {
	case f := <-failures:
		return c.batchFailed(f, onFailure)
	default:
	}

	logger.Debug("batch completed", "items", len(items))
	if onSuccess != nil {
		onSuccess(responses)
	}
	return responses, nil
}

func (c *Client) batchFailed(f batchFailure, onFailure FailureFunc) ([]*Response, error) {
	c.logger.Named("batch").Debug("batch failed", "item", f.index, "error", f.err)
	resp := f.resp
	if resp == nil {
		resp = &Response{Err: f.err}
	}
	onFailure(resp)
	return nil, fmt.Errorf("batch item %d: %w", f.index, f.err)
}
