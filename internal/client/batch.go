package client

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result pairs a batch request with its outcome.
type Result struct {
	Response *Response
	Err      error
}

// Batch runs reqs in chunks of the concurrency limit, pausing between chunks.
// Results keep input order and a failed request does not cancel the others.
// Requests not started when ctx ends report ctx's error.
func (c *Client) Batch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	for start := 0; start < len(reqs); start += c.concurrency {
		if start > 0 {
			if err := c.sleep(ctx, c.batchDelay); err != nil {
				fillErr(results[start:], err)
				return results
			}
		}

		end := start + c.concurrency
		if end > len(reqs) {
			end = len(reqs)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				resp, err := c.Do(ctx, reqs[i])
				results[i] = Result{Response: resp, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}
	return results
}

func fillErr(results []Result, err error) {
	for i := range results {
		results[i] = Result{Err: err}
	}
}
