package stream

import (
	"context"
	"time"
)

// RunWithReconnect keeps the push channel alive the way a browser
// EventSource does: every time Run ends it waits for the server-advertised
// retry delay and opens a fresh connection. It returns when ctx is done.
func (c *Client) RunWithReconnect(ctx context.Context) error {
	for {
		err := c.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := c.RetryDelay()
		if c.log != nil {
			c.log.Infow("stream_reconnect_scheduled", "in", delay, "err", err)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
