package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/feedbackbot/pkg/logger"
)

// Poller drives getUpdates in a loop and hands every update to a handler.
type Poller struct {
	client  *Client
	timeout int
	handle  func(Update)
	backoff time.Duration
}

func NewPoller(client *Client, timeoutSeconds int, handle func(Update)) *Poller {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &Poller{client: client, timeout: timeoutSeconds, handle: handle, backoff: 3 * time.Second}
}

// Run polls until ctx is cancelled. The offset is advanced before the handler
// runs, so a crashing handler cannot make Telegram redeliver the same update forever.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	logger.Info().Int("timeout", p.timeout).Msg("[Poller] Long polling started")

	for {
		if ctx.Err() != nil {
			logger.Info().Msg("[Poller] Stopped")
			return nil
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			wait := p.backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				if apiErr.RetryAfter > 0 {
					wait = apiErr.RetryAfter
				}
				if apiErr.Code == CodeUnauthorized {
					return err
				}
			}
			logger.Warn().Err(err).Dur("retry_in", wait).Msg("[Poller] getUpdates failed")
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.handle(u)
		}
	}
}
