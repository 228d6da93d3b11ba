package operator

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"time"
)

const (
	pollTimeout    = 30 * time.Second
	pollRetryDelay = 3 * time.Second
)

// SetupWebhook registers the public webhook endpoint with the Bot API.
func (b *Bridge) SetupWebhook(ctx context.Context, publicBaseURL string) error {
	url := strings.TrimRight(publicBaseURL, "/") + "/webhook/telegram"
	if err := b.api.setWebhook(ctx, url); err != nil {
		return err
	}
	log.Printf("[telegram] webhook registered at %s", url)
	return nil
}

// StartPolling runs the getUpdates long-poll loop until the context is
// cancelled. Used when no public base URL is configured. Any previously
// registered webhook is removed first, since Telegram refuses getUpdates
// while a webhook is active.
func (b *Bridge) StartPolling(ctx context.Context) {
	if err := b.api.deleteWebhook(ctx); err != nil {
		log.Printf("[telegram] delete webhook failed: %v", err)
	}
	log.Printf("[telegram] long polling for updates")

	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}

		updates, next, err := b.api.getUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !isPollTimeout(err) {
				log.Printf("[telegram] poll failed: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(pollRetryDelay):
				}
			}
			continue
		}
		offset = next

		for _, upd := range updates {
			b.HandleUpdate(ctx, upd)
		}
	}
}

// Long polls routinely end in timeouts; those are not worth logging.
func isPollTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}
