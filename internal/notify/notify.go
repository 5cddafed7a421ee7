// Package notify posts short trade messages to a chat webhook.
package notify

import (
	"context"
	"sync"
	"time"

	"spot-swing-bot/internal/api"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/logger"
)

const sendTimeout = 3 * time.Second

// Noop drops every message.
type Noop struct{}

func (Noop) Notify(context.Context, string) {}

// Webhook posts {"text": msg} to a Slack-compatible incoming webhook. Sends run in the background and
// failures are only logged.
type Webhook struct {
	url    string
	client *api.Client
	wg     sync.WaitGroup
}

var (
	_ interfaces.Notifier = Noop{}
	_ interfaces.Notifier = (*Webhook)(nil)
)

// New returns a Webhook for url, or Noop when url is empty.
func New(url string) interfaces.Notifier {
	if url == "" {
		return Noop{}
	}
	return &Webhook{url: url, client: api.NewClient(api.WithTimeout(sendTimeout))}
}

func (w *Webhook) Notify(ctx context.Context, msg string) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// detached from the cycle context so a finished cycle does not cancel delivery
		sctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := w.send(sctx, msg); err != nil {
			logger.Warn(ctx, "Notification failed", "error", err.Error())
		}
	}()
}

// Wait blocks until in-flight messages are delivered or have failed.
func (w *Webhook) Wait() { w.wg.Wait() }

func (w *Webhook) send(ctx context.Context, msg string) error {
	_, err := w.client.POST(ctx, w.url, map[string]string{"text": msg})
	return err
}
