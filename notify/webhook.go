package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/qmedic/stock-ledger/ledger"
)

// Webhook POSTs each notification as a JSON Event. 5xx responses and
// transport errors are retried; any non-2xx final response is an error.
type Webhook struct {
	client *resty.Client
	url    string
	logger *zap.Logger
	Now    func() time.Time
}

type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &Webhook{client: client, url: cfg.URL, logger: logger, Now: time.Now}
}

func (w *Webhook) Dispatch(ctx context.Context, n ledger.Notification) error {
	event := NewEvent(n, w.Now())

	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Event-ID", event.EventID).
		SetBody(event).
		Post(w.url)
	if err != nil {
		w.logger.Error("webhook call failed",
			zap.String("event_id", event.EventID),
			zap.Int64("notification_id", event.Notification.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		w.logger.Error("webhook returned error",
			zap.String("event_id", event.EventID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("webhook error: status %d", resp.StatusCode())
	}

	w.logger.Debug("webhook delivered",
		zap.String("event_id", event.EventID),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
