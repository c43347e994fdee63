package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qmedic/stock-ledger/ledger"
)

const DefaultStream = "inventory:notifications"

// Stream publishes notifications to a Redis stream. Each entry carries the
// JSON event under "data" plus flat fields for consumers that filter without
// decoding.
type Stream struct {
	Client *redis.Client
	Name   string
	MaxLen int64 // approximate trim; 0 keeps everything
	Now    func() time.Time
}

func NewStream(client *redis.Client, name string) *Stream {
	if name == "" {
		name = DefaultStream
	}
	return &Stream{Client: client, Name: name, Now: time.Now}
}

func (s *Stream) Dispatch(ctx context.Context, n ledger.Notification) error {
	_, err := s.Publish(ctx, n)
	return err
}

// Publish adds the notification and returns the stream entry ID.
func (s *Stream) Publish(ctx context.Context, n ledger.Notification) (string, error) {
	event := NewEvent(n, s.Now())
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: s.Name,
		Values: map[string]interface{}{
			"event_id":   event.EventID,
			"alert_type": event.Notification.AlertType,
			"item_code":  event.Notification.ItemCode,
			"data":       string(data),
			"timestamp":  event.SentAt.Unix(),
		},
	}
	if s.MaxLen > 0 {
		args.MaxLen = s.MaxLen
		args.Approx = true
	}

	id, err := s.Client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("publish notification %d to stream %s: %w", n.ID, s.Name, err)
	}
	return id, nil
}
