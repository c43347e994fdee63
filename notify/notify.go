/*
Package notify delivers recorded ledger notifications to external channels.

PURPOSE:
  The ledger decides that an alert exists and records it. Sinks in this
  package carry the recorded alert outward: the service log, a Redis stream
  for downstream consumers (paging, email) and an HTTP webhook.

KEY TYPES:
  - Event:   JSON envelope shared by every sink
  - Log:     Writes the event to a zap logger
  - Stream:  XADD to a Redis stream
  - Webhook: POST to an HTTP endpoint with retries
  - Multi:   Fan-out to several sinks

Every sink implements ledger.Dispatcher. A sink error never affects the
recorded notification.
*/
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/qmedic/stock-ledger/ledger"
)

const EventType = "inventory.notification"

// Event is the wire envelope for a dispatched notification.
type Event struct {
	EventID      string       `json:"eventId"`
	Type         string       `json:"type"`
	SentAt       time.Time    `json:"sentAt"`
	Notification Notification `json:"notification"`
}

type Notification struct {
	ID         int64  `json:"id"`
	AlertType  string `json:"alertType"`
	ItemCode   string `json:"itemCode"`
	ItemName   string `json:"itemName"`
	Location   string `json:"location"`
	ExpiryDate string `json:"expiryDate,omitempty"`
	Details    string `json:"details"`
	AlertDay   string `json:"alertDay"`
	CreatedAt  string `json:"createdAt"`
}

// NewEvent wraps n in an envelope with a fresh event ID.
func NewEvent(n ledger.Notification, now time.Time) Event {
	return Event{
		EventID: uuid.NewString(),
		Type:    EventType,
		SentAt:  now.UTC(),
		Notification: Notification{
			ID:         int64(n.ID),
			AlertType:  string(n.AlertType),
			ItemCode:   n.ItemCode,
			ItemName:   n.ItemName,
			Location:   n.Location,
			ExpiryDate: ledger.FormatDate(n.ExpiryDate),
			Details:    n.Details,
			AlertDay:   n.AlertDay.Format(ledger.DateLayout),
			CreatedAt:  n.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// =============================================================================
// MULTI - Fan-out
// =============================================================================

// Multi dispatches to every sink, continuing past failures. The returned error
// joins every sink error.
type Multi []ledger.Dispatcher

func (m Multi) Dispatch(ctx context.Context, n ledger.Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ ledger.Dispatcher = Multi(nil)
