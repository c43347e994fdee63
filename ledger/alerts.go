package ledger

import (
	"context"
	"fmt"
	"time"
)

// Dispatcher delivers a recorded notification to an external channel
// (log, stream, webhook). Recording and delivery are separate: a failed
// dispatch never removes the recorded notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Expiry alert horizon: one advance warning at 15 days, then daily for the
// final week.
const (
	expiryAdvanceDays = 15
	expiryFinalWeek   = 7
)

// ShouldAlertExpiry reports whether an item with daysLeft to expiry is due an
// alert today. Already expired items are not.
func ShouldAlertExpiry(daysLeft int) bool {
	return daysLeft == expiryAdvanceDays || (daysLeft > 0 && daysLeft <= expiryFinalWeek)
}

// LowStockAlert returns the notification to record after an action left item
// at or below its minimum, or nil when no alert is due.
func LowStockAlert(item Item, action Action, now time.Time) *Notification {
	if !action.TriggersLowStock() || item.Quantity > item.MinQuantity {
		return nil
	}
	n := snapshot(item, AlertLowStock, now)
	n.Details = fmt.Sprintf("Quantity is %d, which is at or below the minimum of %d.", item.Quantity, item.MinQuantity)
	return &n
}

// ExpiryAlert builds the ExpiryWarning for item, daysLeft days before expiry.
func ExpiryAlert(item Item, daysLeft int, now time.Time) Notification {
	n := snapshot(item, AlertExpiryWarning, now)
	unit := "days"
	if daysLeft == 1 {
		unit = "day"
	}
	n.Details = fmt.Sprintf("Expires on %s, %d %s left.", FormatDate(item.ExpiryDate), daysLeft, unit)
	return n
}

func snapshot(item Item, alert AlertType, now time.Time) Notification {
	var expiry *time.Time
	if item.ExpiryDate != nil {
		e := *item.ExpiryDate
		expiry = &e
	}
	return Notification{
		ItemID:     item.ID,
		AlertType:  alert,
		ItemCode:   item.Code,
		ItemName:   item.Name,
		Location:   item.Location,
		ExpiryDate: expiry,
		AlertDay:   DateOf(now),
		CreatedAt:  now,
	}
}
