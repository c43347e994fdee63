package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALENDAR DATES
// =============================================================================

const (
	DateLayout = "2006-01-02"

	// HistoryTimestampLayout renders history timestamps the way the mobile
	// client displays them, e.g. "05/21/2024, 10:00:00 AM".
	HistoryTimestampLayout = "01/02/2006, 3:04:05 PM"
)

var nanosPerDay = decimal.NewFromInt(int64(24 * time.Hour))

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DaysLeft returns ceil((expiry - now) / 1 day). An item whose expiry date
// is today has 0 days left; one expiring tomorrow, seen at noon today, has 1.
func DaysLeft(expiry, now time.Time) int {
	left := decimal.NewFromInt(int64(expiry.Sub(now)))
	return int(left.Div(nanosPerDay).Ceil().IntPart())
}
