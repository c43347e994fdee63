package ledger

import (
	"strings"
	"time"
)

// ExpiryFilter selects items by expiry state relative to today.
type ExpiryFilter string

const (
	ExpiryAny     ExpiryFilter = ""
	ExpiryExpired ExpiryFilter = "expired"
	ExpirySoon    ExpiryFilter = "soon"
)

// expiringSoonDays is the window for ExpirySoon, inclusive of both ends.
const expiringSoonDays = 30

// ItemFilter narrows an inventory listing. Zero fields match everything.
type ItemFilter struct {
	Query    string // case-insensitive substring of name, code or location
	Category Category
	Location string
	Expiry   ExpiryFilter
}

func (f ItemFilter) Match(it Item, today time.Time) bool {
	if f.Category != "" && it.Category != f.Category {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(it.Name), q) &&
			!strings.Contains(strings.ToLower(it.Code), q) &&
			!strings.Contains(strings.ToLower(it.Location), q) {
			return false
		}
	}
	if f.Location != "" && it.Location != f.Location {
		return false
	}

	switch f.Expiry {
	case ExpiryExpired:
		return it.ExpiryDate != nil && DateOf(*it.ExpiryDate).Before(DateOf(today))
	case ExpirySoon:
		if it.ExpiryDate == nil {
			return false
		}
		exp, day := DateOf(*it.ExpiryDate), DateOf(today)
		return !exp.Before(day) && !exp.After(day.AddDate(0, 0, expiringSoonDays))
	}
	return true
}

func FilterItems(items []Item, f ItemFilter, today time.Time) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if f.Match(it, today) {
			out = append(out, it)
		}
	}
	return out
}

// CountLowStock counts items whose status is LowStock. Out-of-stock items are
// not included.
func CountLowStock(items []Item) int {
	n := 0
	for _, it := range items {
		if it.Status() == StatusLowStock {
			n++
		}
	}
	return n
}
