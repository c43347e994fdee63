/*
Package ledger provides the inventory action ledger.

PURPOSE:
  Turns a requested inventory action (Check In, Use, Transfer, Remove All,
  Check Out) plus a quantity into an updated stock count, an immutable
  history record and, when stock runs low, a notification. The same alert
  recording is shared by the scheduled expiry sweep.

KEY CONCEPTS IN THIS FILE (types.go):
  - Action:       Closed set of inventory movements, with an Other variant
  - Item:         A stocked item with a non-negative quantity
  - ActionRecord: Append-only history entry with snapshot fields
  - Notification: Alert log entry (LowStock, ExpiryWarning)

SNAPSHOT FIELDS:
  ActionRecord and Notification copy the item's code, name, category,
  location and expiry at the moment of the event. They are set once at
  insert time and never re-derived from the live item row, so a later
  rename does not rewrite history.

SEE ALSO:
  - validator.go: Request normalization and pre-checks
  - engine.go:    The atomic unit of work for one action
  - sweep.go:     Scheduled expiry scan
  - store.go:     Persistence interfaces
*/
package ledger

import (
	"strings"
	"time"
)

// =============================================================================
// ACTION - Closed set of inventory movements
// =============================================================================

type Action int

const (
	ActionOther Action = iota
	ActionCheckIn
	ActionUse
	ActionTransfer
	ActionRemoveAll
	ActionCheckOut
)

var actionLabels = map[Action]string{
	ActionOther:     "Other",
	ActionCheckIn:   "Check In",
	ActionUse:       "Use",
	ActionTransfer:  "Transfer",
	ActionRemoveAll: "Remove All",
	ActionCheckOut:  "Check Out",
}

// ParseAction maps a caller-supplied label to an Action. Matching ignores
// case, spaces, underscores and hyphens, so "Check In", "check_in" and
// "CheckIn" are the same action. Anything unrecognized is ActionOther.
func ParseAction(label string) Action {
	switch squash(label) {
	case "checkin":
		return ActionCheckIn
	case "use":
		return ActionUse
	case "transfer":
		return ActionTransfer
	case "removeall":
		return ActionRemoveAll
	case "checkout":
		return ActionCheckOut
	default:
		return ActionOther
	}
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (a Action) String() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return actionLabels[ActionOther]
}

// ReducesStock reports whether the action decrements on-hand quantity and is
// therefore bounded by the available stock. Transfer counts: the item record
// models a single location, so stock leaving it is a decrement here.
func (a Action) ReducesStock() bool {
	switch a {
	case ActionUse, ActionCheckOut, ActionRemoveAll, ActionTransfer:
		return true
	}
	return false
}

// TriggersLowStock reports whether a post-action quantity at or below the
// minimum should record a LowStock alert. Check-in never does.
func (a Action) TriggersLowStock() bool { return a.ReducesStock() }

// Apply computes the quantity after the action, floored at zero.
func (a Action) Apply(current, quantity int) int {
	next := current
	switch {
	case a == ActionCheckIn:
		next = current + quantity
	case a.ReducesStock():
		next = current - quantity
	}
	if next < 0 {
		return 0
	}
	return next
}

// =============================================================================
// CATEGORY
// =============================================================================

type Category string

const (
	CategoryMedication Category = "Medication"
	CategoryEquipment  Category = "Equipment"
	CategorySupplies   Category = "Supplies"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMedication, CategoryEquipment, CategorySupplies:
		return true
	}
	return false
}

// =============================================================================
// ITEM - A stocked inventory item
// =============================================================================

type ItemID int64

type Item struct {
	ID           ItemID
	Code         string // stable external identifier, e.g. "MED001"
	Name         string
	Category     Category
	Quantity     int // never negative
	MinQuantity  int
	ExpiryDate   *time.Time // calendar date, UTC midnight
	Location     string
	LastActionAt *time.Time
}

type ItemStatus string

const (
	StatusInStock    ItemStatus = "In Stock"
	StatusLowStock   ItemStatus = "Low Stock"
	StatusOutOfStock ItemStatus = "Out of Stock"
)

func (it Item) Status() ItemStatus {
	switch {
	case it.Quantity <= 0:
		return StatusOutOfStock
	case it.Quantity < it.MinQuantity:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// =============================================================================
// ACTION RECORD - Append-only history entry
// =============================================================================

type RecordID int64

type ActionRecord struct {
	ID          RecordID
	ItemID      ItemID
	ItemCode    string // snapshot
	ItemName    string // snapshot
	Category    Category
	Action      Action
	ActionLabel string // label as submitted; differs from Action.String() for Other
	Quantity    int    // magnitude, direction implied by Action
	CaseID      string
	User        string
	Timestamp   time.Time
}

// =============================================================================
// NOTIFICATION - Alert log entry
// =============================================================================

type NotificationID int64

type AlertType string

const (
	AlertLowStock      AlertType = "Low Stock"
	AlertExpiryWarning AlertType = "Expiry Warning"
)

type Notification struct {
	ID         NotificationID
	ItemID     ItemID
	AlertType  AlertType
	ItemCode   string // snapshot
	ItemName   string // snapshot
	Location   string // snapshot
	ExpiryDate *time.Time
	Details    string
	AlertDay   time.Time // calendar day the alert refers to; expiry alerts are unique per item and day
	Read       bool
	CreatedAt  time.Time
}

// =============================================================================
// QUERIES
// =============================================================================

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// HistoryFilter narrows a history query. Zero values mean "any".
type HistoryFilter struct {
	CaseID   string
	Action   *Action
	Category Category
	ItemCode string
	Sort     SortOrder

	// ActionLabel matches the label the caller sent, exactly. Set it with
	// Action = ActionOther to pick one unrecognized action out of the rest.
	ActionLabel string
}

// Summary aggregates the history for the home screen.
type Summary struct {
	CheckedIn     int
	CheckedOut    int
	LowStockCount int
}
