/*
store.go - Persistence interfaces for items, history and notifications

KEY INTERFACES:
  Store:         Reads and the two writes outside the action path
                 (notification acknowledgement, sweep alert insert)
  Tx:            Operations available inside one unit of work
  TxStore:       Store plus WithTx
  Provisioner:   Item creation and reset, used by demo seeding only
  SweepRunStore: Sweep run bookkeeping

WRITE PATH OWNERSHIP:
  Item quantity and history rows are written only through Tx, and Tx is
  only handed out by WithTx. The engine is the only caller of WithTx.

LOCKING:
  Tx.LockItem must serialize concurrent units of work on the same item
  until commit or rollback: a row lock (Postgres FOR UPDATE), an immediate
  write transaction (SQLite) or a held mutex (memory). A plain read here
  would let two actions compute from the same starting quantity.
  Waiting for that lock must end when ctx does.

NOT FOUND:
  Lookups return (nil, nil) when nothing matches. Callers decide which
  typed error to raise.

IMPLEMENTATIONS:
  - store/sqlite:       SQLite (default)
  - store/postgres:     PostgreSQL via pgx
  - ledger/store:       In-memory, for tests
*/
package ledger

import (
	"context"
	"time"
)

// Store handles reads and the notification writes that sit outside the
// action transaction.
type Store interface {
	GetItem(ctx context.Context, code string) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)

	// ListExpiringItems returns items with an expiry date set.
	ListExpiringItems(ctx context.Context) ([]Item, error)

	History(ctx context.Context, filter HistoryFilter) ([]ActionRecord, error)
	Summary(ctx context.Context) (Summary, error)

	// Notifications returns all notifications, newest first.
	Notifications(ctx context.Context) ([]Notification, error)
	UnreadCount(ctx context.Context) (int, error)

	// AcknowledgeNotification marks a notification read. Acknowledging an
	// already-read notification succeeds without change.
	AcknowledgeNotification(ctx context.Context, id NotificationID) error

	// RecordExpiryAlert inserts an ExpiryWarning unless one already exists for
	// the same item and AlertDay. inserted is false when suppressed.
	RecordExpiryAlert(ctx context.Context, n Notification) (saved Notification, inserted bool, err error)
}

// Tx is the set of operations available inside one unit of work.
type Tx interface {
	// LockItem reads the item by code and holds it until the unit of work ends.
	LockItem(ctx context.Context, code string) (*Item, error)
	ItemByID(ctx context.Context, id ItemID) (*Item, error)
	UpdateQuantity(ctx context.Context, id ItemID, quantity int, at time.Time) error
	AppendRecord(ctx context.Context, rec ActionRecord) (ActionRecord, error)
	AppendNotification(ctx context.Context, n Notification) (Notification, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Provisioner creates and clears items. Inventory provisioning is outside the
// ledger; this exists for demo seeding and tests.
type Provisioner interface {
	SaveItem(ctx context.Context, item Item) (Item, error)
	Reset(ctx context.Context) error
}

type SweepRunStore interface {
	SaveSweepRun(ctx context.Context, run SweepRun) error
	SweepRuns(ctx context.Context, limit int) ([]SweepRun, error)
}
