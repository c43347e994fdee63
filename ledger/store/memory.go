// Package store provides an in-memory ledger store for tests and local runs.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/qmedic/stock-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	writer        *semaphore.Weighted // one unit of work at a time
	items         map[ledger.ItemID]ledger.Item
	byCode        map[string]ledger.ItemID
	records       []ledger.ActionRecord
	notifications []ledger.Notification
	runs          []ledger.SweepRun

	nextItem   ledger.ItemID
	nextRecord ledger.RecordID
	nextNotif  ledger.NotificationID

	// Fault injection. When set, the matching Tx call fails with this error
	// and the surrounding unit of work rolls back.
	FailAppendRecord       error
	FailAppendNotification error
}

func NewMemory() *Memory {
	m := &Memory{writer: semaphore.NewWeighted(1)}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.items = make(map[ledger.ItemID]ledger.Item)
	m.byCode = make(map[string]ledger.ItemID)
	m.records = nil
	m.notifications = nil
	m.runs = nil
	m.nextItem, m.nextRecord, m.nextNotif = 0, 0, 0
}

// =============================================================================
// PROVISIONING
// =============================================================================

// SaveItem inserts the item, or replaces the one with the same code.
func (m *Memory) SaveItem(_ context.Context, item ledger.Item) (ledger.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byCode[item.Code]; ok {
		item.ID = id
	} else {
		m.nextItem++
		item.ID = m.nextItem
		m.byCode[item.Code] = item.ID
	}
	m.items[item.ID] = cloneItem(item)
	return cloneItem(item), nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (m *Memory) GetItem(_ context.Context, code string) (*ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.itemByCodeLocked(code), nil
}

func (m *Memory) itemByCodeLocked(code string) *ledger.Item {
	id, ok := m.byCode[code]
	if !ok {
		return nil
	}
	it := cloneItem(m.items[id])
	return &it
}

func (m *Memory) ListItems(_ context.Context) ([]ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedItemsLocked(func(ledger.Item) bool { return true }), nil
}

func (m *Memory) ListExpiringItems(_ context.Context) ([]ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedItemsLocked(func(it ledger.Item) bool { return it.ExpiryDate != nil }), nil
}

func (m *Memory) sortedItemsLocked(keep func(ledger.Item) bool) []ledger.Item {
	out := make([]ledger.Item, 0, len(m.items))
	for _, it := range m.items {
		if keep(it) {
			out = append(out, cloneItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) History(_ context.Context, f ledger.HistoryFilter) ([]ledger.ActionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.ActionRecord
	for _, r := range m.records {
		if f.CaseID != "" && r.CaseID != f.CaseID {
			continue
		}
		if f.Action != nil && r.Action != *f.Action {
			continue
		}
		if f.ActionLabel != "" && r.ActionLabel != f.ActionLabel {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if f.ItemCode != "" && r.ItemCode != f.ItemCode {
			continue
		}
		out = append(out, r)
	}

	oldest := f.Sort == ledger.SortOldest
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			if oldest {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.Timestamp.After(b.Timestamp)
		}
		if oldest {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (m *Memory) Summary(_ context.Context) (ledger.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s ledger.Summary
	for _, r := range m.records {
		if r.Action == ledger.ActionCheckIn {
			s.CheckedIn += r.Quantity
		} else {
			s.CheckedOut += r.Quantity
		}
	}
	s.LowStockCount = ledger.CountLowStock(m.sortedItemsLocked(func(ledger.Item) bool { return true }))
	return s, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (m *Memory) Notifications(_ context.Context) ([]ledger.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Notification, 0, len(m.notifications))
	for i := len(m.notifications) - 1; i >= 0; i-- {
		out = append(out, m.notifications[i])
	}
	return out, nil
}

func (m *Memory) UnreadCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, nt := range m.notifications {
		if !nt.Read {
			n++
		}
	}
	return n, nil
}

func (m *Memory) AcknowledgeNotification(_ context.Context, id ledger.NotificationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].Read = true
			return nil
		}
	}
	return ledger.ErrNotificationNotFound
}

func (m *Memory) RecordExpiryAlert(_ context.Context, n ledger.Notification) (ledger.Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := ledger.DateOf(n.AlertDay)
	for _, existing := range m.notifications {
		if existing.ItemID == n.ItemID && existing.AlertType == n.AlertType && existing.AlertDay.Equal(day) {
			return existing, false, nil
		}
	}
	n.AlertDay = day
	return m.appendNotificationLocked(n), true, nil
}

func (m *Memory) appendNotificationLocked(n ledger.Notification) ledger.Notification {
	m.nextNotif++
	n.ID = m.nextNotif
	n.Read = false
	m.notifications = append(m.notifications, n)
	return n
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

// SaveSweepRun inserts or replaces the run with the same ID.
func (m *Memory) SaveSweepRun(_ context.Context, run ledger.SweepRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

// SweepRuns returns up to limit runs, most recent first.
func (m *Memory) SweepRuns(_ context.Context, limit int) ([]ledger.SweepRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.SweepRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.runs[i])
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn with the store's write lock held, which serializes all
// units of work. A caller queued behind another unit of work gives up when
// ctx ends. On error the pre-transaction state is restored.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	if err := m.writer.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.writer.Release(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memoryTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	if err := ctx.Err(); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	items         map[ledger.ItemID]ledger.Item
	records       int
	notifications int
	nextRecord    ledger.RecordID
	nextNotif     ledger.NotificationID
}

// snapshot relies on records and notifications being append-only inside a
// transaction: truncating to the saved lengths undoes the appends.
func (m *Memory) snapshot() memorySnapshot {
	items := make(map[ledger.ItemID]ledger.Item, len(m.items))
	for k, v := range m.items {
		items[k] = cloneItem(v)
	}
	return memorySnapshot{
		items:         items,
		records:       len(m.records),
		notifications: len(m.notifications),
		nextRecord:    m.nextRecord,
		nextNotif:     m.nextNotif,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.items = s.items
	m.records = m.records[:s.records]
	m.notifications = m.notifications[:s.notifications]
	m.nextRecord = s.nextRecord
	m.nextNotif = s.nextNotif
}

type memoryTx struct {
	m *Memory
}

func (tx *memoryTx) LockItem(_ context.Context, code string) (*ledger.Item, error) {
	return tx.m.itemByCodeLocked(code), nil
}

func (tx *memoryTx) ItemByID(_ context.Context, id ledger.ItemID) (*ledger.Item, error) {
	it, ok := tx.m.items[id]
	if !ok {
		return nil, nil
	}
	it = cloneItem(it)
	return &it, nil
}

func (tx *memoryTx) UpdateQuantity(_ context.Context, id ledger.ItemID, quantity int, at time.Time) error {
	it, ok := tx.m.items[id]
	if !ok {
		return ledger.ErrItemNotFound
	}
	it.Quantity = quantity
	it.LastActionAt = &at
	tx.m.items[id] = it
	return nil
}

func (tx *memoryTx) AppendRecord(_ context.Context, rec ledger.ActionRecord) (ledger.ActionRecord, error) {
	if tx.m.FailAppendRecord != nil {
		return ledger.ActionRecord{}, tx.m.FailAppendRecord
	}
	tx.m.nextRecord++
	rec.ID = tx.m.nextRecord
	tx.m.records = append(tx.m.records, rec)
	return rec, nil
}

func (tx *memoryTx) AppendNotification(_ context.Context, n ledger.Notification) (ledger.Notification, error) {
	if tx.m.FailAppendNotification != nil {
		return ledger.Notification{}, tx.m.FailAppendNotification
	}
	return tx.m.appendNotificationLocked(n), nil
}

func cloneItem(it ledger.Item) ledger.Item {
	if it.ExpiryDate != nil {
		e := *it.ExpiryDate
		it.ExpiryDate = &e
	}
	if it.LastActionAt != nil {
		t := *it.LastActionAt
		it.LastActionAt = &t
	}
	return it
}

var (
	_ ledger.TxStore       = (*Memory)(nil)
	_ ledger.Provisioner   = (*Memory)(nil)
	_ ledger.SweepRunStore = (*Memory)(nil)
)
