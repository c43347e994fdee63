/*
Package sqlite provides a SQLite-backed implementation of the ledger storage
interfaces.

PURPOSE:
  Default persistence for the stock ledger. Implements ledger.TxStore,
  ledger.Provisioner and ledger.SweepRunStore.

INTERFACES IMPLEMENTED:
  ledger.Store:         Item, history and notification reads
  ledger.TxStore:       Atomic action unit of work
  ledger.Provisioner:   Demo seeding
  ledger.SweepRunStore: Expiry sweep audit

APPEND-ONLY ENFORCEMENT:
  - inventory_history rows are only ever inserted
  - notification_log rows are inserted, and only is_read is updated
  - inventory_item.quantity is only updated inside WithTx

KEY TABLES:
  inventory_item:    Stocked items (quantity CHECK >= 0)
  inventory_history: One row per committed action, with snapshot fields
  notification_log:  Low-stock and expiry alerts
  sweep_runs:        Expiry sweep audit records

INDEXES:
  - idx_history_item_time: History by item, newest first (hot path)
  - idx_history_case:      History by case
  - idx_notification_expiry_day: One expiry alert per item and day

CONCURRENCY:
  Writers take a one-slot semaphore (golang.org/x/sync/semaphore) whose
  Acquire honours the caller's context, so a unit of work queued behind
  another aborts on its deadline. Reads take no lock; the single pooled
  connection serializes them and its wait also honours the context.
  Write transactions are opened with BEGIN IMMEDIATE (_txlock=immediate), so a second process
  writing the same file waits on busy_timeout rather than interleaving.
  Inside WithTx only the *sql.Tx is used; touching s.db there would
  deadlock with a single-connection pool.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, logger)

SEE ALSO:
  - ledger/store.go:        Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
  - store/postgres:         PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"

	"github.com/qmedic/stock-ledger/ledger"
)

// timestampLayout is fixed width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB

	// writer admits one writer at a time. Waiting for it honours the
	// caller's context, so a queued unit of work aborts on its deadline.
	writer *semaphore.Weighted
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and SQLite
	// admits one writer anyway.
	db.SetMaxOpenConns(1)

	store := FromDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// FromDB wraps an already-open database without migrating it.
func FromDB(db *sql.DB) *Store {
	return &Store{db: db, writer: semaphore.NewWeighted(1)}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inventory_item (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		min_quantity INTEGER NOT NULL DEFAULT 0,
		expiry_date TEXT,
		location TEXT NOT NULL DEFAULT '',
		last_action_at TEXT
	);

	-- Append-only action history
	CREATE TABLE IF NOT EXISTS inventory_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_fk INTEGER NOT NULL REFERENCES inventory_item(id) ON DELETE CASCADE,
		item_code TEXT NOT NULL,
		item_name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		action_label TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		case_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_item_time
		ON inventory_history(item_fk, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_history_case
		ON inventory_history(case_id);

	CREATE TABLE IF NOT EXISTS notification_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_fk INTEGER NOT NULL REFERENCES inventory_item(id) ON DELETE CASCADE,
		alert_type TEXT NOT NULL,
		item_code TEXT NOT NULL,
		item_name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		expiry_date TEXT,
		details TEXT NOT NULL,
		alert_day TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one expiry alert per item per day, across overlapping sweeps
	CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_expiry_day
		ON notification_log(item_fk, alert_type, alert_day)
		WHERE alert_type = 'Expiry Warning';

	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		scanned INTEGER NOT NULL DEFAULT 0,
		alerted INTEGER NOT NULL DEFAULT 0,
		suppressed INTEGER NOT NULL DEFAULT 0,
		dispatch_failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ITEMS
// =============================================================================

const itemColumns = `id, item_code, name, category, quantity, min_quantity, expiry_date, location, last_action_at`

// GetItem returns the item with the given code, or nil.
func (s *Store) GetItem(ctx context.Context, code string) (*ledger.Item, error) {
	return getItem(ctx, s.db, "item_code = ?", code)
}

func getItem(ctx context.Context, q queryer, where string, arg any) (*ledger.Item, error) {
	row := q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM inventory_item WHERE "+where, arg)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListItems(ctx context.Context) ([]ledger.Item, error) {
	return s.queryItems(ctx, "SELECT "+itemColumns+" FROM inventory_item ORDER BY id")
}

func (s *Store) ListExpiringItems(ctx context.Context) ([]ledger.Item, error) {
	return s.queryItems(ctx, "SELECT "+itemColumns+" FROM inventory_item WHERE expiry_date IS NOT NULL ORDER BY id")
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]ledger.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []ledger.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (ledger.Item, error) {
	var (
		item         ledger.Item
		category     string
		expiry       sql.NullString
		lastActionAt sql.NullString
	)
	err := sc.Scan(&item.ID, &item.Code, &item.Name, &category, &item.Quantity, &item.MinQuantity,
		&expiry, &item.Location, &lastActionAt)
	if err != nil {
		return item, err
	}
	item.Category = ledger.Category(category)
	item.ExpiryDate = parseDate(expiry)
	item.LastActionAt = parseTimestamp(lastActionAt)
	return item, nil
}

// SaveItem inserts the item, or updates the one with the same code.
func (s *Store) SaveItem(ctx context.Context, item ledger.Item) (ledger.Item, error) {
	if err := s.lockWriter(ctx); err != nil {
		return ledger.Item{}, err
	}
	defer s.writer.Release(1)

	query := `
		INSERT INTO inventory_item (item_code, name, category, quantity, min_quantity, expiry_date, location, last_action_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_code) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			quantity = excluded.quantity,
			min_quantity = excluded.min_quantity,
			expiry_date = excluded.expiry_date,
			location = excluded.location,
			last_action_at = excluded.last_action_at
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		item.Code, item.Name, string(item.Category), item.Quantity, item.MinQuantity,
		nullString(ledger.FormatDate(item.ExpiryDate)), item.Location, formatTimestampPtr(item.LastActionAt),
	).Scan(&item.ID)
	if err != nil {
		return ledger.Item{}, fmt.Errorf("failed to save item %s: %w", item.Code, err)
	}
	return item, nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	if err := s.lockWriter(ctx); err != nil {
		return err
	}
	defer s.writer.Release(1)

	tables := []string{"notification_log", "inventory_history", "inventory_item", "sweep_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

const historyColumns = `id, item_fk, item_code, item_name, category, action, action_label, quantity, case_id, user_name, created_at`

func (s *Store) History(ctx context.Context, f ledger.HistoryFilter) ([]ledger.ActionRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.CaseID != "" {
		where = append(where, "case_id = ?")
		args = append(args, f.CaseID)
	}
	if f.Action != nil {
		where = append(where, "action = ?")
		args = append(args, f.Action.String())
	}
	if f.ActionLabel != "" {
		where = append(where, "action_label = ?")
		args = append(args, f.ActionLabel)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.ItemCode != "" {
		where = append(where, "item_code = ?")
		args = append(args, f.ItemCode)
	}

	query := "SELECT " + historyColumns + " FROM inventory_history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Sort == ledger.SortOldest {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []ledger.ActionRecord
	for rows.Next() {
		var (
			rec       ledger.ActionRecord
			category  string
			action    string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.ItemCode, &rec.ItemName, &category,
			&action, &rec.ActionLabel, &rec.Quantity, &rec.CaseID, &rec.User, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		rec.Category = ledger.Category(category)
		rec.Action = ledger.ParseAction(action)
		rec.Timestamp, _ = time.Parse(timestampLayout, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Summary(ctx context.Context) (ledger.Summary, error) {
	var sum ledger.Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN action = ? THEN quantity ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action <> ? THEN quantity ELSE 0 END), 0)
		FROM inventory_history
	`, ledger.ActionCheckIn.String(), ledger.ActionCheckIn.String()).Scan(&sum.CheckedIn, &sum.CheckedOut)
	if err != nil {
		return sum, fmt.Errorf("failed to summarize history: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM inventory_item WHERE quantity > 0 AND quantity < min_quantity",
	).Scan(&sum.LowStockCount)
	if err != nil {
		return sum, fmt.Errorf("failed to count low stock: %w", err)
	}
	return sum, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

const notificationColumns = `id, item_fk, alert_type, item_code, item_name, location, expiry_date, details, alert_day, is_read, created_at`

func (s *Store) Notifications(ctx context.Context) ([]ledger.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+notificationColumns+" FROM notification_log ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []ledger.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(sc scanner) (ledger.Notification, error) {
	var (
		n         ledger.Notification
		alertType string
		expiry    sql.NullString
		alertDay  string
		createdAt string
	)
	err := sc.Scan(&n.ID, &n.ItemID, &alertType, &n.ItemCode, &n.ItemName, &n.Location,
		&expiry, &n.Details, &alertDay, &n.Read, &createdAt)
	if err != nil {
		return n, fmt.Errorf("failed to scan notification: %w", err)
	}
	n.AlertType = ledger.AlertType(alertType)
	n.ExpiryDate = parseDate(expiry)
	n.AlertDay, _ = ledger.ParseDate(alertDay)
	n.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	return n, nil
}

func (s *Store) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notification_log WHERE is_read = 0").Scan(&count)
	return count, err
}

// AcknowledgeNotification marks a notification read. SQLite counts matched
// rows, so an already-read notification still reports one affected row.
func (s *Store) AcknowledgeNotification(ctx context.Context, id ledger.NotificationID) error {
	if err := s.lockWriter(ctx); err != nil {
		return err
	}
	defer s.writer.Release(1)

	res, err := s.db.ExecContext(ctx, "UPDATE notification_log SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotificationNotFound
	}
	return nil
}

// RecordExpiryAlert inserts the alert unless one exists for the same item and
// day. INSERT OR IGNORE leans on idx_notification_expiry_day.
func (s *Store) RecordExpiryAlert(ctx context.Context, n ledger.Notification) (ledger.Notification, bool, error) {
	if err := s.lockWriter(ctx); err != nil {
		return ledger.Notification{}, false, err
	}
	defer s.writer.Release(1)

	n.AlertDay = ledger.DateOf(n.AlertDay)
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notification_log
		(item_fk, alert_type, item_code, item_name, location, expiry_date, details, alert_day, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, notificationArgs(n)...)
	if err != nil {
		return ledger.Notification{}, false, fmt.Errorf("failed to record expiry alert: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return ledger.Notification{}, false, err
	}
	if affected == 0 {
		row := s.db.QueryRowContext(ctx,
			"SELECT "+notificationColumns+" FROM notification_log WHERE item_fk = ? AND alert_type = ? AND alert_day = ?",
			n.ItemID, string(n.AlertType), n.AlertDay.Format(ledger.DateLayout))
		existing, err := scanNotification(row)
		if err != nil {
			return ledger.Notification{}, false, err
		}
		return existing, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Notification{}, false, err
	}
	n.ID = ledger.NotificationID(id)
	n.Read = false
	return n, true, nil
}

func notificationArgs(n ledger.Notification) []any {
	return []any{
		n.ItemID, string(n.AlertType), n.ItemCode, n.ItemName, n.Location,
		nullString(ledger.FormatDate(n.ExpiryDate)), n.Details,
		n.AlertDay.Format(ledger.DateLayout), formatTimestamp(n.CreatedAt),
	}
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

func (s *Store) SaveSweepRun(ctx context.Context, r ledger.SweepRun) error {
	if err := s.lockWriter(ctx); err != nil {
		return err
	}
	defer s.writer.Release(1)

	query := `
		INSERT INTO sweep_runs (id, status, started_at, completed_at, scanned, alerted, suppressed, dispatch_failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			scanned = excluded.scanned,
			alerted = excluded.alerted,
			suppressed = excluded.suppressed,
			dispatch_failed = excluded.dispatch_failed,
			error = excluded.error
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Status, formatTimestamp(r.StartedAt), formatTimestampPtr(r.CompletedAt),
		r.Scanned, r.Alerted, r.Suppressed, r.DispatchFailed, r.Error,
	)
	return err
}

// SweepRuns returns up to limit runs, most recent first.
func (s *Store) SweepRuns(ctx context.Context, limit int) ([]ledger.SweepRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, started_at, completed_at, scanned, alerted, suppressed, dispatch_failed, error
		FROM sweep_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ledger.SweepRun
	for rows.Next() {
		var (
			r           ledger.SweepRun
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Status, &startedAt, &completedAt,
			&r.Scanned, &r.Alerted, &r.Suppressed, &r.DispatchFailed, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(timestampLayout, startedAt)
		r.CompletedAt = parseTimestamp(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// lockWriter waits for the write slot or for ctx to end.
func (s *Store) lockWriter(ctx context.Context) error {
	if err := s.writer.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	return nil
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	if err := s.lockWriter(ctx); err != nil {
		return err
	}
	defer s.writer.Release(1)

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

// LockItem reads the item. The write lock was already taken by BEGIN
// IMMEDIATE, so the row cannot change before commit.
func (ts *txStore) LockItem(ctx context.Context, code string) (*ledger.Item, error) {
	return getItem(ctx, ts.tx, "item_code = ?", code)
}

func (ts *txStore) ItemByID(ctx context.Context, id ledger.ItemID) (*ledger.Item, error) {
	return getItem(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) UpdateQuantity(ctx context.Context, id ledger.ItemID, quantity int, at time.Time) error {
	_, err := ts.tx.ExecContext(ctx,
		"UPDATE inventory_item SET quantity = ?, last_action_at = ? WHERE id = ?",
		quantity, formatTimestamp(at), id)
	if err != nil {
		return fmt.Errorf("failed to update quantity: %w", err)
	}
	return nil
}

func (ts *txStore) AppendRecord(ctx context.Context, rec ledger.ActionRecord) (ledger.ActionRecord, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO inventory_history
		(item_fk, item_code, item_name, category, action, action_label, quantity, case_id, user_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ItemID, rec.ItemCode, rec.ItemName, string(rec.Category),
		rec.Action.String(), rec.ActionLabel, rec.Quantity, rec.CaseID, rec.User,
		formatTimestamp(rec.Timestamp),
	)
	if err != nil {
		return ledger.ActionRecord{}, fmt.Errorf("failed to append history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.ActionRecord{}, err
	}
	rec.ID = ledger.RecordID(id)
	return rec, nil
}

func (ts *txStore) AppendNotification(ctx context.Context, n ledger.Notification) (ledger.Notification, error) {
	n.AlertDay = ledger.DateOf(n.AlertDay)
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO notification_log
		(item_fk, alert_type, item_code, item_name, location, expiry_date, details, alert_day, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, notificationArgs(n)...)
	if err != nil {
		return ledger.Notification{}, fmt.Errorf("failed to append notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Notification{}, err
	}
	n.ID = ledger.NotificationID(id)
	n.Read = false
	return n, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatTimestampPtr(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return nullString(formatTimestamp(*t))
}

func parseTimestamp(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timestampLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := ledger.ParseDate(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

var (
	_ ledger.TxStore       = (*Store)(nil)
	_ ledger.Provisioner   = (*Store)(nil)
	_ ledger.SweepRunStore = (*Store)(nil)
)
