/*
Package postgres provides a PostgreSQL implementation of the ledger storage
interfaces using a pgx connection pool.

INTERFACES IMPLEMENTED:
  ledger.TxStore, ledger.Provisioner, ledger.SweepRunStore

CONCURRENCY:
  No process-level mutex. Per-item serialization comes from
  SELECT ... FOR UPDATE inside the unit of work, bounded by
  SET LOCAL lock_timeout. Several server instances may share one database.

EXPIRY ALERT UNIQUENESS:
  idx_notification_expiry_day plus INSERT ... ON CONFLICT DO NOTHING makes
  overlapping sweeps record each (item, day) alert once.

SEE ALSO:
  - store/sqlite: Default single-node store with the same schema shape
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qmedic/stock-ledger/ledger"
)

// DefaultLockTimeout bounds how long a unit of work waits for an item row lock.
const DefaultLockTimeout = 5 * time.Second

type Store struct {
	pool        *pgxpool.Pool
	LockTimeout time.Duration
}

// New connects, pings and migrates.
func New(ctx context.Context, connStr string) (*Store, error) {
	if connStr == "" {
		return nil, fmt.Errorf("postgres connection string not set")
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Store{pool: pool, LockTimeout: DefaultLockTimeout}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS inventory_item (
		id BIGSERIAL PRIMARY KEY,
		item_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		min_quantity INTEGER NOT NULL DEFAULT 0,
		expiry_date DATE,
		location TEXT NOT NULL DEFAULT '',
		last_action_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS inventory_history (
		id BIGSERIAL PRIMARY KEY,
		item_fk BIGINT NOT NULL REFERENCES inventory_item(id) ON DELETE CASCADE,
		item_code TEXT NOT NULL,
		item_name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		action_label TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		case_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_item_time ON inventory_history(item_fk, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_history_case ON inventory_history(case_id);

	CREATE TABLE IF NOT EXISTS notification_log (
		id BIGSERIAL PRIMARY KEY,
		item_fk BIGINT NOT NULL REFERENCES inventory_item(id) ON DELETE CASCADE,
		alert_type TEXT NOT NULL,
		item_code TEXT NOT NULL,
		item_name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		expiry_date DATE,
		details TEXT NOT NULL,
		alert_day DATE NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_expiry_day
		ON notification_log(item_fk, alert_type, alert_day)
		WHERE alert_type = 'Expiry Warning';

	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		scanned INTEGER NOT NULL DEFAULT 0,
		alerted INTEGER NOT NULL DEFAULT 0,
		suppressed INTEGER NOT NULL DEFAULT 0,
		dispatch_failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	`)
	return err
}

// queryRower is satisfied by *pgxpool.Pool and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================
// ITEMS
// =============================================================================

const itemColumns = `id, item_code, name, category, quantity, min_quantity, expiry_date, location, last_action_at`

func getItem(ctx context.Context, q queryRower, where string, arg any) (*ledger.Item, error) {
	item, err := scanItem(q.QueryRow(ctx, "SELECT "+itemColumns+" FROM inventory_item WHERE "+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	return &item, nil
}

func scanItem(row pgx.Row) (ledger.Item, error) {
	var (
		item     ledger.Item
		id       int64
		category string
	)
	err := row.Scan(&id, &item.Code, &item.Name, &category, &item.Quantity, &item.MinQuantity,
		&item.ExpiryDate, &item.Location, &item.LastActionAt)
	if err != nil {
		return item, err
	}
	item.ID = ledger.ItemID(id)
	item.Category = ledger.Category(category)
	item.ExpiryDate = utcDate(item.ExpiryDate)
	if item.LastActionAt != nil {
		t := item.LastActionAt.UTC()
		item.LastActionAt = &t
	}
	return item, nil
}

func (s *Store) GetItem(ctx context.Context, code string) (*ledger.Item, error) {
	return getItem(ctx, s.pool, "item_code = $1", code)
}

func (s *Store) ListItems(ctx context.Context) ([]ledger.Item, error) {
	return s.queryItems(ctx, "SELECT "+itemColumns+" FROM inventory_item ORDER BY id")
}

func (s *Store) ListExpiringItems(ctx context.Context) ([]ledger.Item, error) {
	return s.queryItems(ctx, "SELECT "+itemColumns+" FROM inventory_item WHERE expiry_date IS NOT NULL ORDER BY id")
}

func (s *Store) queryItems(ctx context.Context, query string) ([]ledger.Item, error) {
	rows, err := s.pool.Query(ctx, query)
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

func (s *Store) SaveItem(ctx context.Context, item ledger.Item) (ledger.Item, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO inventory_item (item_code, name, category, quantity, min_quantity, expiry_date, location, last_action_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (item_code) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			quantity = EXCLUDED.quantity,
			min_quantity = EXCLUDED.min_quantity,
			expiry_date = EXCLUDED.expiry_date,
			location = EXCLUDED.location,
			last_action_at = EXCLUDED.last_action_at
		RETURNING id
	`, item.Code, item.Name, string(item.Category), item.Quantity, item.MinQuantity,
		item.ExpiryDate, item.Location, item.LastActionAt,
	).Scan(&id)
	if err != nil {
		return ledger.Item{}, fmt.Errorf("failed to save item %s: %w", item.Code, err)
	}
	item.ID = ledger.ItemID(id)
	return item, nil
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE TABLE notification_log, inventory_history, inventory_item, sweep_runs RESTART IDENTITY CASCADE")
	return err
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
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CaseID != "" {
		add("case_id = $%d", f.CaseID)
	}
	if f.Action != nil {
		add("action = $%d", f.Action.String())
	}
	if f.ActionLabel != "" {
		add("action_label = $%d", f.ActionLabel)
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.ItemCode != "" {
		add("item_code = $%d", f.ItemCode)
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

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []ledger.ActionRecord
	for rows.Next() {
		var (
			rec      ledger.ActionRecord
			id, fk   int64
			category string
			action   string
		)
		if err := rows.Scan(&id, &fk, &rec.ItemCode, &rec.ItemName, &category, &action,
			&rec.ActionLabel, &rec.Quantity, &rec.CaseID, &rec.User, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		rec.ID = ledger.RecordID(id)
		rec.ItemID = ledger.ItemID(fk)
		rec.Category = ledger.Category(category)
		rec.Action = ledger.ParseAction(action)
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Summary(ctx context.Context) (ledger.Summary, error) {
	var sum ledger.Summary
	checkIn := ledger.ActionCheckIn.String()
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN action = $1 THEN quantity ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action <> $1 THEN quantity ELSE 0 END), 0),
			(SELECT COUNT(*) FROM inventory_item WHERE quantity > 0 AND quantity < min_quantity)
		FROM inventory_history
	`, checkIn).Scan(&sum.CheckedIn, &sum.CheckedOut, &sum.LowStockCount)
	if err != nil {
		return sum, fmt.Errorf("failed to summarize history: %w", err)
	}
	return sum, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

const notificationColumns = `id, item_fk, alert_type, item_code, item_name, location, expiry_date, details, alert_day, is_read, created_at`

func scanNotification(row pgx.Row) (ledger.Notification, error) {
	var (
		n         ledger.Notification
		id, fk    int64
		alertType string
	)
	err := row.Scan(&id, &fk, &alertType, &n.ItemCode, &n.ItemName, &n.Location,
		&n.ExpiryDate, &n.Details, &n.AlertDay, &n.Read, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	n.ID = ledger.NotificationID(id)
	n.ItemID = ledger.ItemID(fk)
	n.AlertType = ledger.AlertType(alertType)
	n.ExpiryDate = utcDate(n.ExpiryDate)
	n.AlertDay = ledger.DateOf(n.AlertDay)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

func (s *Store) Notifications(ctx context.Context) ([]ledger.Notification, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+notificationColumns+" FROM notification_log ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []ledger.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notification_log WHERE NOT is_read").Scan(&count)
	return count, err
}

func (s *Store) AcknowledgeNotification(ctx context.Context, id ledger.NotificationID) error {
	tag, err := s.pool.Exec(ctx, "UPDATE notification_log SET is_read = true WHERE id = $1", int64(id))
	if err != nil {
		return fmt.Errorf("failed to acknowledge notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotificationNotFound
	}
	return nil
}

func (s *Store) RecordExpiryAlert(ctx context.Context, n ledger.Notification) (ledger.Notification, bool, error) {
	n.AlertDay = ledger.DateOf(n.AlertDay)

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notification_log
		(item_fk, alert_type, item_code, item_name, location, expiry_date, details, alert_day, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
		ON CONFLICT (item_fk, alert_type, alert_day) WHERE alert_type = 'Expiry Warning' DO NOTHING
		RETURNING id
	`, notificationArgs(n)...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := scanNotification(s.pool.QueryRow(ctx,
			"SELECT "+notificationColumns+" FROM notification_log WHERE item_fk = $1 AND alert_type = $2 AND alert_day = $3",
			int64(n.ItemID), string(n.AlertType), n.AlertDay))
		if err != nil {
			return ledger.Notification{}, false, fmt.Errorf("failed to load suppressed alert: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return ledger.Notification{}, false, fmt.Errorf("failed to record expiry alert: %w", err)
	}

	n.ID = ledger.NotificationID(id)
	n.Read = false
	return n, true, nil
}

func notificationArgs(n ledger.Notification) []any {
	return []any{
		int64(n.ItemID), string(n.AlertType), n.ItemCode, n.ItemName, n.Location,
		n.ExpiryDate, n.Details, n.AlertDay, n.CreatedAt,
	}
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

func (s *Store) SaveSweepRun(ctx context.Context, r ledger.SweepRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sweep_runs (id, status, started_at, completed_at, scanned, alerted, suppressed, dispatch_failed, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			scanned = EXCLUDED.scanned,
			alerted = EXCLUDED.alerted,
			suppressed = EXCLUDED.suppressed,
			dispatch_failed = EXCLUDED.dispatch_failed,
			error = EXCLUDED.error
	`, r.ID, r.Status, r.StartedAt, r.CompletedAt, r.Scanned, r.Alerted, r.Suppressed, r.DispatchFailed, r.Error)
	return err
}

func (s *Store) SweepRuns(ctx context.Context, limit int) ([]ledger.SweepRun, error) {
	query := `
		SELECT id, status, started_at, completed_at, scanned, alerted, suppressed, dispatch_failed, error
		FROM sweep_runs
		ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ledger.SweepRun
	for rows.Next() {
		var r ledger.SweepRun
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.Scanned, &r.Alerted, &r.Suppressed, &r.DispatchFailed, &r.Error); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

// LockItem takes a row lock held until commit or rollback.
func (ts *txStore) LockItem(ctx context.Context, code string) (*ledger.Item, error) {
	return getItem(ctx, ts.tx, "item_code = $1 FOR UPDATE", code)
}

func (ts *txStore) ItemByID(ctx context.Context, id ledger.ItemID) (*ledger.Item, error) {
	return getItem(ctx, ts.tx, "id = $1", int64(id))
}

func (ts *txStore) UpdateQuantity(ctx context.Context, id ledger.ItemID, quantity int, at time.Time) error {
	_, err := ts.tx.Exec(ctx,
		"UPDATE inventory_item SET quantity = $1, last_action_at = $2 WHERE id = $3",
		quantity, at, int64(id))
	if err != nil {
		return fmt.Errorf("failed to update quantity: %w", err)
	}
	return nil
}

func (ts *txStore) AppendRecord(ctx context.Context, rec ledger.ActionRecord) (ledger.ActionRecord, error) {
	var id int64
	err := ts.tx.QueryRow(ctx, `
		INSERT INTO inventory_history
		(item_fk, item_code, item_name, category, action, action_label, quantity, case_id, user_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, int64(rec.ItemID), rec.ItemCode, rec.ItemName, string(rec.Category),
		rec.Action.String(), rec.ActionLabel, rec.Quantity, rec.CaseID, rec.User, rec.Timestamp,
	).Scan(&id)
	if err != nil {
		return ledger.ActionRecord{}, fmt.Errorf("failed to append history: %w", err)
	}
	rec.ID = ledger.RecordID(id)
	return rec, nil
}

func (ts *txStore) AppendNotification(ctx context.Context, n ledger.Notification) (ledger.Notification, error) {
	n.AlertDay = ledger.DateOf(n.AlertDay)
	var id int64
	err := ts.tx.QueryRow(ctx, `
		INSERT INTO notification_log
		(item_fk, alert_type, item_code, item_name, location, expiry_date, details, alert_day, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
		RETURNING id
	`, notificationArgs(n)...).Scan(&id)
	if err != nil {
		return ledger.Notification{}, fmt.Errorf("failed to append notification: %w", err)
	}
	n.ID = ledger.NotificationID(id)
	n.Read = false
	return n, nil
}

// utcDate normalizes a DATE column to UTC midnight.
func utcDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := ledger.DateOf(*t)
	return &d
}

var (
	_ ledger.TxStore       = (*Store)(nil)
	_ ledger.Provisioner   = (*Store)(nil)
	_ ledger.SweepRunStore = (*Store)(nil)
)
