package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmedic/stock-ledger/ledger"
	"github.com/qmedic/stock-ledger/store/postgres"
)

func setupTestDB(t *testing.T) *postgres.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated test database; Reset truncates every ledger table.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}

	ctx := context.Background()
	store, err := postgres.New(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgres_ActionRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	exp := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.SaveItem(ctx, ledger.Item{
		Code: "MED001", Name: "Epinephrine", Category: ledger.CategoryMedication,
		Quantity: 10, MinQuantity: 5, ExpiryDate: &exp, Location: "Ambulance 1",
	})
	require.NoError(t, err)

	eng := ledger.NewEngine(store, nil)
	res, err := eng.Submit(ctx, ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 8})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewQuantity)
	require.NotNil(t, res.Notification)

	_, err = eng.Submit(ctx, ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 30})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	it, err := store.GetItem(ctx, "MED001")
	require.NoError(t, err)
	assert.Equal(t, 2, it.Quantity)
	require.NotNil(t, it.ExpiryDate)
	assert.True(t, it.ExpiryDate.Equal(exp))

	recs, err := store.History(ctx, ledger.HistoryFilter{ItemCode: "MED001"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, store.AcknowledgeNotification(ctx, res.Notification.ID))
	require.NoError(t, store.AcknowledgeNotification(ctx, res.Notification.ID))
	unread, err := store.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestPostgres_RowLockSerializesActions(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	_, err := store.SaveItem(ctx, ledger.Item{Code: "SUP001", Name: "Gauze", Quantity: 10})
	require.NoError(t, err)

	eng := ledger.NewEngine(store, nil)
	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng.Submit(ctx, ledger.Request{ItemCode: "SUP001", Action: "Use", Quantity: 1})
		}()
	}
	wg.Wait()

	it, err := store.GetItem(ctx, "SUP001")
	require.NoError(t, err)
	assert.Equal(t, 0, it.Quantity)

	recs, err := store.History(ctx, ledger.HistoryFilter{ItemCode: "SUP001"})
	require.NoError(t, err)
	assert.Len(t, recs, 10)
}

func TestPostgres_ExpiryAlertOnConflictDoNothing(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	exp := ledger.DateOf(now).AddDate(0, 0, 7)

	item, err := store.SaveItem(ctx, ledger.Item{Code: "MED002", Name: "Naloxone", Quantity: 3, ExpiryDate: &exp})
	require.NoError(t, err)

	first, inserted, err := store.RecordExpiryAlert(ctx, ledger.ExpiryAlert(item, 7, now))
	require.NoError(t, err)
	assert.True(t, inserted)

	again, inserted, err := store.RecordExpiryAlert(ctx, ledger.ExpiryAlert(item, 7, now))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, again.ID)
}
