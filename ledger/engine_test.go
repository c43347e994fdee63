package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmedic/stock-ledger/ledger"
	"github.com/qmedic/stock-ledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2024, time.November, 24, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*ledger.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	eng := ledger.NewEngine(mem, nil)
	eng.Now = func() time.Time { return fixedNow }
	eng.NewCaseID = func() string { return "C12345" }
	return eng, mem
}

func seedItem(t *testing.T, mem *store.Memory, code string, qty, min int) ledger.Item {
	t.Helper()
	expiry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	it, err := mem.SaveItem(context.Background(), ledger.Item{
		Code:        code,
		Name:        "Epinephrine 1mg/mL",
		Category:    ledger.CategoryMedication,
		Quantity:    qty,
		MinQuantity: min,
		ExpiryDate:  &expiry,
		Location:    "Ambulance 1",
	})
	require.NoError(t, err)
	return it
}

func history(t *testing.T, mem *store.Memory, code string) []ledger.ActionRecord {
	t.Helper()
	recs, err := mem.History(context.Background(), ledger.HistoryFilter{ItemCode: code})
	require.NoError(t, err)
	return recs
}

func notifications(t *testing.T, mem *store.Memory) []ledger.Notification {
	t.Helper()
	ns, err := mem.Notifications(context.Background())
	require.NoError(t, err)
	return ns
}

func quantityOf(t *testing.T, mem *store.Memory, code string) int {
	t.Helper()
	it, err := mem.GetItem(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, it)
	return it.Quantity
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestSubmit_UseWithinStock(t *testing.T) {
	// GIVEN: quantity 10, minimum 2
	// WHEN: Use 5
	// THEN: quantity 5, one Use record, no notification

	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 2)

	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 5})
	require.NoError(t, err)

	assert.Equal(t, 5, res.NewQuantity)
	assert.Nil(t, res.Notification)
	assert.Equal(t, 5, quantityOf(t, mem, "MED001"))

	recs := history(t, mem, "MED001")
	require.Len(t, recs, 1)
	assert.Equal(t, ledger.ActionUse, recs[0].Action)
	assert.Equal(t, 5, recs[0].Quantity)
	assert.Equal(t, "C12345", recs[0].CaseID)
	assert.Equal(t, ledger.DefaultUser, recs[0].User)
	assert.Equal(t, "Epinephrine 1mg/mL", recs[0].ItemName)
	assert.Empty(t, notifications(t, mem))
}

func TestSubmit_UseBelowMinimumRecordsLowStock(t *testing.T) {
	// GIVEN: quantity 10, minimum 5
	// WHEN: Use 8
	// THEN: quantity 2, one record, exactly one LowStock notification

	eng, mem := newTestEngine(t)
	item := seedItem(t, mem, "MED001", 10, 5)

	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 8})
	require.NoError(t, err)

	assert.Equal(t, 2, res.NewQuantity)
	require.NotNil(t, res.Notification)
	assert.Len(t, history(t, mem, "MED001"), 1)

	ns := notifications(t, mem)
	require.Len(t, ns, 1)
	assert.Equal(t, ledger.AlertLowStock, ns[0].AlertType)
	assert.Equal(t, item.ID, ns[0].ItemID)
	assert.Equal(t, "MED001", ns[0].ItemCode)
	assert.Equal(t, "Ambulance 1", ns[0].Location)
	assert.Equal(t, "Quantity is 2, which is at or below the minimum of 5.", ns[0].Details)
	assert.False(t, ns[0].Read)
	assert.Equal(t, res.Notification.ID, ns[0].ID)
}

func TestSubmit_InsufficientStockLeavesNoTrace(t *testing.T) {
	// GIVEN: quantity 10
	// WHEN: Use 30
	// THEN: InsufficientStock{10, 30}, quantity unchanged, nothing recorded

	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 2)

	_, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
	assert.True(t, ledger.IsClientError(err))

	var stockErr *ledger.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, 30, stockErr.Requested)
	assert.Equal(t, "Insufficient stock. Available: 10, Requested: 30", err.Error())

	assert.Equal(t, 10, quantityOf(t, mem, "MED001"))
	assert.Empty(t, history(t, mem, ""))
	assert.Empty(t, notifications(t, mem))
}

func TestSubmit_UnknownItem(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 2)

	for _, action := range []string{"Use", "Check In", "Transfer", "Remove All", "Check Out", "Inspect"} {
		_, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "NON999", Action: action, Quantity: 1})
		require.Error(t, err, action)
		assert.ErrorIs(t, err, ledger.ErrItemNotFound)
		assert.True(t, ledger.IsNotFound(err))
		assert.Equal(t, "Item ID NON999 not found.", err.Error())
	}

	assert.Equal(t, 10, quantityOf(t, mem, "MED001"))
	assert.Empty(t, history(t, mem, ""))
	assert.Empty(t, notifications(t, mem))
}

func TestSubmit_CheckInNeverAlerts(t *testing.T) {
	// GIVEN: quantity 10, minimum 20 (already low)
	// WHEN: Check In 1
	// THEN: quantity 11, no notification

	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 20)

	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Check In", Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, 11, res.NewQuantity)
	assert.Nil(t, res.Notification)
	assert.Empty(t, notifications(t, mem))
}

// =============================================================================
// ACTION SEMANTICS
// =============================================================================

func TestSubmit_StockReducingActionsAlertAtMinimum(t *testing.T) {
	for _, action := range []string{"Use", "Check Out", "Transfer", "Remove All"} {
		t.Run(action, func(t *testing.T) {
			eng, mem := newTestEngine(t)
			seedItem(t, mem, "SUP001", 8, 3)

			// 8 - 5 = 3, exactly at minimum
			res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "SUP001", Action: action, Quantity: 5})
			require.NoError(t, err)
			assert.Equal(t, 3, res.NewQuantity)
			require.NotNil(t, res.Notification)
			assert.Len(t, notifications(t, mem), 1)
		})
	}
}

func TestSubmit_AboveMinimumDoesNotAlert(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "SUP001", 8, 3)

	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "SUP001", Action: "Check Out", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewQuantity)
	assert.Nil(t, res.Notification)
}

func TestSubmit_RemoveAllEmptiesItem(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "EQP001", 6, 1)

	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "EQP001", Action: "remove_all", Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewQuantity)
	assert.Equal(t, ledger.ActionRemoveAll, res.Record.Action)
	assert.NotNil(t, res.Notification)
}

func TestSubmit_UnknownActionRecordsWithoutQuantityChange(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "EQP001", 6, 10)

	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "EQP001", Action: "Inspect", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, res.NewQuantity)
	assert.Equal(t, ledger.ActionOther, res.Record.Action)
	assert.Equal(t, "Inspect", res.Record.ActionLabel)
	assert.Nil(t, res.Notification)
	assert.Len(t, history(t, mem, "EQP001"), 1)
}

func TestSubmit_ZeroQuantityIsRecorded(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 2)

	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: "abc"})
	require.NoError(t, err)
	assert.Equal(t, 10, res.NewQuantity)
	assert.Equal(t, 0, res.Record.Quantity)
}

func TestSubmit_KeepsSuppliedCaseAndUser(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 2)

	res, err := eng.Submit(context.Background(), ledger.Request{
		ItemCode: "MED001", Action: "Use", Quantity: 1, CaseID: "C20001", User: "J. Medic",
	})
	require.NoError(t, err)
	assert.Equal(t, "C20001", res.Record.CaseID)
	assert.Equal(t, "J. Medic", res.Record.User)
	assert.True(t, res.Record.Timestamp.Equal(fixedNow))

	it, err := mem.GetItem(context.Background(), "MED001")
	require.NoError(t, err)
	require.NotNil(t, it.LastActionAt)
	assert.True(t, it.LastActionAt.Equal(fixedNow))
}

func TestSubmit_NewestRecordIsFirst(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 0)

	first, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 1})
	require.NoError(t, err)

	eng.Now = func() time.Time { return fixedNow.Add(time.Minute) }
	second, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Check In", Quantity: 4})
	require.NoError(t, err)

	recs := history(t, mem, "MED001")
	require.Len(t, recs, 2)
	assert.Equal(t, second.Record.ID, recs[0].ID)
	assert.Equal(t, first.Record.ID, recs[1].ID)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestSubmit_MissingFieldsRejectedBeforeStorage(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Submit(context.Background(), ledger.Request{Action: "Use", Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	var vErr *ledger.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "itemId", vErr.Field)

	_, err = eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Quantity: 1})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "action", vErr.Field)
}

// =============================================================================
// ATOMICITY
// =============================================================================

func TestSubmit_RecordFailureRollsBackQuantity(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 5)
	mem.FailAppendRecord = errors.New("disk full")

	_, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 8})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrTransactionFailed)
	assert.True(t, ledger.IsRetryable(err))

	assert.Equal(t, 10, quantityOf(t, mem, "MED001"))
	assert.Empty(t, history(t, mem, ""))
	assert.Empty(t, notifications(t, mem))
}

func TestSubmit_NotificationFailureRollsBackEverything(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 5)
	mem.FailAppendNotification = errors.New("constraint violation")

	_, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 8})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrTransactionFailed)

	assert.Equal(t, 10, quantityOf(t, mem, "MED001"))
	assert.Empty(t, history(t, mem, ""))

	// Retrying the identical request succeeds once storage recovers
	mem.FailAppendNotification = nil
	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 8})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewQuantity)
	assert.Len(t, history(t, mem, ""), 1)
	assert.Len(t, notifications(t, mem), 1)
}

func TestSubmit_CancelledContextFails(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Submit(ctx, ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrTransactionFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, quantityOf(t, mem, "MED001"))
}

func TestWithTx_QueuedUnitOfWorkHonoursDeadline(t *testing.T) {
	_, mem := newTestEngine(t)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- mem.WithTx(context.Background(), func(ledger.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := mem.WithTx(ctx, func(ledger.Tx) error {
		t.Error("second unit of work must not run")
		return nil
	})
	elapsed := time.Since(start)

	close(release)
	require.NoError(t, <-done)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

// =============================================================================
// DISPATCH
// =============================================================================

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []ledger.Notification
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n ledger.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return d.err
}

func TestSubmit_DispatchesLowStockAfterCommit(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 5)
	d := &recordingDispatcher{err: errors.New("webhook down")}
	eng.Dispatcher = d

	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 8})
	require.NoError(t, err, "dispatch failure must not fail the action")
	require.Len(t, d.sent, 1)
	assert.Equal(t, res.Notification.ID, d.sent[0].ID)
	assert.Len(t, notifications(t, mem), 1)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestSubmit_ConcurrentUsesNeverOversell(t *testing.T) {
	// GIVEN: 10 units
	// WHEN: 25 concurrent Use 1 requests
	// THEN: exactly 10 succeed, quantity 0, 10 records

	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, ledger.ErrInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 15, rejected)
	assert.Equal(t, 0, quantityOf(t, mem, "MED001"))
	assert.Len(t, history(t, mem, "MED001"), 10)
}

func TestMemorySummary_CountsLowStockOnly(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 2, 5)
	seedItem(t, mem, "MED002", 0, 5)
	seedItem(t, mem, "MED003", 10, 5)

	_, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED003", Action: "Check In", Quantity: 3})
	require.NoError(t, err)
	_, err = eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 1})
	require.NoError(t, err)

	sum, err := mem.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.Summary{CheckedIn: 3, CheckedOut: 1, LowStockCount: 1}, sum)
}

func TestRandomCaseID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := ledger.RandomCaseID()
		require.Len(t, id, 6)
		assert.Equal(t, byte('C'), id[0])
		assert.GreaterOrEqual(t, id[1:], "10000")
		assert.LessOrEqual(t, id[1:], "99999")
	}
}
