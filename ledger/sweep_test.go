package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmedic/stock-ledger/ledger"
	"github.com/qmedic/stock-ledger/ledger/store"
)

func expiringItem(t *testing.T, mem *store.Memory, code string, inDays int) {
	t.Helper()
	exp := ledger.DateOf(fixedNow).AddDate(0, 0, inDays)
	_, err := mem.SaveItem(context.Background(), ledger.Item{
		Code:        code,
		Name:        "Item " + code,
		Category:    ledger.CategoryMedication,
		Quantity:    5,
		MinQuantity: 1,
		ExpiryDate:  &exp,
		Location:    "Ambulance 2",
	})
	require.NoError(t, err)
}

func newTestSweeper(mem *store.Memory) *ledger.Sweeper {
	s := ledger.NewSweeper(mem, nil)
	s.Runs = mem
	s.Now = func() time.Time { return fixedNow }
	return s
}

func TestDaysLeft(t *testing.T) {
	today := ledger.DateOf(fixedNow)
	assert.Equal(t, 15, ledger.DaysLeft(today.AddDate(0, 0, 15), today))
	assert.Equal(t, 0, ledger.DaysLeft(today, today))
	assert.Equal(t, -3, ledger.DaysLeft(today.AddDate(0, 0, -3), today))

	// Partial days round up
	assert.Equal(t, 1, ledger.DaysLeft(today.AddDate(0, 0, 1), today.Add(12*time.Hour)))
	assert.Equal(t, 0, ledger.DaysLeft(today, today.Add(12*time.Hour)))
}

func TestShouldAlertExpiry(t *testing.T) {
	want := map[int]bool{16: false, 15: true, 14: false, 8: false, 7: true, 3: true, 1: true, 0: false, -1: false}
	for days, expected := range want {
		assert.Equal(t, expected, ledger.ShouldAlertExpiry(days), "daysLeft=%d", days)
	}
}

func TestSweep_AlertsWithinHorizon(t *testing.T) {
	mem := store.NewMemory()
	expiringItem(t, mem, "A15", 15)
	expiringItem(t, mem, "A14", 14)
	expiringItem(t, mem, "A7", 7)
	expiringItem(t, mem, "A1", 1)
	expiringItem(t, mem, "A0", 0)
	expiringItem(t, mem, "AX", -10)
	_, err := mem.SaveItem(context.Background(), ledger.Item{Code: "NOEXP", Name: "Gauze", Quantity: 3})
	require.NoError(t, err)

	d := &recordingDispatcher{}
	s := newTestSweeper(mem)
	s.Dispatcher = d

	run, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.SweepCompleted, run.Status)
	assert.Equal(t, 6, run.Scanned)
	assert.Equal(t, 3, run.Alerted)
	assert.Equal(t, 0, run.Suppressed)

	var codes []string
	for _, n := range notifications(t, mem) {
		assert.Equal(t, ledger.AlertExpiryWarning, n.AlertType)
		codes = append(codes, n.ItemCode)
	}
	assert.ElementsMatch(t, []string{"A15", "A7", "A1"}, codes)
	assert.Len(t, d.sent, 3)
}

func TestSweep_RepeatedRunSameDayIsSuppressed(t *testing.T) {
	mem := store.NewMemory()
	expiringItem(t, mem, "A7", 7)

	d := &recordingDispatcher{}
	s := newTestSweeper(mem)
	s.Dispatcher = d

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	second, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, second.Alerted)
	assert.Equal(t, 1, second.Suppressed)
	assert.Len(t, notifications(t, mem), 1)
	assert.Len(t, d.sent, 1, "suppressed alerts are not dispatched again")

	// Next day the item is at 6 days and alerts again
	s.Now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }
	third, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.Alerted)
	assert.Len(t, notifications(t, mem), 2)
}

func TestSweep_DispatchFailureKeepsAlert(t *testing.T) {
	mem := store.NewMemory()
	expiringItem(t, mem, "A3", 3)

	s := newTestSweeper(mem)
	s.Dispatcher = &recordingDispatcher{err: errors.New("smtp unavailable")}

	run, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Alerted)
	assert.Equal(t, 1, run.DispatchFailed)
	assert.Len(t, notifications(t, mem), 1)
}

func TestSweep_NeverTouchesQuantity(t *testing.T) {
	mem := store.NewMemory()
	expiringItem(t, mem, "A3", 3)

	_, err := newTestSweeper(mem).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, quantityOf(t, mem, "A3"))
	assert.Empty(t, history(t, mem, ""))
}

func TestSweep_RecordsRun(t *testing.T) {
	mem := store.NewMemory()
	expiringItem(t, mem, "A15", 15)

	run, err := newTestSweeper(mem).Run(context.Background())
	require.NoError(t, err)

	runs, err := mem.SweepRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, ledger.SweepCompleted, runs[0].Status)
	require.NotNil(t, runs[0].CompletedAt)
	assert.Equal(t, 1, runs[0].Alerted)
}

func TestAcknowledgeNotification_Idempotent(t *testing.T) {
	eng, mem := newTestEngine(t)
	seedItem(t, mem, "MED001", 10, 5)
	res, err := eng.Submit(context.Background(), ledger.Request{ItemCode: "MED001", Action: "Use", Quantity: 8})
	require.NoError(t, err)
	id := res.Notification.ID

	require.NoError(t, mem.AcknowledgeNotification(context.Background(), id))
	require.NoError(t, mem.AcknowledgeNotification(context.Background(), id))

	ns := notifications(t, mem)
	require.Len(t, ns, 1)
	assert.True(t, ns[0].Read)

	unread, err := mem.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	err = mem.AcknowledgeNotification(context.Background(), id+100)
	assert.ErrorIs(t, err, ledger.ErrNotificationNotFound)
}

func TestFilterItems(t *testing.T) {
	today := ledger.DateOf(fixedNow)
	past := today.AddDate(0, 0, -1)
	soon := today.AddDate(0, 0, 30)
	later := today.AddDate(0, 0, 31)
	items := []ledger.Item{
		{Code: "MED001", Name: "Epinephrine", Category: ledger.CategoryMedication, Location: "Ambulance 1", ExpiryDate: &past},
		{Code: "MED002", Name: "Naloxone", Category: ledger.CategoryMedication, Location: "Ambulance 2", ExpiryDate: &soon},
		{Code: "EQP001", Name: "Defibrillator Pads", Category: ledger.CategoryEquipment, Location: "Ambulance 1", ExpiryDate: &later},
		{Code: "SUP001", Name: "Gauze", Category: ledger.CategorySupplies, Location: "Station"},
	}

	codes := func(f ledger.ItemFilter) []string {
		var out []string
		for _, it := range ledger.FilterItems(items, f, fixedNow) {
			out = append(out, it.Code)
		}
		return out
	}

	assert.Len(t, codes(ledger.ItemFilter{}), 4)
	assert.Equal(t, []string{"MED001", "MED002"}, codes(ledger.ItemFilter{Category: ledger.CategoryMedication}))
	assert.Equal(t, []string{"EQP001"}, codes(ledger.ItemFilter{Query: "defib"}))
	assert.Equal(t, []string{"SUP001"}, codes(ledger.ItemFilter{Query: "sup0"}))
	assert.Equal(t, []string{"MED001", "EQP001"}, codes(ledger.ItemFilter{Query: "ambulance 1"}))
	assert.Equal(t, []string{"SUP001"}, codes(ledger.ItemFilter{Location: "Station"}))
	assert.Equal(t, []string{"MED001"}, codes(ledger.ItemFilter{Expiry: ledger.ExpiryExpired}))
	assert.Equal(t, []string{"MED002"}, codes(ledger.ItemFilter{Expiry: ledger.ExpirySoon}))
}
