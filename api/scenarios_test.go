/*
scenarios_test.go - Unit tests for demo scenarios and the sweep scheduler

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Items are provisioned with the expected stock and minimums
	- Replayed actions produce history and notifications
	- Loading resets previous data

These tests double as integration tests of engine plus SQLite store.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmedic/stock-ledger/ledger"
)

func TestScenario_AmbulanceFleet(t *testing.T) {
	// GIVEN: An empty store
	ts := setupServer(t)
	ctx := context.Background()

	// WHEN: Loading the fleet through the API
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "ambulance-fleet"})

	// THEN: Seven items, no history, no notifications
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]string{"status": "loaded", "scenario": "ambulance-fleet"}, decode[map[string]string](t, rec))

	items, err := ts.handler.Store.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 7)

	history, err := ts.handler.Store.History(ctx, ledger.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, history)

	current := decode[ScenarioDTO](t, ts.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "ambulance-fleet", current.ID)
}

func TestScenario_BusyShift(t *testing.T) {
	ts := setupFleet(t, "busy-shift")
	ctx := context.Background()

	want := map[string]int{
		"MED001": 3,
		"MED002": 12,
		"MED003": 15,
		"EQP001": 3,
		"EQP002": 3,
		"SUP001": 40,
		"SUP002": 1,
	}
	for code, qty := range want {
		it, err := ts.handler.Store.GetItem(ctx, code)
		require.NoError(t, err)
		require.NotNil(t, it, code)
		assert.Equal(t, qty, it.Quantity, code)
	}

	notes, err := ts.handler.Store.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, ledger.AlertLowStock, notes[0].AlertType)
	assert.Equal(t, "MED001", notes[0].ItemCode)
}

func TestScenario_ExpiringSoonUsesToday(t *testing.T) {
	ts := setupFleet(t, "expiring-soon")

	it, err := ts.handler.Store.GetItem(context.Background(), "SUP002")
	require.NoError(t, err)
	require.NotNil(t, it.ExpiryDate)
	assert.Equal(t, "2025-03-11", ledger.FormatDate(it.ExpiryDate))
}

func TestScenario_LoadReplacesPreviousData(t *testing.T) {
	ts := setupFleet(t, "busy-shift")

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "ambulance-fleet"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, decode[[]HistoryDTO](t, ts.do(t, http.MethodGet, "/api/history", nil)))
	assert.Empty(t, decode[[]NotificationDTO](t, ts.do(t, http.MethodGet, "/api/notifications", nil)))
	assert.Equal(t, 5, ts.item(t, "MED001").Quantity)
}

func TestScenario_UnknownAndReset(t *testing.T) {
	ts := setupFleet(t, "ambulance-fleet")

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "moon-base"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_SCENARIO", decode[ErrorResponse](t, rec).Code)

	listed := decode[[]ScenarioDTO](t, ts.do(t, http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, listed, len(scenarioLoaders))

	rec = ts.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inv := decode[InventoryResponse](t, ts.do(t, http.MethodGet, "/api/inventory", nil))
	assert.Empty(t, inv.Items)
	assert.Equal(t, "null\n", ts.do(t, http.MethodGet, "/api/scenarios/current", nil).Body.String())
}

func TestSeedIfEmpty(t *testing.T) {
	ts := setupServer(t)
	ctx := context.Background()

	loaded, err := ts.handler.SeedIfEmpty(ctx, "busy-shift")
	require.NoError(t, err)
	assert.True(t, loaded)

	// A second start must not wipe recorded history
	loaded, err = ts.handler.SeedIfEmpty(ctx, "ambulance-fleet")
	require.NoError(t, err)
	assert.False(t, loaded)

	history, err := ts.handler.Store.History(ctx, ledger.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 5)

	_, err = setupServer(t).handler.SeedIfEmpty(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestExpirySweepScheduler_RunsOnStart(t *testing.T) {
	ts := setupFleet(t, "expiring-soon")

	s := NewExpirySweepScheduler(ts.handler.Sweeper, nil)
	s.CheckInterval = time.Hour
	s.Start()
	require.Eventually(t, func() bool { return !s.LastRunTime().IsZero() }, 5*time.Second, 10*time.Millisecond)
	s.Stop()
	s.Stop()

	runs, err := ts.handler.Store.SweepRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.SweepCompleted, runs[0].Status)
	assert.Equal(t, 3, runs[0].Alerted)
	assert.Equal(t, testNow.Add(time.Hour), s.GetNextRunTime())
}

func TestExpirySweepScheduler_Disabled(t *testing.T) {
	ts := setupFleet(t, "expiring-soon")

	s := NewExpirySweepScheduler(ts.handler.Sweeper, nil)
	s.Enabled = false
	s.Start()
	s.Stop()

	runs, err := ts.handler.Store.SweepRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestExpirySweepScheduler_StartAfterStopIsIgnored(t *testing.T) {
	ts := setupFleet(t, "ambulance-fleet")

	s := NewExpirySweepScheduler(ts.handler.Sweeper, nil)
	s.CheckInterval = time.Hour
	s.Start()
	require.Eventually(t, func() bool { return !s.LastRunTime().IsZero() }, 5*time.Second, 10*time.Millisecond)
	s.Stop()

	assert.NotPanics(t, func() {
		s.Start()
		s.Stop()
	})

	runs, err := ts.handler.Store.SweepRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "a stopped scheduler does not sweep again")
}
