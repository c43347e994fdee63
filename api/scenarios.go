/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a realistic
	ambulance inventory for demos and client development. Each scenario
	provisions items and, where useful, replays actions through the engine
	so history and notifications are produced the normal way.

AVAILABLE SCENARIOS:

	ambulance-fleet: Two ambulances, a storage room and a supply cabinet
	busy-shift:      ambulance-fleet plus a shift of check-ins and uses
	expiring-soon:   Expiry dates relative to today, ready for a sweep

HOW SCENARIOS WORK:
 1. Reset the store (clear items, history, notifications, sweep runs)
 2. Provision items via SaveItem
 3. Optionally submit actions through ledger.Engine

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-shift"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a loader to 'scenarioLoaders'

NOTE:

	Scenarios reset the store. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/qmedic/stock-ledger/ledger"
)

// ErrUnknownScenario is returned when a scenario ID is not registered.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "ambulance-fleet",
		Name:        "Ambulance Fleet",
		Description: "Seven items across two ambulances, a storage room and a supply cabinet",
		Category:    "inventory",
	},
	{
		ID:          "busy-shift",
		Name:        "Busy Shift",
		Description: "Ambulance fleet after a shift of check-ins, uses and check-outs, with a low stock alert",
		Category:    "inventory",
	},
	{
		ID:          "expiring-soon",
		Name:        "Expiring Soon",
		Description: "Expiry dates 1, 7 and 15 days out plus one expired item; run the expiry sweep to raise alerts",
		Category:    "alerts",
	},
}

type scenarioLoader func(h *Handler, ctx context.Context) error

var scenarioLoaders = map[string]scenarioLoader{
	"ambulance-fleet": (*Handler).loadAmbulanceFleetScenario,
	"busy-shift":      (*Handler).loadBusyShiftScenario,
	"expiring-soon":   (*Handler).loadExpiringSoonScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request body", err.Error())
		return
	}

	err := h.LoadScenarioByID(r.Context(), req.ScenarioID)
	if errors.Is(err, ErrUnknownScenario) {
		writeError(w, r, http.StatusBadRequest, "UNKNOWN_SCENARIO", "Unknown scenario", req.ScenarioID)
		return
	}
	if err != nil {
		h.writeInternal(w, r, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeInternal(w, r, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LoadScenarioByID resets the store and loads the named scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	h.setCurrentScenario("")

	if err := load(h, ctx); err != nil {
		return err
	}
	h.setCurrentScenario(id)
	h.Logger.Info("scenario loaded", zap.String("scenario", id))
	return nil
}

// SeedIfEmpty loads the named scenario only when the store has no items.
// It reports whether anything was loaded.
func (h *Handler) SeedIfEmpty(ctx context.Context, id string) (bool, error) {
	items, err := h.Store.ListItems(ctx)
	if err != nil {
		return false, err
	}
	if len(items) > 0 {
		return false, nil
	}
	if err := h.LoadScenarioByID(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func fleetItems() []ledger.Item {
	return []ledger.Item{
		{Code: "MED001", Name: "Epinephrine Auto-Injector", Category: ledger.CategoryMedication, Quantity: 5, MinQuantity: 3, ExpiryDate: date(2024, time.October, 21), Location: "Ambulance 1"},
		{Code: "MED002", Name: "Morphine 10mg", Category: ledger.CategoryMedication, Quantity: 10, MinQuantity: 5, ExpiryDate: date(2027, time.January, 7), Location: "Ambulance 1"},
		{Code: "MED003", Name: "Aspirin 325mg", Category: ledger.CategoryMedication, Quantity: 20, MinQuantity: 10, ExpiryDate: date(2025, time.November, 11), Location: "Ambulance 2"},
		{Code: "EQP001", Name: "Defibrillator AED", Category: ledger.CategoryEquipment, Quantity: 2, MinQuantity: 1, ExpiryDate: date(2026, time.February, 3), Location: "Ambulance Storage Room A"},
		{Code: "EQP002", Name: "Blood Pressure Monitor", Category: ledger.CategoryEquipment, Quantity: 3, MinQuantity: 4, ExpiryDate: date(2023, time.April, 20), Location: "Storage Room A"},
		{Code: "SUP001", Name: "Gauze Pads 4x4", Category: ledger.CategorySupplies, Quantity: 50, MinQuantity: 20, ExpiryDate: date(2026, time.October, 21), Location: "Cabinet 3"},
		{Code: "SUP002", Name: "Medical Gloves (Box)", Category: ledger.CategorySupplies, Quantity: 1, MinQuantity: 5, ExpiryDate: date(2025, time.November, 20), Location: "Cabinet 3"},
	}
}

func (h *Handler) saveItems(ctx context.Context, items []ledger.Item) error {
	for _, it := range items {
		if _, err := h.Store.SaveItem(ctx, it); err != nil {
			return fmt.Errorf("failed to save item %s: %w", it.Code, err)
		}
	}
	return nil
}

func (h *Handler) loadAmbulanceFleetScenario(ctx context.Context) error {
	return h.saveItems(ctx, fleetItems())
}

func (h *Handler) loadBusyShiftScenario(ctx context.Context) error {
	if err := h.saveItems(ctx, fleetItems()); err != nil {
		return err
	}

	// MED001 drops to its minimum on the first use and raises a LowStock alert.
	shift := []ledger.Request{
		{ItemCode: "MED002", Action: "Check In", Quantity: 2, CaseID: "C12342", User: "Jane Smith"},
		{ItemCode: "SUP001", Action: "Check Out", Quantity: 10, CaseID: "C12343", User: "John Doe"},
		{ItemCode: "EQP001", Action: "Check In", Quantity: 1, CaseID: "C12344", User: "Jane Smith"},
		{ItemCode: "MED001", Action: "Use", Quantity: 2, CaseID: "C12345", User: "John Doe"},
		{ItemCode: "MED003", Action: "Transfer", Quantity: 5, CaseID: "C12346", User: "Jane Smith"},
	}
	for _, req := range shift {
		if _, err := h.Engine.Submit(ctx, req); err != nil {
			return fmt.Errorf("failed to replay %s %s: %w", req.Action, req.ItemCode, err)
		}
	}
	return nil
}

func (h *Handler) loadExpiringSoonScenario(ctx context.Context) error {
	today := ledger.DateOf(h.Now())
	in := func(days int) *time.Time {
		d := today.AddDate(0, 0, days)
		return &d
	}

	items := fleetItems()
	expiries := map[string]*time.Time{
		"MED001": in(7),
		"MED002": in(400),
		"MED003": in(15),
		"EQP001": in(90),
		"EQP002": in(-3),
		"SUP001": in(14),
		"SUP002": in(1),
	}
	for i := range items {
		items[i].ExpiryDate = expiries[items[i].Code]
	}
	return h.saveItems(ctx, items)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
