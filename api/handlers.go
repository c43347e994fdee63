/*
handlers.go - HTTP API handlers for the inventory action ledger

PURPOSE:
  Exposes the ledger engine, history, notifications and expiry sweep via a
  REST API. Handles HTTP request/response and JSON serialization, and
  delegates to the ledger package.

ENDPOINTS:
  Actions:
    POST   /api/action/log                  Submit an inventory action

  Inventory:
    GET    /api/inventory                   Items plus summary (q, category, location, expiry)
    GET    /api/inventory/{itemCode}        Single item

  History:
    GET    /api/history                     Records (caseId, action, category, itemId, sort)
    GET    /api/history/export              Same query as an .xlsx workbook

  Notifications:
    GET    /api/notifications               Newest first
    GET    /api/notifications/unread-count  Unread badge count
    POST   /api/notifications/read/{id}     Acknowledge (idempotent)

  Admin:
    POST   /api/admin/expiry-sweep          Run one sweep now
    GET    /api/admin/sweep-runs            Recent sweep runs

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Load a demo scenario
    POST   /api/scenarios/reset             Clear all data

ERROR HANDLING:
  Ledger failures map to status and code:
  - 400 VALIDATION_FAILED:  Missing item code or action, bad query parameter
  - 404 ITEM_NOT_FOUND:     Unknown item code
  - 400 INSUFFICIENT_STOCK: details carry available and requested
  - 500 TRANSACTION_FAILED: Nothing was written; safe to resubmit

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/qmedic/stock-ledger/ledger"
)

const defaultSweepRunLimit = 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the HTTP layer needs from persistence. The SQLite,
// Postgres and in-memory stores all satisfy it.
type Store interface {
	ledger.TxStore
	ledger.Provisioner
	ledger.SweepRunStore
}

// pinger is implemented by stores backed by a database connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Engine  *ledger.Engine
	Sweeper *ledger.Sweeper
	Logger  *zap.Logger
	Now     func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires a handler around an engine and sweeper that share store.
func NewHandler(store Store, engine *ledger.Engine, sweeper *ledger.Sweeper, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:   store,
		Engine:  engine,
		Sweeper: sweeper,
		Logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// ACTION HANDLERS
// =============================================================================

// LogAction validates and applies one inventory action.
// POST /api/action/log
func (h *Handler) LogAction(w http.ResponseWriter, r *http.Request) {
	var req LogActionRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request body", err.Error())
		return
	}

	res, err := h.Engine.Submit(r.Context(), ledger.Request{
		ItemCode: req.code(),
		Action:   req.Action,
		Quantity: req.Quantity,
		CaseID:   req.CaseID,
		User:     req.User,
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	resp := LogActionResponse{
		Message:     "Action logged and inventory updated.",
		NewQuantity: res.NewQuantity,
		HistoryID:   int64(res.Record.ID),
		CaseID:      res.Record.CaseID,
	}
	if res.Notification != nil {
		id := int64(res.Notification.ID)
		resp.NotificationID = &id
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// ListInventory returns items matching the query filters plus the summary.
// The summary always covers the whole inventory.
// GET /api/inventory
func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseItemFilter(r)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	ctx := r.Context()
	items, err := h.Store.ListItems(ctx)
	if err != nil {
		h.writeInternal(w, r, "Failed to fetch inventory data.", err)
		return
	}
	sum, err := h.Store.Summary(ctx)
	if err != nil {
		h.writeInternal(w, r, "Failed to fetch inventory data.", err)
		return
	}

	matched := ledger.FilterItems(items, filter, h.Now())
	dtos := make([]ItemDTO, len(matched))
	for i, it := range matched {
		dtos[i] = toItemDTO(it)
	}

	writeJSON(w, http.StatusOK, InventoryResponse{
		Items: dtos,
		Summary: SummaryDTO{
			CheckedIn:     sum.CheckedIn,
			CheckedOut:    sum.CheckedOut,
			LowStockCount: sum.LowStockCount,
		},
	})
}

// GetItem returns a single item by code.
// GET /api/inventory/{itemCode}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "itemCode")
	item, err := h.Store.GetItem(r.Context(), code)
	if err != nil {
		h.writeInternal(w, r, "Failed to fetch item.", err)
		return
	}
	if item == nil {
		h.writeLedgerError(w, r, &ledger.ItemNotFoundError{ItemCode: code})
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(*item))
}

func parseItemFilter(r *http.Request) (ledger.ItemFilter, error) {
	q := r.URL.Query()
	f := ledger.ItemFilter{
		Query:    q.Get("q"),
		Category: ledger.Category(q.Get("category")),
		Location: q.Get("location"),
		Expiry:   ledger.ExpiryFilter(strings.ToLower(q.Get("expiry"))),
	}
	if f.Category != "" && !f.Category.Valid() {
		return f, &ledger.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", f.Category)}
	}
	switch f.Expiry {
	case ledger.ExpiryAny, ledger.ExpiryExpired, ledger.ExpirySoon:
	default:
		return f, &ledger.ValidationError{Field: "expiry", Message: "must be expired or soon"}
	}
	return f, nil
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// ListHistory returns action records, newest first unless sort=oldest.
// GET /api/history
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	records, err := h.Store.History(r.Context(), filter)
	if err != nil {
		h.writeInternal(w, r, "Failed to fetch history data.", err)
		return
	}

	dtos := make([]HistoryDTO, len(records))
	for i, rec := range records {
		dtos[i] = toHistoryDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func parseHistoryFilter(r *http.Request) (ledger.HistoryFilter, error) {
	q := r.URL.Query()
	f := ledger.HistoryFilter{
		CaseID:   strings.TrimSpace(q.Get("caseId")),
		Category: ledger.Category(q.Get("category")),
		ItemCode: strings.TrimSpace(q.Get("itemId")),
	}
	if label := strings.TrimSpace(q.Get("action")); label != "" {
		a := ledger.ParseAction(label)
		f.Action = &a
		if a == ledger.ActionOther {
			f.ActionLabel = label
		}
	}
	if f.Category != "" && !f.Category.Valid() {
		return f, &ledger.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", f.Category)}
	}
	switch sort := ledger.SortOrder(strings.ToLower(q.Get("sort"))); sort {
	case "", ledger.SortNewest:
		f.Sort = ledger.SortNewest
	case ledger.SortOldest:
		f.Sort = ledger.SortOldest
	default:
		return f, &ledger.ValidationError{Field: "sort", Message: "must be newest or oldest"}
	}
	return f, nil
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns all notifications, newest first.
// GET /api/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Store.Notifications(r.Context())
	if err != nil {
		h.writeInternal(w, r, "Failed to fetch notifications.", err)
		return
	}
	dtos := make([]NotificationDTO, len(notes))
	for i, n := range notes {
		dtos[i] = toNotificationDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UnreadCount returns the number of unread notifications.
// GET /api/notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.UnreadCount(r.Context())
	if err != nil {
		h.writeInternal(w, r, "Failed to count notifications.", err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadCountResponse{Count: n})
}

// AcknowledgeNotification marks a notification read. Repeating it is a no-op.
// POST /api/notifications/read/{id}
func (h *Handler) AcknowledgeNotification(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid notification ID", raw)
		return
	}

	err = h.Store.AcknowledgeNotification(r.Context(), ledger.NotificationID(id))
	if errors.Is(err, ledger.ErrNotificationNotFound) {
		writeError(w, r, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", fmt.Sprintf("Notification %d not found.", id), nil)
		return
	}
	if err != nil {
		h.writeInternal(w, r, "Failed to update notification status.", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Notification %d marked as read.", id)})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerExpirySweep runs one sweep cycle synchronously.
// POST /api/admin/expiry-sweep
func (h *Handler) TriggerExpirySweep(w http.ResponseWriter, r *http.Request) {
	run, err := h.Sweeper.Run(r.Context())
	if err != nil {
		h.Logger.Error("manual expiry sweep failed",
			zap.String("run_id", run.ID),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "SWEEP_FAILED", "Expiry sweep did not complete cleanly.", toSweepRunDTO(run))
		return
	}
	writeJSON(w, http.StatusOK, toSweepRunDTO(run))
}

// ListSweepRuns returns recent sweep runs, newest first.
// GET /api/admin/sweep-runs?limit=N
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultSweepRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid limit", v)
			return
		}
		limit = n
	}

	runs, err := h.Store.SweepRuns(r.Context(), limit)
	if err != nil {
		h.writeInternal(w, r, "Failed to list sweep runs.", err)
		return
	}
	dtos := make([]SweepRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSweepRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the store is reachable. Stores without a
// connection are always healthy.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.Logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// writeLedgerError maps a ledger error onto its HTTP status and code.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *ledger.ValidationError
		nf    *ledger.ItemNotFoundError
		short *ledger.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", verr.Error(), map[string]string{"field": verr.Field})
	case errors.As(err, &nf):
		writeError(w, r, http.StatusNotFound, "ITEM_NOT_FOUND", nf.Error(), nil)
	case errors.As(err, &short):
		writeError(w, r, http.StatusBadRequest, "INSUFFICIENT_STOCK", short.Error(), map[string]int{
			"available": short.Available,
			"requested": short.Requested,
		})
	default:
		h.Logger.Error("inventory transaction failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "TRANSACTION_FAILED", "Failed to complete inventory transaction.", nil)
	}
}

func (h *Handler) writeInternal(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.Logger.Error(message,
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}
