/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names follow
  the mobile client (camelCase) so responses can be dropped into its
  state without mapping; scenario and error envelopes keep snake_case.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Actions:       LogActionRequest, LogActionResponse
  Inventory:     ItemDTO, SummaryDTO, InventoryResponse
  History:       HistoryDTO
  Notifications: NotificationDTO, UnreadCountResponse
  Sweeps:        SweepRunDTO
  Scenarios:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by ledger.Validator, not in DTOs. DTOs are pure data
  carriers.
*/
package api

import (
	"time"

	"github.com/qmedic/stock-ledger/ledger"
)

// lastScannedLayout matches the client's en-US short date, e.g. "10/21/2025".
const lastScannedLayout = "1/2/2006"

// =============================================================================
// ACTIONS
// =============================================================================

// LogActionRequest is the body of POST /api/action/log. The client sends
// the item code as itemId; itemCode is accepted as well.
type LogActionRequest struct {
	ItemID   string `json:"itemId"`
	ItemCode string `json:"itemCode"`
	Action   string `json:"action"`
	Quantity any    `json:"quantity"`
	CaseID   string `json:"caseId"`
	User     string `json:"user"`
}

func (r LogActionRequest) code() string {
	if r.ItemID != "" {
		return r.ItemID
	}
	return r.ItemCode
}

type LogActionResponse struct {
	Message        string `json:"message"`
	NewQuantity    int    `json:"newQuantity"`
	HistoryID      int64  `json:"historyId"`
	CaseID         string `json:"caseId"`
	NotificationID *int64 `json:"notificationId,omitempty"`
}

// =============================================================================
// INVENTORY
// =============================================================================

type ItemDTO struct {
	ID          string  `json:"id"`
	DBID        int64   `json:"dbId"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Quantity    int     `json:"quantity"`
	MinQuantity int     `json:"minQuantity"`
	LastScanned *string `json:"lastScanned"`
	Status      string  `json:"status"`
	ExpiryDate  string  `json:"expiryDate"`
	Location    string  `json:"location"`
}

type SummaryDTO struct {
	CheckedIn     int `json:"checkedIn"`
	CheckedOut    int `json:"checkedOut"`
	LowStockCount int `json:"lowStockCount"`
}

type InventoryResponse struct {
	Items   []ItemDTO  `json:"items"`
	Summary SummaryDTO `json:"summary"`
}

// =============================================================================
// HISTORY
// =============================================================================

type HistoryDTO struct {
	ID       int64  `json:"id"`
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Date     string `json:"date"`
	CaseID   string `json:"caseId"`
	User     string `json:"user"`
	Quantity int    `json:"quantity"`
	Action   string `json:"action"`
	Category string `json:"category"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID        int64   `json:"id"`
	ItemID    string  `json:"itemId"`
	ItemName  string  `json:"itemName"`
	AlertType string  `json:"alertType"`
	Expiry    *string `json:"expiry"`
	Location  string  `json:"location"`
	Details   string  `json:"details"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"createdAt"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

type SweepRunDTO struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	StartedAt      string  `json:"started_at"`
	CompletedAt    *string `json:"completed_at,omitempty"`
	Scanned        int     `json:"scanned"`
	Alerted        int     `json:"alerted"`
	Suppressed     int     `json:"suppressed"`
	DispatchFailed int     `json:"dispatch_failed"`
	Error          string  `json:"error,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toItemDTO(it ledger.Item) ItemDTO {
	dto := ItemDTO{
		ID:          it.Code,
		DBID:        int64(it.ID),
		Name:        it.Name,
		Category:    string(it.Category),
		Quantity:    it.Quantity,
		MinQuantity: it.MinQuantity,
		Status:      string(it.Status()),
		ExpiryDate:  ledger.FormatDate(it.ExpiryDate),
		Location:    it.Location,
	}
	if it.LastActionAt != nil {
		s := it.LastActionAt.Format(lastScannedLayout)
		dto.LastScanned = &s
	}
	return dto
}

func toHistoryDTO(rec ledger.ActionRecord) HistoryDTO {
	label := rec.ActionLabel
	if label == "" {
		label = rec.Action.String()
	}
	return HistoryDTO{
		ID:       int64(rec.ID),
		ItemID:   rec.ItemCode,
		ItemName: rec.ItemName,
		Date:     rec.Timestamp.Format(ledger.HistoryTimestampLayout),
		CaseID:   rec.CaseID,
		User:     rec.User,
		Quantity: rec.Quantity,
		Action:   label,
		Category: string(rec.Category),
	}
}

func toNotificationDTO(n ledger.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        int64(n.ID),
		ItemID:    n.ItemCode,
		ItemName:  n.ItemName,
		AlertType: string(n.AlertType),
		Location:  n.Location,
		Details:   n.Details,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.ExpiryDate != nil {
		s := ledger.FormatDate(n.ExpiryDate)
		dto.Expiry = &s
	}
	return dto
}

func toSweepRunDTO(r ledger.SweepRun) SweepRunDTO {
	dto := SweepRunDTO{
		ID:             r.ID,
		Status:         r.Status,
		StartedAt:      r.StartedAt.UTC().Format(time.RFC3339),
		Scanned:        r.Scanned,
		Alerted:        r.Alerted,
		Suppressed:     r.Suppressed,
		DispatchFailed: r.DispatchFailed,
		Error:          r.Error,
	}
	if r.CompletedAt != nil {
		s := r.CompletedAt.UTC().Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}
