package ledger

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Request is an action as submitted by the presentation layer. Quantity is
// the raw decoded value; it is coerced, never rejected.
type Request struct {
	ItemCode string
	Action   string
	Quantity any
	CaseID   string
	User     string
}

// ValidatedRequest is a normalized request that passed structural checks.
type ValidatedRequest struct {
	ItemCode    string
	Action      Action
	ActionLabel string
	Quantity    int
	CaseID      string
	User        string
}

// maxQuantity bounds coerced quantities; larger values are treated as
// non-numeric.
const maxQuantity = math.MaxInt32

// CoerceQuantity converts a decoded quantity into a non-negative integer.
// Fractions truncate toward zero. Missing, non-numeric, negative or
// out-of-range input becomes 0.
func CoerceQuantity(v any) int {
	var f float64
	switch q := v.(type) {
	case nil:
		return 0
	case int:
		f = float64(q)
	case int64:
		f = float64(q)
	case float64:
		f = q
	case json.Number:
		parsed, err := q.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		s := strings.TrimSpace(q)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > maxQuantity {
		return 0
	}
	return int(math.Trunc(f))
}

// Normalize performs the structural checks that need no storage access.
func Normalize(req Request) (ValidatedRequest, error) {
	code := strings.TrimSpace(req.ItemCode)
	if code == "" {
		return ValidatedRequest{}, &ValidationError{Field: "itemId", Message: "item code is required"}
	}
	label := strings.TrimSpace(req.Action)
	if label == "" {
		return ValidatedRequest{}, &ValidationError{Field: "action", Message: "action is required"}
	}
	return ValidatedRequest{
		ItemCode:    code,
		Action:      ParseAction(label),
		ActionLabel: label,
		Quantity:    CoerceQuantity(req.Quantity),
		CaseID:      strings.TrimSpace(req.CaseID),
		User:        strings.TrimSpace(req.User),
	}, nil
}

// CheckStock rejects a stock-reducing action that asks for more than the
// item holds. RemoveAll is held to the same bound; the caller supplies the
// full quantity.
func CheckStock(item Item, action Action, quantity int) error {
	if action.ReducesStock() && quantity > item.Quantity {
		return &InsufficientStockError{
			ItemCode:  item.Code,
			Available: item.Quantity,
			Requested: quantity,
		}
	}
	return nil
}

// Validator checks a request against current item state before any
// mutation. It has no side effects; the engine repeats the stock check on
// the locked row.
type Validator struct {
	Store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{Store: store}
}

func (v *Validator) Validate(ctx context.Context, req Request) (ValidatedRequest, error) {
	vr, err := Normalize(req)
	if err != nil {
		return ValidatedRequest{}, err
	}

	item, err := v.Store.GetItem(ctx, vr.ItemCode)
	if err != nil {
		return ValidatedRequest{}, &TransactionError{ItemCode: vr.ItemCode, Err: err}
	}
	if item == nil {
		return ValidatedRequest{}, &ItemNotFoundError{ItemCode: vr.ItemCode}
	}
	if err := CheckStock(*item, vr.Action, vr.Quantity); err != nil {
		return ValidatedRequest{}, err
	}
	return vr, nil
}
