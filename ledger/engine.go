/*
engine.go - The unit of work for one inventory action

CRITICAL INVARIANTS:
  1. NON-NEGATIVE: Item quantity is never observably negative.
  2. ATOMIC: Quantity update, history insert and low-stock notification
     commit together or not at all.
  3. ONE RECORD: Every successful action appends exactly one ActionRecord.
  4. SERIALIZED: Actions on the same item are serialized by Tx.LockItem.

FLOW:
  1. Validator pre-check (structure, item exists, stock bound)
  2. WithTx, bounded by Timeout together with step 1:
     a. Lock and re-read the item
     b. Re-run the stock check on the locked row
     c. Apply the action, floor at zero, persist quantity and timestamp
     d. Append the ActionRecord with snapshot fields
     e. Re-read the item; record LowStock if at or below minimum
  3. Commit, then hand any LowStock notification to the Dispatcher

FAILURES:
  ItemNotFound and InsufficientStock pass through unchanged. Anything else
  from storage (including the timeout) is wrapped in TransactionError.
  Nothing is retried here.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultUser      = "Current User"
	DefaultTxTimeout = 5 * time.Second
)

// Result is the outcome of a committed action.
type Result struct {
	NewQuantity  int
	Record       ActionRecord
	Notification *Notification
}

type Engine struct {
	Store      TxStore
	Validator  *Validator
	Dispatcher Dispatcher // optional
	Logger     *zap.Logger
	Timeout    time.Duration

	Now       func() time.Time
	NewCaseID func() string
}

func NewEngine(store TxStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Store:     store,
		Validator: NewValidator(store),
		Logger:    logger,
		Timeout:   DefaultTxTimeout,
		Now:       func() time.Time { return time.Now().UTC() },
		NewCaseID: RandomCaseID,
	}
}

// RandomCaseID returns "C" followed by five random digits.
func RandomCaseID() string {
	return fmt.Sprintf("C%d", 10000+rand.IntN(90000))
}

// Submit validates and applies one action.
func (e *Engine) Submit(ctx context.Context, req Request) (*Result, error) {
	// Timeout bounds validation and the transaction, including any wait for
	// the store's write lock. Dispatch after commit runs on ctx.
	work := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		work, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	vr, err := e.Validator.Validate(work, req)
	if err != nil {
		e.Logger.Info("action rejected",
			zap.String("item_code", req.ItemCode),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		return nil, err
	}
	if vr.CaseID == "" {
		vr.CaseID = e.NewCaseID()
	}
	if vr.User == "" {
		vr.User = DefaultUser
	}

	res, err := e.apply(work, vr)
	if err != nil {
		if !errors.Is(err, ErrItemNotFound) && !errors.Is(err, ErrInsufficientStock) {
			err = &TransactionError{ItemCode: vr.ItemCode, Err: err}
			e.Logger.Error("transaction failed",
				zap.String("item_code", vr.ItemCode),
				zap.String("action", vr.Action.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	e.Logger.Info("action logged",
		zap.String("item_code", vr.ItemCode),
		zap.String("action", vr.Action.String()),
		zap.Int("quantity", vr.Quantity),
		zap.Int("new_quantity", res.NewQuantity),
		zap.String("case_id", vr.CaseID),
		zap.Bool("low_stock", res.Notification != nil),
	)

	if res.Notification != nil && e.Dispatcher != nil {
		if err := e.Dispatcher.Dispatch(ctx, *res.Notification); err != nil {
			e.Logger.Warn("low stock dispatch failed",
				zap.String("item_code", vr.ItemCode),
				zap.Int64("notification_id", int64(res.Notification.ID)),
				zap.Error(err),
			)
		}
	}
	return res, nil
}

func (e *Engine) apply(ctx context.Context, vr ValidatedRequest) (*Result, error) {
	var res Result
	err := e.Store.WithTx(ctx, func(tx Tx) error {
		item, err := tx.LockItem(ctx, vr.ItemCode)
		if err != nil {
			return err
		}
		if item == nil {
			return &ItemNotFoundError{ItemCode: vr.ItemCode}
		}
		if err := CheckStock(*item, vr.Action, vr.Quantity); err != nil {
			return err
		}

		now := e.Now()
		newQty := vr.Action.Apply(item.Quantity, vr.Quantity)
		if err := tx.UpdateQuantity(ctx, item.ID, newQty, now); err != nil {
			return err
		}

		rec, err := tx.AppendRecord(ctx, ActionRecord{
			ItemID:      item.ID,
			ItemCode:    item.Code,
			ItemName:    item.Name,
			Category:    item.Category,
			Action:      vr.Action,
			ActionLabel: vr.ActionLabel,
			Quantity:    vr.Quantity,
			CaseID:      vr.CaseID,
			User:        vr.User,
			Timestamp:   now,
		})
		if err != nil {
			return err
		}

		updated, err := tx.ItemByID(ctx, item.ID)
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("item %d vanished inside transaction", item.ID)
		}
		if alert := LowStockAlert(*updated, vr.Action, now); alert != nil {
			saved, err := tx.AppendNotification(ctx, *alert)
			if err != nil {
				return err
			}
			res.Notification = &saved
		}

		res.NewQuantity = newQty
		res.Record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
