package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/qmedic/stock-ledger/ledger"
)

// Log writes each notification to the service log. It never fails.
type Log struct {
	Logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{Logger: logger}
}

func (l *Log) Dispatch(_ context.Context, n ledger.Notification) error {
	l.Logger.Info("notification recorded",
		zap.Int64("notification_id", int64(n.ID)),
		zap.String("alert_type", string(n.AlertType)),
		zap.String("item_code", n.ItemCode),
		zap.String("location", n.Location),
		zap.String("details", n.Details),
	)
	return nil
}
