package sheets

import (
	"context"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"go.uber.org/zap"
)

// LogRecorder is used when no spreadsheet is configured: rows are logged
// and reported as written. Useful for local runs.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a recorder that only logs.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// AppendPurchase logs the row.
func (r *LogRecorder) AppendPurchase(_ context.Context, row domain.PurchaseRow) error {
	r.logger.Info("purchase row (no spreadsheet configured)",
		zap.String("description", row.Description),
		zap.String("user", row.User),
		zap.String("date", row.Date),
		zap.String("status", row.Status),
		zap.String("amount", row.Amount.StringFixed(2)),
		zap.Int("months", row.Months),
		zap.String("bank", row.Bank),
	)
	return nil
}
