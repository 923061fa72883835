package jobs

import (
	"context"
	"log/slog"

	"github.com/lodestar-erp/lodestar-erp/internal/ledger"
)

// LedgerEventSink receives ledger lifecycle events. Approvals trigger a low
// stock scan for the affected company; everything is best effort.
type LedgerEventSink struct {
	client *Client
	logger *slog.Logger
}

// NewLedgerEventSink constructs the sink. The client may be nil, in which case
// events are only logged.
func NewLedgerEventSink(client *Client, logger *slog.Logger) *LedgerEventSink {
	return &LedgerEventSink{client: client, logger: logger}
}

// TransactionApproved logs the approval and queues a low stock scan.
func (s *LedgerEventSink) TransactionApproved(ctx context.Context, evt ledger.ApprovedEvent) {
	s.logger.Info("inventory transaction approved",
		slog.String("transaction_id", evt.TransactionID.String()),
		slog.String("company_id", evt.CompanyID.String()),
		slog.String("type", string(evt.Type)))
	if s.client == nil {
		return
	}
	payload := LowStockScanPayload{CompanyID: evt.CompanyID, Warehouses: evt.Warehouses}
	if _, err := s.client.EnqueueLowStockScan(ctx, payload); err != nil {
		s.logger.Warn("enqueue low stock scan", slog.Any("error", err))
	}
}

// TransactionDeleted logs the removal.
func (s *LedgerEventSink) TransactionDeleted(ctx context.Context, evt ledger.DeletedEvent) {
	s.logger.Info("inventory transaction deleted",
		slog.String("transaction_id", evt.TransactionID.String()),
		slog.String("company_id", evt.CompanyID.String()),
		slog.String("type", string(evt.Type)),
		slog.Bool("was_completed", evt.WasCompleted))
}
