package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan flags products whose stock fell under their minimum level.
	TaskLowStockScan = "ledger:low_stock_scan"
	// TaskBalanceIntegrity audits warehouse_stock for rows violating the
	// non-negativity invariant.
	TaskBalanceIntegrity = "ledger:balance_integrity"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// LowStockScanPayload narrows a scan to one company and optionally warehouses.
type LowStockScanPayload struct {
	CompanyID  uuid.UUID   `json:"company_id"`
	Warehouses []uuid.UUID `json:"warehouses,omitempty"`
}

// NewLowStockScanTask constructs an Asynq task for a low stock scan.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewBalanceIntegrityTask constructs the nightly balance audit task.
func NewBalanceIntegrityTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskBalanceIntegrity, nil, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
