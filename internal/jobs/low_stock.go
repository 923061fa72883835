package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LowStockScanJob reports products whose on-hand total fell to or under the
// minimum stock level configured on the product.
type LowStockScanJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLowStockScanJob constructs the job.
func NewLowStockScanJob(pool *pgxpool.Pool, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{pool: pool, logger: logger}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := j.pool.Query(ctx, `SELECT p.id, p.name, SUM(ws.quantity) AS on_hand, p.min_stock_level
FROM products p
JOIN warehouse_stock ws ON ws.product_id = p.id AND ws.company_id = p.company_id
WHERE p.company_id = $1 AND p.min_stock_level > 0
GROUP BY p.id, p.name, p.min_stock_level
HAVING SUM(ws.quantity) <= p.min_stock_level`, payload.CompanyID)
	if err != nil {
		return err
	}
	defer rows.Close()

	flagged := 0
	for rows.Next() {
		var (
			productID string
			name      string
			onHand    string
			minLevel  string
		)
		if err := rows.Scan(&productID, &name, &onHand, &minLevel); err != nil {
			return err
		}
		flagged++
		j.logger.Warn("low stock",
			slog.String("company_id", payload.CompanyID.String()),
			slog.String("product_id", productID),
			slog.String("product", name),
			slog.String("on_hand", onHand),
			slog.String("min_stock_level", minLevel))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	j.logger.Info("low stock scan finished",
		slog.String("company_id", payload.CompanyID.String()),
		slog.Int("flagged", flagged))
	return nil
}
