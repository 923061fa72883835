package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// BalanceIntegrityJob audits warehouse_stock for rows violating the
// non-negativity invariant. The ledger never writes such rows; a hit means
// out-of-band writes or a bug and is surfaced loudly.
type BalanceIntegrityJob struct {
	pool       *pgxpool.Pool
	logger     *slog.Logger
	violations prometheus.Counter
}

// NewBalanceIntegrityJob constructs the job and registers its counter.
func NewBalanceIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, registerer prometheus.Registerer) *BalanceIntegrityJob {
	violations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lodestar_balance_integrity_violations_total",
		Help: "Negative warehouse stock rows detected by the nightly audit.",
	})
	if registerer != nil {
		registerer.MustRegister(violations)
	}
	return &BalanceIntegrityJob{pool: pool, logger: logger, violations: violations}
}

// Handle processes TaskBalanceIntegrity tasks.
func (j *BalanceIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	rows, err := j.pool.Query(ctx, `SELECT company_id, product_id, warehouse_id, quantity
FROM warehouse_stock WHERE quantity < 0`)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var companyID, productID, warehouseID, quantity string
		if err := rows.Scan(&companyID, &productID, &warehouseID, &quantity); err != nil {
			return err
		}
		found++
		j.violations.Inc()
		j.logger.Error("negative stock balance detected",
			slog.String("company_id", companyID),
			slog.String("product_id", productID),
			slog.String("warehouse_id", warehouseID),
			slog.String("quantity", quantity))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if found == 0 {
		j.logger.Info("balance integrity audit clean")
	}
	return nil
}
