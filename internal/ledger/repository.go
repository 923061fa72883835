package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodestar-erp/lodestar-erp/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StatusUpdate carries the fields written when a transaction changes state.
type StatusUpdate struct {
	Status     Status
	ApprovedBy uuid.UUID
	ApprovedAt time.Time
}

// TxRepository exposes transactional operations used by the service. All
// lifecycle mutations run through it so every operation is all-or-nothing.
type TxRepository interface {
	InsertTransaction(ctx context.Context, trans Transaction) (uuid.UUID, error)
	InsertLineItems(ctx context.Context, transactionID uuid.UUID, items []LineItem) error
	GetTransactionForUpdate(ctx context.Context, companyID, id uuid.UUID) (Transaction, error)
	UpdateTransactionStatus(ctx context.Context, companyID, id uuid.UUID, update StatusUpdate) error
	GetBalanceForUpdate(ctx context.Context, companyID, productID, warehouseID uuid.UUID) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	DeleteLineItems(ctx context.Context, companyID, transactionID uuid.UUID) error
	DeleteTransaction(ctx context.Context, companyID, id uuid.UUID) error
}

type txRepository struct {
	tx pgx.Tx
}

// ErrBalanceNotFound indicates a missing balance row.
var ErrBalanceNotFound = errors.New("ledger: balance not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetTransaction loads one transaction with its line items.
func (r *Repository) GetTransaction(ctx context.Context, companyID, id uuid.UUID) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, company_id, transaction_type, status, warehouse_id, from_warehouse_id, to_warehouse_id, note, created_by, approved_by, approved_at, created_at, updated_at
FROM inventory_transactions WHERE company_id=$1 AND id=$2`, companyID, id)
	trans, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return Transaction{}, err
	}
	trans.Items = items
	return trans, nil
}

// ListTransactions returns a filtered page of transactions and the total count.
func (r *Repository) ListTransactions(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Transaction, int, error) {
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_transactions
WHERE company_id=$1 AND ($2='' OR status=$2) AND ($3='' OR transaction_type=$3)`,
		companyID, string(filter.Status), string(filter.Type)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, company_id, transaction_type, status, warehouse_id, from_warehouse_id, to_warehouse_id, note, created_by, approved_by, approved_at, created_at, updated_at
FROM inventory_transactions
WHERE company_id=$1 AND ($2='' OR status=$2) AND ($3='' OR transaction_type=$3)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5`, companyID, string(filter.Status), string(filter.Type), perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	transactions := []Transaction{}
	for rows.Next() {
		trans, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, trans)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

// ListBalances returns stock levels, optionally narrowed to one warehouse or product.
func (r *Repository) ListBalances(ctx context.Context, companyID uuid.UUID, filter BalanceFilter) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT company_id, product_id, warehouse_id, quantity, reserved_quantity, last_transaction_date
FROM warehouse_stock
WHERE company_id=$1 AND ($2::uuid IS NULL OR warehouse_id=$2) AND ($3::uuid IS NULL OR product_id=$3)
ORDER BY warehouse_id, product_id`, companyID, nullUUID(filter.WarehouseID), nullUUID(filter.ProductID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := []Balance{}
	for rows.Next() {
		var bal Balance
		var lastTx *time.Time
		if err := rows.Scan(&bal.CompanyID, &bal.ProductID, &bal.WarehouseID, &bal.Quantity, &bal.ReservedQuantity, &lastTx); err != nil {
			return nil, err
		}
		if lastTx != nil {
			bal.LastTransactionAt = *lastTx
		}
		balances = append(balances, bal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return balances, nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, trans Transaction) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_transactions (company_id, transaction_type, status, warehouse_id, from_warehouse_id, to_warehouse_id, note, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id`,
		trans.CompanyID, string(trans.Type), string(trans.Status), nullUUID(trans.WarehouseID), nullUUID(trans.FromWarehouseID), nullUUID(trans.ToWarehouseID), trans.Note, nullUUID(trans.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLineItems(ctx context.Context, transactionID uuid.UUID, items []LineItem) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO inventory_transaction_items (transaction_id, product_id, quantity)
VALUES ($1,$2,$3)`, transactionID, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, companyID, id uuid.UUID) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, company_id, transaction_type, status, warehouse_id, from_warehouse_id, to_warehouse_id, note, created_by, approved_by, approved_at, created_at, updated_at
FROM inventory_transactions WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id)
	trans, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	items, err := loadItems(ctx, r.tx, id)
	if err != nil {
		return Transaction{}, err
	}
	trans.Items = items
	return trans, nil
}

func (r *txRepository) UpdateTransactionStatus(ctx context.Context, companyID, id uuid.UUID, update StatusUpdate) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_transactions
SET status=$3, approved_by=COALESCE($4, approved_by), approved_at=COALESCE($5, approved_at), updated_at=NOW()
WHERE company_id=$1 AND id=$2`,
		companyID, id, string(update.Status), nullUUID(update.ApprovedBy), nullTime(update.ApprovedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, companyID, productID, warehouseID uuid.UUID) (Balance, error) {
	var bal Balance
	var lastTx *time.Time
	err := r.tx.QueryRow(ctx, `SELECT company_id, product_id, warehouse_id, quantity, reserved_quantity, last_transaction_date
FROM warehouse_stock WHERE company_id=$1 AND product_id=$2 AND warehouse_id=$3 FOR UPDATE`,
		companyID, productID, warehouseID).
		Scan(&bal.CompanyID, &bal.ProductID, &bal.WarehouseID, &bal.Quantity, &bal.ReservedQuantity, &lastTx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{CompanyID: companyID, ProductID: productID, WarehouseID: warehouseID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	if lastTx != nil {
		bal.LastTransactionAt = *lastTx
	}
	return bal, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO warehouse_stock (company_id, product_id, warehouse_id, quantity, reserved_quantity, last_transaction_date)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (company_id, product_id, warehouse_id)
DO UPDATE SET quantity=EXCLUDED.quantity, last_transaction_date=EXCLUDED.last_transaction_date`,
		balance.CompanyID, balance.ProductID, balance.WarehouseID, balance.Quantity, balance.ReservedQuantity, balance.LastTransactionAt)
	return err
}

func (r *txRepository) DeleteLineItems(ctx context.Context, companyID, transactionID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM inventory_transaction_items
WHERE transaction_id IN (SELECT id FROM inventory_transactions WHERE company_id=$1 AND id=$2)`, companyID, transactionID)
	return err
}

func (r *txRepository) DeleteTransaction(ctx context.Context, companyID, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM inventory_transactions WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q queryer, transactionID uuid.UUID) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT id, transaction_id, product_id, quantity
FROM inventory_transaction_items WHERE transaction_id=$1 ORDER BY id`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []LineItem{}
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var trans Transaction
	var warehouseID, fromWarehouseID, toWarehouseID, createdBy, approvedBy *uuid.UUID
	var approvedAt *time.Time
	err := row.Scan(&trans.ID, &trans.CompanyID, &trans.Type, &trans.Status, &warehouseID, &fromWarehouseID, &toWarehouseID, &trans.Note, &createdBy, &approvedBy, &approvedAt, &trans.CreatedAt, &trans.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	if warehouseID != nil {
		trans.WarehouseID = *warehouseID
	}
	if fromWarehouseID != nil {
		trans.FromWarehouseID = *fromWarehouseID
	}
	if toWarehouseID != nil {
		trans.ToWarehouseID = *toWarehouseID
	}
	if createdBy != nil {
		trans.CreatedBy = *createdBy
	}
	if approvedBy != nil {
		trans.ApprovedBy = *approvedBy
	}
	if approvedAt != nil {
		trans.ApprovedAt = *approvedAt
	}
	return trans, nil
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
