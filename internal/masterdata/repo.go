package masterdata

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodestar-erp/lodestar-erp/internal/shared"
)

type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

func (r *repo) ListProducts(ctx context.Context, companyID uuid.UUID, filters ListFilters) ([]Product, error) {
	query := `SELECT id, company_id, sku, name, unit, min_stock_level, is_active, created_at, updated_at
FROM products WHERE company_id = $1`
	args := []any{companyID}
	if filters.IsActive != nil {
		query += ` AND is_active = $2`
		args = append(args, *filters.IsActive)
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		err := rows.Scan(&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.Unit, &p.MinStockLevel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filters.Search != "" {
		products = filterProducts(products, filters.Search)
	}
	return products, nil
}

func (r *repo) GetProduct(ctx context.Context, companyID, id uuid.UUID) (Product, error) {
	query := `SELECT id, company_id, sku, name, unit, min_stock_level, is_active, created_at, updated_at
FROM products WHERE company_id = $1 AND id = $2`
	var p Product
	err := r.db.QueryRow(ctx, query, companyID, id).Scan(&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.Unit, &p.MinStockLevel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repo) CreateProduct(ctx context.Context, product Product) (Product, error) {
	now := time.Now().UTC()
	product.ID = uuid.New()
	product.CreatedAt = now
	product.UpdatedAt = now
	query := `INSERT INTO products (id, company_id, sku, name, unit, min_stock_level, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query, product.ID, product.CompanyID, product.SKU, product.Name, product.Unit, product.MinStockLevel, product.IsActive, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

func (r *repo) UpdateProduct(ctx context.Context, companyID, id uuid.UUID, product Product) error {
	query := `UPDATE products SET sku = $1, name = $2, unit = $3, min_stock_level = $4, is_active = $5, updated_at = $6
WHERE company_id = $7 AND id = $8`
	tag, err := r.db.Exec(ctx, query, product.SKU, product.Name, product.Unit, product.MinStockLevel, product.IsActive, time.Now().UTC(), companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repo) ListWarehouses(ctx context.Context, companyID uuid.UUID, filters ListFilters) ([]Warehouse, error) {
	query := `SELECT id, company_id, code, name, address, is_active, created_at, updated_at
FROM warehouses WHERE company_id = $1`
	args := []any{companyID}
	if filters.IsActive != nil {
		query += ` AND is_active = $2`
		args = append(args, *filters.IsActive)
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		err := rows.Scan(&w.ID, &w.CompanyID, &w.Code, &w.Name, &w.Address, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
		if err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filters.Search != "" {
		warehouses = filterWarehouses(warehouses, filters.Search)
	}
	return warehouses, nil
}

func (r *repo) GetWarehouse(ctx context.Context, companyID, id uuid.UUID) (Warehouse, error) {
	query := `SELECT id, company_id, code, name, address, is_active, created_at, updated_at
FROM warehouses WHERE company_id = $1 AND id = $2`
	var w Warehouse
	err := r.db.QueryRow(ctx, query, companyID, id).Scan(&w.ID, &w.CompanyID, &w.Code, &w.Name, &w.Address, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, shared.ErrNotFound
	}
	return w, err
}

func (r *repo) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	now := time.Now().UTC()
	warehouse.ID = uuid.New()
	warehouse.CreatedAt = now
	warehouse.UpdatedAt = now
	query := `INSERT INTO warehouses (id, company_id, code, name, address, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query, warehouse.ID, warehouse.CompanyID, warehouse.Code, warehouse.Name, warehouse.Address, warehouse.IsActive, warehouse.CreatedAt, warehouse.UpdatedAt)
	if err != nil {
		return Warehouse{}, err
	}
	return warehouse, nil
}

func (r *repo) UpdateWarehouse(ctx context.Context, companyID, id uuid.UUID, warehouse Warehouse) error {
	query := `UPDATE warehouses SET code = $1, name = $2, address = $3, is_active = $4, updated_at = $5
WHERE company_id = $6 AND id = $7`
	tag, err := r.db.Exec(ctx, query, warehouse.Code, warehouse.Name, warehouse.Address, warehouse.IsActive, time.Now().UTC(), companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
