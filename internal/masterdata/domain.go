package masterdata

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput indicates a master data record failed validation.
var ErrInvalidInput = errors.New("invalid master data input")

// Product is a sellable or stockable item. MinStockLevel of zero disables
// low stock reporting for the product.
type Product struct {
	ID            uuid.UUID       `json:"id"`
	CompanyID     uuid.UUID       `json:"company_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	MinStockLevel decimal.Decimal `json:"min_stock_level"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Warehouse is a physical stock location.
type Warehouse struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilters represents standard list page filters.
type ListFilters struct {
	Search   string
	IsActive *bool
}

// Repository interface for master data reads and writes.
type Repository interface {
	ListProducts(ctx context.Context, companyID uuid.UUID, filters ListFilters) ([]Product, error)
	GetProduct(ctx context.Context, companyID, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, companyID, id uuid.UUID, product Product) error

	ListWarehouses(ctx context.Context, companyID uuid.UUID, filters ListFilters) ([]Warehouse, error)
	GetWarehouse(ctx context.Context, companyID, id uuid.UUID) (Warehouse, error)
	CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	UpdateWarehouse(ctx context.Context, companyID, id uuid.UUID, warehouse Warehouse) error
}
