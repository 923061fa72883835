package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service wraps the repository with validation.
type Service struct {
	repo Repository
}

// NewService creates a master data service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListProducts(ctx context.Context, companyID uuid.UUID, filters ListFilters) ([]Product, error) {
	return s.repo.ListProducts(ctx, companyID, filters)
}

func (s *Service) GetProduct(ctx context.Context, companyID, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, companyID, id)
}

func (s *Service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	if err := validateProduct(product); err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, product)
}

func (s *Service) UpdateProduct(ctx context.Context, companyID, id uuid.UUID, product Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	return s.repo.UpdateProduct(ctx, companyID, id, product)
}

func (s *Service) ListWarehouses(ctx context.Context, companyID uuid.UUID, filters ListFilters) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx, companyID, filters)
}

func (s *Service) GetWarehouse(ctx context.Context, companyID, id uuid.UUID) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, companyID, id)
}

func (s *Service) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	if err := validateWarehouse(warehouse); err != nil {
		return Warehouse{}, err
	}
	return s.repo.CreateWarehouse(ctx, warehouse)
}

func (s *Service) UpdateWarehouse(ctx context.Context, companyID, id uuid.UUID, warehouse Warehouse) error {
	if err := validateWarehouse(warehouse); err != nil {
		return err
	}
	return s.repo.UpdateWarehouse(ctx, companyID, id, warehouse)
}

func validateProduct(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if p.MinStockLevel.IsNegative() {
		return fmt.Errorf("%w: min_stock_level cannot be negative", ErrInvalidInput)
	}
	return nil
}

func validateWarehouse(w Warehouse) error {
	if strings.TrimSpace(w.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return nil
}
