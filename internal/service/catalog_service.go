package service

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
)

// SnapshotInvalidator drops every cached cart snapshot. Snapshots bake in
// catalog prices, so price and currency changes have to reach all of them.
type SnapshotInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

type CatalogService struct {
	repo  repository.ProductRepository
	cache SnapshotInvalidator
}

func NewCatalogService(repo repository.ProductRepository, cache SnapshotInvalidator) *CatalogService {
	return &CatalogService{repo: repo, cache: cache}
}

func (s *CatalogService) List(ctx context.Context, search string) ([]*domain.Product, error) {
	return s.repo.ListProducts(ctx, search)
}

func (s *CatalogService) Get(ctx context.Context, sku string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, sku)
}

func (s *CatalogService) Create(ctx context.Context, product *domain.Product) error {
	if product.SKU == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidProduct)
	}
	if product.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if err := validatePrice(product.Price); err != nil {
		return err
	}

	return s.repo.CreateProduct(ctx, product)
}

func (s *CatalogService) Update(ctx context.Context, sku string, update domain.ProductUpdate) (*domain.Product, error) {
	if update.Price != nil {
		if err := validatePrice(*update.Price); err != nil {
			return nil, err
		}
	}
	if update.Name != nil && *update.Name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidProduct)
	}

	updated, err := s.repo.UpdateProduct(ctx, sku, update)
	if err != nil {
		return nil, err
	}

	s.invalidateSnapshots(ctx)
	return updated, nil
}

func (s *CatalogService) Delete(ctx context.Context, sku string) error {
	if err := s.repo.DeleteProduct(ctx, sku); err != nil {
		return err
	}

	s.invalidateSnapshots(ctx)
	return nil
}

// validatePrice enforces the money domain: non-negative, at most 2 decimal
// digits, stored exactly as given.
func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if price.Exponent() < -2 {
		return fmt.Errorf("%w: price must have at most 2 decimal places", ErrInvalidProduct)
	}
	return nil
}

func (s *CatalogService) invalidateSnapshots(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Printf("snapshot invalidate error: %v \n", err)
	}
}
