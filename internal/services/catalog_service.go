package services

import (
	"context"
	"errors"
	"fmt"

	"pasar/internal/models"
	"pasar/internal/store"
)

// CatalogService handles product listings. The stock ledger lives on the
// product record but is only mutated through OrderService.
type CatalogService struct {
	store store.Store
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(st store.Store) *CatalogService {
	return &CatalogService{store: st}
}

// ListProducts retrieves all product listings.
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.store.List(ctx, "products", &products); err != nil {
		return nil, &PersistenceError{Op: "list products", Err: err}
	}
	return products, nil
}

// GetProduct retrieves a single product by its ID.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.store.Get(ctx, store.Join("products", id), &product)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("product with ID %s not found", id)
	}
	if err != nil {
		return nil, &PersistenceError{Op: fmt.Sprintf("read product %s", id), Err: err}
	}
	return &product, nil
}

// CreateProduct creates a new product listing owned by sellerID.
func (s *CatalogService) CreateProduct(ctx context.Context, product *models.Product, sellerID string) error {
	if sellerID == "" {
		return ErrNotAuthenticated
	}
	id, err := s.store.GenerateID(ctx, "products")
	if err != nil {
		return &PersistenceError{Op: "generate product id", Err: err}
	}
	product.ID = id
	product.SellerID = sellerID
	if err := s.store.Set(ctx, store.Join("products", id), product); err != nil {
		return &PersistenceError{Op: "save product", Err: err}
	}
	return nil
}

// UpdateProduct overwrites an existing product listing.
func (s *CatalogService) UpdateProduct(ctx context.Context, product *models.Product) error {
	var existing models.Product
	err := s.store.Get(ctx, store.Join("products", product.ID), &existing)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("product with ID %s not found for update", product.ID)
	}
	if err != nil {
		return &PersistenceError{Op: fmt.Sprintf("read product %s", product.ID), Err: err}
	}
	if product.SellerID == "" {
		product.SellerID = existing.SellerID
	}
	if err := s.store.Set(ctx, store.Join("products", product.ID), product); err != nil {
		return &PersistenceError{Op: fmt.Sprintf("update product %s", product.ID), Err: err}
	}
	return nil
}

// DeleteProduct removes a product listing by its ID.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	var existing models.Product
	err := s.store.Get(ctx, store.Join("products", id), &existing)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("product with ID %s not found for deletion", id)
	}
	if err != nil {
		return &PersistenceError{Op: fmt.Sprintf("read product %s", id), Err: err}
	}
	if err := s.store.Remove(ctx, store.Join("products", id)); err != nil {
		return &PersistenceError{Op: fmt.Sprintf("delete product %s", id), Err: err}
	}
	return nil
}
