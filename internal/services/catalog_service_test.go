package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"pasar/internal/models"
	"pasar/internal/services"
	"pasar/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of store.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, path string, out any) error {
	args := m.Called(path)
	if p, ok := args.Get(0).(*models.Product); ok && p != nil {
		*(out.(*models.Product)) = *p
	}
	return args.Error(1)
}

func (m *MockStore) List(ctx context.Context, parent string, out any) error {
	args := m.Called(parent)
	if products, ok := args.Get(0).([]models.Product); ok {
		*(out.(*[]models.Product)) = products
	}
	return args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, path string, value any) error {
	args := m.Called(path, value)
	return args.Error(0)
}

func (m *MockStore) UpdateFields(ctx context.Context, path string, fields map[string]any) error {
	args := m.Called(path, fields)
	return args.Error(0)
}

func (m *MockStore) Remove(ctx context.Context, path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockStore) GenerateID(ctx context.Context, parent string) (string, error) {
	args := m.Called(parent)
	return args.String(0), args.Error(1)
}

func (m *MockStore) RunTransaction(ctx context.Context, path string, fn store.TxFunc) (bool, error) {
	args := m.Called(path)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Listen(ctx context.Context, parent string, fn store.ChangeFunc) (func(), error) {
	args := m.Called(parent)
	return func() {}, args.Error(1)
}

func TestCatalogService_ListProducts(t *testing.T) {
	mockStore := new(MockStore)
	service := services.NewCatalogService(mockStore)

	expectedProducts := []models.Product{
		{ID: "1", Name: "Product A", Price: 10.0, Stock: 100},
		{ID: "2", Name: "Product B", Price: 20.0, Stock: 50},
	}

	mockStore.On("List", "products").Return(expectedProducts, nil).Once()

	products, err := service.ListProducts(context.Background())

	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, expectedProducts, products)
	mockStore.AssertExpectations(t)
}

func TestCatalogService_GetProduct(t *testing.T) {
	mockStore := new(MockStore)
	service := services.NewCatalogService(mockStore)

	expectedProduct := &models.Product{ID: "1", Name: "Product A", Price: 10.0, Stock: 100}

	// Test successful retrieval
	mockStore.On("Get", "products/1").Return(expectedProduct, nil).Once()
	product, err := service.GetProduct(context.Background(), "1")
	assert.NoError(t, err)
	assert.Equal(t, expectedProduct, product)
	mockStore.AssertExpectations(t)

	// Test product not found
	mockStore.On("Get", "products/99").Return(nil, store.ErrNotFound).Once()
	product, err = service.GetProduct(context.Background(), "99")
	assert.Error(t, err)
	assert.Nil(t, product)
	assert.Contains(t, err.Error(), "not found")
	mockStore.AssertExpectations(t)
}

func TestCatalogService_CreateProduct(t *testing.T) {
	mockStore := new(MockStore)
	service := services.NewCatalogService(mockStore)

	newProduct := &models.Product{Name: "New Product", Price: 50.0, Stock: 20}

	// Test successful creation
	mockStore.On("GenerateID", "products").Return("gen-1", nil).Once()
	mockStore.On("Set", "products/gen-1", mock.AnythingOfType("*models.Product")).Return(nil).Once()
	err := service.CreateProduct(context.Background(), newProduct, "seller-1")
	assert.NoError(t, err)
	assert.Equal(t, "gen-1", newProduct.ID)
	assert.Equal(t, "seller-1", newProduct.SellerID)
	mockStore.AssertExpectations(t)

	// Test creation without an authenticated seller
	err = service.CreateProduct(context.Background(), newProduct, "")
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)

	// Test creation failure (e.g. store error)
	mockStore.On("GenerateID", "products").Return("gen-2", nil).Once()
	mockStore.On("Set", "products/gen-2", mock.AnythingOfType("*models.Product")).Return(fmt.Errorf("store error")).Once()
	err = service.CreateProduct(context.Background(), newProduct, "seller-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store error")
	mockStore.AssertExpectations(t)
}

func TestCatalogService_UpdateProduct(t *testing.T) {
	st := store.NewMemoryStore()
	service := services.NewCatalogService(st)
	ctx := context.Background()

	original := &models.Product{Name: "Product A", Price: 12.0, Stock: 95}
	assert.NoError(t, service.CreateProduct(ctx, original, "seller-1"))

	// Test successful update; seller ownership is preserved when the
	// update omits it.
	updated := &models.Product{ID: original.ID, Name: "Product A Updated", Price: 13.0, Stock: 90}
	assert.NoError(t, service.UpdateProduct(ctx, updated))

	fetched, err := service.GetProduct(ctx, original.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Product A Updated", fetched.Name)
	assert.Equal(t, "seller-1", fetched.SellerID)

	// Test update failure (product not found)
	err = service.UpdateProduct(ctx, &models.Product{ID: "99", Name: "NonExistent"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found for update")
}

func TestCatalogService_DeleteProduct(t *testing.T) {
	st := store.NewMemoryStore()
	service := services.NewCatalogService(st)
	ctx := context.Background()

	product := &models.Product{Name: "To Delete", Price: 5.0, Stock: 1}
	assert.NoError(t, service.CreateProduct(ctx, product, "seller-1"))

	// Test successful deletion
	assert.NoError(t, service.DeleteProduct(ctx, product.ID))
	_, err := service.GetProduct(ctx, product.ID)
	assert.Error(t, err)

	// Test deletion failure (product not found)
	err = service.DeleteProduct(ctx, "99")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found for deletion")
}

// The engines only ever exchange JSON-shaped records with the store;
// this pins the product wire shape the mobile clients rely on.
func TestProductJSONShape(t *testing.T) {
	p := models.Product{ID: "p1", SellerID: "s1", Name: "Laptop", Price: 1200, Stock: 5, Sold: 2}
	data, err := json.Marshal(p)
	assert.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "p1", "seller_id": "s1", "name": "Laptop", "description": "",
		"price": 1200, "image_url": "", "stock": 5, "sold": 2
	}`, string(data))
}
