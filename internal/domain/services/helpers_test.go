package services

import (
	"context"
	"errors"
	"sync"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/shopspring/decimal"
)

// fakeAPI - тестовый двойник удалённого сервиса объявлений
type fakeAPI struct {
	mu sync.Mutex

	inserted    []*models.Listing
	deleted     []string
	batchCalls  [][]models.BatchEntry
	listings    []models.Listing
	insertErr   error
	deleteErr   error
	batchErr    error
	listErr     error
	failBatchID map[int64]string // позиции, которые сервис отклонит
}

func (f *fakeAPI) Insert(ctx context.Context, listing *models.Listing) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, listing)
	return listing.OfferID, nil
}

func (f *fakeAPI) BatchInsert(ctx context.Context, entries []models.BatchEntry) ([]models.BatchEntryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls = append(f.batchCalls, entries)
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	results := make([]models.BatchEntryResult, 0, len(entries))
	for _, entry := range entries {
		result := models.BatchEntryResult{BatchID: entry.BatchID, OK: true}
		if entry.Listing != nil {
			result.OfferID = entry.Listing.OfferID
		}
		if msg, ok := f.failBatchID[entry.BatchID]; ok {
			result.OK = false
			result.Error = msg
		}
		results = append(results, result)
	}
	return results, nil
}

func (f *fakeAPI) Delete(ctx context.Context, offerID, country string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, offerID)
	return nil
}

func (f *fakeAPI) List(ctx context.Context) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings, nil
}

func (f *fakeAPI) insertedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

// fakeRepo - тестовый двойник репозитория каталога
type fakeRepo struct {
	mu sync.Mutex

	products map[string]*models.Product
	active   map[string]bool
	listErr  error
}

func newFakeRepo(products ...*models.Product) *fakeRepo {
	repo := &fakeRepo{
		products: make(map[string]*models.Product),
		active:   make(map[string]bool),
	}
	for _, product := range products {
		repo.products[product.SKU] = product
		repo.active[product.SKU] = product.Active
	}
	return repo
}

func (r *fakeRepo) GetProduct(ctx context.Context, sku string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[sku], nil
}

func (r *fakeRepo) ListProducts(ctx context.Context, activeOnly bool) ([]*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}

	var products []*models.Product
	for _, product := range r.products {
		if activeOnly && !r.active[product.SKU] {
			continue
		}
		products = append(products, product)
	}
	return products, nil
}

func (r *fakeRepo) SaveProduct(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.SKU] = product
	r.active[product.SKU] = product.Active
	return nil
}

func (r *fakeRepo) SetActive(ctx context.Context, sku string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[sku]; !ok {
		return errors.New("product not found")
	}
	r.active[sku] = active
	return nil
}

func (r *fakeRepo) SaveRegionalPrices(ctx context.Context, sku string, prices map[string]models.RegionalPrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[sku]
	if !ok {
		return errors.New("product not found")
	}
	product.RegionalPrices = prices
	return nil
}

// nopLogger - логгер-заглушка для тестов
type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func (nopLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {}
func (nopLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {}

func (l nopLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort       { return l }
func (l nopLogger) WithField(key string, value interface{}) interfaces.LoggerPort        { return l }
func (nopLogger) Sync() error                                                            { return nil }

// testMarkets - конфигурация рынков для тестов
func testMarkets() map[string]models.MarketConfig {
	return map[string]models.MarketConfig{
		"US": {
			Code:         "US",
			Currency:     "USD",
			Multiplier:   decimal.NewFromFloat(1.0),
			ShippingCost: decimal.NewFromFloat(4.99),
			Enabled:      true,
		},
		"GB": {
			Code:         "GB",
			Currency:     "GBP",
			Multiplier:   decimal.NewFromFloat(0.8),
			ShippingCost: decimal.NewFromFloat(3.50),
			Enabled:      true,
		},
		"DE": {
			Code:         "DE",
			Currency:     "EUR",
			Multiplier:   decimal.NewFromFloat(0.9),
			UseLiveRates: true,
			ShippingCost: decimal.NewFromFloat(5.00),
			Enabled:      false,
		},
	}
}

func testProduct(sku string, price float64) *models.Product {
	return &models.Product{
		SKU:       sku,
		Name:      "Test product " + sku,
		BasePrice: decimal.NewFromFloat(price),
		Slug:      "prod-" + sku,
		Active:    true,
	}
}
