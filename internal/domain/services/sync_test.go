package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/shopspring/decimal"
)

// fakeCache - тестовый двойник кэша
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	value, ok := c.store[key]
	if !ok {
		return nil, utils.ErrCacheMiss
	}
	return value, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.store[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) DeleteByPattern(ctx context.Context, pattern string) error { return nil }
func (c *fakeCache) Close() error                                              { return nil }

func newTestSyncService(repo *fakeRepo, api *fakeAPI, cache *fakeCache) *SyncService {
	calculator := NewPriceCalculator(testMarkets())
	formatter := NewFormatter("https://store.example.org")
	uploader := NewBatchUploader(api, 5, nopLogger{})

	var cachePort interfaces.CachePort
	if cache != nil {
		cachePort = cache
	}
	return NewSyncService(repo, api, uploader, formatter, calculator, nil, cachePort, nil, nopLogger{})
}

func TestSyncCatalogPushesAllEnabledMarkets(t *testing.T) {
	repo := newFakeRepo(
		testProduct("A", 10),
		testProduct("B", 20),
	)
	api := &fakeAPI{}
	service := newTestSyncService(repo, api, nil)

	result, err := service.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 товара x 2 включенных рынка
	if result.Listings != 4 {
		t.Errorf("expected 4 listings, got %d", result.Listings)
	}
	if result.Success != 4 || result.Failed != 0 {
		t.Errorf("expected 4/0, got %d/%d", result.Success, result.Failed)
	}
}

func TestPushProduct(t *testing.T) {
	repo := newFakeRepo(testProduct("A", 10))
	api := &fakeAPI{}
	service := newTestSyncService(repo, api, nil)

	offerID, err := service.PushProduct(context.Background(), "A", "GB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offerID != "A-GB" {
		t.Errorf("expected offer A-GB, got %s", offerID)
	}
	if api.insertedCount() != 1 {
		t.Fatalf("expected one insert, got %d", api.insertedCount())
	}
	// 10 * 0.8
	if api.inserted[0].Price.Value != "8.00" {
		t.Errorf("expected regional price 8.00, got %s", api.inserted[0].Price.Value)
	}
}

func TestPushProductErrors(t *testing.T) {
	repo := newFakeRepo(testProduct("A", 10))
	service := newTestSyncService(repo, &fakeAPI{}, nil)

	if _, err := service.PushProduct(context.Background(), "MISSING", "US"); !errors.Is(err, utils.ErrMissingSKU) {
		t.Errorf("expected ErrMissingSKU for unknown product, got %v", err)
	}
	if _, err := service.PushProduct(context.Background(), "A", "XX"); !errors.Is(err, utils.ErrUnknownMarket) {
		t.Errorf("expected ErrUnknownMarket, got %v", err)
	}
	if _, err := service.PushProduct(context.Background(), "A", "DE"); !errors.Is(err, utils.ErrMarketDisabled) {
		t.Errorf("expected ErrMarketDisabled, got %v", err)
	}
}

func TestRecomputePrices(t *testing.T) {
	repo := newFakeRepo(
		testProduct("A", 10),
		testProduct("B", 20),
	)
	service := newTestSyncService(repo, &fakeAPI{}, nil)

	updated, err := service.RecomputePrices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 2 {
		t.Errorf("expected 2 products updated, got %d", updated)
	}

	prices := repo.products["A"].RegionalPrices
	if len(prices) != 2 {
		t.Fatalf("expected prices for 2 enabled markets, got %d", len(prices))
	}
	if !prices["GB"].Price.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected GB price 8, got %s", prices["GB"].Price)
	}
}

func TestListRemoteUsesCache(t *testing.T) {
	api := &fakeAPI{listings: []models.Listing{{OfferID: "A-US"}}}
	cache := newFakeCache()
	service := newTestSyncService(newFakeRepo(), api, cache)

	first, err := service.ListRemote(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(first))
	}
	if cache.sets != 1 {
		t.Errorf("expected snapshot cached once, got %d sets", cache.sets)
	}

	// Второй вызов читает из кэша, не трогая удалённый сервис
	api.mu.Lock()
	api.listErr = errors.New("should not be called")
	api.mu.Unlock()

	second, err := service.ListRemote(context.Background())
	if err != nil {
		t.Fatalf("expected cache hit, got %v", err)
	}
	if len(second) != 1 || second[0].OfferID != "A-US" {
		t.Errorf("unexpected cached result: %+v", second)
	}
}

func TestPushProductInvalidatesRemoteCache(t *testing.T) {
	repo := newFakeRepo(testProduct("A", 10))
	api := &fakeAPI{listings: []models.Listing{{OfferID: "A-US"}}}
	cache := newFakeCache()
	service := newTestSyncService(repo, api, cache)

	if _, err := service.ListRemote(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.store) != 1 {
		t.Fatalf("expected cached snapshot, got %d entries", len(cache.store))
	}

	if _, err := service.PushProduct(context.Background(), "A", "US"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cache.store) != 0 {
		t.Error("push must invalidate the cached remote snapshot")
	}
}
