package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/shopspring/decimal"
)

func newTestWatchdog(repo *fakeRepo, api *fakeAPI) *PriceWatchdog {
	calculator := NewPriceCalculator(testMarkets())
	formatter := NewFormatter("https://store.example.org")
	return NewPriceWatchdog(repo, api, formatter, calculator, nil, nil, nopLogger{}, "US", time.Minute)
}

func TestWatchdogSeedsWithoutPushing(t *testing.T) {
	repo := newFakeRepo(
		testProduct("A", 100),
		testProduct("B", 50),
	)
	api := &fakeAPI{}
	watchdog := newTestWatchdog(repo, api)

	// Первый цикл только запоминает цены
	watchdog.Tick(context.Background())

	if api.insertedCount() != 0 {
		t.Fatalf("first observation must not push, got %d inserts", api.insertedCount())
	}
}

func TestWatchdogPushesOnDrift(t *testing.T) {
	product := testProduct("A", 100)
	repo := newFakeRepo(product)
	api := &fakeAPI{}
	watchdog := newTestWatchdog(repo, api)

	watchdog.Tick(context.Background())

	// Цена изменилась между циклами
	product.BasePrice = decimal.NewFromInt(120)
	watchdog.Tick(context.Background())

	if api.insertedCount() != 1 {
		t.Fatalf("expected exactly one push, got %d", api.insertedCount())
	}
	listing := api.inserted[0]
	if listing.OfferID != "A-US" {
		t.Errorf("expected offer A-US, got %s", listing.OfferID)
	}
	if listing.Price.Value != "120.00" {
		t.Errorf("expected recomputed price 120.00, got %s", listing.Price.Value)
	}

	// Без нового изменения повторной отправки нет
	watchdog.Tick(context.Background())
	if api.insertedCount() != 1 {
		t.Errorf("unchanged price must not push again, got %d", api.insertedCount())
	}
}

func TestWatchdogRetriesAfterFailedPush(t *testing.T) {
	product := testProduct("A", 100)
	repo := newFakeRepo(product)
	api := &fakeAPI{insertErr: errors.New("service unavailable")}
	watchdog := newTestWatchdog(repo, api)

	watchdog.Tick(context.Background())

	product.BasePrice = decimal.NewFromInt(120)
	watchdog.Tick(context.Background())

	if api.insertedCount() != 0 {
		t.Fatalf("failed insert must not count as pushed, got %d", api.insertedCount())
	}

	// Кэш не обновился, следующий цикл повторяет отправку
	api.mu.Lock()
	api.insertErr = nil
	api.mu.Unlock()

	watchdog.Tick(context.Background())
	if api.insertedCount() != 1 {
		t.Fatalf("expected retry on next tick, got %d pushes", api.insertedCount())
	}
}

func TestWatchdogPushesSecondaryMarketsWithRecordedPrices(t *testing.T) {
	product := testProduct("A", 100)
	product.RegionalPrices = map[string]models.RegionalPrice{
		"GB": {Currency: "GBP"},
		"DE": {Currency: "EUR"}, // рынок выключен, отправки не будет
	}
	repo := newFakeRepo(product)
	api := &fakeAPI{}
	watchdog := newTestWatchdog(repo, api)

	watchdog.Tick(context.Background())
	product.BasePrice = decimal.NewFromInt(120)
	watchdog.Tick(context.Background())

	if api.insertedCount() != 2 {
		t.Fatalf("expected pushes for primary and GB, got %d", api.insertedCount())
	}

	offers := map[string]bool{}
	for _, listing := range api.inserted {
		offers[listing.OfferID] = true
	}
	if !offers["A-US"] || !offers["A-GB"] {
		t.Errorf("unexpected offers pushed: %v", offers)
	}
}

func TestWatchdogContinuesAfterPerSKUError(t *testing.T) {
	broken := testProduct("BAD", 100)
	broken.Name = "" // форматтер вернет ошибку
	healthy := testProduct("OK", 100)

	repo := newFakeRepo(broken, healthy)
	api := &fakeAPI{}
	watchdog := newTestWatchdog(repo, api)

	watchdog.Tick(context.Background())

	broken.BasePrice = decimal.NewFromInt(120)
	healthy.BasePrice = decimal.NewFromInt(130)
	watchdog.Tick(context.Background())

	// Ошибка BAD не мешает отправке OK
	if api.insertedCount() != 1 {
		t.Fatalf("expected one push despite the broken product, got %d", api.insertedCount())
	}
	if api.inserted[0].OfferID != "OK-US" {
		t.Errorf("expected OK-US, got %s", api.inserted[0].OfferID)
	}
}

func TestWatchdogSkipsInactiveProducts(t *testing.T) {
	product := testProduct("A", 100)
	product.Active = false
	repo := newFakeRepo(product)
	api := &fakeAPI{}
	watchdog := newTestWatchdog(repo, api)

	watchdog.Tick(context.Background())
	product.BasePrice = decimal.NewFromInt(120)
	watchdog.Tick(context.Background())

	if api.insertedCount() != 0 {
		t.Errorf("inactive products must be ignored, got %d pushes", api.insertedCount())
	}
}

func TestPriceCacheObserve(t *testing.T) {
	cache := NewPriceCache()

	if got := cache.Observe("A", decimal.NewFromInt(100)); got != ObservationSeeded {
		t.Fatalf("expected seeded, got %v", got)
	}
	if got := cache.Observe("A", decimal.NewFromInt(100)); got != ObservationUnchanged {
		t.Fatalf("expected unchanged, got %v", got)
	}
	if got := cache.Observe("A", decimal.NewFromInt(120)); got != ObservationChanged {
		t.Fatalf("expected changed, got %v", got)
	}

	// Observe не обновляет запись при расхождении
	if got := cache.Observe("A", decimal.NewFromInt(120)); got != ObservationChanged {
		t.Fatalf("expected changed again before Update, got %v", got)
	}

	cache.Update("A", decimal.NewFromInt(120))
	if got := cache.Observe("A", decimal.NewFromInt(120)); got != ObservationUnchanged {
		t.Fatalf("expected unchanged after Update, got %v", got)
	}
}

func TestWatchdogRunStopsOnCancel(t *testing.T) {
	repo := newFakeRepo(testProduct("A", 100))
	watchdog := newTestWatchdog(repo, &fakeAPI{})
	watchdog.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		watchdog.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop after context cancellation")
	}
}
