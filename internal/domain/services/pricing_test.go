package services

import (
	"errors"
	"testing"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/shopspring/decimal"
)

func TestRegionalPriceStaticMultiplier(t *testing.T) {
	calc := NewPriceCalculator(testMarkets())
	market, _ := calc.Market("GB")

	price, err := calc.RegionalPrice(decimal.NewFromFloat(10.00), market, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price.StringFixed(2) != "8.00" {
		t.Errorf("expected 8.00, got %s", price.StringFixed(2))
	}
}

func TestRegionalPriceDeterministic(t *testing.T) {
	calc := NewPriceCalculator(testMarkets())
	market, _ := calc.Market("GB")
	base := decimal.NewFromFloat(19.99)

	first, err := calc.RegionalPrice(base, market, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := calc.RegionalPrice(base, market, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !first.Equal(again) {
			t.Fatalf("expected deterministic result, got %s then %s", first, again)
		}
	}
}

func TestRegionalPriceLiveRateOverridesStatic(t *testing.T) {
	markets := testMarkets()
	market := markets["GB"]
	market.UseLiveRates = true
	markets["GB"] = market

	calc := NewPriceCalculator(markets)
	rates := map[string]decimal.Decimal{"GBP": decimal.NewFromFloat(0.75)}

	price, err := calc.RegionalPrice(decimal.NewFromFloat(100), market, rates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price.StringFixed(2) != "75.00" {
		t.Errorf("expected live rate to win: want 75.00, got %s", price.StringFixed(2))
	}
}

func TestRegionalPriceFallsBackToStaticWithoutRate(t *testing.T) {
	markets := testMarkets()
	market := markets["GB"]
	market.UseLiveRates = true
	markets["GB"] = market

	calc := NewPriceCalculator(markets)

	// Таблица курсов пуста, работает статический множитель
	price, err := calc.RegionalPrice(decimal.NewFromFloat(100), market, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price.StringFixed(2) != "80.00" {
		t.Errorf("expected static fallback 80.00, got %s", price.StringFixed(2))
	}
}

func TestRegionalPriceNoMultiplier(t *testing.T) {
	market := models.MarketConfig{
		Code:     "FR",
		Currency: "EUR",
		Enabled:  true,
	}
	calc := NewPriceCalculator(map[string]models.MarketConfig{"FR": market})

	_, err := calc.RegionalPrice(decimal.NewFromFloat(10), market, nil)
	if !errors.Is(err, utils.ErrNoMultiplier) {
		t.Fatalf("expected ErrNoMultiplier, got %v", err)
	}
}

func TestRegionalPriceDisabledMarket(t *testing.T) {
	calc := NewPriceCalculator(testMarkets())
	market, _ := calc.Market("DE")

	_, err := calc.RegionalPrice(decimal.NewFromFloat(10), market, nil)
	if !errors.Is(err, utils.ErrMarketDisabled) {
		t.Fatalf("expected ErrMarketDisabled, got %v", err)
	}
}

func TestRegionalPriceRounding(t *testing.T) {
	calc := NewPriceCalculator(testMarkets())
	market, _ := calc.Market("GB")

	// 3.33 * 0.8 = 2.664 -> 2.66
	price, err := calc.RegionalPrice(decimal.NewFromFloat(3.33), market, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price.StringFixed(2) != "2.66" {
		t.Errorf("expected 2.66, got %s", price.StringFixed(2))
	}
}

func TestMarketUnknownCode(t *testing.T) {
	calc := NewPriceCalculator(testMarkets())

	_, err := calc.Market("XX")
	if !errors.Is(err, utils.ErrUnknownMarket) {
		t.Fatalf("expected ErrUnknownMarket, got %v", err)
	}
}

func TestRecomputeAllSkipsDisabledMarkets(t *testing.T) {
	calc := NewPriceCalculator(testMarkets())

	prices, err := calc.RecomputeAll(decimal.NewFromFloat(10), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(prices) != 2 {
		t.Fatalf("expected prices for 2 enabled markets, got %d", len(prices))
	}
	if _, ok := prices["DE"]; ok {
		t.Error("disabled market must not get a regional price")
	}
	if prices["US"].Currency != "USD" {
		t.Errorf("expected USD for US market, got %s", prices["US"].Currency)
	}
	if prices["GB"].ShippingCost.StringFixed(2) != "3.50" {
		t.Errorf("expected shipping cost 3.50, got %s", prices["GB"].ShippingCost.StringFixed(2))
	}
}
