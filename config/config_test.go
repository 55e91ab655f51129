package config

import (
	"testing"
)

func TestMarketConfigsConversion(t *testing.T) {
	cfg := &Config{
		Markets: map[string]MarketSettings{
			"us": {
				Currency:     "usd",
				Multiplier:   "1.0",
				ShippingCost: "4.99",
				Enabled:      true,
			},
			"GB": {
				Currency:     "GBP",
				Multiplier:   "0.8",
				UseLiveRates: true,
				Enabled:      true,
			},
		},
	}

	markets, err := cfg.MarketConfigs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	us, ok := markets["US"]
	if !ok {
		t.Fatal("market code must be normalized to upper case")
	}
	if us.Currency != "USD" {
		t.Errorf("currency must be normalized: got %s", us.Currency)
	}
	if us.ShippingCost.StringFixed(2) != "4.99" {
		t.Errorf("unexpected shipping cost: %s", us.ShippingCost.StringFixed(2))
	}

	gb := markets["GB"]
	if !gb.UseLiveRates {
		t.Error("use_live_rates flag lost in conversion")
	}
	if !gb.ShippingCost.IsZero() {
		t.Errorf("missing shipping cost must default to zero, got %s", gb.ShippingCost)
	}
}

func TestMarketConfigsInvalidMultiplier(t *testing.T) {
	cfg := &Config{
		Markets: map[string]MarketSettings{
			"US": {Currency: "USD", Multiplier: "not-a-number", Enabled: true},
		},
	}

	if _, err := cfg.MarketConfigs(); err == nil {
		t.Fatal("expected error for invalid multiplier")
	}
}
