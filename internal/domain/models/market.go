package models

import "github.com/shopspring/decimal"

// MarketConfig представляет конфигурацию одного целевого рынка.
// Рынок с Enabled=true обязан иметь разрешимый множитель (статический
// или из таблицы живых курсов) до форматирования любого товара.
type MarketConfig struct {
	Code         string          `json:"code"`     // ISO-код страны, например "US"
	Currency     string          `json:"currency"` // ISO-код валюты, например "USD"
	Multiplier   decimal.Decimal `json:"multiplier"`
	UseLiveRates bool            `json:"use_live_rates"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Enabled      bool            `json:"enabled"`
	// DataSourceID требуется для нового поколения API удалённого сервиса
	DataSourceID string `json:"data_source_id,omitempty"`
}
