package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product представляет товар локального каталога.
// Каталог является источником истины: удалённый сервис объявлений
// получает только производные от него данные.
type Product struct {
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	ShortDescription string          `json:"short_description,omitempty"`
	Description      string          `json:"description,omitempty"`
	// BasePrice хранит базовую цену в исходной валюте каталога
	BasePrice        decimal.Decimal          `json:"base_price"`
	Variants         []Variant                `json:"variants,omitempty"`
	Image            string                   `json:"image,omitempty"`
	AdditionalImages []string                 `json:"additional_images,omitempty"`
	Brand            string                   `json:"brand,omitempty"`
	Category         string                   `json:"category,omitempty"`
	Slug             string                   `json:"slug,omitempty"`
	GTIN             string                   `json:"gtin,omitempty"`
	Active           bool                     `json:"active"`
	// RegionalPrices - производные данные: пересчитываются при изменении
	// базовой цены или конфигурации рынков, никогда не правятся вручную
	RegionalPrices map[string]RegionalPrice `json:"regional_prices,omitempty"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// Variant представляет вариант товара (фасовку)
type Variant struct {
	Label    string  `json:"label"`               // свободный текст, например "250 ml" или "5kg"
	WeightKg float64 `json:"weight_kg,omitempty"` // структурированный вес в килограммах, 0 = не задан
	Unit     string  `json:"unit,omitempty"`
}

// RegionalPrice представляет рассчитанную цену товара для одного рынка
type RegionalPrice struct {
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
}
