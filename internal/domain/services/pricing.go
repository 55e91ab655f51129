package services

import (
	"fmt"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/shopspring/decimal"
)

// PriceCalculator вычисляет региональные цены из базовой цены каталога.
// Расчет детерминирован: одна и та же пара (базовая цена, конфигурация
// рынка, таблица курсов) всегда дает один и тот же результат.
type PriceCalculator struct {
	markets map[string]models.MarketConfig
}

// NewPriceCalculator создает новый калькулятор региональных цен
func NewPriceCalculator(markets map[string]models.MarketConfig) *PriceCalculator {
	return &PriceCalculator{markets: markets}
}

// Market возвращает конфигурацию рынка по коду
func (c *PriceCalculator) Market(code string) (models.MarketConfig, error) {
	market, ok := c.markets[code]
	if !ok {
		return models.MarketConfig{}, utils.ErrUnknownMarket
	}
	return market, nil
}

// EnabledMarkets возвращает список включенных рынков
func (c *PriceCalculator) EnabledMarkets() []models.MarketConfig {
	var enabled []models.MarketConfig
	for _, market := range c.markets {
		if market.Enabled {
			enabled = append(enabled, market)
		}
	}
	return enabled
}

// RegionalPrice вычисляет цену товара для одного рынка.
// Живой курс валюты рынка имеет приоритет над статическим множителем.
// Если нет ни того, ни другого - ошибка, цена никогда не обнуляется.
func (c *PriceCalculator) RegionalPrice(base decimal.Decimal, market models.MarketConfig, liveRates map[string]decimal.Decimal) (decimal.Decimal, error) {
	if !market.Enabled {
		return decimal.Zero, utils.ErrMarketDisabled
	}

	multiplier := market.Multiplier
	if market.UseLiveRates {
		if rate, ok := liveRates[market.Currency]; ok && rate.IsPositive() {
			multiplier = rate
		}
	}

	if !multiplier.IsPositive() {
		return decimal.Zero, fmt.Errorf("market %s: %w", market.Code, utils.ErrNoMultiplier)
	}

	return base.Mul(multiplier).Round(2), nil
}

// RecomputeAll пересчитывает региональные цены товара для всех
// включенных рынков. Рынок с неразрешимым множителем приводит к ошибке
// всего пересчета: частично пересчитанный набор цен хуже устаревшего.
func (c *PriceCalculator) RecomputeAll(base decimal.Decimal, liveRates map[string]decimal.Decimal) (map[string]models.RegionalPrice, error) {
	prices := make(map[string]models.RegionalPrice)
	for _, market := range c.markets {
		if !market.Enabled {
			continue
		}

		price, err := c.RegionalPrice(base, market, liveRates)
		if err != nil {
			return nil, err
		}

		prices[market.Code] = models.RegionalPrice{
			Price:        price,
			Currency:     market.Currency,
			ShippingCost: market.ShippingCost,
		}
	}
	return prices, nil
}
