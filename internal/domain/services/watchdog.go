package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/athebyme/merchant-sync/internal/adapters/messaging"
	"github.com/athebyme/merchant-sync/internal/adapters/storage"
	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	driftDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sync_price_drift_total",
		Help: "Количество обнаруженных расхождений цен",
	})
	driftPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sync_price_drift_pushed_total",
		Help: "Количество успешно отправленных обновлений цен",
	})
	watchdogTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sync_watchdog_ticks_total",
		Help: "Количество выполненных циклов опроса каталога",
	})
	watchdogTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "merchant_sync_watchdog_tick_duration_seconds",
		Help:    "Длительность одного цикла опроса каталога",
		Buckets: prometheus.DefBuckets,
	})
)

// Observation представляет исход сравнения цены с последней
// замеченной
type Observation int

const (
	// ObservationSeeded - первая встреча SKU, база для будущих сравнений
	ObservationSeeded Observation = iota
	// ObservationUnchanged - цена совпала с последней замеченной
	ObservationUnchanged
	// ObservationChanged - цена разошлась с последней замеченной
	ObservationChanged
)

// PriceCache хранит последнюю замеченную базовую цену каждого SKU.
// Первая встреча SKU только заводит запись, без отправки: иначе
// каждый перезапуск сторожа выливался бы в полную перезаливку.
type PriceCache struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

// NewPriceCache создает новый кэш замеченных цен
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]decimal.Decimal)}
}

// Observe сравнивает цену с последней замеченной.
// Первая встреча SKU записывает цену и возвращает ObservationSeeded;
// при расхождении запись НЕ обновляется - это делает Update после
// успешной отправки, чтобы неудачная отправка повторилась на
// следующем цикле.
func (c *PriceCache) Observe(sku string, price decimal.Decimal) Observation {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.prices[sku]
	if !ok {
		c.prices[sku] = price
		return ObservationSeeded
	}
	if last.Equal(price) {
		return ObservationUnchanged
	}
	return ObservationChanged
}

// Update записывает цену как последнюю замеченную
func (c *PriceCache) Update(sku string, price decimal.Decimal) {
	c.mu.Lock()
	c.prices[sku] = price
	c.mu.Unlock()
}

// RateSource поставляет живые курсы валют для пересчета цен.
// Пустая таблица означает откат на статические множители рынков.
type RateSource interface {
	Rates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// PriceWatchdog периодически опрашивает каталог и отправляет
// обновленные объявления для товаров с изменившейся базовой ценой
type PriceWatchdog struct {
	repo          storage.CatalogRepositoryInterface
	api           CatalogAPI
	formatter     *Formatter
	calculator    *PriceCalculator
	rates         RateSource
	broker        interfaces.MessagingPort
	logger        interfaces.LoggerPort
	cache         *PriceCache
	primaryMarket string
	interval      time.Duration
}

// NewPriceWatchdog создает новый сторожевой цикл цен.
// rates и broker могут быть nil.
func NewPriceWatchdog(
	repo storage.CatalogRepositoryInterface,
	api CatalogAPI,
	formatter *Formatter,
	calculator *PriceCalculator,
	rates RateSource,
	broker interfaces.MessagingPort,
	logger interfaces.LoggerPort,
	primaryMarket string,
	interval time.Duration,
) *PriceWatchdog {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PriceWatchdog{
		repo:          repo,
		api:           api,
		formatter:     formatter,
		calculator:    calculator,
		rates:         rates,
		broker:        broker,
		logger:        logger,
		cache:         NewPriceCache(),
		primaryMarket: primaryMarket,
		interval:      interval,
	}
}

// Run запускает цикл опроса до отмены контекста
func (w *PriceWatchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("сторожевой цикл цен запущен",
		interfaces.LogField{Key: "interval", Value: w.interval.String()},
		interfaces.LogField{Key: "primary_market", Value: w.primaryMarket},
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("сторожевой цикл цен остановлен")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick выполняет один цикл опроса: сравнивает базовые цены активных
// товаров с последними замеченными и отправляет объявления для
// разошедшихся. Ошибка по одному SKU не прерывает цикл.
func (w *PriceWatchdog) Tick(ctx context.Context) {
	watchdogTicks.Inc()
	start := time.Now()
	defer func() {
		watchdogTickDuration.Observe(time.Since(start).Seconds())
	}()

	products, err := w.repo.ListProducts(ctx, true)
	if err != nil {
		w.logger.Error("не удалось получить снимок каталога",
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return
	}

	var liveRates map[string]decimal.Decimal
	if w.rates != nil {
		liveRates, err = w.rates.Rates(ctx)
		if err != nil {
			// Откат на статические множители
			w.logger.Warn("живые курсы недоступны",
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			liveRates = nil
		}
	}

	for _, product := range products {
		switch w.cache.Observe(product.SKU, product.BasePrice) {
		case ObservationSeeded, ObservationUnchanged:
			continue
		case ObservationChanged:
			driftDetected.Inc()
			w.pushDrift(ctx, product, liveRates)
		}
	}
}

// pushDrift отправляет обновленные объявления: основной рынок плюс
// включенные рынки, для которых у товара записана региональная цена.
// Кэш обновляется только после успешной отправки на основной рынок:
// при неудаче расхождение обнаружится снова на следующем цикле.
func (w *PriceWatchdog) pushDrift(ctx context.Context, product *models.Product, liveRates map[string]decimal.Decimal) {
	log := w.logger.WithField("sku", product.SKU)

	primary, err := w.calculator.Market(w.primaryMarket)
	if err != nil {
		log.Error("основной рынок не сконфигурирован",
			interfaces.LogField{Key: "market", Value: w.primaryMarket},
		)
		return
	}

	listing, err := w.pushMarket(ctx, product, primary, liveRates)
	if err != nil {
		log.Error("не удалось отправить обновленное объявление",
			interfaces.LogField{Key: "market", Value: primary.Code},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return
	}

	w.cache.Update(product.SKU, product.BasePrice)
	driftPushed.Inc()

	log.Info("отправлено обновление цены",
		interfaces.LogField{Key: "offer_id", Value: listing.OfferID},
		interfaces.LogField{Key: "price", Value: listing.Price.Value},
	)

	w.publishDriftEvent(product.SKU, listing)

	// Остальные рынки с записанной региональной ценой: их неудачи
	// не откатывают кэш, основной рынок уже обновлен
	for code := range product.RegionalPrices {
		if code == primary.Code {
			continue
		}
		market, err := w.calculator.Market(code)
		if err != nil || !market.Enabled {
			continue
		}
		if _, err := w.pushMarket(ctx, product, market, liveRates); err != nil {
			log.Warn("не удалось отправить обновление на вторичный рынок",
				interfaces.LogField{Key: "market", Value: code},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}
}

// pushMarket пересчитывает цену и отправляет объявление одного рынка
func (w *PriceWatchdog) pushMarket(ctx context.Context, product *models.Product, market models.MarketConfig, liveRates map[string]decimal.Decimal) (*models.Listing, error) {
	price, err := w.calculator.RegionalPrice(product.BasePrice, market, liveRates)
	if err != nil {
		return nil, err
	}

	listing, err := w.formatter.Format(product, market, price)
	if err != nil {
		return nil, err
	}

	if _, err := w.api.Insert(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// publishDriftEvent публикует событие обнаруженного расхождения цены
func (w *PriceWatchdog) publishDriftEvent(sku string, listing *models.Listing) {
	if w.broker == nil {
		return
	}

	data, err := json.Marshal(map[string]interface{}{
		"event":    messaging.PriceDriftDetectedEvent,
		"sku":      sku,
		"offer_id": listing.OfferID,
		"price":    listing.Price.Value,
		"currency": listing.Price.Currency,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	if err := w.broker.PublishWithKey(context.Background(), messaging.SyncEventsTopic, sku, data); err != nil {
		w.logger.Warn("не удалось опубликовать событие расхождения цены",
			interfaces.LogField{Key: "sku", Value: sku},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}
