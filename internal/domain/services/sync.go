package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/merchant-sync/internal/adapters/messaging"
	"github.com/athebyme/merchant-sync/internal/adapters/storage"
	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/shopspring/decimal"
)

// remoteListingsCacheKey - ключ кэша снимка удалённых объявлений
const remoteListingsCacheKey = "merchant-sync:remote:listings"

// remoteListingsTTL - время жизни кэшированного снимка
const remoteListingsTTL = 5 * time.Minute

// SyncService связывает каталог, калькулятор цен, форматтер и
// удалённый сервис в операции синхронизации уровня API
type SyncService struct {
	repo       storage.CatalogRepositoryInterface
	api        CatalogAPI
	uploader   *BatchUploader
	formatter  *Formatter
	calculator *PriceCalculator
	rates      RateSource
	cache      interfaces.CachePort
	broker     interfaces.MessagingPort
	logger     interfaces.LoggerPort
}

// NewSyncService создает новый сервис синхронизации.
// rates, cache и broker могут быть nil.
func NewSyncService(
	repo storage.CatalogRepositoryInterface,
	api CatalogAPI,
	uploader *BatchUploader,
	formatter *Formatter,
	calculator *PriceCalculator,
	rates RateSource,
	cache interfaces.CachePort,
	broker interfaces.MessagingPort,
	logger interfaces.LoggerPort,
) *SyncService {
	return &SyncService{
		repo:       repo,
		api:        api,
		uploader:   uploader,
		formatter:  formatter,
		calculator: calculator,
		rates:      rates,
		cache:      cache,
		broker:     broker,
		logger:     logger,
	}
}

// SyncResult представляет итог полной синхронизации каталога
type SyncResult struct {
	Listings int                  `json:"listings"`
	Success  int                  `json:"success"`
	Failed   int                  `json:"failed"`
	Errors   []models.UploadError `json:"errors,omitempty"`
}

// SyncCatalog форматирует все активные товары для всех включенных
// рынков и загружает объявления пакетами
func (s *SyncService) SyncCatalog(ctx context.Context) (*SyncResult, error) {
	products, err := s.repo.ListProducts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	rates := s.fetchRates(ctx)

	var listings []*models.Listing
	for _, product := range products {
		for _, market := range s.calculator.EnabledMarkets() {
			price, err := s.calculator.RegionalPrice(product.BasePrice, market, rates)
			if err != nil {
				return nil, err
			}

			listing, err := s.formatter.Format(product, market, price)
			if err != nil {
				s.logger.Warn("товар пропущен при синхронизации",
					interfaces.LogField{Key: "sku", Value: product.SKU},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
				continue
			}
			listings = append(listings, listing)
		}
	}

	success, failed, errs := s.uploader.Push(ctx, listings)

	s.invalidateRemoteCache(ctx)

	s.logger.InfoWithContext(ctx, "синхронизация каталога завершена",
		interfaces.LogField{Key: "listings", Value: len(listings)},
		interfaces.LogField{Key: "success", Value: success},
		interfaces.LogField{Key: "failed", Value: failed},
	)

	return &SyncResult{
		Listings: len(listings),
		Success:  success,
		Failed:   failed,
		Errors:   errs,
	}, nil
}

// PushProduct отправляет один товар на один рынок.
// Возвращает offerID отправленного объявления.
func (s *SyncService) PushProduct(ctx context.Context, sku, marketCode string) (string, error) {
	product, err := s.repo.GetProduct(ctx, sku)
	if err != nil {
		return "", fmt.Errorf("failed to get product %s: %w", sku, err)
	}
	if product == nil {
		return "", utils.ErrMissingSKU
	}

	market, err := s.calculator.Market(marketCode)
	if err != nil {
		return "", err
	}
	if !market.Enabled {
		return "", utils.ErrMarketDisabled
	}

	price, err := s.calculator.RegionalPrice(product.BasePrice, market, s.fetchRates(ctx))
	if err != nil {
		return "", err
	}

	listing, err := s.formatter.Format(product, market, price)
	if err != nil {
		return "", err
	}

	if _, err := s.api.Insert(ctx, listing); err != nil {
		return "", err
	}

	s.invalidateRemoteCache(ctx)
	s.publishPushedEvent(sku, listing)

	return listing.OfferID, nil
}

// RecomputePrices пересчитывает региональные цены всех товаров
// каталога и сохраняет их. Возвращает количество обновленных товаров.
func (s *SyncService) RecomputePrices(ctx context.Context) (int, error) {
	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to list catalog: %w", err)
	}

	rates := s.fetchRates(ctx)

	updated := 0
	for _, product := range products {
		prices, err := s.calculator.RecomputeAll(product.BasePrice, rates)
		if err != nil {
			return updated, fmt.Errorf("sku %s: %w", product.SKU, err)
		}

		if err := s.repo.SaveRegionalPrices(ctx, product.SKU, prices); err != nil {
			return updated, err
		}
		updated++
	}

	return updated, nil
}

// ListRemote возвращает снимок объявлений удалённого сервиса.
// Снимок кэшируется на короткое время: постраничный обход аккаунта
// дорог, а опрашивающим клиентам свежесть до минут достаточна.
func (s *SyncService) ListRemote(ctx context.Context) ([]models.Listing, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, remoteListingsCacheKey); err == nil {
			var listings []models.Listing
			if err := json.Unmarshal(cached, &listings); err == nil {
				return listings, nil
			}
		} else if !errors.Is(err, utils.ErrCacheMiss) {
			s.logger.Warn("ошибка чтения кэша удалённых объявлений",
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}

	listings, err := s.api.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(listings); err == nil {
			if err := s.cache.Set(ctx, remoteListingsCacheKey, data, remoteListingsTTL); err != nil {
				s.logger.Warn("ошибка записи кэша удалённых объявлений",
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
			}
		}
	}

	return listings, nil
}

// fetchRates возвращает живые курсы либо nil, что означает откат
// на статические множители рынков
func (s *SyncService) fetchRates(ctx context.Context) map[string]decimal.Decimal {
	if s.rates == nil {
		return nil
	}

	rates, err := s.rates.Rates(ctx)
	if err != nil {
		s.logger.Warn("живые курсы недоступны",
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil
	}
	return rates
}

// invalidateRemoteCache сбрасывает кэшированный снимок удалённых
// объявлений после любой записи на удалённый сервис
func (s *SyncService) invalidateRemoteCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, remoteListingsCacheKey); err != nil && !errors.Is(err, utils.ErrCacheMiss) {
		s.logger.Warn("не удалось сбросить кэш удалённых объявлений",
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

// publishPushedEvent публикует событие отправки объявления
func (s *SyncService) publishPushedEvent(sku string, listing *models.Listing) {
	if s.broker == nil {
		return
	}

	data, err := json.Marshal(map[string]interface{}{
		"event":    messaging.ListingPushedEvent,
		"sku":      sku,
		"offer_id": listing.OfferID,
		"market":   listing.TargetCountry,
		"price":    listing.Price.Value,
		"currency": listing.Price.Currency,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	if err := s.broker.PublishWithKey(context.Background(), messaging.SyncEventsTopic, sku, data); err != nil {
		s.logger.Warn("не удалось опубликовать событие отправки объявления",
			interfaces.LogField{Key: "sku", Value: sku},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}
