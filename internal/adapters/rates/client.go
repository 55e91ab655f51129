package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/shopspring/decimal"
)

// cacheKey - ключ кэша таблицы курсов
const cacheKey = "merchant-sync:rates"

// Client получает живые курсы валют у внешнего провайдера.
// Таблица кэшируется: провайдеры обновляют курсы не чаще раза в час,
// а сторожевой цикл опрашивает каталог намного чаще.
type Client struct {
	baseURL      string
	baseCurrency string
	httpClient   *http.Client
	cache        interfaces.CachePort
	cacheTTL     time.Duration
	logger       interfaces.LoggerPort
}

// NewClient создает новый клиент курсов валют.
// cache может быть nil, тогда каждый вызов идет к провайдеру.
func NewClient(baseURL, baseCurrency string, cacheTTL time.Duration, cache interfaces.CachePort, logger interfaces.LoggerPort) *Client {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Client{
		baseURL:      baseURL,
		baseCurrency: baseCurrency,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// Rates возвращает таблицу курсов валюты каталога к валютам рынков
func (c *Client) Rates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
			var rates map[string]decimal.Decimal
			if err := json.Unmarshal(cached, &rates); err == nil {
				return rates, nil
			}
		} else if !errors.Is(err, utils.ErrCacheMiss) {
			c.logger.Warn("ошибка чтения кэша курсов",
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}

	requestURL := fmt.Sprintf("%s/latest?base=%s", c.baseURL, c.baseCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates provider returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}

	if c.cache != nil {
		if data, err := json.Marshal(payload.Rates); err == nil {
			if err := c.cache.Set(ctx, cacheKey, data, c.cacheTTL); err != nil {
				c.logger.Warn("ошибка записи кэша курсов",
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
			}
		}
	}

	return payload.Rates, nil
}
