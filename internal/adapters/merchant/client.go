package merchant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
)

// Config содержит настройки клиента удалённого сервиса объявлений
type Config struct {
	MerchantID string
	BaseURL    string
	Token      string
	// DataSourceID нужен новому поколению API; для старого остаётся пустым
	DataSourceID string
	Timeout      time.Duration
	PageSize     int
}

// Client - HTTP-клиент удалённого сервиса объявлений.
// Вставка трактуется сервисом как upsert по offerId, удаление идемпотентно.
type Client struct {
	merchantID   string
	baseURL      string
	token        string
	dataSourceID string
	pageSize     int
	httpClient   *http.Client
	logger       interfaces.LoggerPort
}

// NewClient создает новый клиент удалённого сервиса
func NewClient(cfg Config, log interfaces.LoggerPort) (*Client, error) {
	if cfg.MerchantID == "" {
		return nil, utils.ErrMerchantID
	}
	if cfg.Token == "" {
		return nil, utils.ErrMerchantCredential
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 250
	}

	return &Client{
		merchantID:   cfg.MerchantID,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		dataSourceID: cfg.DataSourceID,
		pageSize:     pageSize,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       log,
	}, nil
}

// apiError представляет тело ошибки удалённого сервиса
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeError извлекает сообщение об ошибке из тела ответа
func decodeError(status int, body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return fmt.Sprintf("unexpected status %d", status)
}

// do выполняет HTTP-запрос с авторизацией и JSON-телом
func (c *Client) do(ctx context.Context, method, requestURL string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// productsURL собирает URL коллекции объявлений продавца
func (c *Client) productsURL() string {
	u := fmt.Sprintf("%s/content/v2.1/%s/products", c.baseURL, c.merchantID)
	if c.dataSourceID != "" {
		u += "?dataSource=" + url.QueryEscape(c.dataSourceID)
	}
	return u
}

// Insert отправляет одно объявление; сервис выполняет upsert по offerId.
// Возвращает идентификатор, присвоенный сервисом.
func (c *Client) Insert(ctx context.Context, listing *models.Listing) (string, error) {
	status, body, err := c.do(ctx, http.MethodPost, c.productsURL(), listing)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", listing.OfferID, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("insert %s: %s", listing.OfferID, decodeError(status, body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.ID == "" {
		// Старое поколение API может не возвращать id в теле
		return listing.OfferID, nil
	}
	return result.ID, nil
}

// batchRequestEntry представляет одну позицию пакетного запроса
type batchRequestEntry struct {
	BatchID    int64           `json:"batchId"`
	MerchantID string          `json:"merchantId"`
	Method     string          `json:"method"`
	Product    *models.Listing `json:"product"`
}

// batchResponseEntry представляет один результат пакетного запроса
type batchResponseEntry struct {
	BatchID int64           `json:"batchId"`
	Product *models.Listing `json:"product,omitempty"`
	Errors  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// BatchInsert отправляет пакет объявлений одним вызовом и возвращает
// поэлементные исходы в порядке позиций запроса
func (c *Client) BatchInsert(ctx context.Context, entries []models.BatchEntry) ([]models.BatchEntryResult, error) {
	reqEntries := make([]batchRequestEntry, 0, len(entries))
	for _, entry := range entries {
		reqEntries = append(reqEntries, batchRequestEntry{
			BatchID:    entry.BatchID,
			MerchantID: c.merchantID,
			Method:     "insert",
			Product:    entry.Listing,
		})
	}

	requestURL := fmt.Sprintf("%s/content/v2.1/products/batch", c.baseURL)
	status, body, err := c.do(ctx, http.MethodPost, requestURL, map[string]interface{}{
		"entries": reqEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("batch insert: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("batch insert: %s", decodeError(status, body))
	}

	var response struct {
		Entries []batchResponseEntry `json:"entries"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("batch insert: failed to decode response: %w", err)
	}

	offerByBatchID := make(map[int64]string, len(entries))
	for _, entry := range entries {
		if entry.Listing != nil {
			offerByBatchID[entry.BatchID] = entry.Listing.OfferID
		}
	}

	results := make([]models.BatchEntryResult, 0, len(response.Entries))
	for _, entry := range response.Entries {
		result := models.BatchEntryResult{
			BatchID: entry.BatchID,
			OfferID: offerByBatchID[entry.BatchID],
		}
		if entry.Errors != nil {
			result.OK = false
			result.Error = entry.Errors.Message
		} else {
			result.OK = true
		}
		results = append(results, result)
	}

	return results, nil
}

// Delete удаляет объявление с рынка. Удаление идемпотентно:
// "item not found" считается успехом.
func (c *Client) Delete(ctx context.Context, offerID, country string) error {
	// Полный идентификатор формата online:en:US:PRD-00001-US
	productID := fmt.Sprintf("online:en:%s:%s", country, offerID)
	requestURL := fmt.Sprintf("%s/content/v2.1/%s/products/%s",
		c.baseURL, c.merchantID, url.PathEscape(productID))

	status, body, err := c.do(ctx, http.MethodDelete, requestURL, nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", offerID, err)
	}
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotFound {
		return nil // Уже удалено
	}

	msg := decodeError(status, body)
	if strings.Contains(strings.ToLower(msg), "item not found") {
		return nil
	}

	return fmt.Errorf("delete %s: %s", offerID, msg)
}

// List возвращает все объявления аккаунта, следуя постраничным токенам
func (c *Client) List(ctx context.Context) ([]models.Listing, error) {
	var listings []models.Listing
	pageToken := ""

	for {
		requestURL := fmt.Sprintf("%s/content/v2.1/%s/products?maxResults=%d",
			c.baseURL, c.merchantID, c.pageSize)
		if pageToken != "" {
			requestURL += "&pageToken=" + url.QueryEscape(pageToken)
		}

		status, body, err := c.do(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("list products: %s", decodeError(status, body))
		}

		var page struct {
			Resources     []models.Listing `json:"resources"`
			NextPageToken string           `json:"nextPageToken"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("list products: failed to decode response: %w", err)
		}

		listings = append(listings, page.Resources...)

		if page.NextPageToken == "" {
			return listings, nil
		}
		pageToken = page.NextPageToken
	}
}
