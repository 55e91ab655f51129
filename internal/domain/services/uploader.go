package services

import (
	"context"
	"fmt"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultChunkSize - предельный размер одного пакетного вызова
// удалённого сервиса
const DefaultChunkSize = 5000

var (
	uploadedListings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sync_uploaded_listings_total",
		Help: "Количество успешно загруженных объявлений",
	})
	failedListings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sync_failed_listings_total",
		Help: "Количество объявлений, отклоненных при загрузке",
	})
	uploadChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sync_upload_chunks_total",
		Help: "Количество выполненных пакетных вызовов",
	})
)

// CatalogAPI определяет операции удалённого сервиса объявлений,
// используемые движком синхронизации
type CatalogAPI interface {
	// Insert отправляет одно объявление (upsert по offerId)
	Insert(ctx context.Context, listing *models.Listing) (string, error)

	// BatchInsert отправляет пакет объявлений одним вызовом
	BatchInsert(ctx context.Context, entries []models.BatchEntry) ([]models.BatchEntryResult, error)

	// Delete удаляет объявление; "item not found" считается успехом
	Delete(ctx context.Context, offerID, country string) error

	// List возвращает все объявления аккаунта
	List(ctx context.Context) ([]models.Listing, error)
}

// BatchUploader загружает объявления на удалённый сервис порциями.
// Загрузчик не делает повторов: решение о повторной отправке
// принимает вызывающая сторона по списку ошибок.
type BatchUploader struct {
	api       CatalogAPI
	chunkSize int
	logger    interfaces.LoggerPort
}

// NewBatchUploader создает новый пакетный загрузчик.
// chunkSize <= 0 заменяется значением по умолчанию.
func NewBatchUploader(api CatalogAPI, chunkSize int, logger interfaces.LoggerPort) *BatchUploader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &BatchUploader{api: api, chunkSize: chunkSize, logger: logger}
}

// Push загружает объявления порциями не больше chunkSize.
// Идентификаторы позиций сквозные по всей загрузке, а не по порции.
// Отказ транспорта проваливает порцию целиком одной агрегированной
// ошибкой; остальные порции продолжают обрабатываться.
func (u *BatchUploader) Push(ctx context.Context, listings []*models.Listing) (int, int, []models.UploadError) {
	var (
		success int
		failed  int
		errs    []models.UploadError
	)

	for offset := 0; offset < len(listings); offset += u.chunkSize {
		end := offset + u.chunkSize
		if end > len(listings) {
			end = len(listings)
		}
		chunk := listings[offset:end]

		entries := make([]models.BatchEntry, 0, len(chunk))
		for i, listing := range chunk {
			entries = append(entries, models.BatchEntry{
				BatchID: int64(offset + i),
				Listing: listing,
			})
		}

		uploadChunks.Inc()

		results, err := u.api.BatchInsert(ctx, entries)
		if err != nil {
			// Отказ всего вызова: каждая позиция порции считается
			// неудачной, в списке ошибок одна агрегированная запись
			failed += len(chunk)
			failedListings.Add(float64(len(chunk)))
			errs = append(errs, models.UploadError{
				BatchID: -1,
				Message: fmt.Sprintf("chunk %d-%d: %v", offset, end-1, err),
			})
			u.logger.Error("пакетный вызов завершился ошибкой",
				interfaces.LogField{Key: "offset", Value: offset},
				interfaces.LogField{Key: "size", Value: len(chunk)},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			continue
		}

		for _, result := range results {
			if result.OK {
				success++
				uploadedListings.Inc()
				continue
			}
			failed++
			failedListings.Inc()
			errs = append(errs, models.UploadError{
				BatchID: result.BatchID,
				OfferID: result.OfferID,
				Message: result.Error,
			})
		}
	}

	return success, failed, errs
}
