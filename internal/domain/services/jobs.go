package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/merchant-sync/internal/adapters/messaging"
	"github.com/athebyme/merchant-sync/internal/adapters/storage"
	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// maxJobErrors ограничивает список сообщений об ошибках в статусе
// задания; остальные ошибки только считаются
const maxJobErrors = 20

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sync_bulk_jobs_started_total",
		Help: "Количество запущенных заданий массового обновления",
	})
	jobsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sync_bulk_jobs_rejected_total",
		Help: "Количество заданий, отклоненных из-за уже идущего задания",
	})
	jobRowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merchant_sync_bulk_rows_total",
		Help: "Количество обработанных строк массового обновления по исходу",
	}, []string{"outcome"})
	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "merchant_sync_bulk_job_duration_seconds",
		Help:    "Длительность задания массового обновления",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// JobManager управляет фоновым заданием массового обновления каталога.
// Одновременно выполняется не больше одного задания: прием нового
// задания - атомарная проверка-и-переход состояния под мьютексом.
type JobManager struct {
	repo       storage.CatalogRepositoryInterface
	api        CatalogAPI
	formatter  *Formatter
	calculator *PriceCalculator
	broker     interfaces.MessagingPort
	logger     interfaces.LoggerPort

	mu     sync.Mutex
	status models.JobStatus
}

// NewJobManager создает новый менеджер заданий массового обновления
func NewJobManager(
	repo storage.CatalogRepositoryInterface,
	api CatalogAPI,
	formatter *Formatter,
	calculator *PriceCalculator,
	broker interfaces.MessagingPort,
	logger interfaces.LoggerPort,
) *JobManager {
	return &JobManager{
		repo:       repo,
		api:        api,
		formatter:  formatter,
		calculator: calculator,
		broker:     broker,
		logger:     logger,
		status:     models.JobStatus{State: models.JobStateIdle},
	}
}

// Status возвращает снимок состояния текущего задания.
// Снимок отдаётся по значению и не меняется после возврата.
func (m *JobManager) Status() models.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.status
	snapshot.Errors = append([]string(nil), m.status.Errors...)
	return snapshot
}

// Submit принимает задание массового обновления и запускает обработку
// в фоне. Возвращает идентификатор задания либо ErrJobInProgress,
// если предыдущее задание еще не завершено.
func (m *JobManager) Submit(rows []models.BulkRow) (string, error) {
	if len(rows) == 0 {
		return "", utils.ErrEmptyJob
	}

	m.mu.Lock()
	if m.status.State == models.JobStateStarting || m.status.State == models.JobStateProcessing {
		m.mu.Unlock()
		jobsRejected.Inc()
		return "", utils.ErrJobInProgress
	}

	jobID := uuid.New().String()
	m.status = models.JobStatus{
		ID:        jobID,
		State:     models.JobStateStarting,
		Total:     len(rows),
		StartedAt: time.Now(),
	}
	m.mu.Unlock()

	jobsStarted.Inc()
	m.publishEvent(messaging.JobStartedEvent, jobID, map[string]interface{}{
		"total": len(rows),
	})

	// Обработка идет в фоне с собственным контекстом: отмена
	// HTTP-запроса, принявшего задание, не должна прерывать работу
	go m.run(context.Background(), jobID, rows)

	return jobID, nil
}

// run выполняет задание целиком. Ошибка отдельной строки не
// останавливает задание; фатальна только невозможность получить
// снимок каталога.
func (m *JobManager) run(ctx context.Context, jobID string, rows []models.BulkRow) {
	log := m.logger.WithField("job_id", jobID)
	start := time.Now()
	defer func() {
		jobDuration.Observe(time.Since(start).Seconds())
	}()

	m.setState(models.JobStateProcessing)

	products, err := m.repo.ListProducts(ctx, false)
	if err != nil {
		log.Error("не удалось получить снимок каталога", interfaces.LogField{Key: "error", Value: err.Error()})
		m.finish(models.JobStateError, fmt.Sprintf("catalog snapshot failed: %v", err))
		m.publishEvent(messaging.JobFailedEvent, jobID, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	bySKU := make(map[string]*models.Product, len(products))
	for _, product := range products {
		bySKU[product.SKU] = product
	}

	for _, row := range rows {
		m.setCurrent(row.SKU)

		if err := m.processRow(ctx, bySKU, row); err != nil {
			m.recordFailure(row.SKU, err)
			jobRowsProcessed.WithLabelValues("failed").Inc()
		}

		m.incProcessed()
	}

	status := m.Status()
	log.Info("задание массового обновления завершено",
		interfaces.LogField{Key: "total", Value: status.Total},
		interfaces.LogField{Key: "success", Value: status.Success},
		interfaces.LogField{Key: "failed", Value: status.Failed},
		interfaces.LogField{Key: "skipped", Value: status.Skipped},
	)

	m.finish(models.JobStateCompleted, "")
	m.publishEvent(messaging.JobCompletedEvent, jobID, map[string]interface{}{
		"total":   status.Total,
		"success": status.Success,
		"failed":  status.Failed,
		"skipped": status.Skipped,
	})
}

// processRow обрабатывает одну строку задания.
// Возврат ошибки означает исход failed; success и skipped строка
// регистрирует сама.
func (m *JobManager) processRow(ctx context.Context, bySKU map[string]*models.Product, row models.BulkRow) error {
	if row.SKU == "" {
		return utils.ErrMissingSKU
	}

	product, ok := bySKU[row.SKU]
	if !ok {
		return fmt.Errorf("sku %s not found in catalog", row.SKU)
	}

	// Неактивный товар снимается со всех включенных рынков
	if !rowActive(row.Active) {
		if err := m.repo.SetActive(ctx, row.SKU, false); err != nil {
			return err
		}
		for _, market := range m.calculator.EnabledMarkets() {
			offerID := row.SKU + "-" + market.Code
			if err := m.api.Delete(ctx, offerID, market.Code); err != nil {
				return err
			}
		}
		m.incSkipped()
		jobRowsProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	pushed := 0
	for code, price := range row.Prices {
		if !price.IsPositive() {
			continue
		}

		market, err := m.calculator.Market(code)
		if err != nil || !market.Enabled {
			continue
		}

		listing, err := m.formatter.Format(product, market, price)
		if err != nil {
			return err
		}

		if _, err := m.api.Insert(ctx, listing); err != nil {
			return err
		}
		pushed++
	}

	if pushed == 0 {
		return fmt.Errorf("sku %s has no positive price for any enabled market", row.SKU)
	}

	if err := m.repo.SetActive(ctx, row.SKU, true); err != nil {
		return err
	}

	m.incSuccess()
	jobRowsProcessed.WithLabelValues("success").Inc()
	return nil
}

// rowActive трактует текстовый флаг активности строки.
// Пропускаются только явные отрицания; пустое или нераспознанное
// значение считается активным.
func rowActive(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "no", "false", "0", "n":
		return false
	default:
		return true
	}
}

// publishEvent публикует событие жизненного цикла задания
func (m *JobManager) publishEvent(event, jobID string, payload map[string]interface{}) {
	if m.broker == nil {
		return
	}

	body := map[string]interface{}{
		"event":  event,
		"job_id": jobID,
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range payload {
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return
	}

	if err := m.broker.PublishWithKey(context.Background(), messaging.SyncEventsTopic, jobID, data); err != nil {
		m.logger.Warn("не удалось опубликовать событие задания",
			interfaces.LogField{Key: "event", Value: event},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

func (m *JobManager) setState(state models.JobState) {
	m.mu.Lock()
	m.status.State = state
	m.mu.Unlock()
}

func (m *JobManager) setCurrent(sku string) {
	m.mu.Lock()
	m.status.CurrentSKU = sku
	m.mu.Unlock()
}

func (m *JobManager) incProcessed() {
	m.mu.Lock()
	m.status.Processed++
	m.mu.Unlock()
}

func (m *JobManager) incSuccess() {
	m.mu.Lock()
	m.status.Success++
	m.mu.Unlock()
}

func (m *JobManager) incSkipped() {
	m.mu.Lock()
	m.status.Skipped++
	m.mu.Unlock()
}

func (m *JobManager) recordFailure(sku string, err error) {
	m.mu.Lock()
	m.status.Failed++
	m.status.LastError = err.Error()
	if len(m.status.Errors) < maxJobErrors {
		m.status.Errors = append(m.status.Errors, fmt.Sprintf("%s: %v", sku, err))
	}
	m.mu.Unlock()
}

func (m *JobManager) finish(state models.JobState, lastError string) {
	m.mu.Lock()
	m.status.State = state
	m.status.CurrentSKU = ""
	m.status.FinishedAt = time.Now()
	if lastError != "" {
		m.status.LastError = lastError
	}
	m.mu.Unlock()
}
