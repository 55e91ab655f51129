package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/domain/services"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// SyncHandler обработчик запросов движка синхронизации
type SyncHandler struct {
	syncService *services.SyncService
	jobManager  *services.JobManager
	logger      interfaces.LoggerPort
}

// NewSyncHandler создает новый обработчик синхронизации
func NewSyncHandler(syncService *services.SyncService, jobManager *services.JobManager, logger interfaces.LoggerPort) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		jobManager:  jobManager,
		logger:      logger,
	}
}

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// SubmitJob обрабатывает запрос на запуск задания массового обновления
func (h *SyncHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var rows []models.BulkRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Некорректное тело запроса",
		})
		return
	}

	jobID, err := h.jobManager.Submit(rows)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrJobInProgress):
			// Предыдущее задание еще выполняется
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, errorResponse{
				Error:   "conflict",
				Code:    http.StatusConflict,
				Message: "Предыдущее задание еще выполняется",
			})
		case errors.Is(err, utils.ErrEmptyJob):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{
				Error:   "bad_request",
				Code:    http.StatusBadRequest,
				Message: "Задание не содержит строк",
			})
		default:
			h.logger.ErrorWithContext(r.Context(), "Ошибка запуска задания",
				interfaces.LogField{Key: "error", Value: err.Error()})
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errorResponse{
				Error:   "internal_error",
				Code:    http.StatusInternalServerError,
				Message: "Ошибка запуска задания",
			})
		}
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response{
		Success: true,
		Data:    map[string]string{"job_id": jobID},
	})
}

// JobStatus обрабатывает запрос статуса текущего задания
func (h *SyncHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	status := h.jobManager.Status()

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    status,
	})
}

// SyncCatalog обрабатывает запрос на полную синхронизацию каталога
func (h *SyncHandler) SyncCatalog(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.SyncCatalog(r.Context())
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка синхронизации каталога",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка синхронизации каталога",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    result,
	})
}

// PushProduct обрабатывает запрос на отправку одного товара на рынок
func (h *SyncHandler) PushProduct(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	if sku == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "SKU товара не указан",
		})
		return
	}

	marketCode := r.URL.Query().Get("market")
	if marketCode == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Код рынка не указан",
		})
		return
	}

	offerID, err := h.syncService.PushProduct(r.Context(), sku, marketCode)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrMissingSKU):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, errorResponse{
				Error:   "not_found",
				Code:    http.StatusNotFound,
				Message: "Товар не найден",
			})
		case errors.Is(err, utils.ErrUnknownMarket), errors.Is(err, utils.ErrMarketDisabled):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{
				Error:   "bad_request",
				Code:    http.StatusBadRequest,
				Message: "Рынок не сконфигурирован или выключен",
			})
		default:
			h.logger.ErrorWithContext(r.Context(), "Ошибка отправки товара",
				interfaces.LogField{Key: "error", Value: err.Error()},
				interfaces.LogField{Key: "sku", Value: sku})
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errorResponse{
				Error:   "internal_error",
				Code:    http.StatusInternalServerError,
				Message: "Ошибка отправки товара",
			})
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    map[string]string{"offer_id": offerID},
	})
}

// RecomputePrices обрабатывает запрос на пересчет региональных цен
func (h *SyncHandler) RecomputePrices(w http.ResponseWriter, r *http.Request) {
	updated, err := h.syncService.RecomputePrices(r.Context())
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка пересчета региональных цен",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка пересчета региональных цен",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    map[string]int{"updated": updated},
	})
}

// ListRemote обрабатывает запрос снимка объявлений удалённого сервиса
func (h *SyncHandler) ListRemote(w http.ResponseWriter, r *http.Request) {
	listings, err := h.syncService.ListRemote(r.Context())
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения удалённых объявлений",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка получения удалённых объявлений",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    listings,
		Meta:    map[string]int{"count": len(listings)},
	})
}
