package api

import (
	"net/http"
	"time"

	"github.com/athebyme/merchant-sync/internal/api/handlers"
	"github.com/athebyme/merchant-sync/internal/api/middleware"
	"github.com/athebyme/merchant-sync/internal/domain/services"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter настраивает маршрутизатор
func SetupRouter(
	syncService *services.SyncService,
	jobManager *services.JobManager,
	logger interfaces.LoggerPort,
	corsAllowedOrigins []string,
	apiToken string,
) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS(corsAllowedOrigins))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(apiToken))

		syncHandler := handlers.NewSyncHandler(syncService, jobManager, logger)

		// Полная синхронизация каталога и отправка отдельных товаров
		r.Post("/sync", syncHandler.SyncCatalog)
		r.Post("/products/{sku}/push", syncHandler.PushProduct)

		// Задание массового обновления
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", syncHandler.SubmitJob)
			r.Get("/status", syncHandler.JobStatus)
		})

		// Региональные цены и снимок удалённых объявлений
		r.Post("/prices/recompute", syncHandler.RecomputePrices)
		r.Get("/remote/listings", syncHandler.ListRemote)
	})

	return r
}
