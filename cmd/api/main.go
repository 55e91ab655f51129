package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/merchant-sync/config"
	"github.com/athebyme/merchant-sync/internal/adapters/cache"
	"github.com/athebyme/merchant-sync/internal/adapters/logger"
	"github.com/athebyme/merchant-sync/internal/adapters/merchant"
	"github.com/athebyme/merchant-sync/internal/adapters/messaging"
	"github.com/athebyme/merchant-sync/internal/adapters/rates"
	"github.com/athebyme/merchant-sync/internal/adapters/storage"
	"github.com/athebyme/merchant-sync/internal/api"
	"github.com/athebyme/merchant-sync/internal/domain/services"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	postgresCon, err := utils.GenerateConnectionString(
		cfg.Postgres.Host,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
		cfg.Postgres.Port,
		cfg.Postgres.PoolSize,
		cfg.Postgres.Timeout,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации строки подключения базы", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	db, err := storage.NewCatalogStorage(ctx, postgresCon)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer db.Close()
	log.Info("Хранилище инициализировано")

	testCtx, testCancel := context.WithTimeout(ctx, 5*time.Second)
	defer testCancel()

	if err := db.Ping(testCtx); err != nil {
		log.Fatal("Ошибка подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Соединение с PostgreSQL проверено")

	cacheClient, err := cache.NewRedisCache(
		ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации кэша", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer cacheClient.Close()
	log.Info("Кэш инициализирован")

	var messagingClient interfaces.MessagingPort
	if cfg.Kafka.Enabled {
		messagingClient, err = messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			log.Fatal("Ошибка инициализации системы обмена сообщениями", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		defer messagingClient.Close()
		log.Info("Система обмена сообщениями инициализирована")
	}

	markets, err := cfg.MarketConfigs()
	if err != nil {
		log.Fatal("Ошибка конфигурации рынков", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	merchantClient, err := merchant.NewClient(merchant.Config{
		MerchantID:   cfg.Merchant.MerchantID,
		BaseURL:      cfg.Merchant.BaseURL,
		Token:        cfg.Merchant.Token,
		DataSourceID: cfg.Merchant.DataSourceID,
		Timeout:      cfg.Merchant.Timeout,
		PageSize:     cfg.Merchant.PageSize,
	}, log)
	if err != nil {
		log.Fatal("Ошибка инициализации клиента удалённого сервиса", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Клиент удалённого сервиса инициализирован")

	var rateSource services.RateSource
	if cfg.Rates.Enabled {
		rateSource = rates.NewClient(cfg.Rates.BaseURL, cfg.Rates.BaseCurrency, cfg.Rates.CacheTTL, cacheClient, log)
	}

	calculator := services.NewPriceCalculator(markets)
	formatter := services.NewFormatter(cfg.Store.Domain)
	uploader := services.NewBatchUploader(merchantClient, cfg.Uploader.ChunkSize, log)

	syncService := services.NewSyncService(db, merchantClient, uploader, formatter, calculator, rateSource, cacheClient, messagingClient, log)
	jobManager := services.NewJobManager(db, merchantClient, formatter, calculator, messagingClient, log)
	log.Info("Сервисы синхронизации инициализированы")

	router := api.SetupRouter(syncService, jobManager, log, cfg.Security.CORSAllowOrigins, cfg.Security.APIToken)
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatal("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}

		log.Info("HTTP сервер остановлен")

		log.Info("Закрытие соединений с зависимостями...")

		if messagingClient != nil {
			if err := messagingClient.Close(); err != nil {
				log.Error("Ошибка при закрытии Kafka",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}

		if err := cacheClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Redis",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		if err := db.Close(); err != nil {
			log.Error("Ошибка при закрытии БД",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		close(done)
	}()

	// Ожидаем завершения работы
	<-done
	log.Info("Сервер корректно завершил работу")
}
