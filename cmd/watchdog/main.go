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
	"github.com/athebyme/merchant-sync/internal/domain/services"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/athebyme/merchant-sync/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
	log.Info("Инициализация сторожа цен",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-watchdog"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	if !cfg.Watchdog.Enabled {
		log.Info("Сторожевой цикл цен выключен в конфигурации")
		return
	}

	// Запускаем HTTP сервер для метрик если они включены
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: addr})

			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("Ошибка HTTP сервера метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

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

	var messagingClient interfaces.MessagingPort
	if cfg.Kafka.Enabled {
		messagingClient, err = messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			log.Fatal("Ошибка инициализации системы обмена сообщениями", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		defer messagingClient.Close()
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

	var rateSource services.RateSource
	if cfg.Rates.Enabled {
		rateSource = rates.NewClient(cfg.Rates.BaseURL, cfg.Rates.BaseCurrency, cfg.Rates.CacheTTL, cacheClient, log)
	}

	calculator := services.NewPriceCalculator(markets)
	formatter := services.NewFormatter(cfg.Store.Domain)

	watchdog := services.NewPriceWatchdog(
		db,
		merchantClient,
		formatter,
		calculator,
		rateSource,
		messagingClient,
		log,
		cfg.PrimaryMarket,
		cfg.Watchdog.Interval,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, останавливаем сторожевой цикл...")
		cancel()
	}()

	watchdog.Run(ctx)

	log.Info("Сторож цен корректно завершил работу")
}
