package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host              string
		Port              int
		Password          string
		DB                int
		PoolSize          int           // размер пула соединений
		MinIdleConns      int           // минимальное количество неактивных соединений
		ConnectTimeout    time.Duration // таймаут соединения
		ReadTimeout       time.Duration // таймаут чтения
		WriteTimeout      time.Duration // таймаут записи
		DefaultExpiration time.Duration // срок действия кэша по умолчанию
	}

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		GroupID string   `mapstructure:"group_id"`
		Enabled bool     `mapstructure:"enabled"`
	}

	// Merchant - настройки удалённого сервиса объявлений
	Merchant struct {
		MerchantID   string
		BaseURL      string
		Token        string
		DataSourceID string
		Timeout      time.Duration
		PageSize     int
	}

	// Store - настройки витрины, на которую ссылаются объявления
	Store struct {
		Domain string
	}

	// Markets - целевые рынки: код -> конфигурация
	Markets map[string]MarketSettings

	// PrimaryMarket - рынок, обновляемый сторожевым циклом цен
	PrimaryMarket string

	Rates struct {
		Enabled      bool
		BaseURL      string
		BaseCurrency string
		CacheTTL     time.Duration
	}

	Watchdog struct {
		Enabled  bool
		Interval time.Duration
	}

	Uploader struct {
		ChunkSize int
	}

	Metrics struct {
		Enabled bool
		Port    int `mapstructure:"port"`
	}

	Security struct {
		APIToken         string
		CORSAllowOrigins []string
	}
}

// MarketSettings - конфигурация одного рынка в файле настроек.
// Денежные значения приходят строками и конвертируются в decimal.
type MarketSettings struct {
	Currency     string `mapstructure:"currency"`
	Multiplier   string `mapstructure:"multiplier"`
	UseLiveRates bool   `mapstructure:"use_live_rates"`
	ShippingCost string `mapstructure:"shipping_cost"`
	Enabled      bool   `mapstructure:"enabled"`
	DataSourceID string `mapstructure:"data_source_id"`
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	// Настройка Viper
	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AddConfigPath("../../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Чтение конфигурационного файла
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	// Установка значений по умолчанию
	setDefaults()

	// Привязка переменных окружения
	bindEnvVariables()

	// Чтение конфигурации в структуру
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	// Получаем окружение
	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	return &cfg, nil
}

// MarketConfigs конвертирует настройки рынков в доменные конфигурации
func (c *Config) MarketConfigs() (map[string]models.MarketConfig, error) {
	markets := make(map[string]models.MarketConfig, len(c.Markets))
	for code, settings := range c.Markets {
		code = strings.ToUpper(code)

		multiplier := decimal.Zero
		if settings.Multiplier != "" {
			parsed, err := decimal.NewFromString(settings.Multiplier)
			if err != nil {
				return nil, fmt.Errorf("рынок %s: некорректный множитель %q: %w", code, settings.Multiplier, err)
			}
			multiplier = parsed
		}

		shipping := decimal.Zero
		if settings.ShippingCost != "" {
			parsed, err := decimal.NewFromString(settings.ShippingCost)
			if err != nil {
				return nil, fmt.Errorf("рынок %s: некорректная стоимость доставки %q: %w", code, settings.ShippingCost, err)
			}
			shipping = parsed
		}

		markets[code] = models.MarketConfig{
			Code:         code,
			Currency:     strings.ToUpper(settings.Currency),
			Multiplier:   multiplier,
			UseLiveRates: settings.UseLiveRates,
			ShippingCost: shipping,
			Enabled:      settings.Enabled,
			DataSourceID: settings.DataSourceID,
		}
	}
	return markets, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Основные настройки
	viper.SetDefault("appName", "merchant-sync")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")

	// Настройки сервера
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "5s")

	// Настройки Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "catalog")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 10)
	viper.SetDefault("redis.minIdleConns", 2)
	viper.SetDefault("redis.connectTimeout", "1s")
	viper.SetDefault("redis.readTimeout", "1s")
	viper.SetDefault("redis.writeTimeout", "1s")
	viper.SetDefault("redis.defaultExpiration", "10m")

	// Настройки Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.groupID", "merchant-sync")
	viper.SetDefault("kafka.enabled", true)

	// Настройки удалённого сервиса объявлений
	viper.SetDefault("merchant.baseURL", "https://shoppingcontent.googleapis.com")
	viper.SetDefault("merchant.timeout", "30s")
	viper.SetDefault("merchant.pageSize", 250)

	// Настройки витрины
	viper.SetDefault("store.domain", "https://store.example.org")

	viper.SetDefault("primaryMarket", "US")

	// Настройки курсов валют
	viper.SetDefault("rates.enabled", false)
	viper.SetDefault("rates.baseURL", "https://api.exchangerate.host")
	viper.SetDefault("rates.baseCurrency", "USD")
	viper.SetDefault("rates.cacheTTL", "1h")

	// Настройки сторожевого цикла цен
	viper.SetDefault("watchdog.enabled", true)
	viper.SetDefault("watchdog.interval", "60s")

	// Настройки пакетного загрузчика
	viper.SetDefault("uploader.chunkSize", 5000)

	// Настройки метрик
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	viper.SetDefault("security.apiToken", "")
	viper.SetDefault("security.corsAllowOrigins", []string{"*"})
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables() {
	// Основные настройки
	viper.BindEnv("appName", "APP_NAME")
	viper.BindEnv("version", "APP_VERSION")
	viper.BindEnv("logLevel", "LOG_LEVEL")
	viper.BindEnv("env", "APP_ENV")

	// Настройки сервера
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Настройки Postgres
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	viper.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.poolSize", "REDIS_POOL_SIZE")
	viper.BindEnv("redis.minIdleConns", "REDIS_MIN_IDLE_CONNS")
	viper.BindEnv("redis.connectTimeout", "REDIS_CONNECT_TIMEOUT")
	viper.BindEnv("redis.readTimeout", "REDIS_READ_TIMEOUT")
	viper.BindEnv("redis.writeTimeout", "REDIS_WRITE_TIMEOUT")
	viper.BindEnv("redis.defaultExpiration", "REDIS_DEFAULT_EXPIRATION")

	// Настройки Kafka
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	viper.BindEnv("kafka.enabled", "KAFKA_ENABLED")

	// Настройки удалённого сервиса объявлений
	viper.BindEnv("merchant.merchantID", "MERCHANT_ID")
	viper.BindEnv("merchant.baseURL", "MERCHANT_BASE_URL")
	viper.BindEnv("merchant.token", "MERCHANT_TOKEN")
	viper.BindEnv("merchant.dataSourceID", "MERCHANT_DATA_SOURCE_ID")
	viper.BindEnv("merchant.timeout", "MERCHANT_TIMEOUT")
	viper.BindEnv("merchant.pageSize", "MERCHANT_PAGE_SIZE")

	// Настройки витрины
	viper.BindEnv("store.domain", "STORE_DOMAIN")

	viper.BindEnv("primaryMarket", "PRIMARY_MARKET")

	// Настройки курсов валют
	viper.BindEnv("rates.enabled", "RATES_ENABLED")
	viper.BindEnv("rates.baseURL", "RATES_BASE_URL")
	viper.BindEnv("rates.baseCurrency", "RATES_BASE_CURRENCY")
	viper.BindEnv("rates.cacheTTL", "RATES_CACHE_TTL")

	// Настройки сторожевого цикла цен
	viper.BindEnv("watchdog.enabled", "WATCHDOG_ENABLED")
	viper.BindEnv("watchdog.interval", "WATCHDOG_INTERVAL")

	// Настройки пакетного загрузчика
	viper.BindEnv("uploader.chunkSize", "UPLOADER_CHUNK_SIZE")

	// Настройки метрик
	viper.BindEnv("metrics.enabled", "METRICS_ENABLED")
	viper.BindEnv("metrics.port", "METRICS_PORT")

	// Настройки безопасности
	viper.BindEnv("security.apiToken", "API_TOKEN")
	viper.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")
}
