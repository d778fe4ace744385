// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек сервиса
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	BaseURL                 string        `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"DATABASE_URL"`
	RabbitMQURL             string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Stripe                  `yaml:"stripe"`
	Anthropic               `yaml:"anthropic"`
	Resend                  `yaml:"resend"`
	FileStorage             `yaml:"file_storage"`
	Sweeper                 `yaml:"sweeper"`
	Analysis                `yaml:"analysis"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"120s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// Stripe структура с ключами и идентификаторами цен платёжного провайдера.
//
// PriceMonthly и PriceAnnual образуют набор подписочных цен именно этого
// продукта: все проверки статуса подписки фильтруются по этому набору,
// чтобы подписка другого продукта на общем Stripe-аккаунте не давала
// и не отнимала pro здесь.
type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	PriceSingle   string `yaml:"price_single" env:"STRIPE_PRICE_SINGLE"`
	PriceMonthly  string `yaml:"price_monthly" env:"STRIPE_PRICE_MONTHLY"`
	PriceAnnual   string `yaml:"price_annual" env:"STRIPE_PRICE_ANNUAL"`
}

// SubscriptionPriceIDs возвращает набор подписочных цен этого продукта.
func (s Stripe) SubscriptionPriceIDs() []string {
	ids := make([]string, 0, 2)
	if s.PriceMonthly != "" {
		ids = append(ids, s.PriceMonthly)
	}
	if s.PriceAnnual != "" {
		ids = append(ids, s.PriceAnnual)
	}
	return ids
}

// Anthropic структура для настройки vision-модели
type Anthropic struct {
	APIKey        string `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	PrimaryModel  string `yaml:"primary_model" env-default:"claude-haiku-4-5-20251001"`
	FallbackModel string `yaml:"fallback_model" env-default:"claude-sonnet-4-5-20250929"`
}

// Resend структура для настройки сервиса транзакционной почты.
// From должен быть отправителем, авторизованным для домена этого продукта.
type Resend struct {
	APIKey string `yaml:"api_key" env:"RESEND_API_KEY"`
	From   string `yaml:"from" env-default:"Condition Report <reports@condition-report.com>"`
}

// FileStorage структура с каталогами для загруженных фото и готовых отчётов
type FileStorage struct {
	UploadDir string `yaml:"upload_dir" env-default:"uploads"`
	ReportDir string `yaml:"report_dir" env-default:"reports"`
}

// Sweeper структура для настройки фоновой очистки артефактов
type Sweeper struct {
	Interval  time.Duration `yaml:"interval" env-default:"1h"`
	Retention time.Duration `yaml:"retention" env-default:"24h"`
}

// Analysis структура для настройки пула анализа комнат
type Analysis struct {
	Workers int `yaml:"workers" env-default:"4"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
