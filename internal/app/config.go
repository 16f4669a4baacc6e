package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ClientConfig — учётные данные клиента API для выпуска токенов.
type ClientConfig struct {
	Secret string `koanf:"secret"`
	UserID string `koanf:"user_id"`
	Name   string `koanf:"name"`
	Role   string `koanf:"role"`
}

// Config описывает настройки сервиса аптеки.
type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		OpsAddr  string `koanf:"ops_addr"`
		LogLevel string `koanf:"log_level"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Postgres struct {
		// DSN пустой — работаем на in-memory хранилище (dev/test режим).
		DSN string `koanf:"dsn"`
	} `koanf:"postgres"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
	} `koanf:"kafka"`

	Outbox struct {
		PollInterval  time.Duration `koanf:"poll_interval"`
		BatchSize     int           `koanf:"batch_size"`
		MaxAttempts   int           `koanf:"max_attempts"`
		MaxPendingAge time.Duration `koanf:"max_pending_age"`
	} `koanf:"outbox"`

	Payment struct {
		// SignatureSecret — общий секрет HMAC с платёжным шлюзом.
		SignatureSecret string `koanf:"signature_secret"`
	} `koanf:"payment"`

	Security struct {
		JWTSecret string                  `koanf:"jwt_secret"`
		Issuer    string                  `koanf:"issuer"`
		Audience  string                  `koanf:"audience"`
		TokenTTL  time.Duration           `koanf:"token_ttl"`
		Clients   map[string]ClientConfig `koanf:"clients"`
	} `koanf:"security"`
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних
// зависимостей: in-memory хранилище, без Kafka и Redis.
func DefaultConfig() Config {
	var cfg Config
	cfg.App.Name = "pharmacy-service"
	cfg.App.HTTPAddr = ":8080"
	cfg.App.OpsAddr = ":9090"
	cfg.App.LogLevel = "info"
	cfg.HTTP.ReadTimeout = 10 * time.Second
	cfg.HTTP.WriteTimeout = 15 * time.Second
	cfg.HTTP.IdleTimeout = 60 * time.Second
	cfg.HTTP.ShutdownTimeout = 5 * time.Second
	cfg.Idempotency.TTL = 24 * time.Hour
	cfg.Outbox.PollInterval = time.Second
	cfg.Outbox.BatchSize = 100
	cfg.Outbox.MaxAttempts = 3
	cfg.Outbox.MaxPendingAge = time.Minute
	cfg.Payment.SignatureSecret = "dev-payment-secret"
	cfg.Security.JWTSecret = "dev-jwt-secret"
	cfg.Security.Issuer = "pharmacy-service"
	cfg.Security.Audience = "pharmacy-api"
	cfg.Security.TokenTTL = 15 * time.Minute
	return cfg
}

// LoadConfig читает base.yaml, опциональный overlay окружения и переменные
// окружения с префиксом PHARMACY_ (вложенность через __,
// например PHARMACY_POSTGRES__DSN).
func LoadConfig(pathDir, envName string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base config: %w", err)
	}

	// overlay окружения опционален: локальный запуск живёт на base.yaml
	if envName != "" {
		_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())
	}

	if err := k.Load(env.Provider("PHARMACY_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "PHARMACY_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля.
func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr is required")
	}
	if c.App.OpsAddr == "" {
		return fmt.Errorf("app.ops_addr is required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if c.Payment.SignatureSecret == "" {
		return fmt.Errorf("payment.signature_secret is required")
	}
	for id, client := range c.Security.Clients {
		if client.Secret == "" || client.UserID == "" || client.Role == "" {
			return fmt.Errorf("security.clients.%s: secret, user_id and role are required", id)
		}
	}
	return nil
}
