// Package config загружает конфигурацию из переменных окружения
// (с поддержкой .env через godotenv), применяет значения по умолчанию
// и валидирует результат.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config — все настройки сервера.
type Config struct {
	// HTTP
	APIPort string // API_PORT, только номер порта

	// Хранилище
	DatabaseURL string // DATABASE_URL, DSN PostgreSQL

	// RabbitMQ. Пустой AMQP_URL отключает брокер целиком:
	// сервер работает на тикере и явных wake-ах.
	AMQPURL string // AMQP_URL

	// Планировщик
	TickInterval   time.Duration // TICK_INTERVAL, период reconciliation-тикера
	WakeCron       string        // WAKE_CRON, грубый страховочный будильник
	GracePeriod    time.Duration // GRACE_PERIOD, допуск для scheduled_for в прошлом
	PublishTimeout time.Duration // PUBLISH_TIMEOUT, таймаут публикации на одну платформу
	BatchLimit     int           // BATCH_LIMIT, максимум постов за один проход
	Parallelism    int           // PARALLELISM, степень параллелизма: платформ на пост и постов за проход

	// Политика повторов. MaxAttempts=1 означает «без повторов»:
	// неудача сразу терминальна.
	MaxAttempts int           // MAX_ATTEMPTS
	RetryDelay  time.Duration // RETRY_DELAY, задержка перед повтором

	// Retention терминальных постов
	RetentionCron string        // RETENTION_CRON
	RetentionAge  time.Duration // RETENTION_AGE
}

// Load читает конфигурацию из окружения.
// Файл .env подхватывается, если присутствует; его отсутствие — не ошибка.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		APIPort:     getenv("API_PORT", "8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		AMQPURL:     getenv("AMQP_URL", ""),

		TickInterval:   getdur("TICK_INTERVAL", 30*time.Second),
		WakeCron:       getenv("WAKE_CRON", "*/15 * * * *"),
		GracePeriod:    getdur("GRACE_PERIOD", 2*time.Minute),
		PublishTimeout: getdur("PUBLISH_TIMEOUT", 15*time.Second),
		BatchLimit:     getint("BATCH_LIMIT", 100),
		Parallelism:    getint("PARALLELISM", 4),

		MaxAttempts: getint("MAX_ATTEMPTS", 1),
		RetryDelay:  getdur("RETRY_DELAY", 5*time.Minute),

		RetentionCron: getenv("RETENTION_CRON", "0 3 * * *"),
		RetentionAge:  getdur("RETENTION_AGE", 30*24*time.Hour),
	}

	if strings.TrimSpace(cfg.APIPort) == "" {
		return cfg, errors.New("API_PORT must not be empty")
	}
	if cfg.TickInterval <= 0 {
		return cfg, errors.New("TICK_INTERVAL must be > 0")
	}
	if cfg.GracePeriod < 0 {
		return cfg, errors.New("GRACE_PERIOD must be >= 0")
	}
	if cfg.PublishTimeout <= 0 {
		return cfg, errors.New("PUBLISH_TIMEOUT must be > 0")
	}
	if cfg.BatchLimit < 1 {
		return cfg, errors.New("BATCH_LIMIT must be >= 1")
	}
	if cfg.Parallelism < 1 {
		return cfg, errors.New("PARALLELISM must be >= 1")
	}
	if cfg.MaxAttempts < 1 {
		return cfg, errors.New("MAX_ATTEMPTS must be >= 1")
	}
	if cfg.RetryDelay <= 0 {
		return cfg, errors.New("RETRY_DELAY must be > 0")
	}
	if cfg.RetentionAge <= 0 {
		return cfg, errors.New("RETENTION_AGE must be > 0")
	}

	return cfg, nil
}

// LeaseTTL возвращает срок lease публикации: двойной таймаут платформы,
// но не меньше 30 секунд — чтобы медленный проход не терял свой lease.
func (c Config) LeaseTTL() time.Duration {
	ttl := 2 * c.PublishTimeout
	if ttl < 30*time.Second {
		ttl = 30 * time.Second
	}
	return ttl
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
