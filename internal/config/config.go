package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env           string              `json:"env"`
	Http          HttpConfig          `json:"http"`
	Postgres      PostgresConfig      `json:"postgres"`
	Redis         RedisConfig         `json:"redis"`
	APIKey        string              `json:"api_key,omitempty"`
	Alerts        AlertsConfig        `json:"alerts"`
	Notifications NotificationsConfig `json:"notifications"`
	Twilio        TwilioConfig        `json:"twilio"`
	Kafka         KafkaConfig         `json:"kafka"`
	Sweeper       SweeperConfig       `json:"sweeper"`
}

type HttpConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode"`

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DSN in the keyword/value form pgxpool.ParseConfig accepts.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
	// empty Addr keeps the notification queue and change bus in process
	ChangeChannel string `json:"change_channel"`
	QueueKey      string `json:"queue_key"`
}

type AlertsConfig struct {
	Store       string  `json:"store"`
	RadiusMiles float64 `json:"radius_miles"`
	// directory lookups are cached for this long
	DirectoryTTL time.Duration `json:"directory_ttl"`
	// optional YAML file of users loaded into the directory at startup
	SeedFile string `json:"seed_file"`
}

type NotificationsConfig struct {
	Workers    int           `json:"workers"`
	PopTimeout time.Duration `json:"pop_timeout"`
	MaxRetries int           `json:"max_retries"`
	Disabled   bool          `json:"disabled"`
}

type TwilioConfig struct {
	AccountSID        string        `json:"account_sid"`
	AuthToken         string        `json:"auth_token,omitempty"`
	FromNumber        string        `json:"from_number"`
	BaseURL           string        `json:"base_url"`
	StatusCallbackURL string        `json:"status_callback_url"`
	Timeout           time.Duration `json:"timeout"`
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

type SweeperConfig struct {
	Enabled  bool          `json:"enabled"`
	Schedule string        `json:"schedule"`
	MaxAge   time.Duration `json:"max_age"`
}

func Load() (*Config, error) {
	stdLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLogger.Warn(".env load warning", slog.Any("error", err))
	}

	cfg := &Config{
		Env: getEnv("ENV", "local"),
		Http: HttpConfig{
			Port:            getEnv("HTTP_PORT", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "pg-local"),
			Port:            getEnvInt("POSTGRES_PORT", 5432),
			Database:        getEnv("POSTGRES_DB", "carealert_db"),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
			MaxConns:        int32(getEnvInt("POSTGRES_MAX_CONNS", 20)),
			MinConns:        1,
			MaxConnLifetime: 1 * time.Hour,
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			ChangeChannel: getEnv("REDIS_CHANGE_CHANNEL", "alerts:changes"),
			QueueKey:      getEnv("REDIS_QUEUE_KEY", "notifications:queue"),
		},
		APIKey: getEnv("API_KEY", "super-secret-key"),
		Alerts: AlertsConfig{
			Store:        getEnv("ALERT_STORE", StoreMemory),
			RadiusMiles:  getEnvFloat("ALERT_RADIUS_MILES", 1.0),
			DirectoryTTL: getEnvDuration("DIRECTORY_CACHE_TTL", 30*time.Second),
			SeedFile:     getEnv("DIRECTORY_SEED_FILE", ""),
		},
		Notifications: NotificationsConfig{
			Workers:    getEnvInt("NOTIFY_WORKERS", 4),
			PopTimeout: getEnvDuration("NOTIFY_POP_TIMEOUT", 5*time.Second),
			MaxRetries: getEnvInt("NOTIFY_MAX_RETRIES", 3),
			Disabled:   getEnvBool("NOTIFY_DISABLED", false),
		},
		Twilio: TwilioConfig{
			AccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber:        getEnv("TWILIO_PHONE_NUMBER", ""),
			BaseURL:           getEnv("TWILIO_BASE_URL", "https://api.twilio.com/2010-04-01"),
			StatusCallbackURL: getEnv("TWILIO_STATUS_CALLBACK_URL", ""),
			Timeout:           getEnvDuration("TWILIO_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "alert-events"),
		},
		Sweeper: SweeperConfig{
			Enabled:  getEnvBool("SWEEPER_ENABLED", false),
			Schedule: getEnv("SWEEPER_SCHEDULE", "@every 1m"),
			MaxAge:   getEnvDuration("SWEEPER_MAX_AGE", 2*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stdLogger.Info("Config loaded successfully",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.Http.Port),
		slog.String("alert_store", cfg.Alerts.Store),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.Bool("twilio", cfg.Twilio.Enabled()),
		slog.Int("kafka_brokers", len(cfg.Kafka.Brokers)),
	)

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Http.Port == "" || c.Http.Port[0] != ':' {
		return errors.New("HTTP_PORT must start with ':' like ':8080'")
	}

	switch c.Alerts.Store {
	case StorePostgres:
		if c.Postgres.Host == "" {
			return errors.New("POSTGRES_HOST required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("ALERT_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Alerts.Store)
	}

	if c.APIKey == "" {
		return errors.New("API_KEY is empty")
	}
	if c.Alerts.RadiusMiles <= 0 {
		return errors.New("ALERT_RADIUS_MILES must be positive")
	}
	if c.Alerts.DirectoryTTL <= 0 {
		return errors.New("DIRECTORY_CACHE_TTL must be positive")
	}
	if c.Notifications.Workers <= 0 {
		return errors.New("NOTIFY_WORKERS must be positive")
	}
	if c.Notifications.MaxRetries <= 0 {
		return errors.New("NOTIFY_MAX_RETRIES must be positive")
	}
	if c.Sweeper.Enabled && c.Sweeper.MaxAge <= 0 {
		return errors.New("SWEEPER_MAX_AGE must be positive when the sweeper is enabled")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC required when KAFKA_BROKERS is set")
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// comma separated, blanks dropped
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
