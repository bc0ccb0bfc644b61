package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Values are resolved as
// defaults, then the optional YAML file, then environment variables.
type Config struct {
	HTTPAddr       string        `yaml:"http_addr"`
	DatabaseURL    string        `yaml:"database_url"`
	WebDir         string        `yaml:"web_dir"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
	Log            LogConfig     `yaml:"log"`
	Thresholds     Thresholds    `yaml:"thresholds"`
	AlertDedupe    string        `yaml:"alert_dedupe"`
	LivenessWindow time.Duration `yaml:"liveness_window"`
	JWT            JWTConfig     `yaml:"jwt"`
	Ingest         IngestConfig  `yaml:"ingest"`
	Redis          RedisConfig   `yaml:"redis"`
	MQTT           MQTTConfig    `yaml:"mqtt"`
	Kafka          KafkaConfig   `yaml:"kafka"`
	Notify         NotifyConfig  `yaml:"notify"`
	SeedAdmin      SeedAdmin     `yaml:"seed_admin"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Thresholds are the high watermarks above which a reading raises an alert.
type Thresholds struct {
	TemperatureHigh float64 `yaml:"temperature_high"`
	HumidityHigh    float64 `yaml:"humidity_high"`
}

type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

type IngestConfig struct {
	HMACSecret     string `yaml:"hmac_secret"`
	MaxSkewSeconds int    `yaml:"max_skew_seconds"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StatsTTL time.Duration `yaml:"stats_ttl"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	AlertTopic string   `yaml:"alert_topic"`
}

type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Template   string        `yaml:"template"`
	Cooldown   time.Duration `yaml:"cooldown"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SeedAdmin struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DemoMode reports whether the service runs on the in-memory store.
func (c Config) DemoMode() bool {
	return strings.TrimSpace(c.DatabaseURL) == ""
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		HTTPAddr:      ":8080",
		CORSOrigins:   []string{"*"},
		ShutdownGrace: 10 * time.Second,
		Log:           LogConfig{Level: "info", Format: "json"},
		Thresholds: Thresholds{
			TemperatureHigh: 30,
			HumidityHigh:    80,
		},
		AlertDedupe:    "none",
		LivenessWindow: 5 * time.Minute,
		JWT:            JWTConfig{ExpiresIn: 24 * time.Hour},
		Ingest:         IngestConfig{MaxSkewSeconds: 300},
		Redis:          RedisConfig{StatsTTL: 10 * time.Second},
		MQTT:           MQTTConfig{ClientID: "climate-monitor", Topic: "sensors/+/data", QoS: 1},
		Kafka:          KafkaConfig{AlertTopic: "climate.alerts"},
		Notify:         NotifyConfig{Timeout: 5 * time.Second},
	}
}

// Load resolves configuration from CONFIG_FILE and the process environment.
func Load() (Config, error) {
	return LoadWith(os.Getenv)
}

// LoadWith resolves configuration using getenv for lookups.
func LoadWith(getenv func(string) string) (Config, error) {
	cfg := Defaults()
	if getenv == nil {
		getenv = os.Getenv
	}
	if path := strings.TrimSpace(getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	env := envReader{getenv: getenv}
	cfg.HTTPAddr = env.str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = env.str("DATABASE_URL", env.str("PG_DSN", cfg.DatabaseURL))
	cfg.WebDir = env.str("WEB_DIR", cfg.WebDir)
	cfg.CORSOrigins = env.list("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.ShutdownGrace = env.duration("SHUTDOWN_GRACE", cfg.ShutdownGrace)
	cfg.Log.Level = env.str("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env.str("LOG_FORMAT", cfg.Log.Format)
	cfg.Thresholds.TemperatureHigh = env.float("TEMP_THRESHOLD", cfg.Thresholds.TemperatureHigh)
	cfg.Thresholds.HumidityHigh = env.float("HUMIDITY_THRESHOLD", cfg.Thresholds.HumidityHigh)
	cfg.AlertDedupe = env.str("ALERT_DEDUPE", cfg.AlertDedupe)
	cfg.LivenessWindow = env.duration("LIVENESS_WINDOW", cfg.LivenessWindow)
	cfg.JWT.Secret = env.str("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.ExpiresIn = env.duration("JWT_EXPIRES_IN", cfg.JWT.ExpiresIn)
	cfg.Ingest.HMACSecret = env.str("INGEST_HMAC_SECRET", cfg.Ingest.HMACSecret)
	cfg.Ingest.MaxSkewSeconds = env.int("INGEST_MAX_SKEW_SECONDS", cfg.Ingest.MaxSkewSeconds)
	cfg.Redis.Addr = env.str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = env.str("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = env.int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.StatsTTL = env.duration("STATS_CACHE_TTL", cfg.Redis.StatsTTL)
	cfg.MQTT.Broker = env.str("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = env.str("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Topic = env.str("MQTT_TOPIC", cfg.MQTT.Topic)
	cfg.MQTT.Username = env.str("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = env.str("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.QoS = env.int("MQTT_QOS", cfg.MQTT.QoS)
	cfg.Kafka.Brokers = env.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.AlertTopic = env.str("KAFKA_ALERT_TOPIC", cfg.Kafka.AlertTopic)
	cfg.Notify.WebhookURL = env.str("ALERT_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.Template = env.str("ALERT_NOTIFY_TEMPLATE", cfg.Notify.Template)
	cfg.Notify.Cooldown = env.duration("ALERT_NOTIFY_COOLDOWN", cfg.Notify.Cooldown)
	cfg.Notify.Timeout = env.duration("ALERT_NOTIFY_TIMEOUT", cfg.Notify.Timeout)
	cfg.SeedAdmin.Username = env.str("SEED_ADMIN_USERNAME", cfg.SeedAdmin.Username)
	cfg.SeedAdmin.Password = env.str("SEED_ADMIN_PASSWORD", cfg.SeedAdmin.Password)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http_addr required")
	}
	if !finite(c.Thresholds.TemperatureHigh) || !finite(c.Thresholds.HumidityHigh) {
		return errors.New("config: thresholds must be finite numbers")
	}
	if c.LivenessWindow <= 0 {
		return errors.New("config: liveness_window must be positive")
	}
	if c.Redis.StatsTTL < 0 {
		return errors.New("config: stats cache ttl must not be negative")
	}
	if c.Redis.StatsTTL >= c.LivenessWindow {
		return fmt.Errorf("config: stats cache ttl %s must be shorter than liveness window %s", c.Redis.StatsTTL, c.LivenessWindow)
	}
	switch c.AlertDedupe {
	case "none", "active_per_room":
	default:
		return fmt.Errorf("config: unknown alert_dedupe %q", c.AlertDedupe)
	}
	if c.JWT.Secret == "" && !c.DemoMode() {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.JWT.ExpiresIn <= 0 {
		return errors.New("config: jwt expires_in must be positive")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.New("config: mqtt qos must be 0, 1 or 2")
	}
	return nil
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) str(key, fallback string) string {
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func (e envReader) int(key string, fallback int) int {
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (e envReader) float(key string, fallback float64) float64 {
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (e envReader) duration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (e envReader) list(key string, fallback []string) []string {
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
