package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"quotepulse/internal/complexity"
	"quotepulse/internal/targeting"
)

// DefaultPath is read when CONFIG_PATH is not set
const DefaultPath = "config.yaml"

// Config is the full server configuration
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Auth           AuthConfig           `yaml:"auth"`
	Mongo          MongoConfig          `yaml:"mongo"`
	Redis          RedisConfig          `yaml:"redis"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	SurveyPlatform SurveyPlatformConfig `yaml:"survey_platform"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Cache          CacheConfig          `yaml:"cache"`
	Targeting      TargetingConfig      `yaml:"targeting"`
	Complexity     *complexity.Config   `yaml:"complexity"`
	Log            LogConfig            `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type AuthConfig struct {
	Username  string        `yaml:"username"`
	Password  string        `yaml:"-"` // Env only
	JWTSecret string        `yaml:"-"` // Env only
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// RedisConfig points at the durable survey history store. An empty URI keeps history in memory.
type RedisConfig struct {
	URI        string        `yaml:"uri"`
	HistoryTTL time.Duration `yaml:"history_ttl"`
}

// KafkaConfig enables the Kafka event sink when brokers are set
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SurveyPlatformConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"-"` // Env only
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig enables OTLP metric export when an endpoint is set
type TelemetryConfig struct {
	OTLPEndpoint string        `yaml:"otlp_endpoint"`
	Insecure     bool          `yaml:"insecure"`
	Interval     time.Duration `yaml:"interval"`
}

type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	MaxEntries      int           `yaml:"max_entries"`
	Version         string        `yaml:"version"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

type TargetingConfig struct {
	Cooldown time.Duration     `yaml:"cooldown"`
	Rules    targeting.Rules   `yaml:"rules"`
	Catalog  targeting.Catalog `yaml:"catalog"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns the configuration used before any file or environment override
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Username:  "admin",
			Password:  "password123",
			JWTSecret: "super-secret-key-change-in-production",
			TokenTTL:  24 * time.Hour,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "quotepulse",
		},
		Kafka: KafkaConfig{
			Topic: "quotepulse.survey-events",
		},
		SurveyPlatform: SurveyPlatformConfig{
			Timeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Insecure: true,
			Interval: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:             5 * time.Minute,
			MaxEntries:      1000,
			Version:         "v1",
			JanitorInterval: time.Minute,
		},
		Targeting: TargetingConfig{
			Rules: targeting.DefaultRules(),
		},
		Complexity: complexity.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists) and environment overrides, then validates it
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getEnvOrDefault("CONFIG_PATH", DefaultPath)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		log.Info().Str("path", path).Msg("Loaded config file")
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	c.Auth.Username = getEnvOrDefault("AUTH_USERNAME", c.Auth.Username)
	c.Auth.Password = getEnvOrDefault("AUTH_PASSWORD", c.Auth.Password)
	c.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", c.Auth.JWTSecret)

	c.Mongo.URI = getEnvOrDefault("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnvOrDefault("MONGO_DATABASE", c.Mongo.Database)
	c.Redis.URI = getEnvOrDefault("REDIS_URI", c.Redis.URI)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.Topic = getEnvOrDefault("KAFKA_TOPIC", c.Kafka.Topic)

	c.SurveyPlatform.URL = getEnvOrDefault("SURVEY_PLATFORM_URL", c.SurveyPlatform.URL)
	c.SurveyPlatform.Token = getEnvOrDefault("SURVEY_PLATFORM_TOKEN", c.SurveyPlatform.Token)
	c.Telemetry.OTLPEndpoint = getEnvOrDefault("OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)

	if v := os.Getenv("SURVEY_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SURVEY_COOLDOWN: %w", err)
		}
		c.Targeting.Cooldown = d
	}
	if v := os.Getenv("ANALYSIS_CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ANALYSIS_CACHE_MAX_ENTRIES: %w", err)
		}
		c.Cache.MaxEntries = n
	}

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
	return nil
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return errors.New("mongo uri and database are required")
	}
	if c.Cache.MaxEntries < 0 || c.Cache.TTL < 0 {
		return errors.New("cache ttl and max entries must not be negative")
	}
	if c.Targeting.Cooldown < 0 {
		return errors.New("survey cooldown must not be negative")
	}
	if c.Complexity == nil {
		c.Complexity = complexity.DefaultConfig()
	}
	if err := c.Complexity.Validate(); err != nil {
		return err
	}
	if c.Targeting.Catalog != nil {
		if err := c.Targeting.Catalog.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
