package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Redis    RedisConfig    `toml:"redis"`
	Provider ProviderConfig `toml:"provider"`
	News     NewsConfig     `toml:"news"`
	Sync     SyncConfig     `toml:"sync"`
	Schedule ScheduleConfig `toml:"schedule"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled       bool     `toml:"enabled"`
	Brokers       []string `toml:"brokers"`
	Topic         string   `toml:"topic"`
	RequestsTopic string   `toml:"requests_topic"`
	GroupID       string   `toml:"group_id"`
}

// RedisConfig holds the run lock backend configuration
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	LockTTL  string `toml:"lock_ttl"`
}

// ProviderConfig holds the market-data provider (EODHD) configuration
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Exchange  string `toml:"exchange"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// NewsConfig holds the secondary news provider (Guardian) configuration
type NewsConfig struct {
	BaseURL       string `toml:"base_url"`
	APIKey        string `toml:"api_key"`
	CompanyCount  int    `toml:"company_count"`
	IndustryCount int    `toml:"industry_count"`
	Timeout       string `toml:"timeout"`
}

// SyncConfig holds the ingestion engine settings
type SyncConfig struct {
	Timezone          string   `toml:"timezone"`
	LookbackYears     int      `toml:"lookback_years"`
	FundamentalsYears int      `toml:"fundamentals_years"`
	Retries           int      `toml:"retries"`
	BaseDelay         string   `toml:"base_delay"`
	BatchSize         int      `toml:"batch_size"`
	BatchPause        string   `toml:"batch_pause"`
	ToleranceDays     int      `toml:"tolerance_days"`
	Tickers           []string `toml:"tickers"`
}

// ScheduleConfig holds the cron cadence of the orchestration trigger
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Prices  string `toml:"prices"`
	News    string `toml:"news"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with defaults for local development
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "marketsync",
			SSLMode:  "disable",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			Topic:         "market-sync-events",
			RequestsTopic: "market-sync-requests",
			GroupID:       "market-sync",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			LockTTL: "30m",
		},
		Provider: ProviderConfig{
			BaseURL:   "https://eodhd.com/api",
			Exchange:  "US",
			RateLimit: 10,
			Timeout:   "30s",
		},
		News: NewsConfig{
			BaseURL:       "https://content.guardianapis.com",
			CompanyCount:  5,
			IndustryCount: 3,
			Timeout:       "15s",
		},
		Sync: SyncConfig{
			Timezone:          "Asia/Singapore",
			LookbackYears:     3,
			FundamentalsYears: 5,
			Retries:           3,
			BaseDelay:         "5s",
			BatchSize:         5,
			BatchPause:        "10s",
			ToleranceDays:     30,
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			Prices:  "0 6 * * 1-5",
			News:    "0 6 * * 1-5",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Outputs:  []string{"console"},
			FilePath: "./logs/market-sync.log",
		},
	}
}

// Load builds the configuration from defaults, then each TOML file in order
// (missing files are skipped), then environment variables.
func Load(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if _, err := cfg.Sync.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
		cfg.Kafka.Enabled = true
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.RequestsTopic = getEnv("KAFKA_REQUESTS_TOPIC", cfg.Kafka.RequestsTopic)

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Provider.APIKey = getEnv("EODHD_API_KEY", cfg.Provider.APIKey)
	cfg.Provider.BaseURL = getEnv("EODHD_BASE_URL", cfg.Provider.BaseURL)
	cfg.News.APIKey = getEnv("GUARDIAN_API_KEY", cfg.News.APIKey)

	cfg.Sync.Timezone = getEnv("SYNC_TIMEZONE", cfg.Sync.Timezone)
	if tickers := os.Getenv("SYNC_TICKERS"); tickers != "" {
		cfg.Sync.Tickers = strings.Split(tickers, ",")
	}
	cfg.Sync.Retries = getEnvInt("SYNC_RETRIES", cfg.Sync.Retries)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Location returns the reference timezone used to decide staleness
func (s *SyncConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid sync timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// GetBaseDelay returns the retry base delay, defaulting to 5s
func (s *SyncConfig) GetBaseDelay() time.Duration {
	return parseDuration(s.BaseDelay, 5*time.Second)
}

// GetBatchPause returns the pause between entity batches
func (s *SyncConfig) GetBatchPause() time.Duration {
	return parseDuration(s.BatchPause, 10*time.Second)
}

// GetTimeout parses and returns the provider HTTP timeout
func (p *ProviderConfig) GetTimeout() time.Duration {
	return parseDuration(p.Timeout, 30*time.Second)
}

// GetTimeout parses and returns the news HTTP timeout
func (n *NewsConfig) GetTimeout() time.Duration {
	return parseDuration(n.Timeout, 15*time.Second)
}

// GetLockTTL returns how long a run lock is held before it expires
func (r *RedisConfig) GetLockTTL() time.Duration {
	return parseDuration(r.LockTTL, 30*time.Minute)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
