// Package config provides configuration management for the harvester.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Blob     BlobConfig
	Platform PlatformConfig
	StatInk  StatInkConfig
	Dispatch DispatchConfig
	Worker   WorkerConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host            string
	Port            string
	Database        string
	User            string
	Password        string
	MaxConnections  int
	MinConnections  int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// BlobConfig holds MinIO object storage configuration for debug and
// poison archives
type BlobConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// PlatformConfig holds the source platform endpoints and web-app
// fallback constants
type PlatformConfig struct {
	SplatNet3URL       string
	GraphQLURL         string
	AuthorizeURL       string
	SessionTokenURL    string
	TokenURL           string
	UserInfoURL        string
	AccountLoginURL    string
	WebServiceTokenURL string
	FCalcURL           string

	// Fallbacks used when the live web-view probe fails
	FallbackWebViewVersion string
	FallbackNSOAppVersion  string
	WebViewConfigTTL       time.Duration
}

// StatInkConfig holds the target upload service endpoints
type StatInkConfig struct {
	BattleURL     string
	SalmonURL     string
	UUIDListURL   string
	AbilityKeyURL string
	WeaponKeyURL  string
	KeyCacheTTL   time.Duration
	AgentName     string
	AgentVersion  string
}

// DispatchConfig holds dispatcher tuning
type DispatchConfig struct {
	CronSpec         string
	FailureThreshold int
	DedupConcurrency int
}

// WorkerConfig holds task worker tuning
type WorkerConfig struct {
	QueueName         string
	BatchSize         int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	CooldownMin       time.Duration
	CooldownMax       time.Duration
	MaxDeliveries     int
}

// NotifyConfig holds the out-of-band notification webhook
type NotifyConfig struct {
	WebhookURL string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	splatNet := getEnv("SPLATNET3_URL", "https://api.lp1.av5ja.srv.nintendo.net")

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:            getEnv("POSTGRES_HOST", "localhost"),
				Port:            getEnv("POSTGRES_PORT", "5432"),
				Database:        getEnv("POSTGRES_DB", "stat_itok"),
				User:            getEnv("POSTGRES_USER", "stat_itok"),
				Password:        getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections:  getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
				MinConnections:  getEnvAsInt("POSTGRES_MIN_CONNECTIONS", 2),
				ConnMaxLifetime: getEnvAsDuration("POSTGRES_CONN_MAX_LIFETIME", time.Hour),
				ConnMaxIdleTime: getEnvAsDuration("POSTGRES_CONN_MAX_IDLE_TIME", 30*time.Minute),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Blob: BlobConfig{
			Endpoint:  getEnv("BLOB_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("BLOB_ACCESS_KEY", ""),
			SecretKey: getEnv("BLOB_SECRET_KEY", ""),
			Bucket:    getEnv("BLOB_BUCKET", "stat-itok-debug"),
			UseSSL:    getEnvAsBool("BLOB_USE_SSL", false),
		},
		Platform: PlatformConfig{
			SplatNet3URL:       splatNet,
			GraphQLURL:         getEnv("GRAPHQL_URL", splatNet+"/api/graphql"),
			AuthorizeURL:       getEnv("NIN_AUTHORIZE_URL", "https://accounts.nintendo.com/connect/1.0.0/authorize"),
			SessionTokenURL:    getEnv("NIN_SESSION_TOKEN_URL", "https://accounts.nintendo.com/connect/1.0.0/api/session_token"),
			TokenURL:           getEnv("NIN_TOKEN_URL", "https://accounts.nintendo.com/connect/1.0.0/api/token"),
			UserInfoURL:        getEnv("NIN_USER_INFO_URL", "https://api.accounts.nintendo.com/2.0.0/users/me"),
			AccountLoginURL:    getEnv("NIN_ACCOUNT_LOGIN_URL", "https://api-lp1.znc.srv.nintendo.net/v3/Account/Login"),
			WebServiceTokenURL: getEnv("NIN_WEB_SERVICE_TOKEN_URL", "https://api-lp1.znc.srv.nintendo.net/v2/Game/GetWebServiceToken"),
			FCalcURL:           getEnv("F_CALC_URL", "https://api.imink.app/f"),

			FallbackWebViewVersion: getEnv("FALLBACK_WEB_VIEW_VERSION", "1.0.0-5644e7a2"),
			FallbackNSOAppVersion:  getEnv("FALLBACK_NSO_APP_VERSION", "2.3.1"),
			WebViewConfigTTL:       getEnvAsDuration("WEB_VIEW_CONFIG_TTL", 5*time.Minute),
		},
		StatInk: StatInkConfig{
			BattleURL:     getEnv("STAT_INK_BATTLE_URL", "https://stat.ink/api/v3/battle"),
			SalmonURL:     getEnv("STAT_INK_SALMON_URL", "https://stat.ink/api/v3/salmon"),
			UUIDListURL:   getEnv("STAT_INK_UUID_LIST_URL", "https://stat.ink/api/v3/s3s/uuid-list"),
			AbilityKeyURL: getEnv("STAT_INK_ABILITY_KEY_URL", "https://stat.ink/api/v3/ability?full=1"),
			WeaponKeyURL:  getEnv("STAT_INK_WEAPON_KEY_URL", "https://stat.ink/api/v3/weapon"),
			KeyCacheTTL:   getEnvAsDuration("STAT_INK_KEY_CACHE_TTL", time.Hour),
			AgentName:     "stat.itok",
			AgentVersion:  getEnv("AGENT_VERSION", "0.1.0"),
		},
		Dispatch: DispatchConfig{
			CronSpec:         getEnv("DISPATCH_CRON", "*/5 * * * *"),
			FailureThreshold: getEnvAsInt("DISPATCH_FAILURE_THRESHOLD", 5),
			DedupConcurrency: getEnvAsInt("DISPATCH_DEDUP_CONCURRENCY", 8),
		},
		Worker: WorkerConfig{
			QueueName:         getEnv("TASK_QUEUE_NAME", "job-run-task"),
			BatchSize:         getEnvAsInt("WORKER_BATCH_SIZE", 5),
			VisibilityTimeout: getEnvAsDuration("WORKER_VISIBILITY_TIMEOUT", 5*time.Minute),
			PollInterval:      getEnvAsDuration("WORKER_POLL_INTERVAL", time.Minute),
			CooldownMin:       getEnvAsDuration("WORKER_COOLDOWN_MIN", 5*time.Second),
			CooldownMax:       getEnvAsDuration("WORKER_COOLDOWN_MAX", 20*time.Second),
			MaxDeliveries:     getEnvAsInt("WORKER_MAX_DELIVERIES", 5),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.EqualFold(valueStr, "true") || valueStr == "1"
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
