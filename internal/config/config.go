package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server     ServerConfig
	App        AppConfig
	Store      StoreConfig
	Cache      CacheConfig
	Fetcher    FetcherConfig
	Enrichment EnrichmentConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"boardmeta-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// StoreConfig holds game store database settings.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, mysql, or postgres
	Path string `envconfig:"STORE_PATH" default:"./data/games.db"`
	// MySQL settings
	Host     string `envconfig:"STORE_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_PORT" default:"3306"`
	Name     string `envconfig:"STORE_NAME" default:"boardmeta"`
	User     string `envconfig:"STORE_USER" default:"root"`
	Password string `envconfig:"STORE_PASS" default:""`
	// PostgreSQL settings
	PGHost    string `envconfig:"STORE_PG_HOST" default:"localhost"`
	PGPort    int    `envconfig:"STORE_PG_PORT" default:"5432"`
	PGSSLMode string `envconfig:"STORE_PG_SSLMODE" default:"disable"`
}

// CacheConfig holds cache backend settings.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	PageTTL time.Duration `envconfig:"CACHE_PAGE_TTL" default:"1h"`
}

// FetcherConfig holds page fetch provider settings.
type FetcherConfig struct {
	// OriginBaseURL is the game detail page origin; the game id is
	// appended as a path segment.
	OriginBaseURL string `envconfig:"FETCH_ORIGIN_BASE_URL" default:"https://boardgamegeek.com/boardgame"`
	// ProxyAPIURL and ProxyAPIKey configure the primary proxy/scraping
	// provider. Empty key disables the provider.
	ProxyAPIURL string `envconfig:"FETCH_PROXY_API_URL" default:"https://api.scraperapi.com/"`
	ProxyAPIKey string `envconfig:"FETCH_PROXY_API_KEY" default:""`
	// CrawlerURL is the self-hosted crawler endpoint (secondary
	// provider). Empty disables the provider.
	CrawlerURL string `envconfig:"FETCH_CRAWLER_URL" default:""`

	Timeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"90s"`
}

// EnrichmentConfig holds bulk enrichment job settings.
type EnrichmentConfig struct {
	MaxAttempts        int           `envconfig:"ENRICH_MAX_ATTEMPTS" default:"3"`
	RetryDelay         time.Duration `envconfig:"ENRICH_RETRY_DELAY" default:"5s"`
	ItemDelay          time.Duration `envconfig:"ENRICH_ITEM_DELAY" default:"1s"`
	FailureThreshold   int           `envconfig:"ENRICH_FAILURE_THRESHOLD" default:"10"`
	ProgressInterval   time.Duration `envconfig:"ENRICH_PROGRESS_INTERVAL" default:"60s"`
	// CronSpec optionally schedules automatic bulk runs, e.g. "@daily".
	// Empty disables the scheduler.
	CronSpec string `envconfig:"ENRICH_CRON_SPEC" default:""`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	// clientFoundRows makes RowsAffected count matched rows, so a
	// forced re-enrichment writing identical data is not mistaken for a
	// missing row.
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.PGHost, s.PGPort, s.Name, s.PGSSLMode)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
