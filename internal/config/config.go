package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CatalogConfig holds settings for the remote dataset catalog.
type CatalogConfig struct {
	BaseURL   string
	CacheSize int
}

// FetchConfig holds timeouts and the retry policy shared by catalog and resource downloads.
type FetchConfig struct {
	ConnectTimeout  time.Duration
	CatalogTimeout  time.Duration
	DownloadTimeout time.Duration
	Retries         int
	BackoffInitial  time.Duration
	RetryStatuses   []int
}

// ReaderConfig controls how tabular resources are decoded.
type ReaderConfig struct {
	Separator  rune
	NullTokens []string
	ChunkRows  int
	DateColumn string
	NameColumn string
}

// QueryConfig holds request defaults and limits for /data.
type QueryConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DatabaseConfig holds PostgreSQL settings for the query log. Empty Host disables it.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// Enabled reports whether a database was configured.
func (c DatabaseConfig) Enabled() bool { return c.Host != "" }

// MinIOConfig holds object storage settings for the resource mirror. Empty Endpoint disables it.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	Prefix    string
}

// Enabled reports whether a mirror was configured.
func (c MinIOConfig) Enabled() bool { return c.Endpoint != "" }

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	LogLevel  string
	LogFormat string
	Catalog   CatalogConfig
	Fetch     FetchConfig
	Reader    ReaderConfig
	Query     QueryConfig
	Database  DatabaseConfig
	MinIO     MinIOConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:   getEnv("APP_HOST", "localhost:8000"),
		Port:      getEnv("PORT", "8000"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		Catalog: CatalogConfig{
			BaseURL:   getEnv("CATALOG_BASE_URL", "https://dados.ons.org.br/api/3/action/package_show"),
			CacheSize: getEnvInt("CATALOG_CACHE_SIZE", 128),
		},
		Fetch: FetchConfig{
			ConnectTimeout:  getEnvDuration("HTTP_CONNECT_TIMEOUT", 5*time.Second),
			CatalogTimeout:  getEnvDuration("HTTP_CATALOG_TIMEOUT", 30*time.Second),
			DownloadTimeout: getEnvDuration("HTTP_DOWNLOAD_TIMEOUT", 60*time.Second),
			Retries:         getEnvInt("HTTP_RETRIES", 3),
			BackoffInitial:  getEnvDuration("HTTP_BACKOFF_INITIAL", 300*time.Millisecond),
			RetryStatuses:   getEnvIntList("HTTP_RETRY_STATUSES", []int{500, 502, 503, 504}),
		},
		Reader: ReaderConfig{
			Separator:  getEnvRune("CSV_SEPARATOR", ';'),
			NullTokens: getEnvList("CSV_NULL_TOKENS", []string{"", " ", "#"}),
			ChunkRows:  getEnvInt("READER_CHUNK_ROWS", 10000),
			DateColumn: getEnv("DATE_COLUMN", "ear_data"),
			NameColumn: getEnv("NAME_COLUMN", "nom_reservatorio"),
		},
		Query: QueryConfig{
			DefaultPageSize: getEnvInt("DEFAULT_PAGE_SIZE", 100),
			MaxPageSize:     getEnvInt("MAX_PAGE_SIZE", 1000),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			Region:    getEnv("MINIO_REGION", "us-east-1"),
			Prefix:    getEnv("MINIO_PREFIX", "resources"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

// getEnvRune returns the first rune of the variable. "\t" is accepted for tab.
func getEnvRune(key string, def rune) rune {
	v := os.Getenv(key)
	if v == `\t` {
		return '\t'
	}
	for _, r := range v {
		return r
	}
	return def
}

// getEnvList splits a "|"-separated value. Elements are kept verbatim so that
// whitespace-only null tokens survive.
func getEnvList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return strings.Split(v, "|")
}

func getEnvIntList(key string, def []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return def
		}
		out = append(out, i)
	}
	return out
}
