package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	CampaignStorePostgres = "postgres"
	CampaignStoreMongo    = "mongo"
	CampaignStoreMemory   = "memory"

	StorageBackendS3         = "s3"
	StorageBackendFilesystem = "filesystem"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv    string
	Port      string
	JWTSecret string
	LogFile   string

	CampaignStore string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	StorageBackend         string
	StorageBucket          string
	StorageRegion          string
	StorageEndpoint        string
	StorageAPIURL          string
	StorageAccessKeyID     string
	StorageSecretAccessKey string
	StoragePath            string
	StorageBaseURL         string
	SinglePutMaxBytes      int64
	MultipartTimeout       time.Duration

	UploadConcurrency int
	MaxUploadBytes    int64

	GeoIPDBPath        string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      port,
		JWTSecret: os.Getenv("JWT_SECRET"),
		LogFile:   os.Getenv("LOG_FILE"),

		CampaignStore: strings.ToLower(getEnv("CAMPAIGN_STORE", CampaignStorePostgres)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "campaigns"),

		StorageBackend:         strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendFilesystem)),
		StorageBucket:          os.Getenv("STORAGE_BUCKET"),
		StorageRegion:          getEnv("STORAGE_REGION", "ap-southeast-1"),
		StorageEndpoint:        os.Getenv("STORAGE_ENDPOINT"),
		StorageAPIURL:          os.Getenv("STORAGE_API_URL"),
		StorageAccessKeyID:     os.Getenv("STORAGE_ACCESS_KEY_ID"),
		StorageSecretAccessKey: os.Getenv("STORAGE_SECRET_ACCESS_KEY"),
		StoragePath:            getEnv("STORAGE_PATH", "./data/uploads"),
		StorageBaseURL:         os.Getenv("STORAGE_BASE_URL"),
		SinglePutMaxBytes:      int64(getEnvInt("SINGLE_PUT_MAX_MB", 32)) << 20,
		MultipartTimeout:       time.Second * time.Duration(getEnvInt("MULTIPART_TIMEOUT_SECONDS", 600)),

		UploadConcurrency: getEnvInt("UPLOAD_CONCURRENCY", 4),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_MB", 512)) << 20,

		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 900)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.CampaignStore {
	case CampaignStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when CAMPAIGN_STORE=%s", cfg.CampaignStore)
		}
	case CampaignStoreMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is required when CAMPAIGN_STORE=%s", cfg.CampaignStore)
		}
	case CampaignStoreMemory:
	default:
		return nil, fmt.Errorf("unknown CAMPAIGN_STORE %q", cfg.CampaignStore)
	}

	switch cfg.StorageBackend {
	case StorageBackendS3:
		if cfg.StorageBucket == "" {
			return nil, fmt.Errorf("STORAGE_BUCKET is required when STORAGE_BACKEND=s3")
		}
		if cfg.StorageEndpoint == "" {
			cfg.StorageEndpoint = "s3." + cfg.StorageRegion + ".amazonaws.com"
		}
	case StorageBackendFilesystem:
		if cfg.StorageBaseURL == "" {
			cfg.StorageBaseURL = "http://localhost:" + port + "/static"
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.UploadConcurrency <= 0 {
		return nil, fmt.Errorf("UPLOAD_CONCURRENCY must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
