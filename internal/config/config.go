package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultIdentityCertsURL はIDトークン署名用の公開証明書を配布するエンドポイント。
const DefaultIdentityCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

// DefaultIdentityIssuerPrefix はIDトークンのissにプロジェクトIDを連結する前のプレフィックス。
const DefaultIdentityIssuerPrefix = "https://securetoken.google.com/"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity
	IdentityProjectID    string
	IdentityCertsURL     string
	IdentityIssuerPrefix string

	// Media host
	MediaEndpoint      string
	MediaAccessKey     string
	MediaSecretKey     string
	MediaBucket        string
	MediaUseSSL        bool
	MediaPublicBaseURL string
	MediaMaxUploadSize int64

	// Cleanup
	TempMediaTTL    time.Duration
	CleanupInterval time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitUpload  int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string
	required := func(key string, dst *string) {
		*dst = os.Getenv(key)
		if *dst == "" {
			missing = append(missing, key)
		}
	}

	required("DATABASE_URL", &cfg.DatabaseURL)
	required("BASE_URL", &cfg.BaseURL)
	required("IDENTITY_PROJECT_ID", &cfg.IdentityProjectID)
	required("MEDIA_ENDPOINT", &cfg.MediaEndpoint)
	required("MEDIA_ACCESS_KEY", &cfg.MediaAccessKey)
	required("MEDIA_SECRET_KEY", &cfg.MediaSecretKey)
	required("MEDIA_BUCKET", &cfg.MediaBucket)

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.IdentityCertsURL = getEnvString("IDENTITY_CERTS_URL", DefaultIdentityCertsURL)
	cfg.IdentityIssuerPrefix = getEnvString("IDENTITY_ISSUER_PREFIX", DefaultIdentityIssuerPrefix)
	cfg.MediaUseSSL = getEnvBool("MEDIA_USE_SSL", true)
	cfg.MediaPublicBaseURL = strings.TrimRight(getEnvString("MEDIA_PUBLIC_BASE_URL", defaultPublicBaseURL(cfg)), "/")
	cfg.MediaMaxUploadSize = getEnvInt64("MEDIA_MAX_UPLOAD_SIZE", 50<<20)
	cfg.TempMediaTTL = getEnvDuration("TEMP_MEDIA_TTL", 24*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// defaultPublicBaseURL はパススタイルのバケットURLを返す。
func defaultPublicBaseURL(cfg *Config) string {
	scheme := "http"
	if cfg.MediaUseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.MediaEndpoint, cfg.MediaBucket)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
