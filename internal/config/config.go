package config

import (
	"os"
	"strconv"
)

// DatabaseConfig holds PostgreSQL database connection settings.
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

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// AuthConfig holds bearer-token verification settings.
// Token issuance (login/OAuth) happens outside this service.
type AuthConfig struct {
	JWTSecret string
}

// NATSConfig holds the optional event bus connection.
// An empty URL disables lifecycle event publishing.
type NATSConfig struct {
	URL string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated once from environment variables at startup and treated
// as immutable afterwards. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost string
	Port    string

	// MaxUploadSizeMB caps uploads, compared as MB * 1024 * 1024 bytes.
	// Zero means no limit.
	MaxUploadSizeMB int

	Database DatabaseConfig
	MinIO    MinIOConfig
	Auth     AuthConfig
	NATS     NATSConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:         getEnv("APP_HOST", "localhost:8080"),
		Port:            getEnv("PORT", "8080"), // default only for non-sensitive value
		MaxUploadSizeMB: getEnvInt("MAX_UPLOAD_SIZE_MB", 20),
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
			Bucket:    getEnv("MINIO_BUCKET", "user-docs"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET_KEY", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
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
