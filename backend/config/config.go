package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ServerPort string

	DBDriver   string // postgres, sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	JWTSecret   string
	JWTTTLHours int

	StorageBackend string // local, gcs
	StorageDir     string
	GCSBucket      string

	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RatingCacheTTLSeconds int

	MaxUploadMB        int
	PlatformFeePercent float64

	// Shared secret the payment gateway sends in X-Gateway-Secret. Empty
	// disables the settle callback.
	PaymentWebhookSecret string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	return &Config{
		Env:        strings.ToLower(getEnv("APP_ENV", "local")),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "learnhub"),
		SQLitePath: getEnv("SQLITE_PATH", "learnhub.db"),

		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		JWTTTLHours: getEnvInt("JWT_TTL_HOURS", 72),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		StorageDir:     getEnv("STORAGE_DIR", "uploads"),
		GCSBucket:      getEnv("GCS_BUCKET", ""),

		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		RatingCacheTTLSeconds: getEnvInt("RATING_CACHE_TTL_SECONDS", 300),

		MaxUploadMB:        getEnvInt("MAX_UPLOAD_MB", 512),
		PlatformFeePercent: getEnvFloat("PLATFORM_FEE_PERCENT", 25),

		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Error converting environment variable %s to float: %v", key, err)
		return defaultValue
	}
	return f
}
