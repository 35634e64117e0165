package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSslMode     string
	DBConnStr     string
	DBAutoMigrate bool

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisPingTimeout time.Duration

	ImageDir       string
	MaxImagesCount int
	MaxImageBytes  int64
	SolveReward    int

	TaskLockTTL        time.Duration
	TaskLockRetries    int
	TaskLockRetryDelay time.Duration

	ImageCleanupQueueName   string
	ImageCleanupMaxAttempts int
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:        time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "dark_api_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		RedisPingTimeout: time.Duration(getEnvAsInt("REDIS_PING_TIMEOUT_SECONDS", 5)) * time.Second,

		ImageDir:       getEnv("IMAGE_DIR", "./data/images"),
		MaxImagesCount: getEnvAsInt("MAX_IMAGES_COUNT", 6),
		MaxImageBytes:  int64(getEnvAsInt("MAX_IMAGE_BYTES", 10<<20)),
		SolveReward:    getEnvAsInt("SOLVE_REWARD", 1),

		TaskLockTTL:        time.Duration(getEnvAsInt("TASK_LOCK_TTL_SECONDS", 30)) * time.Second,
		TaskLockRetries:    getEnvAsInt("TASK_LOCK_RETRIES", 50),
		TaskLockRetryDelay: time.Duration(getEnvAsInt("TASK_LOCK_RETRY_DELAY_MS", 100)) * time.Millisecond,

		ImageCleanupQueueName:   getEnv("IMAGE_CLEANUP_QUEUE_NAME", "image_cleanup_queue"),
		ImageCleanupMaxAttempts: getEnvAsInt("IMAGE_CLEANUP_MAX_ATTEMPTS", 5),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
