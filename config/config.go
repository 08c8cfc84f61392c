package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Poll duration bounds, in seconds.
	PollDefaultDuration int
	PollMinDuration     int
	PollMaxDuration     int

	// Completed-poll archive export. Disabled when the bucket is empty.
	ArchiveBucket    string
	ArchiveRegion    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveEndpoint  string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:             getEnv("APP_PORT", "8080"),
		AppMode:             getEnv("APP_MODE", "debug"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "classpoll"),
		DBPort:              getEnv("DB_PORT", "5432"),
		RedisHost:           getEnv("REDIS_HOST", "localhost"),
		RedisPort:           getEnv("REDIS_PORT", "6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		PollDefaultDuration: getEnvAsInt("POLL_DEFAULT_DURATION", 60),
		PollMinDuration:     getEnvAsInt("POLL_MIN_DURATION", 10),
		PollMaxDuration:     getEnvAsInt("POLL_MAX_DURATION", 300),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
		ArchiveRegion:       getEnv("ARCHIVE_REGION", "us-east-1"),
		ArchiveAccessKey:    getEnv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey:    getEnv("ARCHIVE_SECRET_KEY", ""),
		ArchiveEndpoint:     getEnv("ARCHIVE_ENDPOINT", ""),
	}
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
