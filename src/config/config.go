package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	LogLevel     string
	DatabasePath string
	CRMDSN       string

	UploadDir          string
	MaxUploadSizeBytes int64

	RunTTL         time.Duration
	DealsPerPage   int
	ResetDBOnStart bool
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	crmDSN := getEnv("CRM_DSN", "")
	if crmDSN == "" {
		log.Fatalf("FATAL: CRM_DSN is required (MySQL DSN of the CRM read replica), but it's not set in environment or .env file.")
	}

	runTTLStr := getEnv("RUN_TTL", "30m")
	runTTL, err := time.ParseDuration(runTTLStr)
	if err != nil {
		log.Printf("WARNING: Invalid RUN_TTL format '%s'. Using default 30m. Error: %v", runTTLStr, err)
		runTTL = 30 * time.Minute
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabasePath: getEnv("DATABASE_PATH", "./peredach.db"),
		CRMDSN:       crmDSN,

		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadSizeBytes: maxUploadSizeBytes,

		RunTTL:         runTTL,
		DealsPerPage:   getEnvAsInt("DEALS_PER_PAGE", 20),
		ResetDBOnStart: getEnv("RESET_DB_ON_START", "false") == "true",
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, UploadDir=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.UploadDir)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}
