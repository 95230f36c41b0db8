package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	FundRegistryPath   string
	ExportDir          string
	WatchDir           string
	WatchSchedule      string // cron spec; empty disables the inbox scan
	MaxUploadSizeBytes int64
	ExtractionTimeout  time.Duration   // wall-time budget per PDF backend attempt
	AmountTolerance    decimal.Decimal // allowed |stated - computed| before flagging
	MaxNumericDigits   int
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

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	extractionTimeoutStr := getEnv("EXTRACTION_TIMEOUT", "20s")
	extractionTimeout, err := time.ParseDuration(extractionTimeoutStr)
	if err != nil {
		log.Printf("WARNING: Invalid EXTRACTION_TIMEOUT format '%s'. Using default 20s. Error: %v", extractionTimeoutStr, err)
		extractionTimeout = 20 * time.Second
	}

	amountToleranceStr := getEnv("AMOUNT_TOLERANCE", "0.01")
	amountTolerance, err := decimal.NewFromString(amountToleranceStr)
	if err != nil {
		log.Printf("WARNING: Invalid AMOUNT_TOLERANCE format '%s'. Using default 0.01. Error: %v", amountToleranceStr, err)
		amountTolerance = decimal.New(1, -2)
	}

	maxNumericDigitsStr := getEnv("MAX_NUMERIC_DIGITS", "18")
	maxNumericDigits, err := strconv.Atoi(maxNumericDigitsStr)
	if err != nil || maxNumericDigits <= 0 {
		log.Printf("WARNING: Invalid MAX_NUMERIC_DIGITS '%s'. Using default 18.", maxNumericDigitsStr)
		maxNumericDigits = 18
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./financial_data.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		FundRegistryPath:   getEnv("FUND_REGISTRY_PATH", "./funds.yaml"),
		ExportDir:          getEnv("EXPORT_DIR", "./exports"),
		WatchDir:           getEnv("WATCH_DIR", ""),
		WatchSchedule:      getEnv("WATCH_SCHEDULE", "@every 5m"),
		MaxUploadSizeBytes: maxUploadSizeBytes,
		ExtractionTimeout:  extractionTimeout,
		AmountTolerance:    amountTolerance,
		MaxNumericDigits:   maxNumericDigits,
	}

	log.Printf("Configuration loaded. Port: %s, DatabasePath: %s, LogLevel: %s",
		Cfg.Port, Cfg.DatabasePath, Cfg.LogLevel)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
