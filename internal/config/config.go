package config

import (
	"log"
	"os"
	"strconv"
)

// Config carries every runtime knob the server reads from the environment.
type Config struct {
	Port    string
	GinMode string

	// CORS
	CORSAllowedOrigins string

	// Blob storage
	UploadDir       string
	DownloadDir     string
	MaxUploadSizeMB int64

	// External collaborators
	YtdlpPath              string
	InfoTimeoutSeconds     int
	DownloadTimeoutSeconds int
	AnalyzerBaseURL        string
	SynthesizerBaseURL     string

	// Priority-queue pre-fetcher
	MaxConcurrentDownloads int

	// Server
	ServerShutdownTimeoutSeconds int

	// Logging
	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// Load reads the environment (plus an optional .env file) into AppConfig.
func Load() *Config {
	loadDotEnv()

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		UploadDir:       getEnvOrDefault("UPLOAD_DIR", defaultTempDir("stage_uploads")),
		DownloadDir:     getEnvOrDefault("DOWNLOAD_DIR", defaultTempDir("stage_downloads")),
		MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 64),

		YtdlpPath:              getEnvOrDefault("YTDLP_PATH", "yt-dlp"),
		InfoTimeoutSeconds:     getEnvAsInt("INFO_TIMEOUT_SECONDS", 30),
		DownloadTimeoutSeconds: getEnvAsInt("DOWNLOAD_TIMEOUT_SECONDS", 120),
		AnalyzerBaseURL:        getEnvOrDefault("ANALYZER_BASE_URL", ""),
		SynthesizerBaseURL:     getEnvOrDefault("SYNTHESIZER_BASE_URL", ""),

		MaxConcurrentDownloads: getEnvAsInt("MAX_CONCURRENT_DOWNLOADS", 3),

		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	return AppConfig
}

func defaultTempDir(name string) string {
	return os.TempDir() + string(os.PathSeparator) + name
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
