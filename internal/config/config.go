package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	Env                string
	DatabaseURL        string
	EnvironmentsFile   string
	ReportURI          string
	StaticDir          string
	CORSAllowedOrigins []string
	APIMaxBodyBytes    int64
	ReportRateLimit    int
	ReadHeaderTimeout  time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RateLimitMaxIPs    int
}

// Edge is the subset of configuration the edge function reads. Values are
// resolved at deploy time and passed in as Lambda environment variables.
type Edge struct {
	EnvironmentsFile string
	ReportURI        string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:               getEnv("API_ADDR", ":8080"),
		Env:                getEnv("APP_ENV", "dev"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		EnvironmentsFile:   os.Getenv("CSP_ENVIRONMENTS_FILE"),
		ReportURI:          os.Getenv("CSP_REPORT_URI"),
		StaticDir:          getEnv("STATIC_DIR", "./dist"),
		CORSAllowedOrigins: getEnvCSV("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3018"}),
		APIMaxBodyBytes:    int64(getEnvInt("API_MAX_BODY_KB", 64)) * 1024,
		ReportRateLimit:    getEnvInt("REPORT_RATE_LIMIT", 60),
		ReadHeaderTimeout:  time.Duration(getEnvInt("API_READ_HEADER_TIMEOUT_SEC", 5)) * time.Second,
		ReadTimeout:        time.Duration(getEnvInt("API_READ_TIMEOUT_SEC", 15)) * time.Second,
		WriteTimeout:       time.Duration(getEnvInt("API_WRITE_TIMEOUT_SEC", 30)) * time.Second,
		IdleTimeout:        time.Duration(getEnvInt("API_IDLE_TIMEOUT_SEC", 60)) * time.Second,
		RateLimitMaxIPs:    getEnvInt("RATE_LIMIT_MAX_IPS", 10000),
	}

	if cfg.APIMaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("API_MAX_BODY_KB must be positive")
	}
	if cfg.ReportURI != "" && !strings.HasPrefix(cfg.ReportURI, "https://") && !strings.HasPrefix(cfg.ReportURI, "/") {
		return Config{}, fmt.Errorf("CSP_REPORT_URI must be an https URL or an absolute path (got %q)", cfg.ReportURI)
	}

	return cfg, nil
}

// LoadEdge reads the edge function settings. No .env file is consulted.
func LoadEdge() Edge {
	return Edge{
		EnvironmentsFile: os.Getenv("CSP_ENVIRONMENTS_FILE"),
		ReportURI:        os.Getenv("CSP_REPORT_URI"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvCSV(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
