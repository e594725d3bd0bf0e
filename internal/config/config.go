package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const dateLayout = "2006-01-02"

type Config struct {
	Source   SourceConfig
	Database DatabaseConfig
	Analysis AnalysisConfig
	Report   ReportConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Security SecurityConfig
}

type SourceConfig struct {
	Kind     string
	Path     string
	Sheet    string
	Limit    int
	CacheDir string
}

type DatabaseConfig struct {
	Enabled        bool
	Driver         string
	User           string
	Password       string
	Host           string
	Port           int
	Name           string
	RetailTable    string
	ResultsTable   string
	SampleLimit    int
	ConnectTimeout time.Duration
}

// LogValue keeps the password out of structured logs.
func (d DatabaseConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", d.Enabled),
		slog.String("driver", d.Driver),
		slog.String("user", d.User),
		slog.String("host", d.Host),
		slog.Int("port", d.Port),
		slog.String("name", d.Name),
		slog.String("retail_table", d.RetailTable),
		slog.String("results_table", d.ResultsTable),
	)
}

type AnalysisConfig struct {
	Cutoff             time.Time
	DiscountRate       float64
	CancellationMarker string
	Country            string
	LowerQuantile      float64
	UpperQuantile      float64
	FrequencyPenalizer float64
	MonetaryPenalizer  float64
	CLVHorizons        []int
	PurchaseHorizons   []int
	SegmentHorizon     int
	TimeUnit           string
	TopN               int
}

type ReportConfig struct {
	OutputDir string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Enabled         bool
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

func Load() (*Config, error) {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cutoff, err := getEnvDate("ANALYSIS_CUTOFF", time.Date(2011, 12, 11, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Source: SourceConfig{
			Kind:     getEnvString("SOURCE_KIND", "excel"),
			Path:     getEnvString("SOURCE_PATH", "online_retail_II.xlsx"),
			Sheet:    getEnvString("SOURCE_SHEET", "Year 2010-2011"),
			Limit:    getEnvInt("SOURCE_LIMIT", 0),
			CacheDir: getEnvString("SOURCE_CACHE_DIR", ".cache"),
		},
		Database: DatabaseConfig{
			Enabled:        getEnvBool("DB_ENABLED", false),
			Driver:         getEnvString("DB_DRIVER", "mysql"),
			User:           getEnvString("DB_USER", ""),
			Password:       getEnvString("DB_PASSWORD", ""),
			Host:           getEnvString("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 3306),
			Name:           getEnvString("DB_NAME", ""),
			RetailTable:    getEnvString("DB_RETAIL_TABLE", "online_retail_2010_2011"),
			ResultsTable:   getEnvString("DB_RESULTS_TABLE", ""),
			SampleLimit:    getEnvInt("DB_SAMPLE_LIMIT", 10),
			ConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		},
		Analysis: AnalysisConfig{
			Cutoff:             cutoff,
			DiscountRate:       getEnvFloat("ANALYSIS_DISCOUNT_RATE", 0.01),
			CancellationMarker: getEnvString("ANALYSIS_CANCELLATION_MARKER", "C"),
			Country:            getEnvString("ANALYSIS_COUNTRY", ""),
			LowerQuantile:      getEnvFloat("OUTLIER_LOWER_QUANTILE", 0.01),
			UpperQuantile:      getEnvFloat("OUTLIER_UPPER_QUANTILE", 0.99),
			FrequencyPenalizer: getEnvFloat("MODEL_FREQUENCY_PENALIZER", 0.001),
			MonetaryPenalizer:  getEnvFloat("MODEL_MONETARY_PENALIZER", 0.01),
			CLVHorizons:        getEnvIntSlice("ANALYSIS_CLV_HORIZONS", []int{1, 6, 12}),
			PurchaseHorizons:   getEnvIntSlice("ANALYSIS_PURCHASE_HORIZONS", []int{4, 48}),
			SegmentHorizon:     getEnvInt("ANALYSIS_SEGMENT_HORIZON", 6),
			TimeUnit:           getEnvString("ANALYSIS_TIME_UNIT", "W"),
			TopN:               getEnvInt("REPORT_TOP_N", 10),
		},
		Report: ReportConfig{
			OutputDir: getEnvString("REPORT_OUTPUT_DIR", ""),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Server: ServerConfig{
			Enabled:         getEnvBool("DASHBOARD_ENABLED", false),
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	validKinds := []string{"excel", "csv", "database"}
	if !slices.Contains(validKinds, c.Source.Kind) {
		return fmt.Errorf("invalid source kind %q, must be one of: %s", c.Source.Kind, strings.Join(validKinds, ", "))
	}

	if c.Source.Kind != "database" && c.Source.Path == "" {
		return fmt.Errorf("source path cannot be empty")
	}

	if c.Source.Kind == "excel" && c.Source.Sheet == "" {
		return fmt.Errorf("source sheet cannot be empty")
	}

	if c.Source.Limit < 0 {
		return fmt.Errorf("source limit must not be negative")
	}

	if c.Source.Kind == "database" && !c.Database.Enabled {
		return fmt.Errorf("database source requires DB_ENABLED=true")
	}

	if c.Database.Enabled {
		validDrivers := []string{"mysql", "postgres", "sqlite"}
		if !slices.Contains(validDrivers, c.Database.Driver) {
			return fmt.Errorf("invalid database driver %q, must be one of: %s", c.Database.Driver, strings.Join(validDrivers, ", "))
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name cannot be empty")
		}
		if c.Database.Driver != "sqlite" && (c.Database.Port < 1 || c.Database.Port > 65535) {
			return fmt.Errorf("database port must be between 1 and 65535, got %d", c.Database.Port)
		}
		if c.Database.RetailTable == "" {
			return fmt.Errorf("retail table cannot be empty")
		}
		if c.Database.SampleLimit <= 0 {
			return fmt.Errorf("database sample limit must be positive")
		}
		if c.Database.ConnectTimeout <= 0 {
			return fmt.Errorf("database connect timeout must be positive")
		}
	}

	a := c.Analysis
	if a.DiscountRate < 0 {
		return fmt.Errorf("discount rate must not be negative")
	}

	if a.LowerQuantile < 0 || a.UpperQuantile > 1 || a.LowerQuantile >= a.UpperQuantile {
		return fmt.Errorf("outlier quantiles must satisfy 0 <= lower < upper <= 1, got %g and %g", a.LowerQuantile, a.UpperQuantile)
	}

	if a.FrequencyPenalizer < 0 || a.MonetaryPenalizer < 0 {
		return fmt.Errorf("model penalizers must not be negative")
	}

	if len(a.CLVHorizons) == 0 {
		return fmt.Errorf("at least one CLV horizon is required")
	}

	for _, h := range append(slices.Clone(a.CLVHorizons), a.PurchaseHorizons...) {
		if h <= 0 {
			return fmt.Errorf("horizons must be positive, got %d", h)
		}
	}

	if !slices.Contains(a.CLVHorizons, a.SegmentHorizon) {
		return fmt.Errorf("segment horizon %d must be one of the CLV horizons %v", a.SegmentHorizon, a.CLVHorizons)
	}

	validUnits := []string{"W", "M", "D", "H"}
	if !slices.Contains(validUnits, a.TimeUnit) {
		return fmt.Errorf("invalid time unit %q, must be one of: %s", a.TimeUnit, strings.Join(validUnits, ", "))
	}

	if a.TopN <= 0 {
		return fmt.Errorf("report top N must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Server.Enabled {
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
		}

		if c.Server.ReadTimeout <= 0 {
			return fmt.Errorf("server read timeout must be positive")
		}

		if c.Server.WriteTimeout <= 0 {
			return fmt.Errorf("server write timeout must be positive")
		}

		if c.Security.RateLimitRPS <= 0 {
			return fmt.Errorf("rate limit RPS must be positive")
		}

		if c.Security.RateLimitBurst <= 0 {
			return fmt.Errorf("rate limit burst must be positive")
		}
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvDate fails loudly: a silently ignored cutoff changes every feature.
func getEnvDate(key string, defaultValue time.Time) (time.Time, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a %s date: %w", key, dateLayout, err)
	}
	return date, nil
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvIntSlice(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		result = append(result, n)
	}
	return result
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
