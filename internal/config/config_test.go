package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Source.Kind != "excel" {
		t.Errorf("Source.Kind = %q, want excel", cfg.Source.Kind)
	}
	if cfg.Source.Sheet != "Year 2010-2011" {
		t.Errorf("Source.Sheet = %q", cfg.Source.Sheet)
	}
	if want := time.Date(2011, 12, 11, 0, 0, 0, 0, time.UTC); !cfg.Analysis.Cutoff.Equal(want) {
		t.Errorf("Cutoff = %v, want %v", cfg.Analysis.Cutoff, want)
	}
	if cfg.Analysis.DiscountRate != 0.01 {
		t.Errorf("DiscountRate = %v", cfg.Analysis.DiscountRate)
	}
	if got := cfg.Analysis.CLVHorizons; len(got) != 3 || got[0] != 1 || got[1] != 6 || got[2] != 12 {
		t.Errorf("CLVHorizons = %v", got)
	}
	if cfg.Analysis.SegmentHorizon != 6 {
		t.Errorf("SegmentHorizon = %d", cfg.Analysis.SegmentHorizon)
	}
	if cfg.Database.Enabled || cfg.Server.Enabled {
		t.Error("database and dashboard should be disabled by default")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SOURCE_KIND", "csv")
	t.Setenv("SOURCE_PATH", "retail.csv")
	t.Setenv("ANALYSIS_CUTOFF", "2012-01-01")
	t.Setenv("ANALYSIS_DISCOUNT_RATE", "0.05")
	t.Setenv("ANALYSIS_CLV_HORIZONS", "3, 6")
	t.Setenv("ANALYSIS_COUNTRY", "United Kingdom")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_NAME", "retail")
	t.Setenv("DB_PORT", "5432")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Source.Kind != "csv" || cfg.Source.Path != "retail.csv" {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if want := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC); !cfg.Analysis.Cutoff.Equal(want) {
		t.Errorf("Cutoff = %v, want %v", cfg.Analysis.Cutoff, want)
	}
	if cfg.Analysis.DiscountRate != 0.05 {
		t.Errorf("DiscountRate = %v", cfg.Analysis.DiscountRate)
	}
	if got := cfg.Analysis.CLVHorizons; len(got) != 2 || got[0] != 3 || got[1] != 6 {
		t.Errorf("CLVHorizons = %v", got)
	}
	if cfg.Analysis.Country != "United Kingdom" {
		t.Errorf("Country = %q", cfg.Analysis.Country)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Port != 5432 {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad source kind", map[string]string{"SOURCE_KIND": "parquet"}, "source kind"},
		{"bad cutoff", map[string]string{"ANALYSIS_CUTOFF": "11/12/2011"}, "ANALYSIS_CUTOFF"},
		{"negative discount", map[string]string{"ANALYSIS_DISCOUNT_RATE": "-0.1"}, "discount rate"},
		{"inverted quantiles", map[string]string{"OUTLIER_LOWER_QUANTILE": "0.9", "OUTLIER_UPPER_QUANTILE": "0.1"}, "quantiles"},
		{"segment horizon not projected", map[string]string{"ANALYSIS_SEGMENT_HORIZON": "3"}, "segment horizon"},
		{"bad time unit", map[string]string{"ANALYSIS_TIME_UNIT": "Y"}, "time unit"},
		{"database source without database", map[string]string{"SOURCE_KIND": "database"}, "DB_ENABLED"},
		{"unknown driver", map[string]string{"DB_ENABLED": "true", "DB_DRIVER": "oracle", "DB_NAME": "x"}, "driver"},
		{"database without name", map[string]string{"DB_ENABLED": "true"}, "database name"},
		{"bad log level", map[string]string{"LOG_LEVEL": "trace"}, "log level"},
		{"bad dashboard port", map[string]string{"DASHBOARD_ENABLED": "true", "SERVER_PORT": "70000"}, "server port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestDatabaseConfig_LogValueHidesPassword(t *testing.T) {
	d := DatabaseConfig{User: "analyst", Password: "s3cret", Host: "db", Port: 3306, Name: "retail"}

	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))
	logger.Info("config", "database", d)

	if strings.Contains(sb.String(), "s3cret") {
		t.Errorf("password leaked into log output: %s", sb.String())
	}
	if !strings.Contains(sb.String(), "analyst") {
		t.Errorf("expected user in log output: %s", sb.String())
	}
}

func TestAddress(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "0.0.0.0", Port: 9000}}
	if got := cfg.Address(); got != "0.0.0.0:9000" {
		t.Errorf("Address() = %q", got)
	}
}
