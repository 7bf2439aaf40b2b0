package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the guardian agent.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Collector CollectorConfig `yaml:"collector"`
	Auth      AuthConfig      `yaml:"auth"`
	Capture   CaptureConfig   `yaml:"capture"`
	UI        UIConfig        `yaml:"ui"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the panel API listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// CollectorConfig configures delivery of incidents to the backend collector.
type CollectorConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	IncidentsPath string        `yaml:"incidentsPath"`
	Timeout       time.Duration `yaml:"timeout"`
}

// AuthConfig configures the token refresh endpoint.
type AuthConfig struct {
	RefreshURL string `yaml:"refreshURL"`
}

// CaptureConfig controls screenshot capture through the browser session.
type CaptureConfig struct {
	Enabled     bool          `yaml:"enabled"`
	DevtoolsURL string        `yaml:"devtoolsURL"`
	Timeout     time.Duration `yaml:"timeout"`
	Scale       float64       `yaml:"scale"`
	Quality     int           `yaml:"quality"`
}

// UIConfig holds the application routes remedial navigation targets.
type UIConfig struct {
	HomeURL   string `yaml:"homeURL"`
	SignInURL string `yaml:"signInURL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GUARDIAN_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8787",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Collector: CollectorConfig{
			IncidentsPath: "/api/v1/guardian/incidents",
			Timeout:       10 * time.Second,
		},
		Capture: CaptureConfig{
			Enabled: true,
			Timeout: 3 * time.Second,
			Scale:   0.5,
			Quality: 60,
		},
		UI: UIConfig{
			HomeURL:   "/",
			SignInURL: "/sign-in",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GUARDIAN_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("GUARDIAN_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("GUARDIAN_COLLECTOR_BASE_URL"); v != "" {
		cfg.Collector.BaseURL = v
	}
	if v := os.Getenv("GUARDIAN_COLLECTOR_INCIDENTS_PATH"); v != "" {
		cfg.Collector.IncidentsPath = v
	}
	if v := os.Getenv("GUARDIAN_COLLECTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Collector.Timeout = d
		}
	}
	if v := os.Getenv("GUARDIAN_AUTH_REFRESH_URL"); v != "" {
		cfg.Auth.RefreshURL = v
	}
	if v := os.Getenv("GUARDIAN_CAPTURE_ENABLED"); v != "" {
		cfg.Capture.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("GUARDIAN_CAPTURE_DEVTOOLS_URL"); v != "" {
		cfg.Capture.DevtoolsURL = v
	}
	if v := os.Getenv("GUARDIAN_CAPTURE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Capture.Timeout = d
		}
	}
	if v := os.Getenv("GUARDIAN_CAPTURE_SCALE"); v != "" {
		if scale, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Capture.Scale = scale
		}
	}
	if v := os.Getenv("GUARDIAN_CAPTURE_QUALITY"); v != "" {
		if quality, err := strconv.Atoi(v); err == nil {
			cfg.Capture.Quality = quality
		}
	}
	if v := os.Getenv("GUARDIAN_UI_HOME_URL"); v != "" {
		cfg.UI.HomeURL = v
	}
	if v := os.Getenv("GUARDIAN_UI_SIGN_IN_URL"); v != "" {
		cfg.UI.SignInURL = v
	}
	if v := os.Getenv("GUARDIAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GUARDIAN_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
