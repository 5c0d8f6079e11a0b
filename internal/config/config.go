package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Built-in target constants. The journey runs against these unless a
// config file or environment variable says otherwise.
const (
	DefaultBaseURI     = "https://reqres.in/api/"
	DefaultAPIKey      = "reqres-free-v1"
	DefaultEmailSuffix = "mm"
)

type Config struct {
	Target  TargetConfig  `yaml:"target" envPrefix:"TARGET_"`
	Run     RunConfig     `yaml:"run" envPrefix:"RUN_"`
	Report  ReportConfig  `yaml:"report" envPrefix:"REPORT_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

type TargetConfig struct {
	BaseURI string        `yaml:"base_uri" env:"BASE_URI" validate:"required,url"`
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"` // 0 leaves the http.Client default
}

type RunConfig struct {
	EmailSuffix       string  `yaml:"email_suffix" env:"EMAIL_SUFFIX" validate:"required"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND" validate:"gte=0"`
	CrossCheckLogin   bool    `yaml:"cross_check_login" env:"CROSS_CHECK_LOGIN"`
	Cleanup           bool    `yaml:"cleanup" env:"CLEANUP"`
	Seed              uint64  `yaml:"seed" env:"SEED"`
}

type ReportConfig struct {
	Path   string `yaml:"path" env:"PATH"`
	Format string `yaml:"format" env:"FORMAT" validate:"oneof=json yaml"`
}

type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" env:"TEXTFILE_PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURI: DefaultBaseURI,
			APIKey:  DefaultAPIKey,
		},
		Run: RunConfig{
			EmailSuffix: DefaultEmailSuffix,
		},
		Report: ReportConfig{
			Format: "json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a config from defaults, an optional YAML file and the
// environment, in that order of precedence (last wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize trims values that would otherwise produce illegal headers.
func (c *Config) Normalize() {
	c.Target.BaseURI = strings.TrimSpace(c.Target.BaseURI)
	c.Target.APIKey = strings.TrimSpace(c.Target.APIKey)
	c.Report.Format = strings.ToLower(strings.TrimSpace(c.Report.Format))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate checks the config after all overlays are applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
