package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	KeyBackendURL      = "backend.url"
	KeyBackendPageSize = "backend.page_size"
	KeyWebPort         = "web.port"
	KeyTrackerDebounce = "tracker.save_debounce_ms"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend" validate:"required"`
	Web     WebConfig     `mapstructure:"web"`
	Tracker TrackerConfig `mapstructure:"tracker"`
}

type BackendConfig struct {
	URL      string `mapstructure:"url" validate:"required,url"`
	PageSize int    `mapstructure:"page_size" validate:"gte=1,lte=100"`
}

type WebConfig struct {
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`
}

type TrackerConfig struct {
	// SaveDebounceMillis is the delay between a keystroke and the scheduled
	// save it triggers. A blur always flushes immediately.
	SaveDebounceMillis int `mapstructure:"save_debounce_ms" validate:"gte=0"`
}

// SetDefaults sets default values if not provided
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// LoadAndValidate loads config from Viper and validates it
func LoadAndValidate() (*Config, error) {
	return loadAndValidateFromViper(viper.GetViper())
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return loadAndValidateFromViper(local)
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# tickdash configuration
backend:
  url: "http://localhost:4000"
  page_size: 10

web:
  port: 8484

tracker:
  save_debounce_ms: 750
`
}

func loadAndValidateFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := validateBackendURL(cfg.Backend.URL); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackendURL, "http://localhost:4000")
	v.SetDefault(KeyBackendPageSize, 10)
	v.SetDefault(KeyWebPort, 8484)
	v.SetDefault(KeyTrackerDebounce, 750)
}

func validateBackendURL(value string) error {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return fmt.Errorf("validation failed: backend.url %q must be an http(s) URL", value)
	}
	return nil
}
