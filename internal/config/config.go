// Package config provides YAML-based configuration loading for the
// dashboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level dashboard configuration, loaded from
// momentsd.yaml.
type Config struct {
	ListenPort int           `yaml:"listen_port"`
	BackendURL string        `yaml:"backend_url"`
	DataDir    string        `yaml:"data_dir"`
	LogLevel   string        `yaml:"log_level"`
	HTTP       HTTPConfig    `yaml:"http"`
	Roster     RosterConfig  `yaml:"roster"`
	Summary    SummaryConfig `yaml:"summary"`
	Detection  Detection     `yaml:"detection"`
}

// HTTPConfig holds client-side timeout and retry settings for backend
// calls. Retries apply to idempotent reads only.
type HTTPConfig struct {
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// RosterConfig controls how the user-id roster is kept fresh.
type RosterConfig struct {
	// RefreshSpec is a robfig/cron schedule for re-fetching the roster.
	RefreshSpec string `yaml:"refresh_spec"`
}

// SummaryConfig selects the summarization models offered in the UI.
type SummaryConfig struct {
	DefaultModel string   `yaml:"default_model"`
	Models       []string `yaml:"models"`
}

// Detection holds the default change-point-detection parameters shown in
// the add-data flow. The values are passed through to the backend opaquely.
type Detection struct {
	Alpha      float64 `yaml:"alpha"`
	Beta       float64 `yaml:"beta"`
	Hazard     int     `yaml:"hazard"`
	SpanRadius int     `yaml:"span_radius"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Timeout returns the backend request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.ListenPort == 0 {
		c.ListenPort = 8080
	}
	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:8000"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 15
	}
	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = 3
	}
	if c.HTTP.RetryBaseDelay == 0 {
		c.HTTP.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.Roster.RefreshSpec == "" {
		c.Roster.RefreshSpec = "@every 5m"
	}
	if c.Summary.DefaultModel == "" {
		c.Summary.DefaultModel = "tulu"
	}
	if len(c.Summary.Models) == 0 {
		c.Summary.Models = []string{"tulu", "meta-llama/Meta-Llama-3.1-8B-Instruct"}
	}
	if c.Detection.Alpha == 0 {
		c.Detection.Alpha = 0.01
	}
	if c.Detection.Beta == 0 {
		c.Detection.Beta = 10
	}
	if c.Detection.Hazard == 0 {
		c.Detection.Hazard = 1000
	}
	if c.Detection.SpanRadius == 0 {
		c.Detection.SpanRadius = 7
	}
}

// validate checks that all fields are present and in range.
func (c *Config) validate() error {
	var errs []string
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Sprintf("listen_port %d out of range", c.ListenPort))
	}
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		errs = append(errs, fmt.Sprintf("backend_url %q must be http(s)", c.BackendURL))
	}
	if err := ValidateDetection(c.Detection); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateDetection checks change-point-detection parameters against the
// ranges the backend accepts: alpha and beta in [0,10], hazard in [1,2000],
// span_radius in [1,30].
func ValidateDetection(d Detection) error {
	var errs []string
	if d.Alpha < 0 || d.Alpha > 10 {
		errs = append(errs, fmt.Sprintf("alpha %g out of range [0,10]", d.Alpha))
	}
	if d.Beta < 0 || d.Beta > 10 {
		errs = append(errs, fmt.Sprintf("beta %g out of range [0,10]", d.Beta))
	}
	if d.Hazard < 1 || d.Hazard > 2000 {
		errs = append(errs, fmt.Sprintf("hazard %d out of range [1,2000]", d.Hazard))
	}
	if d.SpanRadius < 1 || d.SpanRadius > 30 {
		errs = append(errs, fmt.Sprintf("span_radius %d out of range [1,30]", d.SpanRadius))
	}
	if len(errs) > 0 {
		return fmt.Errorf("detection parameters: %s", strings.Join(errs, "; "))
	}
	return nil
}
