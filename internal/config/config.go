// Package config loads the policy knobs that govern retry behavior,
// logging, pricing freshness, and security deny-lists from a single
// config.yaml, merged over hardcoded defaults. The CLI loads it once per
// command while building its dependencies (there is no package-level
// Config variable and no cobra PersistentPreRun hook); the struct is
// generalized from a one-shot distillation of the original app's
// AppSettings dataclass.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RetryPolicy configures internal/transport's backoff and circuit breaker.
type RetryPolicy struct {
	MaxAttempts               int     `yaml:"max_attempts"`
	BaseDelaySeconds          float64 `yaml:"base_delay_s"`
	MaxDelaySeconds           float64 `yaml:"max_delay_s"`
	JitterSeconds             float64 `yaml:"jitter_s"`
	CircuitBreakerFailures    int     `yaml:"circuit_breaker_failures"`
	CircuitBreakerCooldownSec float64 `yaml:"circuit_breaker_cooldown_s"`
}

// LoggingPolicy bounds how much the Run Logger retains on disk.
type LoggingPolicy struct {
	MaxTotalMB int `yaml:"max_total_mb"`
	MaxRuns    int `yaml:"max_runs"`
}

// PricingPolicy controls how stale the consumed pricing table may get
// before receipts are flagged cost_estimated.
type PricingPolicy struct {
	TableFile    string `yaml:"table_file"`
	CacheTTLHours int   `yaml:"cache_ttl_hours"`
}

// SecurityPolicy feeds internal/pathsafety.WalkOptions.
type SecurityPolicy struct {
	AllowUploadSensitive bool     `yaml:"allow_upload_sensitive"`
	DenyExtensions       []string `yaml:"deny_extensions"`
	AllowExtensions      []string `yaml:"allow_extensions"`
	DenyGlobs            []string `yaml:"deny_globs"`
	AllowGlobs           []string `yaml:"allow_globs"`
}

// Config is the top-level, merged-over-defaults application configuration.
type Config struct {
	DBPath         string         `yaml:"db_path"`
	LogDir         string         `yaml:"log_dir"`
	CapabilityDir  string         `yaml:"capability_cache_dir"`
	Retry          RetryPolicy    `yaml:"retry"`
	Logging        LoggingPolicy  `yaml:"logging"`
	Pricing        PricingPolicy  `yaml:"pricing"`
	Security       SecurityPolicy `yaml:"security"`
	BatchPollIntervalSec float64  `yaml:"batch_poll_interval_s"`
	BatchTimeoutSec      float64  `yaml:"batch_timeout_s"`
	DefaultModel         string   `yaml:"default_model"`
	DefaultTemperature   float64  `yaml:"default_temperature"`
	RequestTimeoutSec    float64  `yaml:"request_timeout_s"`
	APIAddr              string   `yaml:"api_addr"`
}

var defaultDenyExtensions = []string{
	".exe", ".dll", ".zip", ".7z", ".rar", ".png", ".jpg", ".jpeg",
	".gif", ".pdf", ".db", ".sqlite", ".pkl", ".pt", ".onnx",
}

var defaultDenyGlobs = []string{
	"**/.git/**", "**/node_modules/**", "**/venv/**", "**/.venv/**", "**/LOG/**",
}

// Default returns the hardcoded baseline configuration.
func Default() Config {
	return Config{
		DBPath:        "receipts.sqlite",
		LogDir:        "LOG",
		CapabilityDir: "cache/capability",
		Retry: RetryPolicy{
			MaxAttempts:               5,
			BaseDelaySeconds:          0.5,
			MaxDelaySeconds:           30,
			JitterSeconds:             1.0,
			CircuitBreakerFailures:    5,
			CircuitBreakerCooldownSec: 30,
		},
		Logging: LoggingPolicy{MaxTotalMB: 2048, MaxRuns: 200},
		Pricing: PricingPolicy{TableFile: "pricing.json", CacheTTLHours: 24 * 7},
		Security: SecurityPolicy{
			DenyExtensions: append([]string(nil), defaultDenyExtensions...),
			DenyGlobs:      append([]string(nil), defaultDenyGlobs...),
		},
		BatchPollIntervalSec: 5,
		BatchTimeoutSec:      3600,
		DefaultTemperature:   0.2,
		RequestTimeoutSec:    120,
		APIAddr:              "127.0.0.1:8723",
	}
}

// Load reads path (if it exists) and merges it over Default(). A missing
// file is not an error — the defaults apply as-is, matching the original
// settings loader's "no file yet" behavior.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RetryPolicyDuration helpers convert the YAML-friendly float seconds into
// time.Duration for internal/transport.
func (r RetryPolicy) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds * float64(time.Second))
}

func (r RetryPolicy) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySeconds * float64(time.Second))
}

func (r RetryPolicy) CircuitBreakerCooldown() time.Duration {
	return time.Duration(r.CircuitBreakerCooldownSec * float64(time.Second))
}

func (r RetryPolicy) Jitter() time.Duration {
	return time.Duration(r.JitterSeconds * float64(time.Second))
}
