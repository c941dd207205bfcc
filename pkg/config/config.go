package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys are looked up in the environment in upper case (SAMPLE_INTERVAL, ...)
const (
	KeySampleInterval  = "sample_interval"
	KeyEvalInterval    = "eval_interval"
	KeyWindowSize      = "window_size"
	KeyCPUThreshold    = "cpu_threshold"
	KeyMemThreshold    = "mem_threshold"
	KeyActionCooldown  = "action_cooldown"
	KeyWebhook         = "agent_webhook"
	KeyWebhookTimeout  = "webhook_timeout"
	KeyTargetPID       = "target_pid"
	KeyMetricsPort     = "metrics_port"
	KeyNiceIncrement   = "nice_increment"
	KeyGracefulTimeout = "graceful_timeout"
	KeySampleScope     = "sample_scope"
	KeyMetricsSource   = "metrics_source"
	KeyPrometheusURL   = "prometheus_url"
	KeyStorageEnabled  = "storage_enabled"
	KeyDatabaseURL     = "database_url"
	KeyLogLevel        = "log_level"
	KeyLogFile         = "log_file"
)

const DefaultDatabaseURL = "host=localhost port=5432 user=selfheal password=devpassword dbname=selfheal sslmode=disable"

// Config holds application configuration
type Config struct {
	// Sampling
	SampleInterval time.Duration
	EvalInterval   time.Duration
	WindowSize     int
	SampleScope    string // host, process
	MetricsSource  string // local, prometheus
	PrometheusURL  string

	// Policy
	CPUThreshold    float64
	MemThreshold    float64
	ActionCooldown  time.Duration
	TargetPID       int32
	NiceIncrement   int
	GracefulTimeout time.Duration

	// Outputs
	Webhook        string
	WebhookTimeout time.Duration
	MetricsPort    int

	// Storage
	StorageEnabled bool
	DatabaseURL    string

	// Logging
	LogLevel string
	LogFile  string
}

// SetDefaults registers defaults and environment lookup on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySampleInterval, "2.0")
	v.SetDefault(KeyEvalInterval, "")
	v.SetDefault(KeyWindowSize, "12")
	v.SetDefault(KeyCPUThreshold, "0.90")
	v.SetDefault(KeyMemThreshold, "0.90")
	v.SetDefault(KeyActionCooldown, "30")
	v.SetDefault(KeyWebhook, "")
	v.SetDefault(KeyWebhookTimeout, "3")
	v.SetDefault(KeyTargetPID, "1")
	v.SetDefault(KeyMetricsPort, "9100")
	v.SetDefault(KeyNiceIncrement, "5")
	v.SetDefault(KeyGracefulTimeout, "5")
	v.SetDefault(KeySampleScope, "host")
	v.SetDefault(KeyMetricsSource, "local")
	v.SetDefault(KeyPrometheusURL, "http://localhost:9090")
	v.SetDefault(KeyStorageEnabled, "false")
	v.SetDefault(KeyDatabaseURL, DefaultDatabaseURL)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// NewConfig reads configuration from the environment with defaults
func NewConfig() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return Load(v)
}

// Load builds a Config from v. Values that do not parse are reported
// together; range checks are left to Validate.
func Load(v *viper.Viper) (*Config, error) {
	p := &parser{v: v}

	cfg := &Config{
		SampleInterval:  p.duration(KeySampleInterval),
		WindowSize:      p.integer(KeyWindowSize),
		SampleScope:     strings.ToLower(strings.TrimSpace(v.GetString(KeySampleScope))),
		MetricsSource:   strings.ToLower(strings.TrimSpace(v.GetString(KeyMetricsSource))),
		PrometheusURL:   v.GetString(KeyPrometheusURL),
		CPUThreshold:    p.number(KeyCPUThreshold),
		MemThreshold:    p.number(KeyMemThreshold),
		ActionCooldown:  p.duration(KeyActionCooldown),
		TargetPID:       int32(p.integer(KeyTargetPID)),
		NiceIncrement:   p.integer(KeyNiceIncrement),
		GracefulTimeout: p.duration(KeyGracefulTimeout),
		Webhook:         strings.TrimSpace(v.GetString(KeyWebhook)),
		WebhookTimeout:  p.duration(KeyWebhookTimeout),
		MetricsPort:     p.integer(KeyMetricsPort),
		StorageEnabled:  p.boolean(KeyStorageEnabled),
		DatabaseURL:     v.GetString(KeyDatabaseURL),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFile:         v.GetString(KeyLogFile),
	}

	if strings.TrimSpace(v.GetString(KeyEvalInterval)) == "" {
		cfg.EvalInterval = cfg.SampleInterval
	} else {
		cfg.EvalInterval = p.duration(KeyEvalInterval)
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return cfg, nil
}

// ParseDuration accepts seconds as a number ("2", "0.5") or a Go duration ("2s")
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: want seconds or a duration like 2s", s)
	}
	return d, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.WindowSize >= 1, "WINDOW_SIZE must be at least 1, got %d", c.WindowSize)
	check(c.CPUThreshold >= 0, "CPU_THRESHOLD must not be negative, got %v", c.CPUThreshold)
	check(c.MemThreshold >= 0, "MEM_THRESHOLD must not be negative, got %v", c.MemThreshold)
	check(c.SampleInterval > 0, "SAMPLE_INTERVAL must be positive, got %v", c.SampleInterval)
	check(c.EvalInterval > 0, "EVAL_INTERVAL must be positive, got %v", c.EvalInterval)
	check(c.ActionCooldown >= 0, "ACTION_COOLDOWN must not be negative, got %v", c.ActionCooldown)
	check(c.WebhookTimeout > 0, "WEBHOOK_TIMEOUT must be positive, got %v", c.WebhookTimeout)
	check(c.GracefulTimeout > 0, "GRACEFUL_TIMEOUT must be positive, got %v", c.GracefulTimeout)
	check(c.TargetPID > 0, "TARGET_PID must be positive, got %d", c.TargetPID)
	check(c.MetricsPort >= 1 && c.MetricsPort <= 65535, "METRICS_PORT must be in 1..65535, got %d", c.MetricsPort)
	check(c.NiceIncrement >= 1 && c.NiceIncrement <= 39, "NICE_INCREMENT must be in 1..39, got %d", c.NiceIncrement)

	switch c.SampleScope {
	case "host", "process":
	default:
		errs = append(errs, fmt.Errorf("SAMPLE_SCOPE must be host or process, got %q", c.SampleScope))
	}
	switch c.MetricsSource {
	case "local":
	case "prometheus":
		check(c.PrometheusURL != "", "PROMETHEUS_URL must be set when METRICS_SOURCE is prometheus")
	default:
		errs = append(errs, fmt.Errorf("METRICS_SOURCE must be local or prometheus, got %q", c.MetricsSource))
	}
	check(!c.StorageEnabled || c.DatabaseURL != "", "DATABASE_URL must be set when storage is enabled")

	return errors.Join(errs...)
}

// MetricsAddr is the listen address of the metrics endpoint
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf(":%d", c.MetricsPort)
}

type parser struct {
	v    *viper.Viper
	errs []error
}

func (p *parser) duration(key string) time.Duration {
	d, err := ParseDuration(p.v.GetString(key))
	if err != nil {
		p.fail(key, err)
	}
	return d
}

func (p *parser) number(key string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(p.v.GetString(key)), 64)
	if err != nil {
		p.fail(key, err)
	}
	return f
}

func (p *parser) integer(key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(p.v.GetString(key)))
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *parser) boolean(key string) bool {
	s := strings.ToLower(strings.TrimSpace(p.v.GetString(key)))
	switch s {
	case "true", "1", "yes":
		return true
	case "false", "0", "no", "":
		return false
	}
	p.fail(key, fmt.Errorf("invalid boolean %q", s))
	return false
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", strings.ToUpper(key), err))
}
