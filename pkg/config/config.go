// Package config loads runtime settings. Values are layered: built-in
// defaults, then an optional YAML file, then OPFORM_* environment
// variables, then command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-opform/internal/logging"
	"github.com/goliatone/go-opform/pkg/zipcode"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPFORM_"

// Config is the full runtime configuration.
type Config struct {
	Server Server `yaml:"server"`
	Lookup Lookup `yaml:"lookup"`
	Log    Log    `yaml:"log"`
	Dev    bool   `yaml:"dev"`
}

// Server configures the HTTP front end.
type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Lookup configures the CEP lookup client.
type Lookup struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	DiscardStale  bool          `yaml:"discard_stale"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Lookup: Lookup{
			BaseURL: zipcode.DefaultBaseURL,
			Timeout: zipcode.DefaultTimeout,
			Burst:   1,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// ParseYAML overlays a YAML document onto cfg. Keys absent from the
// document keep their current value.
func ParseYAML(raw []byte, cfg *Config) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	return nil
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return ParseYAML(raw, cfg)
}

// ApplyEnv overlays OPFORM_* variables read through lookup (os.LookupEnv
// in production).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		value, ok := lookup(EnvPrefix + key)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(value), true
	}

	var errs []error
	if v, ok := get("ADDR"); ok {
		cfg.Server.Addr = v
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := get("LOOKUP_URL"); ok {
		cfg.Lookup.BaseURL = v
	}
	if v, ok := get("LOOKUP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %sLOOKUP_TIMEOUT: %w", EnvPrefix, err))
		} else {
			cfg.Lookup.Timeout = d
		}
	}
	if v, ok := get("LOOKUP_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %sLOOKUP_RATE: %w", EnvPrefix, err))
		} else {
			cfg.Lookup.RatePerSecond = f
		}
	}
	if v, ok := get("LOOKUP_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %sLOOKUP_BURST: %w", EnvPrefix, err))
		} else {
			cfg.Lookup.Burst = n
		}
	}
	if v, ok := get("LOOKUP_DISCARD_STALE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %sLOOKUP_DISCARD_STALE: %w", EnvPrefix, err))
		} else {
			cfg.Lookup.DiscardStale = b
		}
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	if v, ok := get("DEV"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %sDEV: %w", EnvPrefix, err))
		} else {
			cfg.Dev = b
		}
	}
	return errors.Join(errs...)
}

// Flags binds command line flags. Call Apply after parsing to copy the
// flags the user actually set onto a Config.
type Flags struct {
	set *flag.FlagSet

	ConfigPath    string
	Addr          string
	LookupURL     string
	LookupTimeout time.Duration
	LogLevel      string
	LogFormat     string
	Dev           bool
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{set: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "path to a YAML config file")
	fs.StringVar(&f.Addr, "addr", "", "HTTP listen address for serve")
	fs.StringVar(&f.LookupURL, "lookup-url", "", "CEP lookup base URL")
	fs.DurationVar(&f.LookupTimeout, "lookup-timeout", 0, "CEP lookup timeout")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFormat, "log-format", "", "log format (text, json)")
	fs.BoolVar(&f.Dev, "dev", false, "development mode (template reload, debug logs)")
	return f
}

// Apply copies explicitly set flags onto cfg.
func (f *Flags) Apply(cfg *Config) {
	f.set.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Server.Addr = f.Addr
		case "lookup-url":
			cfg.Lookup.BaseURL = f.LookupURL
		case "lookup-timeout":
			cfg.Lookup.Timeout = f.LookupTimeout
		case "log-level":
			cfg.Log.Level = f.LogLevel
		case "log-format":
			cfg.Log.Format = f.LogFormat
		case "dev":
			cfg.Dev = f.Dev
		}
	})
}

// Load builds the layered configuration. An empty config path skips the
// file layer.
func Load(flags *Flags, env func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if flags != nil && flags.ConfigPath != "" {
		if err := LoadFile(flags.ConfigPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, env); err != nil {
		return Config{}, err
	}
	if flags != nil {
		flags.Apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the program cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("config: server.addr is required"))
	}
	if u, err := url.Parse(c.Lookup.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: lookup.base_url %q is not an absolute URL", c.Lookup.BaseURL))
	}
	if c.Lookup.Timeout <= 0 {
		errs = append(errs, errors.New("config: lookup.timeout must be positive"))
	}
	if c.Lookup.RatePerSecond < 0 {
		errs = append(errs, errors.New("config: lookup.rate_per_second must not be negative"))
	}
	if c.Lookup.RatePerSecond > 0 && c.Lookup.Burst < 1 {
		errs = append(errs, errors.New("config: lookup.burst must be at least 1 when rate limiting"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("config: log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
