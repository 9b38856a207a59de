package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NOTE: the config file is optional. Values are resolved as
// defaults <- YAML file <- environment.

const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 443
	defaultWindowDays     = 10
	defaultProductID      = "StarlingCalendar"
	defaultCalendarName   = "Starling Payments"
	defaultAPIBaseURL     = "https://api.starlingbank.com"
	defaultRequestTimeout = 15 * time.Second
	defaultLogLevel       = "info"
)

// Config is the top-level application configuration.
type Config struct {
	// Host and Port form the HTTP listen address.
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// Timezone is the IANA timezone calendar dates are taken in
	// (e.g. "Europe/London"). Empty means the machine's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WindowDays is how many days ahead upcoming direct debits are fetched.
	WindowDays int `yaml:"window_days" json:"window_days"`

	ProductID    string `yaml:"product_id" json:"product_id"`
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// APIBaseURL is the Starling API root; point at the sandbox for testing.
	APIBaseURL     string        `yaml:"api_base_url" json:"api_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// RedirectHTTPS enables the plain-HTTP to HTTPS redirect. Disable for
	// local development without a TLS-terminating proxy.
	RedirectHTTPS bool `yaml:"redirect_https" json:"redirect_https"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:           defaultHost,
		Port:           defaultPort,
		Timezone:       "",
		WindowDays:     defaultWindowDays,
		ProductID:      defaultProductID,
		CalendarName:   defaultCalendarName,
		APIBaseURL:     defaultAPIBaseURL,
		RequestTimeout: defaultRequestTimeout,
		RedirectHTTPS:  true,
		LogLevel:       defaultLogLevel,
	}
}

// Listen returns the host:port listen address.
func (c *Config) Listen() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.WindowDays <= 0 {
		c.WindowDays = defaultWindowDays
	}
	if c.ProductID == "" {
		c.ProductID = defaultProductID
	}
	if c.CalendarName == "" {
		c.CalendarName = defaultCalendarName
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.WindowDays < 1 {
		errs = append(errs, fmt.Errorf("invalid window_days %d: must be positive", c.WindowDays))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
		}
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid api_base_url %q: must be an absolute http(s) URL", c.APIBaseURL))
	}

	return errors.Join(errs...)
}

// Load resolves the configuration from defaults, the optional YAML file at
// path, and the environment (in that order of precedence, lowest first).
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// Defaults plus environment.
		default:
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment without overriding variables already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("HOST", &c.Host)
	integer("PORT", &c.Port)
	str("STARLINGCAL_TIMEZONE", &c.Timezone)
	integer("STARLINGCAL_WINDOW_DAYS", &c.WindowDays)
	str("STARLINGCAL_PRODUCT_ID", &c.ProductID)
	str("STARLINGCAL_API_BASE_URL", &c.APIBaseURL)
	str("STARLINGCAL_LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("STARLINGCAL_REQUEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("STARLINGCAL_REQUEST_TIMEOUT: %w", err))
		} else {
			c.RequestTimeout = d
		}
	}
	if v, ok := lookup("STARLINGCAL_REDIRECT_HTTPS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("STARLINGCAL_REDIRECT_HTTPS: %w", err))
		} else {
			c.RedirectHTTPS = b
		}
	}

	return errors.Join(errs...)
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".starlingcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
