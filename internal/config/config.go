// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; the API key and the sink DSN go to
// the OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/copier"

	"indexsupply/cli/internal/xdg"
	"indexsupply/cli/pkg/indexsupply"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	APIURL         string      `json:"api_url"`
	Chain          uint64      `json:"chain"`
	LogLevel       string      `json:"log_level"`
	Output         string      `json:"output"`
	MetricsAddr    string      `json:"metrics_addr,omitempty"`
	RequestTimeout Duration    `json:"request_timeout"`
	Retry          RetryConfig `json:"retry"`
}

// RetryConfig mirrors indexsupply.RetryPolicy.
type RetryConfig struct {
	BaseDelay   Duration `json:"base_delay"`
	MaxDelay    Duration `json:"max_delay"`
	MaxAttempts int      `json:"max_attempts"`
}

// Policy converts the config into a client retry policy.
func (r RetryConfig) Policy() indexsupply.RetryPolicy {
	return indexsupply.RetryPolicy{
		BaseDelay:   time.Duration(r.BaseDelay),
		MaxDelay:    time.Duration(r.MaxDelay),
		MaxAttempts: r.MaxAttempts,
	}
}

// Duration is a time.Duration stored as a string such as "1.5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Plain numbers are milliseconds.
		var ms int64
		if err2 := json.Unmarshal(b, &ms); err2 != nil {
			return fmt.Errorf("duration must be a string like \"10s\": %w", err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Overrides are values supplied by flags or environment variables. Empty
// fields leave the loaded config untouched.
type Overrides struct {
	APIURL      string
	Chain       uint64
	LogLevel    string
	Output      string
	MetricsAddr string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:         indexsupply.DefaultAPIURL,
		Chain:          indexsupply.ChainBase,
		LogLevel:       "info",
		Output:         "table",
		RequestTimeout: Duration(indexsupply.DefaultRequestTimeout),
		Retry: RetryConfig{
			BaseDelay:   Duration(indexsupply.DefaultBaseDelay),
			MaxDelay:    Duration(indexsupply.DefaultMaxDelay),
			MaxAttempts: indexsupply.DefaultQueryAttempts,
		},
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; a missing file returns defaults. Settings absent
// from the file keep their default values.
func Load() (Config, error) {
	c := Default()
	p, err := Path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", p, err)
	}
	return c, nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

// Apply copies the non-empty fields of o onto c.
func (c *Config) Apply(o Overrides) error {
	return copier.CopyWithOption(c, &o, copier.Option{IgnoreEmpty: true})
}

// FromEnv reads INDEXSUPPLY_API_URL, INDEXSUPPLY_CHAIN and INDEXSUPPLY_LOG_LEVEL.
func FromEnv() (Overrides, error) {
	o := Overrides{
		APIURL:   os.Getenv("INDEXSUPPLY_API_URL"),
		LogLevel: os.Getenv("INDEXSUPPLY_LOG_LEVEL"),
	}
	if v := os.Getenv("INDEXSUPPLY_CHAIN"); v != "" {
		chain, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return o, fmt.Errorf("INDEXSUPPLY_CHAIN: %w", err)
		}
		o.Chain = chain
	}
	return o, nil
}

// Keys lists the settings accepted by Set.
var Keys = []string{
	"api_url", "chain", "log_level", "output", "metrics_addr", "request_timeout",
	"retry.base_delay", "retry.max_delay", "retry.max_attempts",
}

// Set assigns one setting by key.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case "api_url":
		c.APIURL = value
	case "chain":
		c.Chain, err = strconv.ParseUint(value, 10, 64)
	case "log_level":
		if !validLevel(value) {
			return fmt.Errorf("log_level must be one of debug, info, warn, error")
		}
		c.LogLevel = value
	case "output":
		if value != "table" && value != "json" && value != "cbor" {
			return fmt.Errorf("output must be one of table, json, cbor")
		}
		c.Output = value
	case "metrics_addr":
		c.MetricsAddr = value
	case "request_timeout":
		err = setDuration(&c.RequestTimeout, value)
	case "retry.base_delay":
		err = setDuration(&c.Retry.BaseDelay, value)
	case "retry.max_delay":
		err = setDuration(&c.Retry.MaxDelay, value)
	case "retry.max_attempts":
		c.Retry.MaxAttempts, err = strconv.Atoi(value)
		if err == nil && c.Retry.MaxAttempts < 0 {
			err = errors.New("must not be negative")
		}
	default:
		return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func setDuration(dst *Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = Duration(d)
	return nil
}

func validLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
