package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// ErrNoToken is returned when neither the environment nor ~/.arcrc holds a
// token for the configured server.
var ErrNoToken = errors.New("no API token found")

// Config represents the restack configuration.
type Config struct {
	URL            string      `json:"url,omitempty" yaml:"url,omitempty"`
	Format         string      `json:"format" yaml:"format"`
	LogLevel       string      `json:"logLevel" yaml:"logLevel"`
	MaxRetries     int         `json:"maxRetries" yaml:"maxRetries"`
	TimeoutSeconds int         `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	Spinner        bool        `json:"spinner" yaml:"spinner"`
	Cache          CacheConfig `json:"cache" yaml:"cache"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Dir        string `json:"dir,omitempty" yaml:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds" yaml:"ttlSeconds"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Format:         "text",
		LogLevel:       "warn",
		MaxRetries:     3,
		TimeoutSeconds: 60,
		Spinner:        true,
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 7 * 86400,
		},
	}
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid logLevel %q", c.LogLevel)
	}
	return lvl, nil
}

// ConfigDir returns the platform-appropriate config directory for restack.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "restack"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "restack"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "restack"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "restack"), nil
	default:
		return filepath.Join(home, ".config", "restack"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile returns the defaults overlaid with the config file. Keys the
// file leaves out keep their default, booleans included.
func LoadFile() (Config, error) {
	cfg := Default()
	if err := mergeFile(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging:
// defaults <- file <- .arcconfig <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}

	wd, err := os.Getwd()
	if err == nil {
		uri, err := ArcConfigURL(wd)
		if err != nil {
			return Config{}, err
		}
		if uri != "" {
			cfg.URL = uri
		}
	}

	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeEnv(cfg *Config) error {
	if v := os.Getenv("RESTACK_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("RESTACK_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("RESTACK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RESTACK_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RESTACK_MAX_RETRIES must be an integer: %w", err)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("RESTACK_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RESTACK_TIMEOUT_SECONDS must be an integer: %w", err)
		}
		cfg.TimeoutSeconds = n
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, v := range overrides {
		if v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return err
		}
	}
	return nil
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "url":
		cfg.URL = value
	case "format":
		cfg.Format = value
	case "logLevel":
		cfg.LogLevel = value
	case "maxRetries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxRetries must be an integer: %w", err)
		}
		cfg.MaxRetries = n
	case "timeoutSeconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("timeoutSeconds must be an integer: %w", err)
		}
		cfg.TimeoutSeconds = n
	case "spinner":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("spinner must be true or false: %w", err)
		}
		cfg.Spinner = b
	case "cache.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cache.enabled must be true or false: %w", err)
		}
		cfg.Cache.Enabled = b
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache.ttlSeconds must be an integer: %w", err)
		}
		cfg.Cache.TTLSeconds = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// ArcConfigURL returns phabricator.uri from the nearest .arcconfig in dir or
// one of its parents, or "" when there is none.
func ArcConfigURL(dir string) (string, error) {
	for {
		path := filepath.Join(dir, ".arcconfig")
		data, err := os.ReadFile(path)
		if err == nil {
			var arc map[string]any
			if err := json.Unmarshal(data, &arc); err != nil {
				return "", fmt.Errorf("parsing %s: %w", path, err)
			}
			uri, _ := arc["phabricator.uri"].(string)
			return uri, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

type arcrc struct {
	Hosts map[string]struct {
		Token string `json:"token"`
	} `json:"hosts"`
}

// Token returns the Conduit token for the server at url, from
// RESTACK_API_TOKEN or the matching hosts entry of ~/.arcrc.
func Token(url string) (string, error) {
	if v := os.Getenv("RESTACK_API_TOKEN"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	path := filepath.Join(home, ".arcrc")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	var rc arcrc
	if err := json.Unmarshal(data, &rc); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	want := hostKey(url)
	for host, entry := range rc.Hosts {
		if hostKey(host) == want && entry.Token != "" {
			return entry.Token, nil
		}
	}
	return "", fmt.Errorf("%w for %s in %s", ErrNoToken, url, path)
}

// hostKey normalizes a server URL so "https://x", "https://x/" and
// "https://x/api/" compare equal.
func hostKey(url string) string {
	u := strings.TrimSuffix(strings.TrimSpace(url), "/")
	u = strings.TrimSuffix(u, "/api")
	return strings.ToLower(u)
}
