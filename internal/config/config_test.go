package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points every location config reads at temp dirs.
func isolate(t *testing.T) (configHome, home string) {
	t.Helper()
	configHome = t.TempDir()
	home = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("HOME", home)
	for _, k := range []string{"RESTACK_URL", "RESTACK_API_TOKEN", "RESTACK_FORMAT", "RESTACK_LOG_LEVEL", "RESTACK_MAX_RETRIES", "RESTACK_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}
	return configHome, home
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Format != "text" {
		t.Errorf("Default format = %q, want %q", cfg.Format, "text")
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Default maxRetries = %d, want 3", cfg.MaxRetries)
	}
	if !cfg.Cache.Enabled {
		t.Error("Default cache should be enabled")
	}
	if !cfg.Spinner {
		t.Error("Default spinner should be on")
	}
	lvl, err := cfg.Level()
	if err != nil || lvl != slog.LevelWarn {
		t.Errorf("Default Level() = %v, %v", lvl, err)
	}
}

func TestLevel_Invalid(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	if _, err := cfg.Level(); err == nil {
		t.Error("Expected error for unknown log level")
	}
	cfg.LogLevel = "DEBUG"
	if lvl, err := cfg.Level(); err != nil || lvl != slog.LevelDebug {
		t.Errorf("Level() = %v, %v", lvl, err)
	}
}

func TestMergeEnv(t *testing.T) {
	isolate(t)
	t.Setenv("RESTACK_URL", "https://phab.test")
	t.Setenv("RESTACK_FORMAT", "json")
	t.Setenv("RESTACK_LOG_LEVEL", "debug")
	t.Setenv("RESTACK_MAX_RETRIES", "5")
	t.Setenv("RESTACK_TIMEOUT_SECONDS", "10")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.URL != "https://phab.test" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.TimeoutSeconds != 10 {
		t.Errorf("TimeoutSeconds = %d, want 10", cfg.TimeoutSeconds)
	}
}

func TestMergeEnv_InvalidMaxRetries(t *testing.T) {
	isolate(t)
	t.Setenv("RESTACK_MAX_RETRIES", "notanumber")

	cfg := Default()
	if err := mergeEnv(&cfg); err == nil {
		t.Error("Expected error for invalid RESTACK_MAX_RETRIES")
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	err := mergeOverrides(&cfg, map[string]string{
		"format":     "yaml",
		"url":        "https://override.test",
		"maxRetries": "",
	})
	if err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if cfg.Format != "yaml" || cfg.URL != "https://override.test" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxRetries != 3 {
		t.Error("empty override should be ignored")
	}

	if err := mergeOverrides(&cfg, nil); err != nil {
		t.Errorf("nil overrides: %v", err)
	}
	if err := mergeOverrides(&cfg, map[string]string{"bogus": "x"}); err == nil {
		t.Error("Expected error for unknown override key")
	}
}

func TestSetField(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(Config) bool
	}{
		{"url", "https://phab.test", func(c Config) bool { return c.URL == "https://phab.test" }},
		{"format", "markdown", func(c Config) bool { return c.Format == "markdown" }},
		{"logLevel", "info", func(c Config) bool { return c.LogLevel == "info" }},
		{"maxRetries", "0", func(c Config) bool { return c.MaxRetries == 0 }},
		{"timeoutSeconds", "30", func(c Config) bool { return c.TimeoutSeconds == 30 }},
		{"spinner", "false", func(c Config) bool { return !c.Spinner }},
		{"cache.enabled", "false", func(c Config) bool { return !c.Cache.Enabled }},
		{"cache.dir", "/tmp/x", func(c Config) bool { return c.Cache.Dir == "/tmp/x" }},
		{"cache.ttlSeconds", "60", func(c Config) bool { return c.Cache.TTLSeconds == 60 }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			if err := SetField(&cfg, tt.key, tt.value); err != nil {
				t.Fatalf("SetField error: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("SetField(%q, %q) not applied: %+v", tt.key, tt.value, cfg)
			}
		})
	}
}

func TestSetField_Invalid(t *testing.T) {
	cfg := Default()
	for key, value := range map[string]string{
		"unknown":          "x",
		"maxRetries":       "abc",
		"timeoutSeconds":   "1.5",
		"spinner":          "maybe",
		"cache.enabled":    "perhaps",
		"cache.ttlSeconds": "soon",
	} {
		if err := SetField(&cfg, key, value); err == nil {
			t.Errorf("SetField(%q, %q) should fail", key, value)
		}
	}
}

func TestConfigDir_XDG(t *testing.T) {
	configHome, _ := isolate(t)
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if dir != filepath.Join(configHome, "restack") {
		t.Errorf("ConfigDir = %q", dir)
	}
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath error: %v", err)
	}
	if filepath.Base(path) != "config.json" {
		t.Errorf("ConfigPath = %q", path)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.URL = "https://phab.test"
	cfg.Cache.Enabled = false
	if err := Save(cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded != cfg {
		t.Errorf("LoadFile = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	isolate(t)
	path, _ := ConfigPath()
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte(`{"format":"json","cache":{"ttlSeconds":5}}`), 0o644)

	cfg, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Format != "json" || cfg.Cache.TTLSeconds != 5 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if !cfg.Cache.Enabled || !cfg.Spinner {
		t.Error("booleans missing from the file should keep their defaults")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	isolate(t)
	path, _ := ConfigPath()
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte(`{not json`), 0o644)

	if _, err := LoadFile(); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestLoadFile_NoFile(t *testing.T) {
	isolate(t)
	cfg, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("missing file should give defaults, got %+v", cfg)
	}
}

func TestArcConfigURL(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	os.MkdirAll(nested, 0o755)

	uri, err := ArcConfigURL(nested)
	if err != nil || uri != "" {
		t.Errorf("no .arcconfig: got %q, %v", uri, err)
	}

	os.WriteFile(filepath.Join(root, ".arcconfig"), []byte(`{"phabricator.uri": "https://phab.test/"}`), 0o644)
	uri, err = ArcConfigURL(nested)
	if err != nil {
		t.Fatalf("ArcConfigURL error: %v", err)
	}
	if uri != "https://phab.test/" {
		t.Errorf("ArcConfigURL = %q", uri)
	}

	os.WriteFile(filepath.Join(root, "a", ".arcconfig"), []byte(`{broken`), 0o644)
	if _, err := ArcConfigURL(nested); err == nil {
		t.Error("Expected error for malformed .arcconfig")
	}
}

func TestLoad_Precedence(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.URL = "https://file.test"
	cfg.Format = "markdown"
	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}

	repo := t.TempDir()
	os.WriteFile(filepath.Join(repo, ".arcconfig"), []byte(`{"phabricator.uri": "https://arc.test/"}`), 0o644)
	chdir(t, repo)

	got, err := Load(nil)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.URL != "https://arc.test/" {
		t.Errorf(".arcconfig should beat the file: URL = %q", got.URL)
	}
	if got.Format != "markdown" {
		t.Errorf("Format = %q, want markdown from file", got.Format)
	}

	t.Setenv("RESTACK_URL", "https://env.test")
	got, err = Load(nil)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.URL != "https://env.test" {
		t.Errorf("env should beat .arcconfig: URL = %q", got.URL)
	}

	got, err = Load(map[string]string{"url": "https://flag.test"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.URL != "https://flag.test" {
		t.Errorf("flags should beat env: URL = %q", got.URL)
	}
}

func TestToken_Env(t *testing.T) {
	isolate(t)
	t.Setenv("RESTACK_API_TOKEN", "api-fromenv")
	tok, err := Token("https://phab.test")
	if err != nil || tok != "api-fromenv" {
		t.Errorf("Token = %q, %v", tok, err)
	}
}

func TestToken_Arcrc(t *testing.T) {
	_, home := isolate(t)
	rc := `{"hosts": {"https://phab.test/api/": {"token": "cli-fromarcrc"}}}`
	os.WriteFile(filepath.Join(home, ".arcrc"), []byte(rc), 0o600)

	for _, url := range []string{"https://phab.test", "https://phab.test/", "https://PHAB.test/api"} {
		tok, err := Token(url)
		if err != nil {
			t.Fatalf("Token(%q) error: %v", url, err)
		}
		if tok != "cli-fromarcrc" {
			t.Errorf("Token(%q) = %q", url, tok)
		}
	}

	_, err := Token("https://other.test")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("unknown host: err = %v, want ErrNoToken", err)
	}
	if err != nil && !strings.Contains(err.Error(), "other.test") {
		t.Errorf("error should name the host: %v", err)
	}
}

func TestToken_NoArcrc(t *testing.T) {
	isolate(t)
	if _, err := Token("https://phab.test"); !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}
