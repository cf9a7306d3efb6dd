package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pders01/texmath/internal/config"
	"github.com/spf13/viper"
)

func TestInitCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	initCacheDir = ""

	if err := runInit(nil, []string{}); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	configPath := filepath.Join(home, ".config", "texmath", "config.toml")
	if !exists(configPath) {
		t.Fatal("config file was not created")
	}

	cacheDir := filepath.Join(home, ".cache", "texmath")
	info, err := os.Stat(cacheDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("cache directory was not created: %v", err)
	}

	// The written file loads back to the defaults
	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	settings, err := config.Load(v)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}

	if settings.Render.DPI != 120 {
		t.Errorf("render.dpi = %d, want 120", settings.Render.DPI)
	}
	if settings.Render.Timeout != 60*time.Second {
		t.Errorf("render.timeout = %v, want 60s", settings.Render.Timeout)
	}
	if settings.Cache.Dir != cacheDir {
		t.Errorf("cache.dir = %q, want %q", settings.Cache.Dir, cacheDir)
	}
	if settings.Retention.Days != 90 {
		t.Errorf("retention.days = %d, want 90", settings.Retention.Days)
	}
	if settings.Server.Timeout != 90*time.Second {
		t.Errorf("server.timeout = %v, want 90s", settings.Server.Timeout)
	}
}

func TestInitWithExistingConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	initCacheDir = ""

	configDir := filepath.Join(home, ".config", "texmath")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.toml")
	existing := "[render]\ndpi = 300\n"
	if err := os.WriteFile(configPath, []byte(existing), 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	if err := runInit(nil, []string{}); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(content) != existing {
		t.Error("existing config was overwritten")
	}
}

func TestInitCacheDirFlag(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	initCacheDir = filepath.Join(t.TempDir(), "images")
	defer func() { initCacheDir = "" }()

	if err := runInit(nil, []string{}); err != nil {
		t.Fatalf("init command failed: %v", err)
	}
	if !exists(initCacheDir) {
		t.Error("cache directory from --cache-dir was not created")
	}
}
