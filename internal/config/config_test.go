package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pders01/texmath/internal/models"
	"github.com/spf13/viper"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(newViper())
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}

	if s.Render.DPI != 120 {
		t.Errorf("expected dpi 120, got %d", s.Render.DPI)
	}
	if !s.Render.ReportBaseline || !s.Render.UseCache {
		t.Error("baseline reporting and caching should default on")
	}
	if s.Render.Timeout != time.Minute {
		t.Errorf("expected 60s timeout, got %s", s.Render.Timeout)
	}
	if s.Tools.Latex != "latex" || s.Tools.Dvipng != "dvipng" {
		t.Errorf("unexpected tools: %+v", s.Tools)
	}
	if s.Cache.Backend != "dir" || s.Cache.Hash != "md5" {
		t.Errorf("unexpected cache settings: %+v", s.Cache)
	}
	if s.Server.Timeout != 90*time.Second {
		t.Errorf("expected 90s server timeout, got %s", s.Server.Timeout)
	}
	if s.Log.Level != "warn" {
		t.Errorf("expected warn log level, got %s", s.Log.Level)
	}

	rc := s.RenderConfig()
	if rc.Hash != models.HashMD5 || rc.Suffix != ".png" {
		t.Errorf("unexpected render config: %+v", rc)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[render]
dpi = 300
timeout = "5s"
report_baseline = false

[tools]
latex = "/opt/texlive/bin/latex"

[server]
timeout = "2m"

[cache]
backend = "redis"
hash = "blake2b"
ttl = "24h"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	s, err := Load(v)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if s.Render.DPI != 300 {
		t.Errorf("expected dpi 300, got %d", s.Render.DPI)
	}
	if s.Render.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", s.Render.Timeout)
	}
	if s.Render.ReportBaseline {
		t.Error("report_baseline should be false")
	}
	if s.Tools.Latex != "/opt/texlive/bin/latex" {
		t.Errorf("unexpected latex: %s", s.Tools.Latex)
	}
	if s.Tools.Dvipng != "dvipng" {
		t.Errorf("default dvipng lost: %s", s.Tools.Dvipng)
	}
	if s.Cache.TTL != 24*time.Hour {
		t.Errorf("expected 24h ttl, got %s", s.Cache.TTL)
	}

	if s.Server.Timeout != 2*time.Minute {
		t.Errorf("expected 2m server timeout, got %s", s.Server.Timeout)
	}

	cc := s.CacheConfig("/srv/cache")
	if cc.Backend != "redis" || cc.Dir != "/srv/cache" || cc.Prefix != "texmath" {
		t.Errorf("unexpected cache config: %+v", cc)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"zero dpi", "render.dpi", 0},
		{"unknown hash", "cache.hash", "crc32"},
		{"unknown backend", "cache.backend", "s3"},
		{"negative retention", "retention.days", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.val)
			if _, err := Load(v); err == nil {
				t.Errorf("expected error for %s=%v", tt.key, tt.val)
			}
		})
	}
}
