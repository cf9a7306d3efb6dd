package config

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pders01/texmath/internal/cache"
	"github.com/pders01/texmath/internal/latex"
	"github.com/pders01/texmath/internal/models"
	"github.com/pders01/texmath/internal/render"
	"github.com/spf13/viper"
)

// Settings mirrors the config file
type Settings struct {
	Render    RenderSettings    `mapstructure:"render" toml:"render"`
	Tools     ToolSettings      `mapstructure:"tools" toml:"tools"`
	Cache     CacheSettings     `mapstructure:"cache" toml:"cache"`
	Retention RetentionSettings `mapstructure:"retention" toml:"retention"`
	Server    ServerSettings    `mapstructure:"server" toml:"server"`
	Batch     BatchSettings     `mapstructure:"batch" toml:"batch"`
	Log       LogSettings       `mapstructure:"log" toml:"log"`
}

type RenderSettings struct {
	DPI            int           `mapstructure:"dpi" toml:"dpi"`
	Display        bool          `mapstructure:"display" toml:"display"`
	ReportBaseline bool          `mapstructure:"report_baseline" toml:"report_baseline"`
	UseCache       bool          `mapstructure:"use_cache" toml:"use_cache"`
	Suffix         string        `mapstructure:"suffix" toml:"suffix"`
	Timeout        time.Duration `mapstructure:"timeout" toml:"timeout"`
	TempDir        string        `mapstructure:"temp_dir" toml:"temp_dir"`
}

type ToolSettings struct {
	Latex  string `mapstructure:"latex" toml:"latex"`
	Dvipng string `mapstructure:"dvipng" toml:"dvipng"`
}

type CacheSettings struct {
	Backend   string        `mapstructure:"backend" toml:"backend"`
	Dir       string        `mapstructure:"dir" toml:"dir"`
	Hash      string        `mapstructure:"hash" toml:"hash"`
	RedisAddr string        `mapstructure:"redis_addr" toml:"redis_addr"`
	Prefix    string        `mapstructure:"prefix" toml:"prefix"`
	TTL       time.Duration `mapstructure:"ttl" toml:"ttl"`
}

type RetentionSettings struct {
	Days int `mapstructure:"days" toml:"days"`
}

type ServerSettings struct {
	Addr    string        `mapstructure:"addr" toml:"addr"`
	MaxBody int64         `mapstructure:"max_body" toml:"max_body"`
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout"`
}

type BatchSettings struct {
	Workers int `mapstructure:"workers" toml:"workers"`
}

type LogSettings struct {
	Level string `mapstructure:"level" toml:"level"`
	Dev   bool   `mapstructure:"dev" toml:"dev"`
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("render.dpi", models.DefaultDPI)
	v.SetDefault("render.display", false)
	v.SetDefault("render.report_baseline", true)
	v.SetDefault("render.use_cache", true)
	v.SetDefault("render.suffix", models.DefaultSuffix)
	v.SetDefault("render.timeout", "60s")
	v.SetDefault("render.temp_dir", "")
	v.SetDefault("tools.latex", "latex")
	v.SetDefault("tools.dvipng", "dvipng")
	v.SetDefault("cache.backend", "dir")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.hash", string(models.HashMD5))
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("cache.prefix", "texmath")
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("retention.days", 90)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_body", 64*1024)
	v.SetDefault("server.timeout", "90s")
	v.SetDefault("batch.workers", 4)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.dev", false)
}

// Load decodes and validates the settings held by v
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&s, hook); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Current loads the settings from the global viper instance
func Current() (Settings, error) {
	return Load(viper.GetViper())
}

// Validate checks values that would only fail deep inside a render
func (s Settings) Validate() error {
	if s.Render.DPI <= 0 {
		return fmt.Errorf("invalid render.dpi: %d (must be positive)", s.Render.DPI)
	}
	if !models.IsValidHash(models.HashAlgorithm(s.Cache.Hash)) {
		return fmt.Errorf("invalid cache.hash: %s (must be: md5, blake2b, sha256)", s.Cache.Hash)
	}
	switch s.Cache.Backend {
	case "dir", "redis":
	default:
		return fmt.Errorf("invalid cache.backend: %s (must be: dir, redis)", s.Cache.Backend)
	}
	if s.Retention.Days < 0 {
		return fmt.Errorf("invalid retention.days: %d", s.Retention.Days)
	}
	return nil
}

// RenderConfig returns the renderer configuration
func (s Settings) RenderConfig() render.Config {
	return render.Config{
		Tools: latex.Tools{
			Latex:  s.Tools.Latex,
			Dvipng: s.Tools.Dvipng,
		},
		DPI:            s.Render.DPI,
		Suffix:         s.Render.Suffix,
		Hash:           models.HashAlgorithm(s.Cache.Hash),
		ReportBaseline: s.Render.ReportBaseline,
		UseCache:       s.Render.UseCache,
		TempDir:        s.Render.TempDir,
		Timeout:        s.Render.Timeout,
	}
}

// CacheConfig returns the store configuration for dir
func (s Settings) CacheConfig(dir string) cache.Config {
	return cache.Config{
		Backend: s.Cache.Backend,
		Dir:     dir,
		Suffix:  s.Render.Suffix,
		Prefix:  s.Cache.Prefix,
		TTL:     s.Cache.TTL,
	}
}
