package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pders01/texmath/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initCacheDir string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration",
	Long: `Write a config file with every setting at its default value and
create the cache directory.

This command:
  - Creates ~/.config/texmath/config.toml if it doesn't exist
  - Creates the cache directory (default ~/.cache/texmath)

Run this once, then edit the config file to taste.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initCacheDir, "cache-dir", "", "Cache directory to write into the config")
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := defaultConfigDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(configDir, "config.toml")

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	defaults := viper.New()
	config.SetDefaults(defaults)
	settings, err := config.Load(defaults)
	if err != nil {
		return err
	}

	settings.Cache.Dir = initCacheDir
	if settings.Cache.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		settings.Cache.Dir = filepath.Join(home, ".cache", "texmath")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.MkdirAll(settings.Cache.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := writeConfig(configPath, settings); err != nil {
		return err
	}

	fmt.Printf("✓ Created default config: %s\n", configPath)
	fmt.Printf("✓ Cache directory: %s\n", settings.Cache.Dir)
	fmt.Println("\n✓ texmath initialized successfully!")
	fmt.Println("  You can now use: texmath render 'x^2'")

	return nil
}

// configFile is the on-disk form of the settings. Durations are written as
// strings so they read back through viper.
type configFile struct {
	Render    renderFile               `toml:"render"`
	Tools     config.ToolSettings      `toml:"tools"`
	Cache     cacheFile                `toml:"cache"`
	Retention config.RetentionSettings `toml:"retention"`
	Server    serverFile               `toml:"server"`
	Batch     config.BatchSettings     `toml:"batch"`
	Log       config.LogSettings       `toml:"log"`
}

type renderFile struct {
	DPI            int    `toml:"dpi"`
	Display        bool   `toml:"display"`
	ReportBaseline bool   `toml:"report_baseline"`
	UseCache       bool   `toml:"use_cache"`
	Suffix         string `toml:"suffix"`
	Timeout        string `toml:"timeout"`
	TempDir        string `toml:"temp_dir"`
}

type serverFile struct {
	Addr    string `toml:"addr"`
	MaxBody int64  `toml:"max_body"`
	Timeout string `toml:"timeout"`
}

type cacheFile struct {
	Backend   string `toml:"backend"`
	Dir       string `toml:"dir"`
	Hash      string `toml:"hash"`
	RedisAddr string `toml:"redis_addr"`
	Prefix    string `toml:"prefix"`
	TTL       string `toml:"ttl"`
}

func writeConfig(path string, s config.Settings) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	file := configFile{
		Render: renderFile{
			DPI:            s.Render.DPI,
			Display:        s.Render.Display,
			ReportBaseline: s.Render.ReportBaseline,
			UseCache:       s.Render.UseCache,
			Suffix:         s.Render.Suffix,
			Timeout:        s.Render.Timeout.String(),
			TempDir:        s.Render.TempDir,
		},
		Tools: s.Tools,
		Cache: cacheFile{
			Backend:   s.Cache.Backend,
			Dir:       s.Cache.Dir,
			Hash:      s.Cache.Hash,
			RedisAddr: s.Cache.RedisAddr,
			Prefix:    s.Cache.Prefix,
			TTL:       s.Cache.TTL.String(),
		},
		Retention: s.Retention,
		Server: serverFile{
			Addr:    s.Server.Addr,
			MaxBody: s.Server.MaxBody,
			Timeout: s.Server.Timeout.String(),
		},
		Batch: s.Batch,
		Log:   s.Log,
	}

	if err := toml.NewEncoder(f).Encode(file); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
