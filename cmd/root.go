package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pders01/texmath/internal/config"
	"github.com/pders01/texmath/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "texmath",
	Short: "Render LaTeX math to PNG images with baseline offsets",
	Long: `texmath renders LaTeX math fragments to PNG images using latex and dvipng,
and reports the baseline offset: the number of pixels from the bottom of the
image to the text baseline, for aligning the image with surrounding text.

Rendering into a directory caches the image under a content-addressed name:
  {identity}_{baseline}_.png

so repeated renders of the same source are served from the directory
without running latex again.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/texmath/config.toml)")

	config.SetDefaults(viper.GetViper())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := defaultConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(configDir)
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	// TEXMATH_CACHE_DIR overrides cache.dir
	viper.SetEnvPrefix("texmath")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "texmath"), nil
}

func setupLogging(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Options{
		Level: settings.Log.Level,
		Dev:   settings.Log.Dev,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logging.SetDefault(logger)
	return nil
}
