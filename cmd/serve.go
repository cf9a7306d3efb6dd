package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/pders01/texmath/internal/cache"
	"github.com/pders01/texmath/internal/config"
	"github.com/pders01/texmath/internal/logging"
	"github.com/pders01/texmath/internal/metrics"
	"github.com/pders01/texmath/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Serve renders over HTTP",
	Long: `Start an HTTP server that renders expressions into a cache directory.

Routes:
  POST /v1/render         {"expression": "x^2", "dpi": 120, "display": false}
  GET  /v1/render?tex=x^2&dpi=120&display=false
  GET  /v1/images/{name}  the rendered image
  GET  /healthz
  GET  /metrics           Prometheus metrics

Changes to log.level in the config file apply without a restart.

Example:
  texmath serve ./cache --addr :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}

	dir := settings.Cache.Dir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no cache directory: pass one or set cache.dir")
	}
	if err := cacheFs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	addr := settings.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	renderer, cleanup, err := newRenderer(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := logging.DefaultLogger()
	metrics.Register()

	viper.OnConfigChange(func(e fsnotify.Event) {
		level := viper.GetString("log.level")
		if logging.SetLevel(level) {
			logger.Info("log level changed", zap.String("level", level), zap.String("file", e.Name))
		} else {
			logger.Warn("ignoring invalid log level", zap.String("level", level))
		}
	})
	if viper.ConfigFileUsed() != "" {
		viper.WatchConfig()
	}

	handler := &server.Handler{
		Renderer: renderer,
		Files:    cache.NewDirStore(cacheFs, dir, settings.Render.Suffix),
		MaxBody:  settings.Server.MaxBody,
		Display:  settings.Render.Display,
		Timeout:  settings.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Serving %s on %s\n", dir, addr)
	return server.New(addr, server.NewRouter(handler, logger), logger).Run(ctx)
}
