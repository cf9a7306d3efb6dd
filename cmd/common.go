package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alpkeskin/gotoon"
	"github.com/pders01/texmath/internal/cache"
	"github.com/pders01/texmath/internal/config"
	"github.com/pders01/texmath/internal/logging"
	"github.com/pders01/texmath/internal/render"
	"github.com/pders01/texmath/internal/runner"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// toolRunner runs latex and dvipng; tests replace it with fake tools
var toolRunner runner.Runner

// cacheFs backs every cache directory
var cacheFs afero.Fs = afero.NewOsFs()

// newRenderer builds a renderer for settings. The returned cleanup closes
// the redis connection when one was opened.
func newRenderer(settings config.Settings) (*render.Renderer, func(), error) {
	redisClient, err := connectRedis(settings)
	if err != nil {
		return nil, nil, err
	}

	r := toolRunner
	if r == nil {
		r = runner.Exec{TempDir: settings.Render.TempDir}
	}

	stores := func(dir string) cache.Store {
		return newStore(settings, dir, redisClient)
	}

	cleanup := func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return render.New(settings.RenderConfig(), r, stores), cleanup, nil
}

func newStore(settings config.Settings, dir string, redisClient *redis.Client) cache.Store {
	store := cache.NewStore(settings.CacheConfig(dir), cacheFs, redisClient)
	return cache.NewLoggingStore(store, settings.Cache.Backend)
}

// openStore opens the store of dir for maintenance commands
func openStore(settings config.Settings, dir string) (cache.Store, func(), error) {
	redisClient, err := connectRedis(settings)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return newStore(settings, dir, redisClient), cleanup, nil
}

func connectRedis(settings config.Settings) (*redis.Client, error) {
	if settings.Cache.Backend != "redis" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: settings.Cache.RedisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis not available at %s: %w", settings.Cache.RedisAddr, err)
	}

	logging.DefaultLogger().Debug("redis connection established", zap.String("addr", settings.Cache.RedisAddr))
	return client, nil
}

// cacheDirArg returns the directory named by args[i], falling back to
// cache.dir and then the working directory
func cacheDirArg(args []string, i int, settings config.Settings) (string, error) {
	dir := "."
	if settings.Cache.Dir != "" {
		dir = settings.Cache.Dir
	}
	if len(args) > i {
		dir = args[i]
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("cache directory not found: %s", dir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", dir)
	}
	return dir, nil
}

// printStructured writes v as JSON or toon. It reports false when neither
// format was requested.
func printStructured(v interface{}, asJSON, asToon bool) (bool, error) {
	switch {
	case asJSON:
		output, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return true, nil
	case asToon:
		output, err := gotoon.Encode(v)
		if err != nil {
			return true, fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Println(output)
		return true, nil
	}
	return false, nil
}
