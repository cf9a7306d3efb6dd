package cache

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// Entry is one cached rendering
type Entry struct {
	Identity string    `json:"identity"`
	Baseline int       `json:"baseline"`
	Path     string    `json:"path"`
	Size     int64     `json:"size,omitempty"`
	ModTime  time.Time `json:"mod_time,omitempty"`
}

// Store maps content identities to rendered images.
// Implemented by the flat directory layout and a redis index over it.
type Store interface {
	// Lookup returns the entry for id, if any
	Lookup(ctx context.Context, id string) (Entry, bool, error)
	// Put stores the image read from r under id and baseline
	Put(ctx context.Context, id string, baseline int, r io.Reader) (Entry, error)
	// List returns every entry, ordered by filename
	List(ctx context.Context) ([]Entry, error)
	// Remove deletes an entry
	Remove(ctx context.Context, e Entry) error
}

// Config selects and configures a Store
type Config struct {
	Backend string // "dir" or "redis"
	Dir     string
	Suffix  string
	Prefix  string
	TTL     time.Duration
}

// NewStore builds the store for cfg. redisClient is only used by the
// redis backend.
func NewStore(cfg Config, fs afero.Fs, redisClient *redis.Client) Store {
	files := NewDirStore(fs, cfg.Dir, cfg.Suffix)

	switch cfg.Backend {
	case "redis":
		return NewRedisStore(redisClient, files, RedisConfig{
			Prefix: cfg.Prefix,
			TTL:    cfg.TTL,
		})
	default:
		return files
	}
}
