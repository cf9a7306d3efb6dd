package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// RedisStore indexes a DirStore in redis so lookups don't scan the
// directory. Each identity is a hash keyed by directory, so several cache
// directories can share one redis. The directory stays authoritative:
// index entries whose file has gone are dropped and the directory is
// scanned instead.
type RedisStore struct {
	client *redis.Client
	files  *DirStore
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Prefix string
	// TTL of index entries, zero keeps them forever
	TTL time.Duration
}

// NewRedisStore creates a redis-indexed store over files
func NewRedisStore(client *redis.Client, files *DirStore, config RedisConfig) *RedisStore {
	return &RedisStore{
		client: client,
		files:  files,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

// key builds the final Redis key with prefix.
func (s *RedisStore) key(id string) string {
	if s.prefix == "" {
		return id
	}
	return s.prefix + ":" + id
}

// Lookup consults the index first and falls back to a directory scan,
// backfilling the index on a scan hit
func (s *RedisStore) Lookup(ctx context.Context, id string) (Entry, bool, error) {
	raw, err := s.client.HGet(ctx, s.key(id), s.files.Dir()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// not indexed
	case err != nil:
		return Entry{}, false, fmt.Errorf("redis get failed: %w", err)
	default:
		var e Entry
		if err := json.Unmarshal(raw, &e); err == nil {
			if ok, _ := afero.Exists(s.files.Fs(), e.Path); ok {
				return e, true, nil
			}
		}
		if err := s.client.HDel(ctx, s.key(id), s.files.Dir()).Err(); err != nil {
			return Entry{}, false, fmt.Errorf("redis del failed: %w", err)
		}
	}

	e, ok, err := s.files.Lookup(ctx, id)
	if err != nil || !ok {
		return e, ok, err
	}
	if err := s.index(ctx, e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Put stores the image in the directory and indexes it
func (s *RedisStore) Put(ctx context.Context, id string, baseline int, r io.Reader) (Entry, error) {
	e, err := s.files.Put(ctx, id, baseline, r)
	if err != nil {
		return Entry{}, err
	}
	if err := s.index(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns the directory contents
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	return s.files.List(ctx)
}

// Remove deletes the file and its index entry
func (s *RedisStore) Remove(ctx context.Context, e Entry) error {
	if err := s.files.Remove(ctx, e); err != nil {
		return err
	}
	if err := s.client.HDel(ctx, s.key(e.Identity), s.files.Dir()).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (s *RedisStore) index(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode index entry: %w", err)
	}
	key := s.key(e.Identity)
	if err := s.client.HSet(ctx, key, s.files.Dir(), raw).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire failed: %w", err)
		}
	}
	return nil
}
