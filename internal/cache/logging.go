package cache

import (
	"context"
	"io"
	"time"

	"github.com/pders01/texmath/internal/logging"
	"github.com/pders01/texmath/internal/metrics"
	"go.uber.org/zap"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner   Store
	backend string
}

// NewLoggingStore returns a store that logs and records metrics.
func NewLoggingStore(inner Store, backend string) Store {
	return &LoggingStore{inner: inner, backend: backend}
}

func (s *LoggingStore) Lookup(ctx context.Context, id string) (Entry, bool, error) {
	start := time.Now()
	e, ok, err := s.inner.Lookup(ctx, id)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	metrics.CacheLookupsTotal.WithLabelValues(result).Inc()

	fields := []zap.Field{
		zap.String("cache_backend", s.backend),
		zap.String("identity", id),
		zap.String("cache_result", result),
		zap.Duration("latency", time.Since(start)),
	}
	if ok {
		fields = append(fields, zap.String("path", e.Path), zap.Int("baseline", e.Baseline))
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("cache_lookup", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_lookup", fields...)
	}

	return e, ok, err
}

func (s *LoggingStore) Put(ctx context.Context, id string, baseline int, r io.Reader) (Entry, error) {
	start := time.Now()
	e, err := s.inner.Put(ctx, id, baseline, r)

	fields := []zap.Field{
		zap.String("cache_backend", s.backend),
		zap.String("identity", id),
		zap.Int("baseline", baseline),
		zap.Duration("latency", time.Since(start)),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("cache_put", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_put", append(fields, zap.String("path", e.Path), zap.Int64("size", e.Size))...)
	}

	return e, err
}

func (s *LoggingStore) List(ctx context.Context) ([]Entry, error) {
	return s.inner.List(ctx)
}

func (s *LoggingStore) Remove(ctx context.Context, e Entry) error {
	err := s.inner.Remove(ctx, e)
	if err != nil {
		logging.L(ctx).Warn("cache_remove", zap.String("path", e.Path), zap.Error(err))
	}
	return err
}
