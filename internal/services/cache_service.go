package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"opspulse/internal/config"
	"opspulse/internal/logger"
	"opspulse/internal/redis"
)

// CacheStore представляет хранилище кеша
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Size(ctx context.Context) (int64, error)
}

// CacheService кеширует маршруты и результаты геокодинга
type CacheService struct {
	store     CacheStore
	config    *config.CacheConfig
	logger    *logger.Logger
	hits      atomic.Uint64 // Количество попаданий в кеш
	misses    atomic.Uint64 // Количество промахов
	evictions atomic.Uint64 // Количество инвалидаций
}

// CacheMetrics представляет метрики кеширования
type CacheMetrics struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	TotalReqs uint64  `json:"total_requests"`
	HitRate   float64 `json:"hit_rate"`
	CacheSize int64   `json:"cache_size"`
}

// NewCacheService создает новый сервис кеширования; store может быть nil
func NewCacheService(store CacheStore, cfg *config.CacheConfig, log *logger.Logger) *CacheService {
	return &CacheService{
		store:  store,
		config: cfg,
		logger: log,
	}
}

func (s *CacheService) enabled() bool {
	return s != nil && s.store != nil && s.config != nil && s.config.Enabled
}

// Get получает данные из кеша и десериализует в target
func (s *CacheService) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	if !s.enabled() {
		if s != nil {
			s.misses.Add(1)
		}
		return false, nil
	}

	if err := s.store.Get(ctx, key, target); err != nil {
		s.misses.Add(1)
		if errors.Is(err, redis.ErrCacheMiss) {
			return false, nil
		}
		s.logger.WithError(err).WithField("key", key).Warn("Failed to get from cache")
		return false, err
	}

	s.hits.Add(1)
	return true, nil
}

// Set сохраняет данные в кеш с TTL
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.enabled() {
		return nil
	}

	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to set cache")
		return err
	}
	return nil
}

// Delete удаляет ключи из кеша (инвалидация)
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !s.enabled() || len(keys) == 0 {
		return nil
	}

	if err := s.store.Delete(ctx, keys...); err != nil {
		s.logger.WithError(err).WithField("keys", keys).Warn("Failed to delete from cache")
		return err
	}

	s.evictions.Add(uint64(len(keys)))
	return nil
}

// GetMetrics возвращает метрики кеширования
func (s *CacheService) GetMetrics(ctx context.Context) (*CacheMetrics, error) {
	if s == nil {
		return &CacheMetrics{}, nil
	}
	hits := s.hits.Load()
	misses := s.misses.Load()
	totalReqs := hits + misses

	var hitRate float64
	if totalReqs > 0 {
		hitRate = float64(hits) / float64(totalReqs) * 100
	}

	var cacheSize int64
	if s.enabled() {
		size, err := s.store.Size(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to get cache size")
		} else {
			cacheSize = size
		}
	}

	return &CacheMetrics{
		Hits:      hits,
		Misses:    misses,
		Evictions: s.evictions.Load(),
		TotalReqs: totalReqs,
		HitRate:   hitRate,
		CacheSize: cacheSize,
	}, nil
}

// RouteTTL возвращает TTL маршрутов; без настроек кеша TTL нулевой
func (s *CacheService) RouteTTL() time.Duration {
	if s == nil || s.config == nil {
		return 0
	}
	return time.Duration(s.config.RouteTTL) * time.Second
}

// GeocodeTTL возвращает TTL результатов геокодинга; без настроек кеша TTL нулевой
func (s *CacheService) GeocodeTTL() time.Duration {
	if s == nil || s.config == nil {
		return 0
	}
	return time.Duration(s.config.GeocodeTTL) * time.Second
}
