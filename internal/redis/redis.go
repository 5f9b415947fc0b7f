package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"opspulse/internal/config"
	"opspulse/internal/logger"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss возвращается, если ключа нет в Redis
var ErrCacheMiss = errors.New("cache miss")

// Client представляет клиент Redis
type Client struct {
	client *redis.Client
	log    *logger.Logger
}

// Connect создает подключение к Redis
func Connect(ctx context.Context, cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Successfully connected to Redis")

	return &Client{
		client: rdb,
		log:    log,
	}, nil
}

// Close закрывает подключение к Redis
func (c *Client) Close() error {
	return c.client.Close()
}

// Set сохраняет значение в JSON с TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Value set in Redis")
	return nil
}

// Get получает значение по ключу; отсутствие ключа возвращает ErrCacheMiss
func (c *Client) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("key %s: %w", key, ErrCacheMiss)
		}
		return fmt.Errorf("failed to get key %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Value retrieved from Redis")
	return nil
}

// Delete удаляет ключи одной командой
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete keys %v: %w", keys, err)
	}

	c.log.WithField("count", len(keys)).Debug("Keys deleted from Redis")
	return nil
}

// Size возвращает количество ключей в базе
func (c *Client) Size(ctx context.Context) (int64, error) {
	return c.client.DBSize(ctx).Result()
}

// Subscribe подписывается на канал pub/sub
func (c *Client) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.client.Subscribe(ctx, channel)
}

// Health проверяет состояние Redis
func (c *Client) Health(ctx context.Context) error {
	_, err := c.client.Ping(ctx).Result()
	return err
}

// GenerateKey генерирует ключ для кеша
func GenerateKey(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// Константы для префиксов ключей
const (
	KeyPrefixRoute   = "route"
	KeyPrefixGeocode = "geocode"
)
