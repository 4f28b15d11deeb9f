package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/chunkloader/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит конфигурацию Redis кеша.
type RedisConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string // Префикс всех ключей, например "chunkloader:set:"

	MaxTTL         time.Duration
	MaxConnections int
	PoolTimeout    time.Duration
}

// RedisCache реализует CacheRepo используя Redis как Hot Cache.
type RedisCache struct {
	client  *redis.Client
	config  *RedisConfig
	metrics hitCounter
}

// NewRedisCache создаёт новый Redis кеш и проверяет соединение.
func NewRedisCache(config *RedisConfig) (*RedisCache, error) {
	// Настройки по умолчанию
	if config.MaxTTL == 0 {
		config.MaxTTL = 1 * time.Hour
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.PoolTimeout == 0 {
		config.PoolTimeout = 30 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.MaxConnections,
		PoolTimeout:  config.PoolTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	// Проверяем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis cache initialized: %s (prefix: %s)", config.RedisURL, config.KeyPrefix)
	return &RedisCache{client: rdb, config: config}, nil
}

func (r *RedisCache) key(key string) string {
	return r.config.KeyPrefix + key
}

// Get получает значение по ключу из Redis кеша.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == nil {
		r.metrics.hit()
		return val, nil
	}

	r.metrics.miss()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}

	logging.Error("Redis Get error for key %s: %v", key, err)
	return nil, fmt.Errorf("redis get error: %w", err)
}

// Set сохраняет значение в Redis кеше.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	// Валидация TTL
	if ttl > r.config.MaxTTL {
		ttl = r.config.MaxTTL
	}

	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ из кеша.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		logging.Error("Redis Delete error for key %s: %v", key, err)
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil {
		logging.Error("Error closing Redis connection: %v", err)
		return err
	}

	logging.Info("Redis cache closed")
	return nil
}

// GetMetrics возвращает текущие метрики кеша.
func (r *RedisCache) GetMetrics() *CacheMetrics {
	return r.metrics.snapshot()
}
