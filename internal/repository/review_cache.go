package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

const (
	mergedReviewsKey = "reviews:merged"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// ReviewViewCache кэш объединенного представления отзывов
type ReviewViewCache interface {
	Get(ctx context.Context) ([]domain.Review, error)
	Set(ctx context.Context, reviews []domain.Review) error
	Invalidate(ctx context.Context) error
	Close() error
}

// RedisReviewCache реализует кэширование объединенного представления через Redis
type RedisReviewCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisReviewCache создает новый Redis кэш отзывов
func NewRedisReviewCache(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisReviewCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisReviewCache{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisReviewCache) Close() error {
	return r.client.Close()
}

// Get возвращает закэшированное объединенное представление.
// Промах кэша возвращает nil без ошибки.
func (r *RedisReviewCache) Get(ctx context.Context) ([]domain.Review, error) {
	data, err := r.client.Get(ctx, mergedReviewsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			r.log.Debugw("Merged review view not found in cache")
			return nil, nil
		}
		r.log.Errorw("Error getting merged review view from Redis", "error", err)
		return nil, fmt.Errorf("failed to get merged review view from cache: %w", err)
	}

	var reviews []domain.Review
	if err := json.Unmarshal(data, &reviews); err != nil {
		r.log.Errorw("Failed to unmarshal cached review view", "error", err)
		return nil, fmt.Errorf("failed to unmarshal cached review view: %w", err)
	}

	r.log.Debugw("Merged review view retrieved from cache", "count", len(reviews))
	return reviews, nil
}

// Set кэширует объединенное представление
func (r *RedisReviewCache) Set(ctx context.Context, reviews []domain.Review) error {
	data, err := json.Marshal(reviews)
	if err != nil {
		r.log.Errorw("Failed to marshal review view for caching", "error", err)
		return fmt.Errorf("failed to marshal review view: %w", err)
	}

	if err := r.client.Set(ctx, mergedReviewsKey, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache review view in Redis", "error", err)
		return fmt.Errorf("failed to cache review view: %w", err)
	}

	r.log.Debugw("Merged review view cached successfully", "count", len(reviews))
	return nil
}

// Invalidate удаляет объединенное представление из кэша
func (r *RedisReviewCache) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, mergedReviewsKey).Err(); err != nil {
		r.log.Errorw("Failed to invalidate review view cache", "error", err)
		return fmt.Errorf("failed to invalidate review view cache: %w", err)
	}

	r.log.Debugw("Merged review view cache invalidated")
	return nil
}

// NoopReviewCache кэш-заглушка, когда Redis не сконфигурирован
type NoopReviewCache struct{}

// Get всегда промах
func (NoopReviewCache) Get(ctx context.Context) ([]domain.Review, error) { return nil, nil }

// Set ничего не делает
func (NoopReviewCache) Set(ctx context.Context, reviews []domain.Review) error { return nil }

// Invalidate ничего не делает
func (NoopReviewCache) Invalidate(ctx context.Context) error { return nil }

// Close ничего не делает
func (NoopReviewCache) Close() error { return nil }
