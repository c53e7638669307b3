package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-users/internal/logger"
	"github.com/sbilibin2017/gw-users/internal/models"
)

// UserCacheRepository caches user profiles in Redis
type UserCacheRepository struct {
	client *redis.Client
	exp    time.Duration // expiration duration for cached users
}

// NewUserCacheRepository creates a new cache repository with the given TTL
func NewUserCacheRepository(client *redis.Client, expiration time.Duration) *UserCacheRepository {
	return &UserCacheRepository{
		client: client,
		exp:    expiration,
	}
}

func userCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID)
}

// Get returns the cached user, or nil on a cache miss.
func (r *UserCacheRepository) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	key := userCacheKey(userID)

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.Log.Infow("cache miss", "key", key)
		return nil, nil
	}
	if err != nil {
		logger.Log.Infow("cache get", "key", key, "error", err)
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(val, &user); err != nil {
		logger.Log.Infow("cache decode", "key", key, "error", err)
		return nil, err
	}

	logger.Log.Infow("cache hit", "key", key)
	return &user, nil
}

// Set stores the user with the repository expiration.
func (r *UserCacheRepository) Set(ctx context.Context, user models.User) error {
	key := userCacheKey(user.UserID)

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	err = r.client.Set(ctx, key, data, r.exp).Err()

	logger.Log.Infow("cache set",
		"key", key,
		"ttl", r.exp,
		"error", err,
	)

	return err
}

// Delete evicts the cached user.
func (r *UserCacheRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	key := userCacheKey(userID)
	err := r.client.Del(ctx, key).Err()

	logger.Log.Infow("cache delete",
		"key", key,
		"error", err,
	)

	return err
}
