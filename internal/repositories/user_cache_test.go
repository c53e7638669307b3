package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-users/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestUserCacheRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7.0-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer redisC.Terminate(ctx)

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	})
	defer rdb.Close()
	require.NoError(t, rdb.Ping(ctx).Err())

	repo := NewUserCacheRepository(rdb, 2*time.Second)

	image := "https://img.example.com/a.png"
	user := models.User{
		UserID:       uuid.New(),
		Email:        "a@x.com",
		PasswordHash: "hash",
		FirstName:    "A",
		LastName:     "B",
		Country:      "US",
		Image:        &image,
	}

	t.Run("Set and Get user", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, user))

		got, err := repo.Get(ctx, user.UserID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.UserID, got.UserID)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, image, *got.Image)
		assert.Empty(t, got.PasswordHash)
	})

	t.Run("Get missing key returns nil", func(t *testing.T) {
		got, err := repo.Get(ctx, uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Delete evicts", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, user))
		require.NoError(t, repo.Delete(ctx, user.UserID))

		got, err := repo.Get(ctx, user.UserID)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Cached value expires", func(t *testing.T) {
		other := user
		other.UserID = uuid.New()
		require.NoError(t, repo.Set(ctx, other))

		time.Sleep(3 * time.Second)

		got, err := repo.Get(ctx, other.UserID)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}
