package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ngoclaithe/mncr-live/internal/config"
)

const keyPrefix = "broadcast:status:"

// broadcastStatus is the record the REST layer reads to answer "is this
// stream live and where do viewers fetch it".
type broadcastStatus struct {
	RoomID       string `json:"roomId"`
	IsLive       bool   `json:"isLive"`
	PlaybackPath string `json:"playbackPath,omitempty"`
	UpdatedAt    int64  `json:"updatedAt"`
}

// RedisStore is a Redis-backed status store, shared with the REST layer.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func key(roomID string) string {
	return keyPrefix + roomID
}

// SetLive marks a broadcast live with its playback path.
func (s *RedisStore) SetLive(ctx context.Context, roomID, playbackPath string) error {
	data, err := json.Marshal(&broadcastStatus{
		RoomID:       roomID,
		IsLive:       true,
		PlaybackPath: playbackPath,
		UpdatedAt:    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast status: %w", err)
	}
	if err := s.client.Set(ctx, key(roomID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write broadcast status: %w", err)
	}
	return nil
}

// ClearLive marks a broadcast not-live and clears its playback path.
func (s *RedisStore) ClearLive(ctx context.Context, roomID string) error {
	data, err := json.Marshal(&broadcastStatus{
		RoomID:    roomID,
		IsLive:    false,
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast status: %w", err)
	}
	if err := s.client.Set(ctx, key(roomID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to clear broadcast status: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
