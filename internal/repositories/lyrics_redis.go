package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/shared"
)

const redisLyricsPrefix = "vikify:lyrics:"

// RedisLyricsStore keeps lyric lookups in Redis as JSON values without expiry.
type RedisLyricsStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisLyricsStore wraps an existing client.
func NewRedisLyricsStore(client *redis.Client) *RedisLyricsStore {
	return &RedisLyricsStore{client: client, now: time.Now}
}

// NewRedisClient builds a client from [shared.RedisConfig].
func NewRedisClient(cfg shared.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

type redisLyrics struct {
	Lyrics    string    `json:"lyrics"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Get returns the stored lookup for trackID, or nil when the track was never looked up.
func (s *RedisLyricsStore) Get(ctx context.Context, trackID string) (*models.PersistedLyrics, error) {
	data, err := s.client.Get(ctx, redisLyricsPrefix+trackID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lyrics: %w", err)
	}

	var v redisLyrics
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode lyrics: %w", err)
	}
	return &models.PersistedLyrics{TrackID: trackID, LyricsText: v.Lyrics, UpdatedAt: v.UpdatedAt}, nil
}

// Upsert overwrites the stored lookup for trackID.
func (s *RedisLyricsStore) Upsert(ctx context.Context, trackID, text string) error {
	data, err := json.Marshal(redisLyrics{Lyrics: text, UpdatedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisLyricsPrefix+trackID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to upsert lyrics: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisLyricsStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
