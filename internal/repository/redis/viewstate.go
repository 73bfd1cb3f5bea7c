package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"convtree/internal/domain/models"
	"convtree/internal/domain/repositories"
)

// ViewStateStore keeps sidebar session snapshots in redis with a TTL
type ViewStateStore struct {
	client *redis.Client
	prefix string
}

var _ repositories.ViewStateStore = (*ViewStateStore)(nil)

// NewViewStateStore connects to redisURL and pings it. prefix namespaces keys
// per environment.
func NewViewStateStore(ctx context.Context, redisURL, prefix string) (*ViewStateStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &ViewStateStore{client: client, prefix: prefix}, nil
}

// NewViewStateStoreWithClient wraps an existing client
func NewViewStateStoreWithClient(client *redis.Client, prefix string) *ViewStateStore {
	return &ViewStateStore{client: client, prefix: prefix}
}

// Close closes the redis connection
func (s *ViewStateStore) Close() error {
	return s.client.Close()
}

// Ping checks the redis connection
func (s *ViewStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// sessionKey returns the key holding an owner's snapshot
func (s *ViewStateStore) sessionKey(ownerID string) string {
	return fmt.Sprintf("%sconvtree:session:%s", s.prefix, ownerID)
}

// Load returns the saved snapshot, or nil when none exists or it expired
func (s *ViewStateStore) Load(ctx context.Context, ownerID string) (*models.SessionSnapshot, error) {
	data, err := s.client.Get(ctx, s.sessionKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &snap, nil
}

// Save stores the snapshot; every save restarts the TTL
func (s *ViewStateStore) Save(ctx context.Context, ownerID string, snapshot *models.SessionSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(ownerID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete forgets an owner's session
func (s *ViewStateStore) Delete(ctx context.Context, ownerID string) error {
	return s.client.Del(ctx, s.sessionKey(ownerID)).Err()
}
