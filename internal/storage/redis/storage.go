package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/whistbroker/internal/model"
	"github.com/mcoot/whistbroker/internal/storage"
)

// accountsKey holds the entire account table as one JSON blob, mirroring the
// flat-file format: every save is a wholesale rewrite.
const accountsKey = "whistbroker:accounts"

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{client: client}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) LoadAccounts(ctx context.Context) ([]*model.PlayerAccount, error) {
	data, err := s.client.Get(ctx, accountsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*model.PlayerAccount{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts from redis: %w", err)
	}

	var accounts []*model.PlayerAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts from redis: %w", err)
	}
	return accounts, nil
}

func (s *Storage) SaveAccounts(ctx context.Context, accounts []*model.PlayerAccount) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}
	return s.client.Set(ctx, accountsKey, data, 0).Err()
}
