package recipe

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tmdgusya/crawl-selector/internal/config"
)

// ErrEmptyRedisAddress is returned when the redis address is not configured.
var ErrEmptyRedisAddress = errors.New("redis address is required")

const redisConnectTimeout = 5 * time.Second

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyRedisAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisStore keeps recipes in a redis hash keyed by recipe id.
type RedisStore struct {
	client     *redis.Client
	recipesKey string
	activeKey  string
}

// NewRedisStore returns a store using keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client:     client,
		recipesKey: prefix + ":recipes",
		activeKey:  prefix + ":active",
	}
}

func (s *RedisStore) Get(ctx context.Context) (Snapshot, error) {
	raw, err := s.client.HGetAll(ctx, s.recipesKey).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load recipes: %w", err)
	}

	recipes := make([]CrawlRecipe, 0, len(raw))
	for id, body := range raw {
		var r CrawlRecipe
		if unmarshalErr := json.Unmarshal([]byte(body), &r); unmarshalErr != nil {
			return Snapshot{}, fmt.Errorf("decode recipe %s: %w", id, unmarshalErr)
		}
		recipes = append(recipes, r)
	}
	slices.SortFunc(recipes, func(a, b CrawlRecipe) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	active, err := s.client.Get(ctx, s.activeKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("load active recipe: %w", err)
	}

	return Snapshot{Recipes: recipes, ActiveID: active}, nil
}

func (s *RedisStore) Put(ctx context.Context, r CrawlRecipe) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode recipe %s: %w", r.ID, err)
	}
	if setErr := s.client.HSet(ctx, s.recipesKey, r.ID, body).Err(); setErr != nil {
		return fmt.Errorf("save recipe %s: %w", r.ID, setErr)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.recipesKey, id).Result()
	if err != nil {
		return fmt.Errorf("delete recipe %s: %w", id, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	active, err := s.client.Get(ctx, s.activeKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("load active recipe: %w", err)
	}
	if active == id {
		if delErr := s.client.Del(ctx, s.activeKey).Err(); delErr != nil {
			return fmt.Errorf("clear active recipe: %w", delErr)
		}
	}
	return nil
}

func (s *RedisStore) SetActive(ctx context.Context, id string) error {
	if id == "" {
		if err := s.client.Del(ctx, s.activeKey).Err(); err != nil {
			return fmt.Errorf("clear active recipe: %w", err)
		}
		return nil
	}

	exists, err := s.client.HExists(ctx, s.recipesKey, id).Result()
	if err != nil {
		return fmt.Errorf("check recipe %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if setErr := s.client.Set(ctx, s.activeKey, id, 0).Err(); setErr != nil {
		return fmt.Errorf("set active recipe: %w", setErr)
	}
	return nil
}
