package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/redis/go-redis/v9"
)

// StandingsService mirrors the combined leaderboards into Redis sorted
// sets so presentation layers and other instances can read standings
// without touching the database. The in-process aggregator stays the
// source of truth; the mirror is rebuilt on every publish.
type StandingsService struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStandingsService creates a Redis standings mirror.
func NewStandingsService(cfg *config.RedisConfig, logger *slog.Logger) (*StandingsService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &StandingsService{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (s *StandingsService) Close() error {
	return s.client.Close()
}

// standingsKey returns the sorted-set key for a category's standings.
func (s *StandingsService) standingsKey(category domain.Category) string {
	return fmt.Sprintf("playtime:standings:%s", category)
}

// namesKey is the hash mapping player ids to display names.
const namesKey = "playtime:names"

// Publish replaces a category's mirrored standings with the given
// positions. The old set is deleted first so players who dropped out of
// the top ten do not linger.
func (s *StandingsService) Publish(ctx context.Context, category domain.Category, positions []domain.Position) error {
	key := s.standingsKey(category)

	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	for _, p := range positions {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(p.Seconds),
			Member: p.ID.String(),
		})
		pipe.HSet(ctx, namesKey, p.ID.String(), p.Name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publishing standings: %w", err)
	}
	return nil
}

// Standings reads a category's mirrored standings, descending.
func (s *StandingsService) Standings(ctx context.Context, category domain.Category, n int) ([]domain.Position, error) {
	key := s.standingsKey(category)
	results, err := s.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading standings: %w", err)
	}

	ids := make([]string, len(results))
	for i, result := range results {
		ids[i] = result.Member.(string)
	}

	var names []interface{}
	if len(ids) > 0 {
		names, err = s.client.HMGet(ctx, namesKey, ids...).Result()
		if err != nil {
			return nil, fmt.Errorf("reading player names: %w", err)
		}
	}

	positions := make([]domain.Position, 0, len(results))
	for i, result := range results {
		id, err := uuid.Parse(result.Member.(string))
		if err != nil {
			continue
		}
		name := ""
		if i < len(names) {
			if v, ok := names[i].(string); ok {
				name = v
			}
		}
		positions = append(positions, domain.Position{
			ID:      id,
			Name:    name,
			Seconds: int64(result.Score),
		})
	}
	return positions, nil
}
