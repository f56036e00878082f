package service

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Graph is the boundary to the social network-graph service. Only the search
// index consumes it; follow relationships are never stored here.
type Graph interface {
	Following(ctx context.Context, userID uint) ([]uint, error)
	Followers(ctx context.Context, userID uint) ([]uint, error)
}

// RedisGraph reads the follow sets the social service maintains in Redis.
type RedisGraph struct {
	Client *redis.Client
}

func (g *RedisGraph) Following(ctx context.Context, userID uint) ([]uint, error) {
	return g.members(ctx, "following:"+strconv.FormatUint(uint64(userID), 10))
}

func (g *RedisGraph) Followers(ctx context.Context, userID uint) ([]uint, error) {
	return g.members(ctx, "followers:"+strconv.FormatUint(uint64(userID), 10))
}

func (g *RedisGraph) members(ctx context.Context, key string) ([]uint, error) {
	raw, err := g.Client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, transient("read graph set", err)
	}

	ids := make([]uint, 0, len(raw))
	for _, member := range raw {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
