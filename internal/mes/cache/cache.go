// Package cache is a two tier read-through cache for analytics read models:
// an in-process go-cache tier in front of an optional redis tier. Entries are
// namespaced by a per-team generation number so a single increment drops every
// cached view of that team.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache 分层缓存
type Cache struct {
	mem      *gocache.Cache
	rdb      *redis.Client
	memTTL   time.Duration
	redisTTL time.Duration
	enabled  bool
	logger   *zap.Logger
}

// Options 缓存参数
type Options struct {
	Enabled   bool
	MemoryTTL time.Duration
	RedisTTL  time.Duration
}

// New creates a cache. rdb may be nil, in which case only the memory tier is used.
func New(rdb *redis.Client, opts Options, logger *zap.Logger) *Cache {
	if opts.MemoryTTL <= 0 {
		opts.MemoryTTL = 10 * time.Second
	}
	if opts.RedisTTL <= 0 {
		opts.RedisTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		mem:      gocache.New(opts.MemoryTTL, 2*opts.MemoryTTL),
		rdb:      rdb,
		memTTL:   opts.MemoryTTL,
		redisTTL: opts.RedisTTL,
		enabled:  opts.Enabled,
		logger:   logger,
	}
}

// AsHash returns a short hash of the printed form of o.
func AsHash(o interface{}) string {
	h := crc32.NewIEEE()
	_, _ = h.Write([]byte(fmt.Sprintf("%v", o)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Key 生成带团队代数的缓存键
func (c *Cache) Key(ctx context.Context, teamID, view string, params ...interface{}) string {
	return fmt.Sprintf("mes:%s:%d:%s:%s", teamID, c.generation(ctx, teamID), view, AsHash(params))
}

// GetJSON looks the key up in memory first, then redis, and decodes into dst.
func (c *Cache) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	if !c.enabled {
		return false
	}
	if v, ok := c.mem.Get(key); ok {
		if b, ok := v.([]byte); ok && json.Unmarshal(b, dst) == nil {
			return true
		}
	}
	if c.rdb == nil {
		return false
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false
	}
	c.mem.Set(key, b, c.memTTL)
	return true
}

// SetJSON 写入两级缓存
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}) {
	if !c.enabled {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.mem.Set(key, b, c.memTTL)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, b, c.redisTTL).Err(); err != nil {
			c.logger.Debug("redis set failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// InvalidateTeam bumps the team generation so existing keys are no longer reachable.
func (c *Cache) InvalidateTeam(ctx context.Context, teamID string) {
	genKey := generationKey(teamID)
	_ = c.mem.Add(genKey, int64(0), gocache.NoExpiration)
	if _, err := c.mem.IncrementInt64(genKey, 1); err != nil {
		c.logger.Warn("cache generation bump failed", zap.String("team_id", teamID), zap.Error(err))
	}
	if c.rdb != nil {
		if err := c.rdb.Incr(ctx, genKey).Err(); err != nil {
			c.logger.Debug("redis generation bump failed", zap.String("team_id", teamID), zap.Error(err))
		}
	}
}

func (c *Cache) generation(ctx context.Context, teamID string) int64 {
	genKey := generationKey(teamID)
	if c.rdb != nil {
		if n, err := c.rdb.Get(ctx, genKey).Int64(); err == nil {
			return n
		}
	}
	if v, ok := c.mem.Get(genKey); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

func generationKey(teamID string) string {
	return "mes:gen:" + teamID
}
