package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LJTian/InTheLoop/internal/cache"
	"github.com/LJTian/InTheLoop/internal/pipeline"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const (
	snapshotKey = "intheloop:articles:snapshot"
	snapshotTTL = 24 * time.Hour

	// 与列表缓存一致的短 TTL
	trendingTTL = 5 * time.Minute
)

// SnapshotMirror 把文章快照镜像到 Redis，进程重启后可直接预热
type SnapshotMirror struct {
	rdb *redis.Client
}

func NewSnapshotMirror(rdb *redis.Client) *SnapshotMirror {
	return &SnapshotMirror{rdb: rdb}
}

func (m *SnapshotMirror) Save(ctx context.Context, e cache.Entry) error {
	bs, err := json.Marshal(e)
	if err != nil {
		return oops.In("storage").Wrapf(err, "encode snapshot")
	}
	if err := m.rdb.Set(ctx, snapshotKey, bs, snapshotTTL).Err(); err != nil {
		return oops.In("storage").With("key", snapshotKey).Wrapf(err, "save snapshot")
	}
	return nil
}

func (m *SnapshotMirror) Load(ctx context.Context) (cache.Entry, bool, error) {
	bs, err := m.rdb.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, oops.In("storage").With("key", snapshotKey).Wrapf(err, "load snapshot")
	}
	return decodeSnapshot(bs)
}

// decodeSnapshot 没有时间戳的快照视为无效
func decodeSnapshot(bs []byte) (cache.Entry, bool, error) {
	var e cache.Entry
	if err := json.Unmarshal(bs, &e); err != nil {
		return cache.Entry{}, false, oops.In("storage").Wrapf(err, "decode snapshot")
	}
	if e.ComputedAt.IsZero() {
		return cache.Entry{}, false, nil
	}
	return e, true, nil
}

// TrendCache 按快照时间与 topN 缓存热门话题
type TrendCache struct {
	rdb *redis.Client
}

func NewTrendCache(rdb *redis.Client) *TrendCache {
	return &TrendCache{rdb: rdb}
}

func trendingKey(computedAt time.Time, topN int) string {
	return fmt.Sprintf("intheloop:trending:%d:%d", computedAt.UnixNano(), topN)
}

func (c *TrendCache) GetTrending(ctx context.Context, computedAt time.Time, topN int) (pipeline.TrendingResult, bool, error) {
	var r pipeline.TrendingResult
	bs, err := c.rdb.Get(ctx, trendingKey(computedAt, topN)).Bytes()
	if errors.Is(err, redis.Nil) {
		return r, false, nil
	}
	if err != nil {
		return r, false, oops.In("storage").Wrapf(err, "get trending")
	}
	if err := json.Unmarshal(bs, &r); err != nil {
		return r, false, oops.In("storage").Wrapf(err, "decode trending")
	}
	return r, true, nil
}

func (c *TrendCache) SetTrending(ctx context.Context, r pipeline.TrendingResult, topN int) error {
	bs, err := json.Marshal(r)
	if err != nil {
		return oops.In("storage").Wrapf(err, "encode trending")
	}
	if err := c.rdb.Set(ctx, trendingKey(r.ComputedAt, topN), bs, trendingTTL).Err(); err != nil {
		return oops.In("storage").Wrapf(err, "set trending")
	}
	return nil
}
