package storage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/LJTian/InTheLoop/internal/registry"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/samber/oops"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomFeed 用户通过管理页面添加的 feed
type CustomFeed struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Category string `gorm:"size:128;index" json:"category"`
	URL      string `gorm:"size:1024;uniqueIndex" json:"url"`
	// Meta 记录添加时的附加信息，例如 discovered_from
	Meta datatypes.JSONMap `gorm:"type:jsonb" json:"meta"`

	CreatedAt time.Time `json:"createdAt"`
}

// HiddenFeed 被隐藏的 feed
type HiddenFeed struct {
	URL       string    `gorm:"primaryKey;size:1024" json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore dsn 为空时不连数据库，redisAddr 为空时不连 Redis；两者都可单独使用
func NewStore(dsn, redisAddr string) (*Store, error) {
	s := &Store{}

	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, oops.In("storage").Wrapf(err, "open postgres")
		}
		if err := db.AutoMigrate(&CustomFeed{}, &HiddenFeed{}); err != nil {
			return nil, oops.In("storage").Wrapf(err, "auto migrate")
		}
		s.DB = db
	}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("storage: redis ping failed", "addr", redisAddr, "error", err)
		}
		s.Redis = rdb
	}

	return s, nil
}

func (s *Store) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// ListCustomFeeds 按添加顺序返回
func (s *Store) ListCustomFeeds(ctx context.Context) ([]registry.Entry, error) {
	var rows []CustomFeed
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, oops.In("storage").Wrapf(err, "list custom feeds")
	}
	return lo.Map(rows, func(r CustomFeed, _ int) registry.Entry {
		return registry.Entry{Category: r.Category, URL: r.URL}
	}), nil
}

// AddCustomFeed URL 已存在时返回 registry.ErrDuplicateFeed
func (s *Store) AddCustomFeed(ctx context.Context, e registry.Entry, meta map[string]any) error {
	row := &CustomFeed{Category: e.Category, URL: e.URL, Meta: datatypes.JSONMap(meta)}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return oops.In("storage").With("url", e.URL).Wrapf(res.Error, "add custom feed")
	}
	if res.RowsAffected == 0 {
		return registry.ErrDuplicateFeed
	}
	return nil
}

func (s *Store) Hidden(ctx context.Context) (map[string]struct{}, error) {
	var rows []HiddenFeed
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, oops.In("storage").Wrapf(err, "list hidden feeds")
	}
	set := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		set[r.URL] = struct{}{}
	}
	return set, nil
}

// Hide 重复隐藏不报错
func (s *Store) Hide(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&HiddenFeed{URL: url}).Error
	if err != nil {
		return oops.In("storage").With("url", url).Wrapf(err, "hide feed")
	}
	return nil
}

func (s *Store) Unhide(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if err := s.DB.WithContext(ctx).Where("url = ?", url).Delete(&HiddenFeed{}).Error; err != nil {
		return oops.In("storage").With("url", url).Wrapf(err, "unhide feed")
	}
	return nil
}
