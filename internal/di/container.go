package di

import (
	"errors"
	"log/slog"

	"github.com/LJTian/InTheLoop/internal/aggregator"
	"github.com/LJTian/InTheLoop/internal/api"
	"github.com/LJTian/InTheLoop/internal/cache"
	"github.com/LJTian/InTheLoop/internal/collector"
	"github.com/LJTian/InTheLoop/internal/config"
	"github.com/LJTian/InTheLoop/internal/pipeline"
	"github.com/LJTian/InTheLoop/internal/registry"
	"github.com/LJTian/InTheLoop/internal/scheduler"
	"github.com/LJTian/InTheLoop/internal/storage"
	"github.com/LJTian/InTheLoop/internal/trending"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

// Setup 注册所有组件；组件在首次 Invoke 时才创建
func Setup(cfg *config.Config, log *slog.Logger) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)

	do.Provide(injector, func(i do.Injector) (*storage.Store, error) {
		store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			return nil, oops.With("context", "failed to initialize store").Wrap(err)
		}
		return store, nil
	})

	// 有 Postgres 时隐藏集合存数据库，否则落到文本文件
	do.Provide(injector, func(i do.Injector) (registry.HiddenSet, error) {
		store := do.MustInvoke[*storage.Store](i)
		if store.DB != nil {
			return store, nil
		}
		return registry.NewFileHiddenStore(cfg.HiddenFeedsFile), nil
	})

	do.Provide(injector, func(i do.Injector) (*collector.GofeedFetcher, error) {
		return collector.NewGofeedFetcher(cfg.FetchTimeout, cfg.FetchRetries), nil
	})

	do.Provide(injector, func(i do.Injector) (*registry.Manager, error) {
		base, err := registry.LoadFile(cfg.FeedsFile)
		if err != nil {
			return nil, oops.With("feeds_file", cfg.FeedsFile, "context", "failed to load feed registry").Wrap(err)
		}
		log.Info("registry: loaded", "file", cfg.FeedsFile, "categories", len(base.Categories), "feeds", base.Total())

		opts := []registry.ManagerOption{
			registry.WithProber(do.MustInvoke[*collector.GofeedFetcher](i)),
			registry.WithDiscoverer(collector.NewDiscoverer(cfg.FetchTimeout)),
		}
		if store := do.MustInvoke[*storage.Store](i); store.DB != nil {
			opts = append(opts, registry.WithFeedStore(store))
		}
		return registry.NewManager(base, do.MustInvoke[registry.HiddenSet](i), opts...), nil
	})

	do.Provide(injector, func(i do.Injector) (*aggregator.Aggregator, error) {
		return aggregator.New(
			do.MustInvoke[*collector.GofeedFetcher](i),
			aggregator.WithPerFeedLimit(cfg.PerFeedLimit),
			aggregator.WithLogger(log),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*pipeline.Pipeline, error) {
		trendOpts := trending.DefaultOptions()
		trendOpts.TopN = cfg.TrendTopN
		trendOpts.Window = cfg.TrendWindow

		cacheOpts := []cache.Option{cache.WithWindow(cfg.FreshnessWindow)}
		opts := []pipeline.Option{
			pipeline.WithTrendingOptions(trendOpts),
			pipeline.WithLogger(log),
		}
		if store := do.MustInvoke[*storage.Store](i); store.Redis != nil {
			cacheOpts = append(cacheOpts, cache.WithMirror(storage.NewSnapshotMirror(store.Redis)))
			opts = append(opts, pipeline.WithTrendCache(storage.NewTrendCache(store.Redis)))
		}
		opts = append(opts, pipeline.WithCacheOptions(cacheOpts...))

		return pipeline.New(
			do.MustInvoke[*registry.Manager](i),
			do.MustInvoke[*aggregator.Aggregator](i),
			opts...,
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*scheduler.Scheduler, error) {
		s, err := scheduler.New(cfg.CronSpec, do.MustInvoke[*pipeline.Pipeline](i), scheduler.WithLogger(log))
		if err != nil {
			return nil, oops.With("cron", cfg.CronSpec, "context", "failed to initialize scheduler").Wrap(err)
		}
		return s, nil
	})

	do.Provide(injector, func(i do.Injector) (*api.Server, error) {
		return api.NewServer(
			do.MustInvoke[*pipeline.Pipeline](i),
			do.MustInvoke[*registry.Manager](i),
		), nil
	})

	return injector
}

// Shutdown 停止调度并关闭连接；只处理已经创建过的组件
func Shutdown(injector do.Injector, schedulerStarted bool) error {
	var errs []error

	if schedulerStarted {
		if s, err := do.Invoke[*scheduler.Scheduler](injector); err == nil && s != nil {
			s.Stop()
		}
	}
	if store, err := do.Invoke[*storage.Store](injector); err == nil && store != nil {
		errs = append(errs, store.Close())
	}
	return errors.Join(errs...)
}
