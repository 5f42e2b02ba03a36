package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LJTian/InTheLoop/internal/logger"
	"github.com/LJTian/InTheLoop/internal/pipeline"
	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
)

// Refresher 由 pipeline.Pipeline 实现
type Refresher interface {
	Refresh(ctx context.Context) pipeline.Listing
}

type Scheduler struct {
	cron         *cron.Cron
	refresher    Refresher
	startupDelay time.Duration
	timeout      time.Duration
	log          *slog.Logger

	// 上一轮未结束时跳过本轮
	running sync.Mutex
}

type Option func(*Scheduler)

func WithStartupDelay(d time.Duration) Option { return func(s *Scheduler) { s.startupDelay = d } }

// WithTimeout 单轮刷新的超时
func WithTimeout(d time.Duration) Option { return func(s *Scheduler) { s.timeout = d } }

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.log = l } }

func New(spec string, r Refresher, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cron:         cron.New(),
		refresher:    r,
		startupDelay: 15 * time.Second,
		timeout:      5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log)

	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, oops.In("scheduler").With("spec", spec).Wrapf(err, "add refresh job")
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮刷新，避免与首屏请求争抢资源
	time.AfterFunc(s.startupDelay, s.runOnce)
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce 同步执行一轮刷新，返回刷新后的快照
func (s *Scheduler) RunOnce() pipeline.Listing {
	s.running.Lock()
	defer s.running.Unlock()
	return s.refresh()
}

func (s *Scheduler) runOnce() {
	if !s.running.TryLock() {
		s.log.Warn("scheduler: previous refresh still running, skip")
		return
	}
	defer s.running.Unlock()
	s.refresh()
}

func (s *Scheduler) refresh() pipeline.Listing {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.log.Info("scheduler: refresh start")
	start := time.Now()
	l := s.refresher.Refresh(ctx)
	s.log.Info("scheduler: refresh done", "articles", l.Total, "took", time.Since(start).Round(time.Millisecond))
	return l
}
