package retry

import (
	"context"
	"time"

	"github.com/samber/oops"
)

type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // 线性退避：第 n 次失败后等待 n*Delay
	// Retryable 为 nil 时所有错误都重试
	Retryable func(error) bool
}

// Do 执行 fn，失败按配置重试；不可重试的错误立即返回
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := cfg.Delay
		if cfg.Backoff {
			delay = time.Duration(attempt) * cfg.Delay
		}
		select {
		case <-ctx.Done():
			return oops.In("retry").With("attempt", attempt).Wrap(ctx.Err())
		case <-time.After(delay):
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return oops.In("retry").With("attempts", attempts).Wrapf(lastErr, "failed after %d attempts", attempts)
}
