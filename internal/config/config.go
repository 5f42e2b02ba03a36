package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	// 为空时不启用对应组件：无 Postgres 则隐藏列表落盘到文件，无 Redis 则不做快照镜像
	PostgresDSN string
	RedisAddr   string

	CronSpec string

	FeedsFile       string
	HiddenFeedsFile string

	PerFeedLimit    int
	FreshnessWindow time.Duration
	FetchTimeout    time.Duration
	FetchRetries    int

	TrendTopN   int
	TrendWindow time.Duration

	Debug bool

	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:         getEnv("APP_PORT", "9000"),
		PostgresDSN:     getEnvOptional("POSTGRES_DSN", "host=localhost user=intheloop password=intheloop dbname=intheloop port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:       getEnvOptional("REDIS_ADDR", "localhost:6380"),
		CronSpec:        getEnv("CRON_SPEC", "*/30 * * * *"),
		FeedsFile:       getEnv("FEEDS_FILE", "configs/feeds.yaml"),
		HiddenFeedsFile: getEnv("HIDDEN_FEEDS_FILE", "hidden_feeds.txt"),
		PerFeedLimit:    getEnvInt("PER_FEED_LIMIT", 8, 1),
		FreshnessWindow: getEnvDuration("CACHE_FRESHNESS", 30*time.Minute),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchRetries:    getEnvInt("FETCH_RETRIES", 2, 0),
		TrendTopN:       getEnvInt("TREND_TOP_N", 10, 1),
		TrendWindow:     getEnvDuration("TREND_WINDOW", 24*time.Hour),
		Debug:           os.Getenv("DEBUG") == "true",
		BasicAuthUser:   os.Getenv("APP_BASIC_USER"),
		BasicAuthPass:   os.Getenv("APP_BASIC_PASS"),
	}

	slog.Info("config loaded",
		"port", cfg.AppPort,
		"cron", cfg.CronSpec,
		"feeds_file", cfg.FeedsFile,
		"per_feed_limit", cfg.PerFeedLimit,
		"freshness", cfg.FreshnessWindow,
	)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvOptional 显式设置为空字符串表示关闭该组件，未设置时取默认值
func getEnvOptional(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// getEnvInt 非法或小于 floor 时回退默认值
func getEnvInt(key string, def, floor int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		slog.Warn("config: invalid int, using default", "key", key, "value", v, "floor", floor, "default", def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config: invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
