package logger

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Init 文本日志输出到 stdout，错误级别额外以 JSON 写到 stderr，便于采集告警
func Init(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	text := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	errs := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})

	l := slog.New(slogmulti.Fanout(text, errs))
	slog.SetDefault(l)
	return l
}

// OrDefault 组件未注入 logger 时使用全局默认
func OrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
