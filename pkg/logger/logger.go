// Package logger はサービス共通の構造化ロガーを生成する。
//
// 本番ではlog/slogのJSONハンドラで1行1レコードのログを出力し、
// 開発時はcharmbracelet/logのハンドラで人が読みやすい色付きのログを出力する。
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// config はNewに渡されたオプションを集約する。
type config struct {
	level   slog.Level
	format  string
	source  bool
	service string
	writer  io.Writer
}

// New はオプションに従って*slog.Loggerを生成する。
// 何も指定しない場合はInfoレベルのテキスト形式で標準出力に書き込む。
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var h slog.Handler
	switch cfg.format {
	case FormatPretty:
		h = newPrettyHandler(cfg.writer, cfg)
	case FormatJSON:
		h = slog.NewJSONHandler(cfg.writer, &slog.HandlerOptions{
			Level:     cfg.level,
			AddSource: cfg.source,
		})
	default:
		h = slog.NewTextHandler(cfg.writer, &slog.HandlerOptions{
			Level:     cfg.level,
			AddSource: cfg.source,
		})
	}

	l := slog.New(h)
	if cfg.service != "" {
		l = l.With(slog.String("service", cfg.service))
	}
	return l
}

// Nop は何も出力しないロガーを返す。テストで使用する。
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newPrettyHandler はcharmbracelet/logのロガーをslog.Handlerとして生成する。
func newPrettyHandler(w io.Writer, cfg *config) *charmlog.Logger {
	level := charmlog.InfoLevel
	if cfg.level <= slog.LevelDebug {
		level = charmlog.DebugLevel
	}
	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		ReportCaller:    cfg.source,
	})
}
