package logger

import (
	"io"
	"log/slog"
)

// 出力形式。LOG_FORMATの値をそのまま渡せる。未知の値はテキスト形式になる。
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Option はNewで生成するロガーの設定を変更する。
type Option func(*config)

// WithDebug はtrueの場合にログレベルをDebugにする。
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithFormat は出力形式を指定する。
func WithFormat(format string) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithSource は呼び出し元のファイルと行番号をログに含める。
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}

// WithService は全レコードにservice属性を付ける。空文字列の場合は付けない。
func WithService(name string) Option {
	return func(c *config) {
		c.service = name
	}
}

// WithWriter は出力先を差し替える。nilの場合は標準出力のまま。
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.writer = w
		}
	}
}
