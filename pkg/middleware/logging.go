package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/chatproxy/pkg/metrics"
)

// RequestLogger はリクエストごとに1行のアクセスログを出力するGinミドルウェアを返す。
// 5xxはError、4xxはWarn、それ以外はInfoレベルで出力する。
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("request_id", GetRequestID(c)),
		}
		if errType := GetErrorType(c); errType != "" {
			attrs = append(attrs, slog.String("error_type", errType))
		}
		logger.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}

// Metrics はリクエストの結果をメトリクスに記録するGinミドルウェアを返す。
// 未定義ルートはルート名 "unmatched" で記録する。
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.ObserveRequest(route, c.Writer.Status())
		if errType := GetErrorType(c); errType != "" {
			collector.ObserveError(errType)
		}
	}
}
