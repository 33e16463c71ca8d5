package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/chatproxy/pkg/metrics"
	"github.com/nao1215/chatproxy/pkg/ratelimit"
)

// RateLimit はクライアントIPごとに固定ウィンドウでリクエスト数を制限するGinミドルウェアを返す。
// 上限を超えたリクエストはボディを読む前に429で拒否する。
// 判定結果はRateLimit-*ヘッダーとしてすべてのレスポンスに付与する。
func RateLimit(limiter *ratelimit.FixedWindow, collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := limiter.Allow(c.ClientIP())

		resetSeconds := secondsUntil(res.ResetAt)
		c.Header("RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if !res.Allowed {
			collector.ObserveRateLimited()
			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			AbortWithError(c, http.StatusTooManyRequests, ErrorBody{
				Message: "Too many requests, please try again later.",
				Type:    ErrorTypeRateLimitExceeded,
			})
			return
		}

		c.Next()
	}
}

// secondsUntil はtまでの秒数を切り上げで返す。過去の時刻の場合は0を返す。
func secondsUntil(t time.Time) int {
	d := time.Until(t)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
