package gateway

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/chatproxy/pkg/httpclient"
	"github.com/nao1215/chatproxy/pkg/middleware"
)

// maxRequestBytes はクライアントから受け付けるリクエストボディの最大サイズ。
const maxRequestBytes = 1 << 20

// 上流呼び出しの結果。メトリクスのラベルに使う。
const (
	outcomeSuccess        = "success"
	outcomeAPIError       = "api_error"
	outcomeTransportError = "transport_error"
)

// handleChatCompletions はチャット補完リクエストを上流APIに転送するハンドラを返す。
// 検証に失敗した場合は上流APIを呼び出さない。
func (s *Server) handleChatCompletions() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				middleware.AbortWithError(c, http.StatusRequestEntityTooLarge, middleware.ErrorBody{
					Message: "Request body too large",
					Type:    middleware.ErrorTypeInvalidRequest,
				})
				return
			}
			abortWithProxyError(c, &TransportError{Err: err})
			return
		}

		req, verr := parseChatRequest(body, s.validate)
		if verr != nil {
			abortWithProxyError(c, verr)
			return
		}

		requestID := middleware.GetRequestID(c)
		ctx := httpclient.WithRequestID(c.Request.Context(), requestID)

		start := time.Now()
		resp, err := s.completer.CreateChatCompletion(ctx, req.Payload(s.defaults))
		elapsed := time.Since(start)
		if err != nil {
			perr := classifyUpstreamError(err)
			outcome := outcomeTransportError
			if _, ok := perr.(*UpstreamError); ok {
				outcome = outcomeAPIError
			}
			s.metrics.ObserveUpstream(outcome, elapsed)
			s.logger.WarnContext(ctx, "上流APIの呼び出しに失敗",
				"request_id", requestID,
				"outcome", outcome,
				"latency", elapsed,
				"error", err,
			)
			abortWithProxyError(c, perr)
			return
		}

		s.metrics.ObserveUpstream(outcomeSuccess, elapsed)
		s.logger.DebugContext(ctx, "上流APIの呼び出しに成功",
			"request_id", requestID,
			"latency", elapsed,
			"messages", len(req.Messages),
		)
		c.Data(http.StatusOK, "application/json", resp)
	}
}

// abortWithProxyError はエラーをエンベロープに変換してレスポンスを返す。
func abortWithProxyError(c *gin.Context, err proxyError) {
	status, body := toEnvelope(err)
	middleware.AbortWithError(c, status, body)
}
