package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nao1215/chatproxy/pkg/httpclient"
	"github.com/nao1215/chatproxy/pkg/middleware"
)

// 上流が返すエラーコード。
const (
	codeInsufficientQuota = "insufficient_quota"
	codeRateLimitExceeded = "rate_limit_exceeded"
)

// クライアントに返す固定のエラーメッセージ。
const (
	messageUpstreamError   = "Upstream API error"
	messageQuotaExceeded   = "You exceeded your current quota, please check your plan and billing details."
	messageUpstreamLimited = "Rate limit exceeded, please try again later."
	messageUnexpected      = "An unexpected error occurred"
)

// proxyError はプロキシ処理の失敗を表す。
// 実装はこのパッケージのValidationError、UpstreamError、TransportErrorに限られる。
type proxyError interface {
	error
	proxyError()
}

// ValidationError はクライアントが送信したリクエストが不正であることを表す。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "リクエストの検証に失敗: " + e.Message
}

func (*ValidationError) proxyError() {}

// UpstreamError は上流APIがステータスコード付きのエラーを返したことを表す。
type UpstreamError struct {
	Status  int
	Type    string
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("上流APIエラー: status=%d, type=%s, code=%s, message=%s", e.Status, e.Type, e.Code, e.Message)
}

func (*UpstreamError) proxyError() {}

// TransportError は上流APIに到達できなかった、または応答を読めなかったことを表す。
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "上流APIとの通信に失敗: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (*TransportError) proxyError() {}

// classifyUpstreamError は上流呼び出しのエラーをUpstreamErrorかTransportErrorに分類する。
func classifyUpstreamError(err error) proxyError {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{
			Status:  apiErr.StatusCode,
			Type:    apiErr.Type,
			Code:    apiErr.Code,
			Message: apiErr.Message,
		}
	}
	return &TransportError{Err: err}
}

// toEnvelope はエラーをHTTPステータスとエラーエンベロープに変換する。
// 上流エラーは クォータ超過、レート制限、その他のステータス の順で判定する。
func toEnvelope(err proxyError) (int, middleware.ErrorBody) {
	switch e := err.(type) {
	case *ValidationError:
		return http.StatusBadRequest, middleware.ErrorBody{
			Message: e.Message,
			Type:    middleware.ErrorTypeInvalidRequest,
		}
	case *UpstreamError:
		return upstreamEnvelope(e)
	case *TransportError:
		return unexpectedEnvelope()
	default:
		// proxyErrorはこのパッケージの型でしか実装できない
		panic(fmt.Sprintf("未知のproxyError型: %T", err))
	}
}

func upstreamEnvelope(e *UpstreamError) (int, middleware.ErrorBody) {
	switch {
	case e.Code == codeInsufficientQuota || e.Type == codeInsufficientQuota:
		return http.StatusTooManyRequests, middleware.ErrorBody{
			Message: fallback(e.Message, messageQuotaExceeded),
			Type:    middleware.ErrorTypeInsufficientQuota,
			Code:    e.Code,
		}
	case e.Status == http.StatusTooManyRequests || e.Code == codeRateLimitExceeded || e.Type == codeRateLimitExceeded:
		return http.StatusTooManyRequests, middleware.ErrorBody{
			Message: fallback(e.Message, messageUpstreamLimited),
			Type:    middleware.ErrorTypeRateLimitExceeded,
			Code:    e.Code,
		}
	}

	status := e.Status
	// エラーとして返せないステータスは上流の不正な応答として扱う
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusBadGateway
	}
	return status, middleware.ErrorBody{
		Message: fallback(e.Message, messageUpstreamError),
		Type:    fallback(e.Type, middleware.ErrorTypeAPI),
		Code:    e.Code,
	}
}

func unexpectedEnvelope() (int, middleware.ErrorBody) {
	return http.StatusInternalServerError, middleware.ErrorBody{
		Message: messageUnexpected,
		Type:    middleware.ErrorTypeServer,
	}
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
