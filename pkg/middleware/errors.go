package middleware

import "github.com/gin-gonic/gin"

// エラーエンベロープのtype。
const (
	ErrorTypeInvalidRequest    = "invalid_request_error"
	ErrorTypeInsufficientQuota = "insufficient_quota"
	ErrorTypeRateLimitExceeded = "rate_limit_exceeded"
	ErrorTypeAPI               = "api_error"
	ErrorTypeServer            = "server_error"
	ErrorTypeNotFound          = "not_found"
)

// contextKeyErrorType はクライアントに返したエラーtypeをGinコンテキストに格納するキー。
const contextKeyErrorType = "error_type"

// ErrorBody はエラーエンベロープの中身。
type ErrorBody struct {
	// Message は人が読むためのエラーメッセージ。
	Message string `json:"message"`
	// Type は機械判定用のエラー種別。
	Type string `json:"type"`
	// Code は上流APIから受け取ったエラーコード。無い場合は省略する。
	Code string `json:"code,omitempty"`
}

// ErrorEnvelope は失敗時に返すJSONレスポンス。
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// AbortWithError はエラーエンベロープを返してリクエストの処理を中断する。
func AbortWithError(c *gin.Context, status int, body ErrorBody) {
	c.Set(contextKeyErrorType, body.Type)
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

// GetErrorType はAbortWithErrorで返したエラーtypeを取得する。エラーが無い場合は空文字列を返す。
func GetErrorType(c *gin.Context) string {
	return c.GetString(contextKeyErrorType)
}
