package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// chatCompletionsPath はチャット補完エンドポイントのパス。
	chatCompletionsPath = "/chat/completions"
	// defaultMaxResponseBytes は上流レスポンスとして受け付ける最大サイズ。
	defaultMaxResponseBytes = 10 << 20
	// defaultTimeout はWithTimeoutを指定しない場合のタイムアウト。
	defaultTimeout = 60 * time.Second
)

// Client は上流のチャット補完APIと通信するHTTPクライアント。
// プロセス起動時に1つだけ生成し、全リクエストで共有する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は上流APIのベースURL（例: "https://api.openai.com/v1"）。
	baseURL string
	// apiKey は上流APIの認証情報。
	apiKey string
	// organization は上流APIの組織ID。空の場合は送信しない。
	organization string
	// maxResponseBytes はこれを超えるレスポンスボディをエラーにする。
	maxResponseBytes int64
}

// ErrResponseTooLarge は上流のレスポンスボディが上限を超えたことを表す。
// 途中で切り詰めたボディは返さない。
var ErrResponseTooLarge = errors.New("上流レスポンスが大きすぎます")

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout は上流呼び出しのタイムアウトを設定する。0の場合はタイムアウトしない。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithOrganization はOpenAI-Organizationヘッダーの値を設定する。
func WithOrganization(org string) Option {
	return func(c *Client) {
		c.organization = org
	}
}

// WithHTTPClient は内部で使用する*http.Clientを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxResponseBytes は受け付けるレスポンスボディの最大サイズを設定する。
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		c.maxResponseBytes = n
	}
}

// New は新しい上流APIクライアントを生成する。
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:          strings.TrimRight(baseURL, "/"),
		apiKey:           apiKey,
		maxResponseBytes: defaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateChatCompletion はpayloadをチャット補完エンドポイントに送信し、
// 成功時はレスポンスボディをそのまま返す。
func (c *Client) CreateChatCompletion(ctx context.Context, payload any) ([]byte, error) {
	return c.PostJSON(ctx, chatCompletionsPath, payload)
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// 2xxの場合はレスポンスボディを返し、それ以外は*APIErrorを返す。
func (c *Client) PostJSON(ctx context.Context, path string, body any) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	// コンテキストからリクエストIDを伝播する
	if requestID, ok := ctx.Value(contextKeyRequestID).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	// 上限+1バイトまで読み、超過を検出する
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}
	if int64(len(respBody)) > c.maxResponseBytes {
		return nil, fmt.Errorf("status=%d, limit=%d: %w", resp.StatusCode, c.maxResponseBytes, ErrResponseTooLarge)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// APIError は上流APIが2xx以外のステータスで返したエラー。
type APIError struct {
	// StatusCode は上流のHTTPステータスコード。
	StatusCode int
	// Type は上流のエラー種別（例: "insufficient_quota"）。
	Type string
	// Code は上流のエラーコード（例: "rate_limit_exceeded"）。
	Code string
	// Message は上流のエラーメッセージ。
	Message string
}

// Error はエラー文字列を返す。
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("上流APIエラー: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("上流APIエラー: status=%d, type=%s, code=%s, message=%s", e.StatusCode, e.Type, e.Code, e.Message)
}

// apiErrorBody は上流のエラーレスポンス形式。
type apiErrorBody struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// parseAPIError は上流のエラーレスポンスから*APIErrorを生成する。
// ボディがエラーレスポンス形式でない場合はステータスコードだけを持つ。
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}
	apiErr.Message = parsed.Error.Message
	apiErr.Type = parsed.Error.Type
	apiErr.Code = rawCode(parsed.Error.Code)
	return apiErr
}

// rawCode はcodeフィールドを文字列に変換する。上流は文字列、数値、nullのいずれかを返す。
func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// 上流呼び出し時にX-Request-IDヘッダーとして送信される。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}
