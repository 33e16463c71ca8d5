// Package config は環境変数からプロキシの設定を読み込む。
//
// 読み込みはcaarlos0/envで行い、値の妥当性はgo-playground/validatorの
// 構造体タグと、タグで表現できない環境ごとの制約で検証する。
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// 実行環境。
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ログ出力形式。
const (
	LogFormatJSON   = "json"
	LogFormatPretty = "pretty"
)

// anyOrigin はCORSで全オリジンを許可する指定。
const anyOrigin = "*"

// Config はプロキシの設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"3001" validate:"required,numeric"`
	// AppEnv は実行環境。
	AppEnv string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production"`
	// ServiceName は /health で返すサービス名。
	ServiceName string `env:"SERVICE_NAME" envDefault:"chat-proxy" validate:"required"`

	// APIKey は上流APIの認証情報。クライアントには決して返さない。
	APIKey string `env:"OPENAI_API_KEY,required,notEmpty" validate:"required"`
	// Organization は上流APIに送る組織ID。空の場合は送らない。
	Organization string `env:"OPENAI_ORGANIZATION"`
	// UpstreamBaseURL は上流APIのベースURL。
	UpstreamBaseURL string `env:"UPSTREAM_BASE_URL" envDefault:"https://api.openai.com/v1" validate:"required,http_url"`
	// UpstreamTimeout は上流API呼び出しのタイムアウト。
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"60s" validate:"gt=0"`

	// DefaultModel はリクエストでmodelが省略された場合に使うモデル。
	DefaultModel string `env:"DEFAULT_MODEL" envDefault:"gpt-4o-mini" validate:"required"`
	// DefaultMaxCompletionTokens はリクエストでmax_completion_tokensが省略された場合の上限。
	DefaultMaxCompletionTokens int `env:"DEFAULT_MAX_COMPLETION_TOKENS" envDefault:"40" validate:"gt=0"`

	// AllowedOrigins は本番環境でCORSを許可するオリジン。
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	// TrustedProxies はX-Forwarded-Forを信頼するプロキシのIPまたはCIDR。
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:"," validate:"dive,cidr|ip"`

	// RateLimitMax はウィンドウあたりのクライアントごとの最大リクエスト数。
	RateLimitMax int `env:"RATE_LIMIT_MAX" envDefault:"100" validate:"gt=0"`
	// RateLimitWindow はレート制限のウィンドウ長。
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m" validate:"gt=0"`

	// MetricsEnabled はtrueの場合に /metrics を公開する。
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	// LogFormat はログの出力形式。
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json pretty"`
	// Debug はtrueの場合にDebugレベルのログを出力する。
	Debug bool `env:"DEBUG" envDefault:"false"`
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

// Load はプロセスの環境変数から設定を読み込み、検証する。
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFromMap は指定されたマップを環境変数として設定を読み込み、検証する。
// プロセスの環境変数は参照しない。
func LoadFromMap(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	cfg.AllowedOrigins = compact(cfg.AllowedOrigins)
	cfg.TrustedProxies = compact(cfg.TrustedProxies)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値を検証する。
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s が不正です（%s）", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("設定の検証に失敗: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("設定の検証に失敗: %w", err)
	}

	if c.IsProduction() {
		if len(c.AllowedOrigins) == 0 {
			return errors.New("設定の検証に失敗: 本番環境では ALLOWED_ORIGINS が必須です")
		}
		if slices.Contains(c.AllowedOrigins, anyOrigin) {
			return errors.New("設定の検証に失敗: 本番環境では ALLOWED_ORIGINS に * を指定できません")
		}
	}
	return nil
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// CORSOrigins はCORSミドルウェアに渡す許可オリジンを返す。
// 開発環境では全オリジンを許可する。
func (c *Config) CORSOrigins() []string {
	if !c.IsProduction() {
		return []string{anyOrigin}
	}
	return c.AllowedOrigins
}

// Addr はhttp.Serverに渡すリッスンアドレスを返す。
func (c *Config) Addr() string {
	return ":" + c.Port
}

// compact は前後の空白を除去し、空要素を取り除く。
func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
