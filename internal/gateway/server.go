package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/chatproxy/internal/config"
	"github.com/nao1215/chatproxy/pkg/httpclient"
	"github.com/nao1215/chatproxy/pkg/metrics"
	"github.com/nao1215/chatproxy/pkg/middleware"
	"github.com/nao1215/chatproxy/pkg/ratelimit"
)

// Completer は上流のチャット補完APIを呼び出す。
// 成功時は上流のレスポンスボディをそのまま返す。
type Completer interface {
	CreateChatCompletion(ctx context.Context, payload any) ([]byte, error)
}

// Server はチャット補完プロキシのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はrouterを公開するHTTPサーバー。
	httpServer *http.Server
	// cfg はサーバーの設定。
	cfg *config.Config
	// completer は上流APIのクライアント。起動時に1つだけ生成する。
	completer Completer
	// limiter はクライアントIPごとのレート制限カウンタ。
	limiter *ratelimit.FixedWindow
	// metrics はメトリクスの収集先。無効の場合はnil。
	metrics *metrics.Collector
	// logger はサーバーのロガー。
	logger *slog.Logger
	// validate はリクエストの構造体検証に使う。
	validate *validator.Validate
	// defaults はリクエストで省略されたフィールドの補完値。
	defaults Defaults
}

// Option はServerの依存を差し替える。
type Option func(*Server)

// WithCompleter は上流APIクライアントを差し替える。
func WithCompleter(completer Completer) Option {
	return func(s *Server) {
		s.completer = completer
	}
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCollector はメトリクスの収集先を設定する。METRICS_ENABLEDより優先される。
func WithCollector(collector *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = collector
	}
}

// NewServer は新しいプロキシサーバーを生成する。
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		defaults: Defaults{
			Model:               cfg.DefaultModel,
			MaxCompletionTokens: cfg.DefaultMaxCompletionTokens,
		},
	}
	if cfg.MetricsEnabled {
		s.metrics = metrics.New(nil)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.completer == nil {
		s.completer = httpclient.New(cfg.UpstreamBaseURL, cfg.APIKey,
			httpclient.WithTimeout(cfg.UpstreamTimeout),
			httpclient.WithOrganization(cfg.Organization),
		)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	// RecoveryはRequestLoggerとMetricsの内側に置く。外側に置くとパニックが
	// c.Next()の後処理を飛ばし、500がログにもメトリクスにも残らない。
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(s.logger))
	router.Use(middleware.Metrics(s.metrics))
	router.Use(middleware.Recovery(s.logger))
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORSOrigins()))

	s.router = router
	s.limiter = ratelimit.NewFixedWindow(cfg.RateLimitMax, cfg.RateLimitWindow)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// 上流の応答待ちを含めて書き込みが終わるまで待つ
		WriteTimeout: cfg.UpstreamTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("シャットダウンを開始します", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// Close はレート制限の掃除用goroutineを停止する。複数回呼び出しても安全。
func (s *Server) Close() {
	s.limiter.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ヘルスチェック（レート制限なし）
	s.router.GET("/health", s.handleHealth())
	s.router.GET("/", s.handleHealth())

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// チャット補完（レート制限あり）
	api := s.router.Group("/api")
	api.Use(middleware.RateLimit(s.limiter, s.metrics))
	{
		api.POST("/chat/completions", s.handleChatCompletions())
		api.POST("/test", s.handleChatCompletions())
	}

	s.router.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, http.StatusNotFound, middleware.ErrorBody{
			Message: "Route not found",
			Type:    middleware.ErrorTypeNotFound,
		})
	})
}

// handleHealth は死活監視用のハンドラを返す。上流APIには依存しない。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   s.cfg.ServiceName,
		})
	}
}
