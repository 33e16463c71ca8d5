// チャット補完プロキシのエントリポイント。
// フロントエンドからのチャット補完リクエストを検証して上流APIに転送する。
// 上流APIの認証情報を保持する唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/chatproxy/internal/config"
	"github.com/nao1215/chatproxy/internal/gateway"
	"github.com/nao1215/chatproxy/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("設定の読み込みに失敗", "error", err)
		return 1
	}

	log := logger.New(
		logger.WithDebug(cfg.Debug),
		// デバッグ時のみ呼び出し元を出す
		logger.WithSource(cfg.Debug),
		logger.WithFormat(cfg.LogFormat),
		logger.WithService("chatproxy"),
	)
	slog.SetDefault(log)

	server, err := gateway.NewServer(cfg, gateway.WithLogger(log))
	if err != nil {
		log.Error("サーバーの初期化に失敗", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("チャット補完プロキシを起動します",
		"addr", cfg.Addr(),
		"env", cfg.AppEnv,
		"upstream", cfg.UpstreamBaseURL,
		"rate_limit", cfg.RateLimitMax,
		"rate_limit_window", cfg.RateLimitWindow,
		"metrics", cfg.MetricsEnabled,
	)
	if err := server.Run(ctx); err != nil {
		log.Error("サーバーの実行に失敗", "error", err)
		return 1
	}
	log.Info("チャット補完プロキシを停止しました")
	return 0
}
