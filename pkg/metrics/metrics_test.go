package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestCollector はCollectorの記録内容を検証する。
func TestCollector(t *testing.T) {
	t.Parallel()

	t.Run("リクエスト数がルートとステータスごとに記録されること", func(t *testing.T) {
		t.Parallel()

		c := New(nil)
		c.ObserveRequest("/api/chat/completions", http.StatusOK)
		c.ObserveRequest("/api/chat/completions", http.StatusOK)
		c.ObserveRequest("/api/chat/completions", http.StatusBadRequest)

		if got := testutil.ToFloat64(c.requests.WithLabelValues("/api/chat/completions", "200")); got != 2 {
			t.Errorf("200の件数 = %v, want 2", got)
		}
		if got := testutil.ToFloat64(c.requests.WithLabelValues("/api/chat/completions", "400")); got != 1 {
			t.Errorf("400の件数 = %v, want 1", got)
		}
	})

	t.Run("エラーtypeとレート制限が記録されること", func(t *testing.T) {
		t.Parallel()

		c := New(nil)
		c.ObserveError("invalid_request_error")
		c.ObserveRateLimited()
		c.ObserveRateLimited()

		if got := testutil.ToFloat64(c.errors.WithLabelValues("invalid_request_error")); got != 1 {
			t.Errorf("invalid_request_errorの件数 = %v, want 1", got)
		}
		if got := testutil.ToFloat64(c.rateLimited); got != 2 {
			t.Errorf("rate_limitedの件数 = %v, want 2", got)
		}
	})

	t.Run("上流の所要時間がヒストグラムに記録されること", func(t *testing.T) {
		t.Parallel()

		c := New(nil)
		c.ObserveUpstream("success", 300*time.Millisecond)

		if got := testutil.CollectAndCount(c.upstreamDuration); got != 1 {
			t.Errorf("ヒストグラムの系列数 = %d, want 1", got)
		}
	})

	t.Run("nilのCollectorでもパニックしないこと", func(t *testing.T) {
		t.Parallel()

		var c *Collector
		c.ObserveRequest("/health", http.StatusOK)
		c.ObserveError("server_error")
		c.ObserveUpstream("success", time.Second)
		c.ObserveRateLimited()
	})
}

// TestHandler はメトリクスエンドポイントの出力を検証する。
func TestHandler(t *testing.T) {
	t.Parallel()

	c := New(nil)
	c.ObserveRateLimited()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("メトリクスの取得に失敗: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("レスポンスの読み取りに失敗: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("ステータスコード = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !strings.Contains(string(body), "chatproxy_rate_limited_total 1") {
		t.Errorf("chatproxy_rate_limited_total が含まれていない: %s", body)
	}
}
