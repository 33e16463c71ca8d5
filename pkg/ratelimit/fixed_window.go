package ratelimit

import (
	"sync"
	"time"
)

// Result はAllowによる判定結果を表す。
type Result struct {
	// Allowed はリクエストが許可されたかどうか。
	Allowed bool
	// Limit はウィンドウあたりの上限リクエスト数。
	Limit int
	// Remaining は現在のウィンドウで残っているリクエスト数。
	Remaining int
	// ResetAt は現在のウィンドウがリセットされる時刻。
	ResetAt time.Time
}

// window はキー1つ分のカウンタ。
type window struct {
	count   int
	resetAt time.Time
}

// FixedWindow はキーごとの固定ウィンドウカウンタ。
// 判定とカウントの加算は1つのロック内で行うため、同一キーへの並行リクエストでも
// 上限を超えて許可されることはない。
type FixedWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	// limit はウィンドウあたりの上限リクエスト数。
	limit int
	// period はウィンドウの長さ。
	period time.Duration
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewFixedWindow は新しい固定ウィンドウカウンタを生成し、期限切れキーの掃除を開始する。
// 不要になったらCloseを呼び出して掃除用のgoroutineを停止すること。
func NewFixedWindow(limit int, period time.Duration) *FixedWindow {
	f := &FixedWindow{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go f.janitor()
	return f
}

// Limit はウィンドウあたりの上限リクエスト数を返す。
func (f *FixedWindow) Limit() int {
	return f.limit
}

// Period はウィンドウの長さを返す。
func (f *FixedWindow) Period() time.Duration {
	return f.period
}

// Allow はkeyのカウンタを1つ進め、リクエストを許可するかどうかを返す。
// 上限に達している場合はカウンタを進めずに拒否する。
func (f *FixedWindow) Allow(key string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	w, ok := f.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(f.period)}
		f.windows[key] = w
	}

	if w.count >= f.limit {
		return Result{
			Allowed:   false,
			Limit:     f.limit,
			Remaining: 0,
			ResetAt:   w.resetAt,
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Limit:     f.limit,
		Remaining: f.limit - w.count,
		ResetAt:   w.resetAt,
	}
}

// Len は現在追跡しているキーの数を返す。
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

// Close は掃除用のgoroutineを停止する。複数回呼び出しても安全。
func (f *FixedWindow) Close() {
	f.stopOnce.Do(func() {
		close(f.stop)
	})
}

// janitor はウィンドウ長ごとに期限切れのキーを削除する。
func (f *FixedWindow) janitor() {
	ticker := time.NewTicker(f.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.sweep()
		case <-f.stop:
			return
		}
	}
}

// sweep は期限切れのウィンドウを削除する。
func (f *FixedWindow) sweep() {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for key, w := range f.windows {
		if !now.Before(w.resetAt) {
			delete(f.windows, key)
		}
	}
}
