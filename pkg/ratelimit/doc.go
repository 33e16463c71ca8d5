// Package ratelimit はクライアント単位の固定ウィンドウ方式のリクエスト数カウンタを提供する。
//
// キー（通常はクライアントのIPアドレス）ごとにウィンドウ内のリクエスト数を数え、
// 上限を超えたリクエストを拒否する。ウィンドウは期限を過ぎると次のアクセス時に
// リセットされ、期限切れのキーはバックグラウンドのタイマーで定期的に掃除される。
package ratelimit
