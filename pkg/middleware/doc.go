// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストID付与、リクエストログ、メトリクス記録、パニックリカバリ、
// セキュリティヘッダー、CORS、固定ウィンドウ方式のレート制限を含む。
// エラー応答はすべて {"error":{"message","type","code"}} 形式で返す。
package middleware
