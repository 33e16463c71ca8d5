// Package gateway はチャット補完プロキシのHTTPゲートウェイを提供する。
//
// フロントエンドからのチャット補完リクエストを検証し、上流APIへ1回だけ転送して
// 結果をそのまま返す。上流APIの認証情報はサーバー内に留まり、クライアントには
// 返さない。CORS、セキュリティヘッダー、クライアントIPごとの固定ウィンドウの
// レート制限はpkg/middlewareのミドルウェアで適用する。
//
// 失敗はValidationError、UpstreamError、TransportErrorのいずれかに分類し、
// OpenAI互換のエラーエンベロープ {"error":{"message","type","code"}} で返す。
package gateway
