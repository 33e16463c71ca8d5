// Package httpclient は上流のチャット補完APIを呼び出すHTTPクライアントを提供する。
//
// APIキーはこのクライアントだけが保持し、Authorizationヘッダーとして上流に送信する。
// 呼び出し元のリクエストヘッダーは転送しない。上流が2xx以外を返した場合は
// レスポンスのエラー情報を解析した*APIErrorを返す。リトライは行わない。
package httpclient
