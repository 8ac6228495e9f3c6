// Package server は、ファイルサーバー本体と管理APIを管理します。
//
// このパッケージは、TCPリスナーでの接続の受け付け、ワーカーの割り当て、
// 1接続1リクエストの処理、管理用HTTP APIの提供を担当します。
//
// 責務:
//   - ファイルサーバーの起動とグレースフルシャットダウン
//   - Dispatcher による接続の受け付け (常に1つの Accept を待機させる)
//   - リクエストの解決と、ファイル・一覧・変換済み音声の送信
//   - 管理API (/health, /api/status, /api/resolve) の提供
//
// 仕様:
//   - 1つの接続で読み込むのは1回だけ (最大1024バイト)。応答後に接続を閉じる
//   - GET以外のリクエストには何も返さない
//   - ファイル配信側にはタイムアウトを設けない
//   - 管理APIはgin-gonic/ginを使用
package server
