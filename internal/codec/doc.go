// Package codec はレスポンス本文の取り出し元 (Source) を提供します。
//
// # 責務
// - 通常ファイルをそのまま読み出す FileSource
// - ブロック単位のデコーダ (APE等) を包む BlockSource
// - バイト単位のデコーダ (FLAC) を包む ByteSource
// - 拡張子から変換対象のデコーダを選ぶ Registry
//
// # 仕様
//   - どの Source も io.ReadCloser として先頭から順に読み出す
//   - 総バイト数が読み出し前に分かるかどうかは LengthKnownUpfront で明示する
//   - ByteSource の Length は最初の Read の後で初めて有効になる
//   - Close はデコーダとファイルハンドルを解放する。呼び出し側は defer で必ず呼ぶ
//   - 変換後の出力は非圧縮PCMのWAV (44バイトのヘッダ + サンプルデータ)
package codec
