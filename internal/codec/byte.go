package codec

import (
	"errors"
	"fmt"
	"io"
)

// ByteDecoder はバイト列としてWAVを出力するデコーダ
//
// 総バイト数は最初の Decode の後で初めて有効になる
type ByteDecoder interface {
	// Decode は次のデータを p に書き込み、バイト数を返す
	Decode(p []byte) (int, error)

	// EndOfStream はデコードが終了したかどうか
	EndOfStream() bool

	// TotalBytes はヘッダを含む出力の総バイト数。不明な場合は UnknownLength
	TotalBytes() int64

	io.Closer
}

// byteChunkSize はバイト単位デコーダの読み出し単位
const byteChunkSize = 4 * 1024

// ByteSource は ByteDecoder を Source として読み出す
type ByteSource struct {
	dec    ByteDecoder
	pulled bool
}

// NewByteSource は ByteDecoder を包む
func NewByteSource(dec ByteDecoder) *ByteSource {
	return &ByteSource{dec: dec}
}

// Read はデコーダから次のデータを取り出す
func (s *ByteSource) Read(p []byte) (int, error) {
	if s.dec.EndOfStream() {
		return 0, io.EOF
	}

	n, err := s.dec.Decode(p)
	s.pulled = true
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("デコードに失敗: %w", err)
	}
	if n <= 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Length は最初の Read までは UnknownLength を返す
func (s *ByteSource) Length() int64 {
	if !s.pulled {
		return UnknownLength
	}
	return s.dec.TotalBytes()
}

// LengthKnownUpfront は常に false
func (s *ByteSource) LengthKnownUpfront() bool { return false }

// ChunkSize は 4KiB
func (s *ByteSource) ChunkSize() int { return byteChunkSize }

// Close はデコーダを解放する
func (s *ByteSource) Close() error { return s.dec.Close() }
