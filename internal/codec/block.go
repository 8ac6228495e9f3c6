package codec

import (
	"errors"
	"fmt"
	"io"
)

// BlockDecoder は固定長ブロック単位でPCMを出力するデコーダ
//
// ヘッダとブロック数・ブロック長はデコード前に取得できる
type BlockDecoder interface {
	// BlockAlign は1ブロックのバイト数
	BlockAlign() int

	// TotalBlocks は総ブロック数
	TotalBlocks() int64

	// Header は出力コンテナ (WAV) のヘッダバイト列
	Header() []byte

	// Decode は p に収まるだけのブロックをデコードし、書き込んだバイト数を返す。
	// これ以上データが無い場合は 0 を返す
	Decode(p []byte) (int, error)

	io.Closer
}

// blocksPerChunk は1回のデコードで取り出すブロック数
const blocksPerChunk = 1024

// BlockSource は BlockDecoder を Source として読み出す
type BlockSource struct {
	dec    BlockDecoder
	header []byte
	length int64
	done   bool
}

// NewBlockSource はデコーダからヘッダとブロック情報を取得して Source を作成する
func NewBlockSource(dec BlockDecoder) (*BlockSource, error) {
	align := dec.BlockAlign()
	if align <= 0 {
		return nil, fmt.Errorf("無効なブロック長: %d", align)
	}

	header := dec.Header()
	return &BlockSource{
		dec:    dec,
		header: header,
		length: dec.TotalBlocks()*int64(align) + int64(len(header)),
	}, nil
}

// Read はヘッダ、続いてデコード済みブロックを返す
func (s *BlockSource) Read(p []byte) (int, error) {
	if len(s.header) > 0 {
		n := copy(p, s.header)
		s.header = s.header[n:]
		return n, nil
	}
	if s.done {
		return 0, io.EOF
	}

	n, err := s.dec.Decode(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("ブロックのデコードに失敗: %w", err)
	}
	if n <= 0 || err != nil {
		s.done = true
		if n <= 0 {
			return 0, io.EOF
		}
	}
	return n, nil
}

// Length は ブロック数×ブロック長 + ヘッダ長
func (s *BlockSource) Length() int64 { return s.length }

// LengthKnownUpfront は常に true
func (s *BlockSource) LengthKnownUpfront() bool { return true }

// ChunkSize は ブロック長×1024
func (s *BlockSource) ChunkSize() int { return s.dec.BlockAlign() * blocksPerChunk }

// Close はデコーダを解放する
func (s *BlockSource) Close() error { return s.dec.Close() }
