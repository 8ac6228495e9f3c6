package codec

import (
	"fmt"
	"io"
	"os"
)

// UnknownLength は総バイト数がまだ分からないことを表す
const UnknownLength int64 = -1

// Source はレスポンス本文の取り出し元
type Source interface {
	io.ReadCloser

	// Length は総バイト数を返す。分からない場合は UnknownLength
	Length() int64

	// LengthKnownUpfront は最初の Read の前に Length が有効かどうか
	LengthKnownUpfront() bool

	// ChunkSize は1回の読み出しで推奨されるバッファサイズ
	ChunkSize() int
}

// FileSource は通常ファイルをそのまま読み出す
type FileSource struct {
	*os.File
	size int64
}

// fileChunkSize は通常ファイルを分割送信する際の読み出し単位 (4MiB)
const fileChunkSize = 4 * 1024 * 1024

// OpenFile はファイルを開き、サイズを取得する
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ファイルを開けません: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ファイル情報の取得に失敗: %w", err)
	}

	return &FileSource{File: f, size: info.Size()}, nil
}

// Length はファイルサイズを返す
func (s *FileSource) Length() int64 { return s.size }

// LengthKnownUpfront は常に true
func (s *FileSource) LengthKnownUpfront() bool { return true }

// ChunkSize は分割送信の単位を返す
func (s *FileSource) ChunkSize() int { return fileChunkSize }
