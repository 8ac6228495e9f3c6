package codec

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// ErrCodecUnavailable は変換対象の形式だがデコーダが登録されていない
var ErrCodecUnavailable = errors.New("codec unavailable")

// Opener はファイルパスから変換済みの Source を開く
type Opener func(path string) (Source, error)

// Registry は拡張子と変換用デコーダの対応を管理する
type Registry struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewRegistry は空のレジストリを作成する
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// DefaultRegistry は .flac と .ape を変換対象とするレジストリを返す。
// APE デコーダは同梱していないため、RegisterBlock で差し替えるまで .ape は ErrCodecUnavailable になる
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".flac", OpenFLAC)
	r.Register(".ape", unavailable)
	return r
}

// Register は拡張子に Opener を登録する
func (r *Registry) Register(ext string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[normalizeExt(ext)] = open
}

// RegisterBlock はブロック単位デコーダを拡張子に登録する
func (r *Registry) RegisterBlock(ext string, open func(path string) (BlockDecoder, error)) {
	r.Register(ext, func(path string) (Source, error) {
		dec, err := open(path)
		if err != nil {
			return nil, err
		}
		src, err := NewBlockSource(dec)
		if err != nil {
			dec.Close()
			return nil, err
		}
		return src, nil
	})
}

// RegisterByte はバイト単位デコーダを拡張子に登録する
func (r *Registry) RegisterByte(ext string, open func(path string) (ByteDecoder, error)) {
	r.Register(ext, func(path string) (Source, error) {
		dec, err := open(path)
		if err != nil {
			return nil, err
		}
		return NewByteSource(dec), nil
	})
}

// Lookup はファイル名の拡張子が変換対象であれば Opener を返す
func (r *Registry) Lookup(fileName string) (Opener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	open, ok := r.openers[normalizeExt(filepath.Ext(fileName))]
	return open, ok
}

// Extensions は登録済みの拡張子を返す
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.openers))
	for ext := range r.openers {
		exts = append(exts, ext)
	}
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func unavailable(path string) (Source, error) {
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrCodecUnavailable)
}
