// Package resolver はリクエストされたURLパスを物理ディレクトリとファイル名に変換します。
//
// 変換は次の順に試します。
//   - 直接ディレクトリ: プレフィックス一致。残りのパスを物理ベースパスに連結する (一覧表示可)
//   - 仮想ディレクトリ: 完全一致。残りのパスは連結しない
//   - ルート "/": サーバーのルートディレクトリ
//
// テーブルはリクエスト毎に読み直します。
package resolver

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"muserver/internal/lookup"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrDirectoryNotFound はどのマッピングにも一致しない
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrNoDefaultFile はファイル名が無く、デフォルトファイルも見つからない
	ErrNoDefaultFile = errors.New("no default file")
	// ErrFileNotFound は物理ファイルが存在しない
	ErrFileNotFound = errors.New("file not found")
)

// Target は解決済みのリクエスト対象
type Target struct {
	Directory        string // 物理ディレクトリ
	VirtualDirectory string // URL上のディレクトリ ("/" で始まり "/" で終わる)
	FileName         string // 空の場合はディレクトリ一覧
	MimeType         string // 空の場合は呼び出し側で text/html を使う
	Listable         bool   // 直接ディレクトリで解決された
}

// Path は物理ファイルのパスを返す
func (t *Target) Path() string {
	return filepath.Join(t.Directory, t.FileName)
}

// IsListing はディレクトリ一覧を返すべきかどうか
func (t *Target) IsListing() bool {
	return t.FileName == "" && t.Listable
}

// Options は Resolver の設定
type Options struct {
	Tables    lookup.Tables
	Root      string // "/" に対応する物理ディレクトリ
	MimeSniff bool   // Mimeテーブルに無い場合にファイル内容から判定する
}

// Resolver はURLパスを物理パスに解決する
type Resolver struct {
	opts Options
}

// New は新しい Resolver を作成する
func New(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve はリクエストパスを解決する
func (r *Resolver) Resolve(rawPath string) (*Target, error) {
	dir, fileName := splitPath(rawPath)

	target := &Target{VirtualDirectory: dir}
	if physical, ok := r.directDirectory(dir); ok {
		target.Directory = physical
		target.Listable = true
	} else if physical, ok := r.virtualDirectory(dir); ok {
		target.Directory = physical
	} else if dir == "/" {
		target.Directory = r.opts.Root
	} else {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	}

	target.FileName = Decode(fileName)
	if target.FileName == "" {
		name, ok := r.DefaultFile(target.Directory)
		if !ok {
			if target.Listable {
				return target, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrNoDefaultFile, target.Directory)
		}
		target.FileName = name
	}

	path := target.Path()
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	target.MimeType = r.opts.Tables.MimeType(target.FileName)
	if target.MimeType == "" && r.opts.MimeSniff {
		if mt, err := mimetype.DetectFile(path); err == nil {
			target.MimeType = mt.String()
		} else {
			log.Printf("MIMEタイプの判定に失敗 (%s): %v", path, err)
		}
	}

	return target, nil
}

// DefaultFile はデフォルトファイル名の一覧を順に調べ、ディレクトリに存在する最初の名前を返す
func (r *Resolver) DefaultFile(dir string) (string, bool) {
	for _, name := range lookup.List(r.opts.Tables.Defaults) {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil && info.Mode().IsRegular() {
			return name, true
		}
	}
	return "", false
}

// directDirectory はプレフィックスが一致する最初の直接ディレクトリに残りのパスを連結する
func (r *Resolver) directDirectory(dir string) (string, bool) {
	var matched int
	entry, ok := lookup.Find(r.opts.Tables.DirectDirs, func(key string) bool {
		n, ok := foldedPrefixLen(dir, leadingSlash(key))
		matched = n
		return ok
	})
	if !ok {
		return "", false
	}

	rel := dir[matched:]
	rel = strings.TrimLeft(rel, "/")
	rel = Decode(filepath.FromSlash(rel))
	return filepath.Join(entry.Value, rel), true
}

// foldedPrefixLen は s の先頭のうちケースフォールディングで prefix と一致する部分のバイト長を返す。
// フォールディングで長さが変わる文字 (ß と SS など) があるため、文字境界ごとに比較する
func foldedPrefixLen(s, prefix string) (int, bool) {
	want := lookup.Fold(prefix)
	for i := range s {
		if i > 0 && lookup.Fold(s[:i]) == want {
			return i, true
		}
	}
	if lookup.Fold(s) == want {
		return len(s), true
	}
	return 0, false
}

// virtualDirectory は完全一致する仮想ディレクトリの物理パスを返す
func (r *Resolver) virtualDirectory(dir string) (string, bool) {
	folded := lookup.Fold(dir)
	entry, ok := lookup.Find(r.opts.Tables.VirtualDirs, func(key string) bool {
		key = leadingSlash(key)
		if !strings.HasSuffix(key, "/") {
			key += "/"
		}
		return lookup.Fold(key) == folded
	})
	if !ok {
		return "", false
	}
	return entry.Value, true
}

// splitPath はURLパスをディレクトリ部分とファイル名に分ける。
// "." を含まず "/" で終わらないパスはディレクトリとみなす
func splitPath(rawPath string) (dir, fileName string) {
	p := leadingSlash(strings.ReplaceAll(rawPath, `\`, "/"))
	if !strings.Contains(p, ".") && !strings.HasSuffix(p, "/") {
		p += "/"
	}

	last := strings.LastIndex(p, "/")
	return p[:last+1], p[last+1:]
}

func leadingSlash(s string) string {
	if strings.HasPrefix(s, "/") {
		return s
	}
	return "/" + s
}
