package resolver

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

// Listing はディレクトリ一覧のHTMLを生成する。
// 先頭に1つ上の階層へのリンク、続いてサブディレクトリ、ファイルの順に並べる
func Listing(virtualDir, physicalDir string) ([]byte, error) {
	entries, err := os.ReadDir(physicalDir)
	if err != nil {
		return nil, fmt.Errorf("ディレクトリの読み込みに失敗: %w", err)
	}

	virtualDir = strings.TrimSpace(virtualDir)
	if !strings.HasSuffix(virtualDir, "/") {
		virtualDir += "/"
	}

	var dirs, files []string
	for _, e := range entries {
		if isDir(physicalDir, e) {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}

	var sb strings.Builder
	sb.WriteString(`<html><meta charset="utf-8">`)
	fmt.Fprintf(&sb, `<div><a href="%s">..</a></div>`, OneLevelUp(virtualDir))
	for _, name := range dirs {
		fmt.Fprintf(&sb, `<div><a href="%s/">%s</a></div>`, virtualDir+Encode(name), html.EscapeString(name))
	}
	for _, name := range files {
		fmt.Fprintf(&sb, `<div><a href="%s">%s</a></div>`, virtualDir+Encode(name), html.EscapeString(name))
	}
	sb.WriteString("</html>")

	return []byte(sb.String()), nil
}

// OneLevelUp は1つ上の階層のURLディレクトリを返す
func OneLevelUp(p string) string {
	p = strings.TrimRight(p, "/")
	last := strings.LastIndex(p, "/")
	if last < 0 {
		return "/"
	}
	return p[:last+1]
}

// isDir はシンボリックリンクを辿ってディレクトリかどうかを判定する
func isDir(parent string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && info.IsDir()
}
