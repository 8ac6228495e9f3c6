// Package lookup は ";" 区切りのフラットなテーブルファイルを検索します。
//
// テーブルは呼び出しの度にファイルから読み直します。キャッシュを持たないため、
// テーブルの編集はサーバーを再起動せずに次のリクエストから反映されます。
// ファイルが存在しない・読めない場合は「見つからない」として扱い、エラーにはしません。
package lookup

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// Entry はテーブルの1行 (key;value) を表す
type Entry struct {
	Key   string
	Value string
}

// Tables はサーバーが参照する4つのテーブルファイルのパス
type Tables struct {
	DirectDirs  string // 直接ディレクトリ (プレフィックス;物理ベースパス)
	VirtualDirs string // 仮想ディレクトリ (仮想パス;物理パス)
	Mime        string // 拡張子;MIMEタイプ
	Defaults    string // デフォルトファイル名 (1行1件)
}

// Lookup はキーが大文字小文字を区別せず一致する最初のエントリの値を返す
func Lookup(path, key string) (string, bool) {
	folded := Fold(key)
	entry, ok := Find(path, func(k string) bool {
		return Fold(k) == folded
	})
	return entry.Value, ok
}

// Find は match を満たす最初のエントリを返す。走査はファイルの行順
func Find(path string, match func(key string) bool) (Entry, bool) {
	var found Entry
	ok := false

	scan(path, func(line string) bool {
		key, value, hasSep := strings.Cut(line, ";")
		if !hasSep {
			return true
		}
		key = strings.TrimSpace(key)
		if match(key) {
			found = Entry{Key: key, Value: strings.TrimSpace(value)}
			ok = true
			return false
		}
		return true
	})

	return found, ok
}

// List は1行1件のテーブルを行順に返す
func List(path string) []string {
	var values []string
	scan(path, func(line string) bool {
		values = append(values, line)
		return true
	})
	return values
}

// Fold は比較用にキーをケースフォールディングする
func Fold(s string) string {
	// Caser は状態を持つためゴルーチン間で共有しない
	return cases.Fold().String(s)
}

// MimeType はファイル名の拡張子に対応するMIMEタイプを返す。見つからない場合は空文字
func (t Tables) MimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return ""
	}

	folded := Fold(ext)
	entry, ok := Find(t.Mime, func(k string) bool {
		if !strings.HasPrefix(k, ".") {
			k = "." + k
		}
		return Fold(k) == folded
	})
	if !ok {
		return ""
	}
	return entry.Value
}

// scan はファイルを1行ずつ読み、空行とコメント行を除いた行を fn に渡す。
// fn が false を返すと走査を終了する
func scan(path string, fn func(line string) bool) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("テーブルを開けません (未登録として扱います): %v", err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !fn(line) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("テーブルの読み込みに失敗 (%s): %v", path, err)
	}
}
