package resolver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"エンコード無し", "plain/path.txt", "plain/path.txt"},
		{"空白", "Blue%20Train", "Blue Train"},
		{"小文字の16進数", "a%2fb", "a/b"},
		{"マルチバイト", "%E6%9B%B2.flac", "曲.flac"},
		{"%%は%1つ", "100%%", "100%"},
		{"%%の後ろも復号する", "%%%41", "%A"},
		{"不正な16進数は%のまま", "%zz", "%zz"},
		{"末尾の%", "abc%", "abc%"},
		{"末尾の%と1文字", "abc%4", "abc%4"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decode(tc.in); got != tc.want {
				t.Errorf("Decode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"Blue Train/song_01.flac", "Blue Train/song_01.flac"},
		{"a&b", "a%26b"},
		{"100%", "100%25"},
		{"曲", "%E6%9B%B2"},
		{"a-b", "a%2Db"},
	}

	for _, tc := range testCases {
		if got := Encode(tc.in); got != tc.want {
			t.Errorf("Encode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// 復号はエンコードの逆変換であり、"%" を含まない文字列は変化しない
func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"simple.txt",
		"with space/and_under.score",
		"記号!#$&'()*+,;=?@[]",
		"100% pure",
		"%%",
		"日本語のファイル名.flac",
		"\x00\xff",
	}

	for _, in := range inputs {
		if got := Decode(Encode(in)); got != in {
			t.Errorf("Decode(Encode(%q)) = %q", in, got)
		}
		if !strings.Contains(in, "%") {
			if got := Decode(in); got != in {
				t.Errorf("Decode(%q) = %q, want unchanged", in, got)
			}
		}
	}
}

func TestListing(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"Blue Train", "R&B"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(dir, "曲.flac"), "x")
	writeFile(t, filepath.Join(dir, "a<b>.txt"), "x")

	body, err := Listing("/music/Jazz/", dir)
	if err != nil {
		t.Fatalf("Listing failed: %v", err)
	}
	html := string(body)

	wants := []string{
		`<html><meta charset="utf-8">`,
		`<a href="/music/">..</a>`,
		`<a href="/music/Jazz/Blue Train/">Blue Train</a>`,
		`<a href="/music/Jazz/R%26B/">R&amp;B</a>`,
		`<a href="/music/Jazz/%E6%9B%B2.flac">曲.flac</a>`,
		`<a href="/music/Jazz/a%3Cb%3E.txt">a&lt;b&gt;.txt</a>`,
	}
	for _, w := range wants {
		if !strings.Contains(html, w) {
			t.Errorf("一覧に %q が含まれていません:\n%s", w, html)
		}
	}

	// サブディレクトリがファイルより先に並ぶ
	if strings.Index(html, "R%26B/") > strings.Index(html, "%E6%9B%B2.flac") {
		t.Error("サブディレクトリはファイルより前に並ぶべきです")
	}

	if _, err := Listing("/x/", filepath.Join(dir, "missing")); err == nil {
		t.Error("存在しないディレクトリはエラーになるべきです")
	}
}

func TestOneLevelUp(t *testing.T) {
	testCases := map[string]string{
		"/music/Jazz/": "/music/",
		"/music/":      "/",
		"/":            "/",
		"":             "/",
	}
	for in, want := range testCases {
		if got := OneLevelUp(in); got != want {
			t.Errorf("OneLevelUp(%q) = %q, want %q", in, got, want)
		}
	}
}
