package response

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"muserver/internal/codec"
)

// readResponse は書き込まれたバイト列をHTTPレスポンスとして解析する
func readResponse(t *testing.T, raw []byte) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), nil)
	if err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("本文の読み込みに失敗しました: %v", err)
	}
	return resp, body
}

// failingWriter は指定回数の書き込みの後に失敗する
type failingWriter struct {
	okWrites int
	writes   int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.okWrites {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

// countingReader は Read の呼び出し回数を数える
type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

// memSource はテスト用の Source
type memSource struct {
	r        io.Reader
	length   int64
	upfront  bool
	chunk    int
	pulled   bool
	lateSize int64
}

func (m *memSource) Read(p []byte) (int, error) {
	m.pulled = true
	if len(p) > m.chunk {
		p = p[:m.chunk]
	}
	return m.r.Read(p)
}

func (m *memSource) Length() int64 {
	if !m.upfront && !m.pulled {
		return codec.UnknownLength
	}
	if !m.upfront {
		return m.lateSize
	}
	return m.length
}

func (m *memSource) LengthKnownUpfront() bool { return m.upfront }
func (m *memSource) ChunkSize() int           { return m.chunk }
func (m *memSource) Close() error             { return nil }

func TestHeader(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		mime   string
		length int64
		want   string
	}{
		{
			name: "長さあり", status: 200, mime: "text/plain", length: 12,
			want: "HTTP/1.0 200 OK\r\nServer: muserver\r\nContent-Type: text/plain\r\nAccept-Ranges: bytes\r\nContent-Length: 12\r\n\r\n",
		},
		{
			name: "MIMEタイプのデフォルト", status: 404, mime: "", length: 0,
			want: "HTTP/1.0 404 Not Found\r\nServer: muserver\r\nContent-Type: text/html\r\nAccept-Ranges: bytes\r\nContent-Length: 0\r\n\r\n",
		},
		{
			name: "長さ不明は省略", status: 200, mime: "audio/wav", length: -1,
			want: "HTTP/1.0 200 OK\r\nServer: muserver\r\nContent-Type: audio/wav\r\nAccept-Ranges: bytes\r\n\r\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(Header("HTTP/1.0", tc.status, tc.mime, tc.length)); got != tc.want {
				t.Errorf("Header =\n%q\nwant\n%q", got, tc.want)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	var buf bytes.Buffer
	msg := "<H2>404 Error! File Does Not Exists...</H2>"
	if _, err := NotFound(&buf, "HTTP/1.0", msg); err != nil {
		t.Fatal(err)
	}

	resp, body := readResponse(t, buf.Bytes())
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if resp.ContentLength != int64(len(msg)) || string(body) != msg {
		t.Errorf("Content-Length = %d, body = %q", resp.ContentLength, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html" {
		t.Errorf("Content-Type = %q", ct)
	}
}

// すべての送り方で Content-Length が実際の本文のバイト数と一致する
func TestContentLengthMatchesBody(t *testing.T) {
	small := bytes.Repeat([]byte("a"), 1000)
	large := bytes.Repeat([]byte("0123456789"), (BufferLimit+BufferLimit/2)/10)

	testCases := []struct {
		name         string
		send         func(w io.Writer) (Result, error)
		wantStrategy Strategy
		wantBody     []byte
	}{
		{
			name: "Buffered",
			send: func(w io.Writer) (Result, error) {
				return File(w, "HTTP/1.0", "text/plain", &memSource{r: bytes.NewReader(small), length: int64(len(small)), upfront: true, chunk: ChunkSize})
			},
			wantStrategy: StrategyBuffered,
			wantBody:     small,
		},
		{
			name: "Chunked",
			send: func(w io.Writer) (Result, error) {
				return File(w, "HTTP/1.0", "application/octet-stream", &memSource{r: bytes.NewReader(large), length: int64(len(large)), upfront: true, chunk: ChunkSize})
			},
			wantStrategy: StrategyChunked,
			wantBody:     large,
		},
		{
			name: "Stream (事前に長さが分かる)",
			send: func(w io.Writer) (Result, error) {
				return Stream(w, "HTTP/1.0", &memSource{r: bytes.NewReader(small), length: int64(len(small)), upfront: true, chunk: 64})
			},
			wantStrategy: StrategyStream,
			wantBody:     small,
		},
		{
			name: "Stream (最初の取り出し後に長さが分かる)",
			send: func(w io.Writer) (Result, error) {
				return Stream(w, "HTTP/1.0", &memSource{r: bytes.NewReader(small), lateSize: int64(len(small)), chunk: 64})
			},
			wantStrategy: StrategyStream,
			wantBody:     small,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			res, err := tc.send(&buf)
			if err != nil {
				t.Fatalf("送信に失敗しました: %v", err)
			}
			if res.Strategy != tc.wantStrategy {
				t.Errorf("Strategy = %s, want %s", res.Strategy, tc.wantStrategy)
			}

			resp, body := readResponse(t, buf.Bytes())
			if resp.ContentLength != int64(len(body)) {
				t.Errorf("Content-Length %d != 本文 %d バイト", resp.ContentLength, len(body))
			}
			if res.BodyBytes != int64(len(body)) || res.ContentLength != int64(len(body)) {
				t.Errorf("Result = %+v, body = %d", res, len(body))
			}
			if !bytes.Equal(body, tc.wantBody) {
				t.Error("本文が一致しません")
			}
		})
	}
}

func TestChunkedStopsOnPeerGone(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 3*ChunkSize)
	r := &countingReader{r: bytes.NewReader(data)}
	w := &failingWriter{okWrites: 2} // ヘッダと最初のチャンクのみ成功

	res, err := Chunked(w, "HTTP/1.0", "", r, int64(len(data)))
	if !errors.Is(err, ErrPeerGone) {
		t.Fatalf("err = %v, want ErrPeerGone", err)
	}
	if r.reads != 2 {
		t.Errorf("切断後に読み込みを続けています: reads = %d", r.reads)
	}
	if res.BodyBytes != ChunkSize {
		t.Errorf("BodyBytes = %d, want %d", res.BodyBytes, ChunkSize)
	}
}

func TestFileUnsupportedSize(t *testing.T) {
	w := &failingWriter{okWrites: 100}
	src := &memSource{r: strings.NewReader(""), length: MaxLength + 1, upfront: true, chunk: ChunkSize}

	if _, err := File(w, "HTTP/1.0", "", src); !errors.Is(err, ErrUnsupportedSize) {
		t.Fatalf("err = %v, want ErrUnsupportedSize", err)
	}
	if w.writes != 0 {
		t.Errorf("大きすぎるファイルでは何も書き込まないはずです: writes = %d", w.writes)
	}
}

// 長さが後から分かる場合、ヘッダは最初のデータの取り出し後に送られる
func TestStreamLazyHeader(t *testing.T) {
	src := &memSource{r: strings.NewReader("RIFFdata"), lateSize: 8, chunk: 4}
	var order []string
	w := writerFunc(func(p []byte) (int, error) {
		if bytes.HasPrefix(p, []byte("HTTP/")) {
			order = append(order, "header:pulled="+boolString(src.pulled))
		} else {
			order = append(order, "body:"+string(p))
		}
		return len(p), nil
	})

	res, err := Stream(w, "HTTP/1.0", src)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"header:pulled=true", "body:RIFF", "body:data"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("書き込み順 = %v, want %v", order, want)
	}
	if res.ContentLength != 8 || res.BodyBytes != 8 {
		t.Errorf("Result = %+v", res)
	}
}

func TestStreamUnknownLengthOmitsHeader(t *testing.T) {
	var buf bytes.Buffer
	src := &memSource{r: strings.NewReader("abc"), lateSize: codec.UnknownLength, chunk: 4}

	if _, err := Stream(&buf, "HTTP/1.0", src); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Content-Length") {
		t.Errorf("長さ不明の場合は Content-Length を省略するべきです:\n%s", buf.String())
	}
	if !strings.HasSuffix(buf.String(), "\r\n\r\nabc") {
		t.Errorf("ヘッダの終端と本文が不正です: %q", buf.String())
	}
}

func TestStreamStopsOnPeerGone(t *testing.T) {
	r := &countingReader{r: strings.NewReader(strings.Repeat("z", 64))}
	src := &memSource{r: r, length: 64, upfront: true, chunk: 8}
	w := &failingWriter{okWrites: 1} // ヘッダのみ成功

	res, err := Stream(w, "HTTP/1.0", src)
	if !errors.Is(err, ErrPeerGone) {
		t.Fatalf("err = %v, want ErrPeerGone", err)
	}
	if r.reads != 1 || res.BodyBytes != 0 {
		t.Errorf("切断後も取り出しを続けています: reads = %d, body = %d", r.reads, res.BodyBytes)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
