// Package response はステータス行・ヘッダと本文をコネクションに書き込みます。
//
// 本文の送り方は3通りです。
//   - Buffered: 全体をメモリに読み込み、正確な長さのヘッダの後に1回で書き込む
//   - Chunked: 総バイト数のヘッダの後、最大4MiBずつ読み込んで書き込む
//   - Stream: デコーダから取り出したWAVを逐次書き込む
//
// ここでの "Chunked" は本文を複数回の書き込みに分けることで、
// HTTPのchunked転送エンコーディングではありません。
package response

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"muserver/internal/codec"
)

const (
	// ServerName は Server ヘッダの値
	ServerName = "muserver"

	// DefaultMimeType はMIMEタイプが未設定の場合の Content-Type
	DefaultMimeType = "text/html"

	// WAVMimeType は変換後の Content-Type
	WAVMimeType = "audio/wav"

	// BufferLimit 未満のファイルは一括で送る
	BufferLimit = 4 * 1024 * 1024

	// ChunkSize は分割送信の読み出し単位
	ChunkSize = 4 * 1024 * 1024

	// MaxLength は送信できるファイルの最大長
	MaxLength = 1<<31 - 1

	crlf = "\r\n"
)

var (
	// ErrPeerGone は書き込みに失敗した (クライアントが切断した)
	ErrPeerGone = errors.New("peer disconnected")
	// ErrUnsupportedSize は MaxLength を超えるファイル
	ErrUnsupportedSize = errors.New("unsupported content length")
)

// Strategy は本文の送り方
type Strategy string

const (
	StrategyBuffered Strategy = "buffered"
	StrategyChunked  Strategy = "chunked"
	StrategyStream   Strategy = "stream"
)

// Result は送信結果
type Result struct {
	Strategy      Strategy
	Status        int
	ContentLength int64 // ヘッダで通知した長さ。省略した場合は -1
	BodyBytes     int64 // 実際に書き込んだ本文のバイト数
}

// Header はステータス行とヘッダを組み立てる。length が負の場合 Content-Length を省略する
func Header(version string, status int, mime string, length int64) []byte {
	if mime == "" {
		mime = DefaultMimeType
	}

	var sb strings.Builder
	sb.WriteString(version + " " + strconv.Itoa(status) + " " + http.StatusText(status) + crlf)
	sb.WriteString("Server: " + ServerName + crlf)
	sb.WriteString("Content-Type: " + mime + crlf)
	sb.WriteString("Accept-Ranges: bytes" + crlf)
	if length >= 0 {
		sb.WriteString("Content-Length: " + strconv.FormatInt(length, 10) + crlf)
	}
	sb.WriteString(crlf)
	return []byte(sb.String())
}

// WriteHeader はヘッダを書き込む
func WriteHeader(w io.Writer, version string, status int, mime string, length int64) error {
	return write(w, Header(version, status, mime, length))
}

// Bytes はメモリ上の本文を Buffered で送る
func Bytes(w io.Writer, version string, status int, mime string, body []byte) (Result, error) {
	res := Result{Strategy: StrategyBuffered, Status: status, ContentLength: int64(len(body))}

	if err := WriteHeader(w, version, status, mime, int64(len(body))); err != nil {
		return res, err
	}
	if len(body) > 0 {
		if err := write(w, body); err != nil {
			return res, err
		}
	}
	res.BodyBytes = int64(len(body))
	return res, nil
}

// NotFound はHTMLのエラーメッセージを404で送る
func NotFound(w io.Writer, version, message string) (Result, error) {
	return Bytes(w, version, http.StatusNotFound, "", []byte(message))
}

// Buffered は r を全て読み込んでから送る
func Buffered(w io.Writer, version, mime string, r io.Reader) (Result, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return Result{Strategy: StrategyBuffered, ContentLength: -1}, fmt.Errorf("本文の読み込みに失敗: %w", err)
	}
	return Bytes(w, version, http.StatusOK, mime, body)
}

// Chunked は総バイト数をヘッダで通知し、ChunkSize ずつ読み込んで送る。
// 書き込みに失敗した時点で読み込みをやめる
func Chunked(w io.Writer, version, mime string, r io.Reader, length int64) (Result, error) {
	res := Result{Strategy: StrategyChunked, Status: http.StatusOK, ContentLength: length}
	if length < 0 || length > MaxLength {
		res.ContentLength = -1
		return res, fmt.Errorf("%w: %d bytes", ErrUnsupportedSize, length)
	}

	if err := WriteHeader(w, version, http.StatusOK, mime, length); err != nil {
		return res, err
	}

	buf := make([]byte, ChunkSize)
	lr := io.LimitReader(r, length)
	for {
		n, err := lr.Read(buf)
		if n > 0 {
			if werr := write(w, buf[:n]); werr != nil {
				return res, werr
			}
			res.BodyBytes += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("本文の読み込みに失敗: %w", err)
		}
	}
}

// File は長さに応じて Buffered または Chunked を選んで送る
func File(w io.Writer, version, mime string, src codec.Source) (Result, error) {
	length := src.Length()
	switch {
	case length < BufferLimit:
		return Buffered(w, version, mime, src)
	case length <= MaxLength:
		return Chunked(w, version, mime, src, length)
	default:
		return Result{Strategy: StrategyChunked, ContentLength: -1},
			fmt.Errorf("%w: %d bytes", ErrUnsupportedSize, length)
	}
}

// Stream は変換済みのWAVを逐次送る。
//
// 総バイト数が事前に分かる場合はヘッダを先に送る。分からない場合は
// 最初のデータを取り出した後にヘッダを送り、続けてそのデータを送る。
// 書き込みに失敗するか、データが無くなった時点で終了する
func Stream(w io.Writer, version string, src codec.Source) (Result, error) {
	res := Result{Strategy: StrategyStream, Status: http.StatusOK, ContentLength: -1}

	headerSent := false
	sendHeader := func() error {
		res.ContentLength = src.Length()
		if res.ContentLength < 0 {
			res.ContentLength = -1
		}
		headerSent = true
		return WriteHeader(w, version, http.StatusOK, WAVMimeType, res.ContentLength)
	}

	if src.LengthKnownUpfront() {
		if err := sendHeader(); err != nil {
			return res, err
		}
	}

	size := src.ChunkSize()
	if size <= 0 {
		size = 4 * 1024
	}
	buf := make([]byte, size)
	for {
		n, err := src.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) && !headerSent {
			return res, err
		}
		if !headerSent {
			if herr := sendHeader(); herr != nil {
				return res, herr
			}
		}
		if n > 0 {
			if werr := write(w, buf[:n]); werr != nil {
				return res, werr
			}
			res.BodyBytes += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}
}

func write(w io.Writer, p []byte) error {
	if _, err := w.Write(p); err != nil {
		return fmt.Errorf("%w: %v", ErrPeerGone, err)
	}
	return nil
}
