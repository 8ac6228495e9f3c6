// Package request は受信したバイト列からHTTPリクエスト行を取り出します。
//
// 解析するのはソケットからの1回の読み込み (最大 MaxRequestSize バイト) だけです。
// 複数回の読み込みに分割されたリクエストや、それより長いリクエストは扱いません。
package request

import (
	"bytes"
	"errors"
	"strings"
)

// MaxRequestSize は1回の読み込みで受け取るリクエストの最大長
const MaxRequestSize = 1024

// versionLength は "HTTP/1.0" のようなバージョントークンの長さ
const versionLength = 8

var (
	// ErrUnsupportedMethod はGET以外のメソッド
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrMalformedRequest はリクエスト行を解釈できない
	ErrMalformedRequest = errors.New("malformed request line")
)

// Request は解析済みのリクエスト行
type Request struct {
	Method  string
	Path    string
	Version string
}

// Parse はバッファからメソッド・パス・HTTPバージョンを取り出す
func Parse(buf []byte) (*Request, error) {
	if len(buf) > MaxRequestSize {
		buf = buf[:MaxRequestSize]
	}

	// メソッドは先頭3文字をそのまま比較する
	if len(buf) < 3 || string(buf[:3]) != "GET" {
		return nil, ErrUnsupportedMethod
	}

	idx := bytes.Index(buf[1:], []byte("HTTP"))
	if idx < 0 {
		return nil, ErrMalformedRequest
	}
	idx++

	if idx+versionLength > len(buf) {
		return nil, ErrMalformedRequest
	}
	version := string(buf[idx : idx+versionLength])

	line := strings.TrimSuffix(string(buf[:idx]), " ")
	path := strings.TrimSpace(line[3:])
	if path == "" {
		return nil, ErrMalformedRequest
	}

	return &Request{
		Method:  "GET",
		Path:    path,
		Version: version,
	}, nil
}

// String はログ用のリクエスト行を返す
func (r *Request) String() string {
	return r.Method + " " + r.Path + " " + r.Version
}
