package server

import (
	"errors"
	"sync/atomic"

	"muserver/internal/response"
)

// Stats はリクエスト処理の集計
type Stats struct {
	requests  atomic.Int64
	rejected  atomic.Int64
	notFound  atomic.Int64
	buffered  atomic.Int64
	chunked   atomic.Int64
	streamed  atomic.Int64
	aborted   atomic.Int64
	failed    atomic.Int64
	bytesSent atomic.Int64
}

// StatsSnapshot は Stats のある時点の値
type StatsSnapshot struct {
	Requests  int64 `json:"requests"`   // 受け付けた接続数
	Rejected  int64 `json:"rejected"`   // GET以外・不正なリクエスト
	NotFound  int64 `json:"not_found"`  // 404を返した数
	Buffered  int64 `json:"buffered"`   // 一括送信
	Chunked   int64 `json:"chunked"`    // 分割送信
	Streamed  int64 `json:"streamed"`   // 変換しながら送信
	Aborted   int64 `json:"aborted"`    // 送信中にクライアントが切断した
	Failed    int64 `json:"failed"`     // その他の失敗
	BytesSent int64 `json:"bytes_sent"` // 本文の送信バイト数
}

// Snapshot は現在の値を返す
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:  s.requests.Load(),
		Rejected:  s.rejected.Load(),
		NotFound:  s.notFound.Load(),
		Buffered:  s.buffered.Load(),
		Chunked:   s.chunked.Load(),
		Streamed:  s.streamed.Load(),
		Aborted:   s.aborted.Load(),
		Failed:    s.failed.Load(),
		BytesSent: s.bytesSent.Load(),
	}
}

// record はレスポンスの送信結果を集計する
func (s *Stats) record(res response.Result, err error) {
	s.bytesSent.Add(res.BodyBytes)

	switch {
	case errors.Is(err, response.ErrPeerGone):
		s.aborted.Add(1)
		return
	case err != nil:
		s.failed.Add(1)
		return
	}

	if res.Status == 404 {
		s.notFound.Add(1)
		return
	}
	switch res.Strategy {
	case response.StrategyBuffered:
		s.buffered.Add(1)
	case response.StrategyChunked:
		s.chunked.Add(1)
	case response.StrategyStream:
		s.streamed.Add(1)
	}
}
