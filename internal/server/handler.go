package server

import (
	"errors"
	"io"
	"log"
	"net"
	"net/http"

	"muserver/internal/codec"
	"muserver/internal/request"
	"muserver/internal/resolver"
	"muserver/internal/response"

	"github.com/google/uuid"
)

// 404 の本文
const (
	msgDirectoryNotFound = "<H2>Error!! Requested Directory does not exists</H2><Br>"
	msgNoDefaultFile     = "<H2>Error!! No Default File Name Specified</H2>"
	msgFileNotFound      = "<H2>404 Error! File Does Not Exists...</H2>"
)

// Handler は1つのコネクションで1つのリクエストを処理する
type Handler struct {
	resolver *resolver.Resolver
	codecs   *codec.Registry
	stats    *Stats
}

// NewHandler は新しい Handler を作成する
func NewHandler(res *resolver.Resolver, codecs *codec.Registry, stats *Stats) *Handler {
	if stats == nil {
		stats = &Stats{}
	}
	return &Handler{
		resolver: res,
		codecs:   codecs,
		stats:    stats,
	}
}

// ServeConn はリクエストを1回読み込み、レスポンスを返してコネクションを閉じる
func (h *Handler) ServeConn(conn net.Conn) {
	id := uuid.NewString()[:8]
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("[%s] コネクションのクローズに失敗: %v", id, err)
		}
	}()

	h.stats.requests.Add(1)
	log.Printf("[%s] クライアントが接続しました: %s", id, conn.RemoteAddr())

	buf := make([]byte, request.MaxRequestSize)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		h.stats.rejected.Add(1)
		log.Printf("[%s] リクエストの読み込みに失敗: %v", id, err)
		return
	}

	req, err := request.Parse(buf[:n])
	if err != nil {
		h.stats.rejected.Add(1)
		if errors.Is(err, request.ErrUnsupportedMethod) {
			log.Printf("[%s] GETメソッドのみ対応しています", id)
		} else {
			log.Printf("[%s] リクエストを解析できません: %v", id, err)
		}
		return
	}
	log.Printf("[%s] %s", id, req)

	res, err := h.respond(conn, req, id)
	h.stats.record(res, err)

	switch {
	case errors.Is(err, response.ErrPeerGone):
		log.Printf("[%s] クライアントが切断しました (%d バイト送信済み): %v", id, res.BodyBytes, err)
	case errors.Is(err, response.ErrUnsupportedSize):
		log.Printf("[%s] 対応していないファイルサイズです: %v", id, err)
	case err != nil:
		log.Printf("[%s] レスポンスの送信に失敗: %v", id, err)
	default:
		log.Printf("[%s] %d %s 送信完了: %d バイト", id, res.Status, res.Strategy, res.BodyBytes)
	}
}

// respond は対象を解決し、送り方を選んでレスポンスを書き込む。
// 開いたファイルやデコーダは戻る前に解放する
func (h *Handler) respond(w io.Writer, req *request.Request, id string) (response.Result, error) {
	target, err := h.resolver.Resolve(req.Path)
	if err != nil {
		log.Printf("[%s] 解決に失敗: %v", id, err)
		return response.NotFound(w, req.Version, notFoundMessage(err))
	}
	log.Printf("[%s] 物理ディレクトリ: %s ファイル: %q", id, target.Directory, target.FileName)

	if target.IsListing() {
		body, err := resolver.Listing(target.VirtualDirectory, target.Directory)
		if err != nil {
			log.Printf("[%s] 一覧の生成に失敗: %v", id, err)
			return response.NotFound(w, req.Version, msgDirectoryNotFound)
		}
		return response.Bytes(w, req.Version, http.StatusOK, "text/html", body)
	}

	if open, ok := h.codecs.Lookup(target.FileName); ok {
		src, err := open(target.Path())
		if err != nil {
			return response.Result{Strategy: response.StrategyStream, ContentLength: -1}, err
		}
		defer closeSource(src, id)
		return response.Stream(w, req.Version, src)
	}

	src, err := codec.OpenFile(target.Path())
	if err != nil {
		log.Printf("[%s] ファイルを開けません: %v", id, err)
		return response.NotFound(w, req.Version, msgFileNotFound)
	}
	defer closeSource(src, id)
	return response.File(w, req.Version, target.MimeType, src)
}

// notFoundMessage は解決エラーに対応する404の本文を返す
func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, resolver.ErrDirectoryNotFound):
		return msgDirectoryNotFound
	case errors.Is(err, resolver.ErrNoDefaultFile):
		return msgNoDefaultFile
	default:
		return msgFileNotFound
	}
}

func closeSource(src codec.Source, id string) {
	if err := src.Close(); err != nil {
		log.Printf("[%s] リソースの解放に失敗: %v", id, err)
	}
}
