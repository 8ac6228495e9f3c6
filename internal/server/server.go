package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"muserver/internal/codec"
	"muserver/internal/config"
	"muserver/internal/resolver"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間
const shutdownTimeout = 5 * time.Second

// Server はファイルサーバーと管理APIを管理する構造体
type Server struct {
	config   *config.Config
	resolver *resolver.Resolver
	codecs   *codec.Registry
	stats    *Stats
	handler  *Handler

	mu         sync.Mutex
	dispatcher *Dispatcher
	adminHTTP  *http.Server
	adminLn    net.Listener
	ready      chan struct{}
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config) *Server {
	res := resolver.New(resolver.Options{
		Tables:    cfg.LookupTables(),
		Root:      cfg.Server.Root,
		MimeSniff: cfg.Server.MimeSniff,
	})
	codecs := codec.DefaultRegistry()
	stats := &Stats{}

	return &Server{
		config:   cfg,
		resolver: res,
		codecs:   codecs,
		stats:    stats,
		handler:  NewHandler(res, codecs, stats),
		ready:    make(chan struct{}),
	}
}

// Codecs は変換用デコーダのレジストリを返す。Start の前にデコーダを登録する
func (s *Server) Codecs() *codec.Registry {
	return s.codecs
}

// Ready はリスナーの準備ができたときにクローズされるチャンネルを返す
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr はファイルサーバーのリッスンアドレスを返す。Ready の後に有効
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.Addr()
}

// AdminAddr は管理APIのリッスンアドレスを返す。無効な場合は nil
func (s *Server) AdminAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminLn == nil {
		return nil
	}
	return s.adminLn.Addr()
}

// InFlight は実行中のワーカー数を返す
func (s *Server) InFlight() int64 {
	s.mu.Lock()
	d := s.dispatcher
	s.mu.Unlock()
	if d == nil {
		return 0
	}
	return d.InFlight()
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ServerAddress())
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}

	var adminLn net.Listener
	if s.config.Admin.Enabled {
		adminLn, err = net.Listen("tcp", s.config.AdminAddress())
		if err != nil {
			ln.Close()
			return fmt.Errorf("管理APIの起動に失敗: %w", err)
		}
	}

	s.mu.Lock()
	s.dispatcher = NewDispatcher(ln, s.handler)
	if adminLn != nil {
		s.adminLn = adminLn
		s.adminHTTP = &http.Server{
			Handler: newAdminRouter(&AdminHandler{
				config:  s.config,
				server:  s,
				started: time.Now(),
			}),
			ReadTimeout:  s.config.Admin.ReadTimeout,
			WriteTimeout: s.config.Admin.WriteTimeout,
		}
	}
	dispatcher, adminHTTP := s.dispatcher, s.adminHTTP
	s.mu.Unlock()

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 2)

	go func() {
		log.Printf("ファイルサーバーを起動しています: %s", ln.Addr())
		if err := dispatcher.Serve(); err != nil {
			shutdownCh <- err
		}
	}()

	if adminHTTP != nil {
		go func() {
			log.Printf("管理APIを起動しています: %s", adminLn.Addr())
			if err := adminHTTP.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				shutdownCh <- fmt.Errorf("管理APIの起動に失敗: %w", err)
			}
		}()
	}

	close(s.ready)

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		s.Shutdown()
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする。
// 新しい接続の受け付けを止め、処理中の接続が終わるのを待つ
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.mu.Lock()
	dispatcher, adminHTTP := s.dispatcher, s.adminHTTP
	s.mu.Unlock()

	var errs []error
	if adminHTTP != nil {
		if err := adminHTTP.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("管理APIのシャットダウンに失敗: %w", err))
		}
	}
	if dispatcher != nil {
		if err := dispatcher.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("サーバーのシャットダウンに失敗: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}
