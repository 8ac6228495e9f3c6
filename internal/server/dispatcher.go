package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ConnHandler は受け付けたコネクションを1つ処理する。
// コネクションを閉じるのは ConnHandler の責任
type ConnHandler interface {
	ServeConn(conn net.Conn)
}

// ConnHandlerFunc は関数を ConnHandler として使うためのアダプタ
type ConnHandlerFunc func(conn net.Conn)

// ServeConn は f(conn) を呼ぶ
func (f ConnHandlerFunc) ServeConn(conn net.Conn) { f(conn) }

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = 1 * time.Second
)

// Dispatcher はコネクションの受け付けとワーカーの割り当てを行う。
//
// 各ワーカーは Accept を1回行い、直ちに次の受け付け用ワーカーを起動してから
// 自分のコネクションを処理して終了する。リスナーには常に1つの Accept が待機している。
// 実行中のワーカー数はアトミックに管理し、ワーカーが終了する度にシグナルを送る
type Dispatcher struct {
	listener net.Listener
	handler  ConnHandler

	inFlight atomic.Int64
	signal   chan struct{} // 容量1。ワーカー終了の通知

	shutdown atomic.Bool
	stopErr  atomic.Value // 予期しないリスナー停止の原因 (error)

	drained   chan struct{}
	drainOnce sync.Once
}

// NewDispatcher は新しい Dispatcher を作成する
func NewDispatcher(listener net.Listener, handler ConnHandler) *Dispatcher {
	return &Dispatcher{
		listener: listener,
		handler:  handler,
		signal:   make(chan struct{}, 1),
		drained:  make(chan struct{}),
	}
}

// Serve は最初の受け付けワーカーを起動し、シャットダウンが要求されて
// 実行中のワーカーが0になるまでブロックする
func (d *Dispatcher) Serve() error {
	d.fork(0)

	for range d.signal {
		if d.inFlight.Load() > 0 || !d.shutdown.Load() {
			continue
		}
		d.drainOnce.Do(func() { close(d.drained) })
		if err, ok := d.stopErr.Load().(error); ok {
			return err
		}
		return nil
	}
	return nil
}

// Shutdown は新しい受け付けを止め、実行中のワーカーが終わるのを待つ
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.shutdown.Store(true)
	if err := d.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("リスナーのクローズに失敗: %v", err)
	}

	select {
	case <-d.drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ワーカーの終了待ちがタイムアウトしました (残り %d): %w", d.InFlight(), ctx.Err())
	}
}

// Drained は全ワーカーが終了したときにクローズされるチャンネルを返す
func (d *Dispatcher) Drained() <-chan struct{} {
	return d.drained
}

// InFlight は実行中のワーカー数 (受け付け待ちを含む) を返す
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Addr はリスナーのアドレスを返す
func (d *Dispatcher) Addr() net.Addr {
	return d.listener.Addr()
}

// fork はワーカー数を増やしてから受け付けワーカーを起動する
func (d *Dispatcher) fork(delay time.Duration) {
	d.inFlight.Add(1)
	go d.acceptAndServe(delay)
}

// merge はワーカー数を減らしてシグナルを送る
func (d *Dispatcher) merge() {
	d.inFlight.Add(-1)
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// acceptAndServe は1つのコネクションを受け付けて処理する
func (d *Dispatcher) acceptAndServe(delay time.Duration) {
	defer d.merge()

	if delay > 0 {
		time.Sleep(delay)
	}

	conn, err := d.listener.Accept()
	if err != nil {
		if d.shutdown.Load() {
			return
		}
		if errors.Is(err, net.ErrClosed) {
			// Shutdown 以外でリスナーが閉じられた
			d.stopErr.Store(fmt.Errorf("リスナーが停止しました: %w", err))
			d.shutdown.Store(true)
			return
		}

		next := delay * 2
		if next < minAcceptDelay {
			next = minAcceptDelay
		}
		if next > maxAcceptDelay {
			next = maxAcceptDelay
		}
		log.Printf("接続の受け付けに失敗しました (%v 後に再試行): %v", next, err)
		d.fork(next)
		return
	}

	// 次の受け付けを先に起動してから自分の接続を処理する
	d.fork(0)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ワーカーでパニックが発生しました: %v\n%s", r, debug.Stack())
		}
	}()
	d.handler.ServeConn(conn)
}
