package node

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"stacks-explorer-api/internal/observability"
)

// WatcherConfig configures TipWatcher behavior.
type WatcherConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWatcherConfig returns default block feed configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       15 * time.Minute, // blocks can be half an hour apart; pongs refresh the deadline
		WriteTimeout:      10 * time.Second,
	}
}

// TipHandler is called once per tip advance. Calls are sequential.
type TipHandler func(Tip)

// TipWatcher follows the core node's block feed over a websocket and reports
// each new chain tip. It reconnects with exponential backoff until closed.
type TipWatcher struct {
	endpoint string
	config   WatcherConfig
	handler  TipHandler
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	height atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewTipWatcher connects to the block feed at endpoint and starts delivering tips to handler.
func NewTipWatcher(ctx context.Context, endpoint string, handler TipHandler, config *WatcherConfig, logger *log.Logger) (*TipWatcher, error) {
	cfg := DefaultWatcherConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	w := &TipWatcher{
		endpoint: endpoint,
		config:   cfg,
		handler:  handler,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(1)
	go w.readLoop()

	w.wg.Add(1)
	go w.pingLoop()

	return w, nil
}

// Height returns the last tip height delivered, or zero before the first notification.
func (w *TipWatcher) Height() int64 {
	return w.height.Load()
}

func (w *TipWatcher) connect(ctx context.Context) error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))
	})

	w.conn = conn
	return nil
}

// Close stops the watcher and closes the connection.
func (w *TipWatcher) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.wg.Wait()
	return nil
}

func (w *TipWatcher) readLoop() {
	defer w.wg.Done()

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}

			if !w.reconnecting.Swap(true) {
				w.logger.Printf("block feed read failed, reconnecting: %v", err)
				w.wg.Add(1)
				go w.reconnect(conn)
			}

			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		w.handleMessage(message)
	}
}

// reconnect drops stale and dials until a connection is established or the watcher closes.
func (w *TipWatcher) reconnect(stale *websocket.Conn) {
	defer w.wg.Done()
	defer w.reconnecting.Store(false)

	w.connMu.Lock()
	if w.conn == stale {
		stale.Close()
		w.conn = nil
	}
	w.connMu.Unlock()

	delay := w.config.ReconnectDelay
	for {
		select {
		case <-w.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := w.connect(ctx)
		cancel()
		if err == nil {
			break
		}

		w.logger.Printf("block feed reconnect failed, retrying in %s: %v", delay, err)
		delay *= 2
		if delay > w.config.MaxReconnectDelay {
			delay = w.config.MaxReconnectDelay
		}
	}

	if w.closed.Load() {
		w.connMu.Lock()
		if w.conn != nil {
			w.conn.Close()
		}
		w.connMu.Unlock()
		return
	}
	observability.RecordTipReconnect()
}

func (w *TipWatcher) handleMessage(message []byte) {
	var tip Tip
	if err := json.Unmarshal(message, &tip); err != nil {
		w.logger.Printf("block feed: skip undecodable message: %v", err)
		return
	}
	if tip.Height <= 0 {
		return
	}

	// Replays after reconnect and reorg notices at the same height are not advances.
	for {
		current := w.height.Load()
		if tip.Height <= current {
			return
		}
		if w.height.CompareAndSwap(current, tip.Height) {
			break
		}
	}

	observability.UpdateTip(tip.Height, tip.Time)
	if w.handler != nil {
		w.handler(tip)
	}
}

func (w *TipWatcher) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			if w.conn != nil {
				w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					w.logger.Printf("block feed ping: %v", err)
				}
			}
			w.connMu.Unlock()
		}
	}
}
