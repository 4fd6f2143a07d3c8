package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"echodesk/internal/domain"
	"echodesk/internal/observer"
	"echodesk/internal/ports"
)

// Config controls websocket transport behavior.
type Config struct {
	URL              string
	RetryLimit       int
	RetryDelay       time.Duration
	HandshakeTimeout time.Duration
}

// WebSocket is a persistent connection to the assistant service with bounded
// automatic reconnection. At most one connection attempt is outstanding at a
// time; a manual Disconnect cancels any scheduled retry and invalidates
// in-flight attempts.
type WebSocket struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	state      domain.ConnState
	retries    int
	retryTimer *time.Timer
	gen        int

	writeMu sync.Mutex

	onMessage observer.Registry[func([]byte)]
	onError   observer.Registry[func(error)]
	onClose   observer.Registry[func(int, string)]
}

func NewWebSocket(cfg Config, logger *zap.Logger) *WebSocket {
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocket{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger: logger,
		state:  domain.ConnClosed,
	}
}

// errSuperseded marks a connection attempt invalidated by a Disconnect that
// advanced the generation while the attempt was in flight.
var errSuperseded = fmt.Errorf("%w: attempt superseded by disconnect", domain.ErrConnectionFailed)

// Connect opens the connection. No-op while already open or connecting.
func (t *WebSocket) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == domain.ConnOpen || t.state == domain.ConnConnecting {
		t.mu.Unlock()
		return nil
	}
	t.stopRetryTimerLocked()
	t.state = domain.ConnConnecting
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	return t.dial(ctx, gen)
}

// dial performs one connection attempt for the given generation.
func (t *WebSocket) dial(ctx context.Context, gen int) error {
	conn, _, err := t.dialer.DialContext(ctx, t.cfg.URL, nil)

	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return errSuperseded
	}
	if err != nil {
		t.state = domain.ConnClosed
		t.mu.Unlock()
		return fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}
	t.conn = conn
	t.state = domain.ConnOpen
	t.retries = 0
	t.mu.Unlock()

	t.logger.Info("websocket connected", zap.String("url", t.cfg.URL))
	go t.readLoop(conn, gen)
	return nil
}

// Send writes one text payload. Fails unless the connection is open.
func (t *WebSocket) Send(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	open := t.state == domain.ConnOpen
	t.mu.Unlock()
	if !open || conn == nil {
		return domain.ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("websocket send failed: %w", err)
	}
	return nil
}

// Disconnect performs a clean close with the normal closure code and cancels
// any pending reconnect. Safe to call in any state.
func (t *WebSocket) Disconnect() error {
	t.mu.Lock()
	t.stopRetryTimerLocked()
	t.retries = 0
	t.gen++
	conn := t.conn
	t.conn = nil
	wasClosed := t.state == domain.ConnClosed
	t.state = domain.ConnClosing
	t.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			deadline,
		)
		_ = conn.Close()
	}

	t.mu.Lock()
	t.state = domain.ConnClosed
	t.mu.Unlock()

	if !wasClosed {
		t.emitClose(websocket.CloseNormalClosure, "client disconnect")
	}
	return nil
}

func (t *WebSocket) State() domain.ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *WebSocket) OnMessage(handler func(raw []byte)) ports.Unsubscribe {
	return t.onMessage.Add(handler)
}

func (t *WebSocket) OnError(handler func(err error)) ports.Unsubscribe {
	return t.onError.Add(handler)
}

func (t *WebSocket) OnClose(handler func(code int, reason string)) ports.Unsubscribe {
	return t.onClose.Add(handler)
}

func (t *WebSocket) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.handleReadError(gen, err)
			return
		}
		for _, handler := range t.onMessage.Snapshot() {
			handler(payload)
		}
	}
}

func (t *WebSocket) handleReadError(gen int, err error) {
	t.mu.Lock()
	if t.gen != gen {
		// Superseded by Disconnect, which already reported the clean close.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.state = domain.ConnClosed
	t.mu.Unlock()

	code := websocket.CloseAbnormalClosure
	reason := err.Error()
	if closeErr, ok := err.(*websocket.CloseError); ok {
		code = closeErr.Code
		reason = closeErr.Text
	}

	if code != websocket.CloseNormalClosure {
		t.emitError(fmt.Errorf("websocket read failed: %w", err))
	}
	t.emitClose(code, reason)

	if code != websocket.CloseNormalClosure {
		t.scheduleRetry(gen)
	}
}

// scheduleRetry arms the single reconnect timer, or reports terminal
// exhaustion once the retry budget is spent. The caller's generation must
// still be current; a Disconnect advancing it cancels the whole cycle.
func (t *WebSocket) scheduleRetry(gen int) {
	t.mu.Lock()
	if t.gen != gen || t.state != domain.ConnClosed {
		t.mu.Unlock()
		return
	}
	if t.retries >= t.cfg.RetryLimit {
		limit := t.cfg.RetryLimit
		t.mu.Unlock()
		t.logger.Warn("reconnect attempts exhausted", zap.Int("limit", limit))
		t.emitError(fmt.Errorf("%w: reconnect attempts exhausted after %d tries", domain.ErrConnectionFailed, limit))
		t.emitClose(websocket.CloseAbnormalClosure, "reconnect attempts exhausted")
		return
	}
	t.retries++
	attempt := t.retries
	t.stopRetryTimerLocked()
	t.retryTimer = time.AfterFunc(t.cfg.RetryDelay, func() { t.retryConnect(gen) })
	t.mu.Unlock()

	t.logger.Info("scheduling reconnect",
		zap.Int("attempt", attempt),
		zap.Int("limit", t.cfg.RetryLimit),
		zap.Duration("delay", t.cfg.RetryDelay),
	)
}

// retryConnect runs one scheduled reconnect attempt. The armed generation is
// re-checked under the lock so a Disconnect issued after the timer fired, or
// while the dial is in flight, stops the cycle for good.
func (t *WebSocket) retryConnect(armed int) {
	t.mu.Lock()
	if t.gen != armed || t.state != domain.ConnClosed {
		t.mu.Unlock()
		return
	}
	t.state = domain.ConnConnecting
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	err := t.dial(context.Background(), gen)
	if err == nil || errors.Is(err, errSuperseded) {
		return
	}
	t.emitError(err)
	t.scheduleRetry(gen)
}

func (t *WebSocket) stopRetryTimerLocked() {
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
}

func (t *WebSocket) emitError(err error) {
	for _, handler := range t.onError.Snapshot() {
		handler(err)
	}
}

func (t *WebSocket) emitClose(code int, reason string) {
	for _, handler := range t.onClose.Snapshot() {
		handler(code, reason)
	}
}
