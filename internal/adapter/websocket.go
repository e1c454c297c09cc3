package adapter

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/caesar-terminal/ladder/internal/metrics"
)

// ErrClosed is returned by Connect after Close has been called.
var ErrClosed = errors.New("ws: client closed")

// CircuitState represents the health of the WebSocket connection.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota // healthy
	CircuitOpen                       // disconnected, reconnecting
)

// WSConfig holds tunable parameters for a WSClient.
type WSConfig struct {
	URL string

	// Name labels logs and metrics, e.g. "book" or "trade".
	Name string

	// Buffer sizes for the underlying TCP connection.
	ReadBufferSize  int
	WriteBufferSize int

	// HeartbeatTimeout is the maximum duration of silence before the client
	// considers the connection dead and triggers a reconnect.
	HeartbeatTimeout time.Duration

	// Backoff parameters for reconnection.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	BackoffFactor  float64

	// Headers sent during the WebSocket handshake.
	Headers http.Header
}

// DefaultWSConfig returns defaults suited to a public market data stream.
func DefaultWSConfig(url, name string) WSConfig {
	return WSConfig{
		URL:              url,
		Name:             name,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HeartbeatTimeout: 30 * time.Second,
		BackoffInitial:   250 * time.Millisecond,
		BackoffMax:       5 * time.Second,
		BackoffFactor:    2.0,
	}
}

// WSClient is a resilient WebSocket connection manager. It reconnects with
// exponential backoff, monitors heartbeats, replays the OnConnect hook after
// every (re)connect and fans out incoming messages to subscribers.
type WSClient struct {
	cfg WSConfig
	log zerolog.Logger

	circuit atomic.Int32

	mu      sync.RWMutex
	conn    *websocket.Conn
	started bool
	closed  bool

	// subscribers receive copies of every inbound message.
	subMu sync.RWMutex
	subs  []chan []byte

	// outbox for sending messages through the connection.
	outbox chan []byte

	hookMu    sync.RWMutex
	onConnect []func()

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// onReconnect is called after each successful reconnection (testing hook).
	onReconnect func()
}

// NewWSClient creates a new WebSocket client. Call Connect to start.
func NewWSClient(cfg WSConfig, log zerolog.Logger) *WSClient {
	ws := &WSClient{
		cfg:    cfg,
		log:    log.With().Str("component", "ws").Str("feed", cfg.Name).Logger(),
		outbox: make(chan []byte, 256),
		done:   make(chan struct{}),
	}
	ws.circuit.Store(int32(CircuitOpen))
	return ws
}

// Circuit returns the current connection state.
func (ws *WSClient) Circuit() CircuitState {
	return CircuitState(ws.circuit.Load())
}

// OnConnect registers fn to run after the initial connect and after every
// reconnect. Subscription handshakes belong here. Register before Connect.
func (ws *WSClient) OnConnect(fn func()) {
	ws.hookMu.Lock()
	ws.onConnect = append(ws.onConnect, fn)
	ws.hookMu.Unlock()
}

// Subscribe returns a channel that receives copies of every inbound message.
// The channel is closed when the client shuts down.
func (ws *WSClient) Subscribe() <-chan []byte {
	ch := make(chan []byte, 512)
	ws.subMu.Lock()
	ws.subs = append(ws.subs, ch)
	ws.subMu.Unlock()
	return ch
}

// Send enqueues a message for delivery over the WebSocket connection.
func (ws *WSClient) Send(data []byte) {
	select {
	case ws.outbox <- data:
	default:
		ws.log.Warn().Int("bytes", len(data)).Msg("ws: outbox full, dropping message")
	}
}

// Connect dials the WebSocket endpoint and starts the read/write loops. It
// blocks until the initial connection succeeds or fails.
func (ws *WSClient) Connect(ctx context.Context) error {
	select {
	case <-ws.done:
		return ErrClosed
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := ws.dial(ctx); err != nil {
		cancel()
		return err
	}

	ws.mu.Lock()
	if ws.closed {
		ws.conn.Close()
		ws.mu.Unlock()
		cancel()
		return ErrClosed
	}
	ws.cancel = cancel
	ws.started = true
	ws.mu.Unlock()

	ws.setCircuit(CircuitClosed)
	ws.runHooks()

	go ws.readLoop(ctx)
	go ws.writeLoop(ctx)

	ws.log.Info().Str("url", ws.cfg.URL).Msg("ws: connected")
	return nil
}

// Close shuts down the client. Subscriber channels are closed once the read
// loop has exited. Close is idempotent.
func (ws *WSClient) Close() {
	ws.closeOnce.Do(func() {
		ws.mu.Lock()
		ws.closed = true
		if ws.cancel != nil {
			ws.cancel()
		}
		if ws.conn != nil {
			ws.conn.Close()
		}
		started := ws.started
		ws.mu.Unlock()

		if !started {
			ws.closeSubs()
			close(ws.done)
		}
	})
}

// Done returns a channel that is closed when the client has fully shut down.
func (ws *WSClient) Done() <-chan struct{} {
	return ws.done
}

func (ws *WSClient) setCircuit(s CircuitState) {
	ws.circuit.Store(int32(s))
	v := 0.0
	if s == CircuitClosed {
		v = 1
	}
	metrics.FeedConnected.WithLabelValues(ws.cfg.Name).Set(v)
}

func (ws *WSClient) runHooks() {
	ws.hookMu.RLock()
	hooks := append([]func(){}, ws.onConnect...)
	ws.hookMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// dial establishes the WebSocket connection with TCP_NODELAY enabled.
func (ws *WSClient) dial(ctx context.Context) error {
	ws.mu.RLock()
	url := ws.cfg.URL
	ws.mu.RUnlock()

	dialer := websocket.Dialer{
		ReadBufferSize:  ws.cfg.ReadBufferSize,
		WriteBufferSize: ws.cfg.WriteBufferSize,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tc, ok := conn.(*net.TCPConn); ok {
				tc.SetNoDelay(true)
			}
			return conn, nil
		},
	}

	conn, _, err := dialer.DialContext(ctx, url, ws.cfg.Headers)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()
	return nil
}

// reconnect loops with exponential backoff until a connection is re-established
// or the context is cancelled.
func (ws *WSClient) reconnect(ctx context.Context) bool {
	ws.setCircuit(CircuitOpen)

	delay := ws.cfg.BackoffInitial
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := ws.dial(ctx); err != nil {
			ws.log.Warn().Err(err).Dur("retry_in", delay).Msg("ws: reconnect failed")
			delay = time.Duration(math.Min(
				float64(delay)*ws.cfg.BackoffFactor,
				float64(ws.cfg.BackoffMax),
			))
			continue
		}

		ws.setCircuit(CircuitClosed)
		metrics.FeedReconnects.WithLabelValues(ws.cfg.Name).Inc()
		ws.log.Info().Msg("ws: reconnected")
		ws.runHooks()
		if ws.onReconnect != nil {
			ws.onReconnect()
		}
		return true
	}
}

// readLoop reads messages and fans them out to subscribers. It also acts as the
// heartbeat monitor: if no message arrives within HeartbeatTimeout, it triggers
// a reconnect. It owns closing the subscriber channels.
func (ws *WSClient) readLoop(ctx context.Context) {
	defer func() {
		ws.mu.RLock()
		if ws.conn != nil {
			ws.conn.Close()
		}
		ws.mu.RUnlock()
		ws.setCircuit(CircuitOpen)
		ws.closeSubs()
		close(ws.done)
	}()

	for {
		ws.mu.RLock()
		c := ws.conn
		ws.mu.RUnlock()

		c.SetReadDeadline(time.Now().Add(ws.cfg.HeartbeatTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ws.log.Warn().Err(err).Msg("ws: read error, reconnecting")
			c.Close()
			if !ws.reconnect(ctx) {
				return
			}
			continue
		}

		ws.fanOut(msg)
	}
}

// writeLoop drains the outbox and writes messages to the connection.
func (ws *WSClient) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-ws.outbox:
			ws.mu.RLock()
			c := ws.conn
			ws.mu.RUnlock()
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				ws.log.Warn().Err(err).Msg("ws: write error")
			}
		}
	}
}

// fanOut delivers msg to every subscriber without blocking.
func (ws *WSClient) fanOut(msg []byte) {
	ws.subMu.RLock()
	defer ws.subMu.RUnlock()

	for _, ch := range ws.subs {
		select {
		case ch <- msg:
		default:
			// Slow consumer, drop to avoid head-of-line blocking.
			metrics.MessagesDiscarded.WithLabelValues(ws.cfg.Name, metrics.ReasonBufferFull).Inc()
		}
	}
}

func (ws *WSClient) closeSubs() {
	ws.subMu.Lock()
	for _, ch := range ws.subs {
		close(ch)
	}
	ws.subs = nil
	ws.subMu.Unlock()
}
