package hub

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for the ASCII push socket.
const (
	// defaultDialTimeout is the maximum time to wait for a connection.
	defaultDialTimeout = 10 * time.Second

	// defaultKeepAlive is the TCP keep-alive probe interval. The socket is
	// silent between device changes, so dead-peer detection relies on it.
	defaultKeepAlive = 30 * time.Second

	// defaultReconnectInterval is the initial delay between reconnection attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the maximum delay between reconnection attempts.
	maxReconnectInterval = 2 * time.Minute

	// maxLineLength bounds a single push line.
	maxLineLength = 4096
)

// ListenerConfig holds ASCII push socket configuration.
type ListenerConfig struct {
	// Host is the hub's hostname or IP address.
	Host string

	// Port is the hub's ASCII port. Default: 11000.
	Port int

	// DialTimeout is the maximum time to wait for a connection.
	// Default: 10 seconds.
	DialTimeout time.Duration

	// ReconnectInterval is the initial delay between reconnection attempts.
	// Default: 5 seconds.
	ReconnectInterval time.Duration
}

// ListenerStats holds operational statistics.
type ListenerStats struct {
	LinesRx         uint64
	UpdatesRx       uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	LastActivity    time.Time
	Connected       bool
	Reconnecting    bool
}

// Listener maintains the persistent connection to the hub's ASCII push
// socket and delivers device-change lines to its callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The update callback is invoked on the single receive goroutine,
//     preserving hub delivery order.
//
// Auto-Reconnection:
//   - When the connection is lost, the listener automatically reconnects
//     with exponential backoff capped at maxReconnectInterval.
//   - Reconnection stops only when Close() is called.
type Listener struct {
	cfg  ListenerConfig
	conn net.Conn

	// Connection state
	connMu    sync.RWMutex
	connected bool

	// Reconnection state
	reconnecting atomic.Bool

	// onUpdate receives each parsed device-change line.
	onUpdate func(ref int, value, prev float64)

	// onConnect fires after every successful connection, including the
	// first. Used to trigger a full inventory re-sync.
	onConnect  func()
	callbackMu sync.RWMutex

	// Shutdown coordination (closeOnce prevents double-close panics)
	done *closeOnce
	wg   sync.WaitGroup

	// started guards against double Start.
	started atomic.Bool

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	linesRx         atomic.Uint64
	updatesRx       atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// NewListener creates a push socket listener. No connection is made until
// Start is called.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Port == 0 {
		cfg.Port = 11000
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}

	return &Listener{
		cfg:  cfg,
		done: newCloseOnce(),
	}
}

// SetOnUpdate sets the callback for parsed device-change lines.
// Must be called before Start.
func (l *Listener) SetOnUpdate(fn func(ref int, value, prev float64)) {
	l.callbackMu.Lock()
	l.onUpdate = fn
	l.callbackMu.Unlock()
}

// SetOnConnect sets the callback invoked after each successful connection.
// Must be called before Start.
func (l *Listener) SetOnConnect(fn func()) {
	l.callbackMu.Lock()
	l.onConnect = fn
	l.callbackMu.Unlock()
}

// SetLogger sets the logger for this listener.
func (l *Listener) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

// Start dials the push socket and begins the receive loop.
//
// The context bounds only the initial dial. Calling Start on a running or
// closed listener is an error.
func (l *Listener) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: listener already started", ErrConnectionFailed)
	}
	if l.isClosed() {
		return fmt.Errorf("%w: listener closed", ErrConnectionFailed)
	}

	conn, err := l.dial(ctx)
	if err != nil {
		l.started.Store(false)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connected = true
	l.connMu.Unlock()
	l.lastActivity.Store(time.Now().Unix())

	l.fireOnConnect()

	l.wg.Add(1)
	go l.receiveLoop()

	return nil
}

// dial opens a TCP connection to the push socket with keep-alive enabled.
func (l *Listener) dial(ctx context.Context) (net.Conn, error) {
	dialCtx := ctx
	if dialCtx == nil {
		dialCtx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(dialCtx, l.cfg.DialTimeout)
	defer cancel()

	dialer := net.Dialer{KeepAlive: defaultKeepAlive}
	address := fmt.Sprintf("%s:%d", l.cfg.Host, l.cfg.Port)

	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return conn, nil
}

// receiveLoop reads push lines until shutdown, reconnecting on errors.
func (l *Listener) receiveLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done.Done():
			return
		default:
		}

		l.connMu.RLock()
		conn := l.conn
		l.connMu.RUnlock()

		if conn == nil {
			if !l.reconnect() {
				return
			}
			continue
		}

		reader := bufio.NewReaderSize(conn, maxLineLength)
		if err := l.readLines(reader); err != nil {
			if l.isClosed() {
				return
			}

			l.logError("read failed", err)
			l.errorsTotal.Add(1)
			l.handleDisconnect()

			if !l.reconnect() {
				return
			}
		}
	}
}

// readLines consumes push lines from the connection until an error.
func (l *Listener) readLines(reader *bufio.Reader) error {
	for {
		select {
		case <-l.done.Done():
			return errors.New("shutdown")
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		l.linesRx.Add(1)
		l.lastActivity.Store(time.Now().Unix())

		ref, value, prev, ok, perr := parseStatusLine(line)
		if perr != nil {
			l.logError("unparseable push line", perr)
			l.errorsTotal.Add(1)
			continue
		}
		if !ok {
			continue // Not a device change line
		}

		l.updatesRx.Add(1)

		l.callbackMu.RLock()
		callback := l.onUpdate
		l.callbackMu.RUnlock()

		if callback != nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						l.logError("update callback panic", fmt.Errorf("%v", r))
					}
				}()
				callback(ref, value, prev)
			}()
		}
	}
}

// handleDisconnect marks the connection as lost.
func (l *Listener) handleDisconnect() {
	l.connMu.Lock()
	wasConnected := l.connected
	l.connected = false
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connMu.Unlock()

	if wasConnected {
		l.logInfo("push socket lost, will attempt reconnection")
	}
}

// reconnect re-establishes the connection with exponential backoff.
// Returns true on success, false if shutdown was signalled.
func (l *Listener) reconnect() bool {
	l.reconnecting.Store(true)
	defer l.reconnecting.Store(false)

	backoff := l.cfg.ReconnectInterval

	for attempt := 1; ; attempt++ {
		if l.isClosed() {
			return false
		}

		l.logInfo("attempting push socket reconnection", "attempt", attempt, "backoff", backoff.String())

		conn, err := l.dial(context.Background())
		if err != nil {
			l.logError("reconnect: dial failed", err)
			l.errorsTotal.Add(1)

			select {
			case <-l.done.Done():
				return false
			case <-time.After(backoff):
			}

			// Exponential backoff with cap
			backoff = time.Duration(float64(backoff) * 1.5)
			if backoff > maxReconnectInterval {
				backoff = maxReconnectInterval
			}
			continue
		}

		l.connMu.Lock()
		l.conn = conn
		l.connected = true
		l.connMu.Unlock()

		l.reconnectsTotal.Add(1)
		l.lastActivity.Store(time.Now().Unix())
		l.logInfo("push socket reconnected", "total_reconnects", l.reconnectsTotal.Load())

		l.fireOnConnect()
		return true
	}
}

// fireOnConnect invokes the connect callback with panic recovery.
func (l *Listener) fireOnConnect() {
	l.callbackMu.RLock()
	callback := l.onConnect
	l.callbackMu.RUnlock()

	if callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logError("connect callback panic", fmt.Errorf("%v", r))
		}
	}()
	callback()
}

// isClosed returns true if the listener has been closed.
func (l *Listener) isClosed() bool {
	select {
	case <-l.done.Done():
		return true
	default:
		return false
	}
}

// Close stops the receive loop and closes the connection.
//
// Safe to call multiple times and before Start.
func (l *Listener) Close() error {
	l.done.Close()

	l.connMu.Lock()
	l.connected = false
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connMu.Unlock()

	l.wg.Wait()

	l.logInfo("push socket closed")
	return nil
}

// IsConnected returns true if the push socket is currently connected.
func (l *Listener) IsConnected() bool {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	return l.connected
}

// Stats returns current operational statistics.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		LinesRx:         l.linesRx.Load(),
		UpdatesRx:       l.updatesRx.Load(),
		ErrorsTotal:     l.errorsTotal.Load(),
		ReconnectsTotal: l.reconnectsTotal.Load(),
		LastActivity:    time.Unix(l.lastActivity.Load(), 0),
		Connected:       l.IsConnected(),
		Reconnecting:    l.reconnecting.Load(),
	}
}

// logInfo logs an info message if logger is set.
func (l *Listener) logInfo(msg string, keysAndValues ...any) {
	l.loggerMu.RLock()
	logger := l.logger
	l.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (l *Listener) logError(msg string, err error) {
	l.loggerMu.RLock()
	logger := l.logger
	l.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
