package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"companion/internal/ports"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

const sendQueueSize = 64

// Config controls websocket dialing.
type Config struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	// WriteTimeout bounds each frame write; a peer that stops reading
	// fails the connection instead of stalling senders.
	WriteTimeout time.Duration
}

// Dialer implements ports.Dialer over gorilla/websocket.
type Dialer struct {
	cfg    Config
	dialer *websocket.Dialer
	logger zerolog.Logger
}

func NewDialer(cfg Config, logger zerolog.Logger) *Dialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Dialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger.With().Str("component", "websocket").Logger(),
	}
}

func (d *Dialer) Dial(ctx context.Context, target ports.Target) (ports.Connection, error) {
	wsURL, err := BuildURL(target.URL, target.DeviceID)
	if err != nil {
		return nil, err
	}

	conn, _, err := d.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}
	d.logger.Debug().Str("url", redactQuery(wsURL)).Msg("websocket open")

	c := &connection{
		conn:     conn,
		frames:   make(chan string, 64),
		outbound: make(chan string, sendQueueSize),
		closing:  make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   d.logger,
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop(d.cfg.PingInterval, d.cfg.WriteTimeout)
	go func() {
		c.wg.Wait()
		close(c.frames)
		_ = conn.Close()
		close(c.done)
	}()

	return c, nil
}

// BuildURL converts http(s) bases to ws(s) and appends the deviceId query
// parameter when one is given.
func BuildURL(base string, deviceID string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("websocket url is empty")
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid websocket url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("unsupported websocket scheme %q", parsed.Scheme)
	}

	if deviceID != "" {
		query := parsed.Query()
		query.Set("deviceId", deviceID)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func redactQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

type connection struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	frames   chan string
	outbound chan string
	closing  chan struct{}
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// Send queues frame for the write loop without blocking.
func (c *connection) Send(frame string) error {
	select {
	case <-c.closing:
		return ErrConnectionClosed
	case <-c.readDone:
		return c.closedErr()
	default:
	}

	select {
	case c.outbound <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *connection) closedErr() error {
	if err := c.waitErr(); err != nil {
		return err
	}
	return ErrConnectionClosed
}

func (c *connection) Frames() <-chan string {
	return c.frames
}

func (c *connection) Wait() error {
	<-c.done
	return c.waitErr()
}

// Close sends a normal close frame and waits for both loops to exit.
func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

func (c *connection) waitErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *connection) setErr(err error) {
	if err == nil {
		return
	}
	select {
	case <-c.closing:
		return
	default:
	}
	if isOrderlyClose(err) {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// isOrderlyClose reports whether err, possibly wrapped, is a close frame
// that ends the session without a failure.
func isOrderlyClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	return websocket.IsCloseError(closeErr,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func (c *connection) writeLoop(pingInterval time.Duration, writeTimeout time.Duration) {
	defer c.wg.Done()

	var ping <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame := <-c.outbound:
			if writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				c.setErr(fmt.Errorf("failed to write frame: %w", err))
				_ = c.conn.Close()
				return
			}
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingInterval)); err != nil {
				c.setErr(fmt.Errorf("failed to send ping: %w", err))
				_ = c.conn.Close()
				return
			}
		case <-c.closing:
			return
		case <-c.readDone:
			return
		}
	}
}

func (c *connection) readLoop() {
	defer c.wg.Done()
	defer close(c.readDone)

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(fmt.Errorf("failed to read frame: %w", err))
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug().Int("type", messageType).Msg("ignoring non-text frame")
			continue
		}

		select {
		case c.frames <- string(payload):
		case <-c.closing:
			return
		}
	}
}
