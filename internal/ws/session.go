package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/interfaces"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
)

// DefaultGrace is the pause between closing a connection and sending the
// unsubscribe frames.
const DefaultGrace = 5 * time.Second

const writeTimeout = 10 * time.Second

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Connecting
	Subscribing
	Streaming
	Closing
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Subscribing:
		return "subscribing"
	case Streaming:
		return "streaming"
	case Closing:
		return "closing"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Config describes one stream endpoint.
type Config struct {
	Name  string // 日志前缀, 通常为网关 id
	URL   string
	Proxy string

	Frames Frames

	// KeepAlive is the maximum gap between client keep-alives. Zero disables.
	KeepAlive time.Duration
	// KeepAliveFrame replaces the pong control frame when set.
	KeepAliveFrame *Frame

	// Grace defaults to DefaultGrace; negative means no pause.
	Grace time.Duration

	// OnConnected runs after dial and before the subscribe frames go out.
	OnConnected func()
	// OnMessage receives every non-empty text frame, in arrival order.
	OnMessage func(Message)

	Dialer Dialer
}

// Stats is a snapshot of session counters.
type Stats struct {
	State         State
	Dials         int
	Reconnects    int
	LastMessage   time.Time
	LastKeepAlive time.Time
}

// Session owns at most one live connection and its single reader.
type Session struct {
	lifecycle sync.Mutex // serializes Connect/Close/Reconnect
	writeMu   sync.Mutex

	mu       sync.Mutex // guards everything below
	cfg      Config
	conn     interfaces.WSConn
	gen      uint64
	state    State
	stats    Stats
	lastPong time.Time

	// run bounds the receive loop and reconnects; only Close cancels it.
	run       context.Context
	cancelRun context.CancelFunc
}

// NewSession builds an idle session.
func NewSession(cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = GorillaDialer{}
	}
	if cfg.Grace == 0 {
		cfg.Grace = DefaultGrace
	}
	return &Session{cfg: cfg}
}

// SetFrames replaces the subscribe/unsubscribe frames used from the next
// connect on.
func (s *Session) SetFrames(f Frames) {
	s.mu.Lock()
	s.cfg.Frames = f
	s.mu.Unlock()
}

// SetProxy changes the proxy used by later dials.
func (s *Session) SetProxy(proxy string) {
	s.mu.Lock()
	s.cfg.Proxy = proxy
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether a handle is held.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.State = s.state
	return st
}

// Connect dials, runs OnConnected, sends the subscribe frames and starts the
// receive loop. ctx bounds the dial only; the stream lives until Close. It
// is a no-op while a handle is held. A dial failure is logged and returned;
// the session stays Idle and is not retried.
func (s *Session) Connect(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.connect(ctx)
}

func (s *Session) connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		logger.Debug("%s WS 已连接，跳过连接", s.cfg.Name)
		return nil
	}
	cfg := s.cfg
	s.state = Connecting
	s.stats.Dials++
	s.mu.Unlock()

	logger.Info("%s WS 开始连接 %s", cfg.Name, cfg.URL)
	conn, err := cfg.Dialer.Dial(ctx, cfg.URL, cfg.Proxy)
	if err != nil {
		logger.Error("%s WS 连接失败: %v", cfg.Name, err)
		s.setState(Idle)
		return fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	logger.Info("%s WS 连接成功", cfg.Name)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.conn = conn
	s.state = Subscribing
	s.lastPong = time.Now()
	if s.run == nil {
		s.run, s.cancelRun = context.WithCancel(context.Background())
	}
	run := s.run
	s.mu.Unlock()

	s.installHandlers(conn)

	if cfg.OnConnected != nil {
		cfg.OnConnected()
	}
	for _, f := range cfg.Frames.Subscribe {
		if err := s.write(conn, f); err != nil {
			logger.Error("%s WS 发送订阅失败: %v", cfg.Name, err)
		}
	}

	s.setStateIf(gen, Streaming)
	go s.receive(run, conn, gen)
	return nil
}

func (s *Session) installHandlers(conn interfaces.WSConn) {
	name := s.cfg.Name
	conn.SetPingHandler(func(appData string) error {
		logger.Debug("%s WS 收到 ping", name)
		s.touch()
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.Pong([]byte(appData))
	})
	conn.SetPongHandler(func(string) error {
		logger.Debug("%s WS 收到 pong", name)
		s.touch()
		return nil
	})
}

// receive is the only reader of conn.
func (s *Session) receive(ctx context.Context, conn interfaces.WSConn, gen uint64) {
	name := s.cfg.Name
	logger.Info("%s WS 开始接收消息", name)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !s.current(gen) {
				return
			}
			if isClosed(err) {
				logger.Warn("%s WS 连接被关闭: %v", name, err)
				s.reconnectFrom(ctx, gen)
				return
			}
			logger.Error("%s WS 读取消息失败: %v", name, err)
			s.release(gen)
			return
		}

		at := s.touch()
		switch mt {
		case websocket.TextMessage:
			if len(data) == 0 {
				continue
			}
			s.deliver(decodeMessage(data, at))
		case websocket.BinaryMessage:
			continue
		}
		s.keepAlive(conn, gen)
	}
}

func (s *Session) deliver(msg Message) {
	s.mu.Lock()
	fn := s.cfg.OnMessage
	s.mu.Unlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s WS 消息处理 panic: %v", s.cfg.Name, r)
		}
	}()
	fn(msg)
}

func (s *Session) keepAlive(conn interfaces.WSConn, gen uint64) {
	s.mu.Lock()
	interval := s.cfg.KeepAlive
	frame := s.cfg.KeepAliveFrame
	due := interval > 0 && s.gen == gen && time.Since(s.lastPong) > interval
	if due {
		s.lastPong = time.Now()
		s.stats.LastKeepAlive = s.lastPong
	}
	s.mu.Unlock()
	if !due {
		return
	}

	var err error
	if frame != nil {
		err = s.write(conn, *frame)
	} else {
		s.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err = conn.Pong(nil)
		s.writeMu.Unlock()
	}
	if err != nil {
		logger.Warn("%s WS 发送保活失败: %v", s.cfg.Name, err)
		return
	}
	logger.Debug("%s WS 发送保活", s.cfg.Name)
}

// Send writes one frame on the live connection.
func (s *Session) Send(f Frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("websocket not connected")
	}
	return s.write(conn, f)
}

func (s *Session) write(conn interfaces.WSConn, f Frame) error {
	payload, err := f.payload()
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	logger.Debug("%s WS SendMessage: %s", s.cfg.Name, payload)
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Reconnect closes the current connection (with grace and unsubscribe) and
// connects again.
func (s *Session) Reconnect(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.reconnect(ctx)
}

func (s *Session) reconnect(ctx context.Context) error {
	s.mu.Lock()
	s.stats.Reconnects++
	s.mu.Unlock()
	logger.Warn("%s WS 开始重连", s.cfg.Name)
	if err := s.close(Reconnecting); err != nil {
		logger.Warn("%s WS 关闭旧连接失败: %v", s.cfg.Name, err)
	}
	return s.connect(ctx)
}

// reconnectFrom reconnects only if gen is still the live connection, so a
// reader racing a local Close does not bring the session back.
func (s *Session) reconnectFrom(ctx context.Context, gen uint64) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if !s.current(gen) {
		return
	}
	if err := s.reconnect(ctx); err != nil {
		logger.Error("%s WS 重连失败: %v", s.cfg.Name, err)
	}
}

// Close releases the handle, waits the grace period and sends the
// unsubscribe frames, then cancels the session context. Without a handle it
// only aborts a reconnect in flight.
func (s *Session) Close() error {
	s.mu.Lock()
	held := s.conn != nil
	s.mu.Unlock()
	if !held {
		// 重连拨号中没有句柄, 先取消让拨号返回
		s.stopRun()
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	err := s.close(Closing)
	s.stopRun()
	return err
}

func (s *Session) stopRun() {
	s.mu.Lock()
	cancel := s.cancelRun
	s.run, s.cancelRun = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) close(via State) error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return nil
	}
	s.detach()
	s.state = via
	grace := s.cfg.Grace
	s.mu.Unlock()

	err := conn.Close()
	if grace > 0 {
		time.Sleep(grace)
	}
	if uerr := s.Unsubscribe(context.Background()); uerr != nil {
		logger.Warn("%s WS 退订失败: %v", s.cfg.Name, uerr)
	}
	s.setState(Idle)
	return err
}

// Unsubscribe sends the unsubscribe frames. With no live handle it dials a
// throwaway connection just for them; the session stays Idle.
func (s *Session) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	cfg := s.cfg
	s.mu.Unlock()

	if len(cfg.Frames.Unsubscribe) == 0 {
		return nil
	}
	logger.Info("%s WS unsubscribe", cfg.Name)

	if conn == nil {
		tmp, err := cfg.Dialer.Dial(ctx, cfg.URL, cfg.Proxy)
		if err != nil {
			logger.Error("%s WS 退订连接失败: %v", cfg.Name, err)
			return fmt.Errorf("dial for unsubscribe: %w", err)
		}
		defer tmp.Close()
		conn = tmp
	}

	var errs []error
	for _, f := range cfg.Frames.Unsubscribe {
		if err := s.write(conn, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// release drops a failed connection without reconnecting.
func (s *Session) release(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.conn == nil {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.detach()
	s.state = Idle
	s.mu.Unlock()
	_ = conn.Close()
}

// detach clears the handle. Caller holds mu.
func (s *Session) detach() {
	s.conn = nil
	s.gen++
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.gen == gen
}

func (s *Session) touch() time.Time {
	now := time.Now()
	s.mu.Lock()
	s.stats.LastMessage = now
	s.mu.Unlock()
	return now
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) setStateIf(gen uint64, st State) {
	s.mu.Lock()
	if s.gen == gen && s.conn != nil {
		s.state = st
	}
	s.mu.Unlock()
}

func isClosed(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
