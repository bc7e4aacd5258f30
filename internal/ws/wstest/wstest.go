// Package wstest provides an in-memory websocket connection and dialer for
// tests of stream consumers.
package wstest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/interfaces"
)

type inbound struct {
	mt   int
	data []byte
	err  error
}

// Conn is a scripted connection. Frames pushed with Text are returned by
// ReadMessage in order; Close unblocks a pending read.
type Conn struct {
	in   chan inbound
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	writes []string
	closed bool
}

// NewConn returns an open connection.
func NewConn() *Conn {
	return &Conn{in: make(chan inbound, 64), done: make(chan struct{})}
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.in:
		return m.mt, m.data, m.err
	case <-c.done:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *Conn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed conn")
	}
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *Conn) WriteJSON(any) error                { return nil }
func (c *Conn) SetReadDeadline(time.Time) error   { return nil }
func (c *Conn) SetWriteDeadline(time.Time) error  { return nil }
func (c *Conn) Ping([]byte) error                 { return nil }
func (c *Conn) Pong([]byte) error                 { return nil }
func (c *Conn) SetPingHandler(func(string) error) {}
func (c *Conn) SetPongHandler(func(string) error) {}

func (c *Conn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

// Text queues an inbound text frame.
func (c *Conn) Text(s string) { c.in <- inbound{mt: websocket.TextMessage, data: []byte(s)} }

// Fail queues a read error.
func (c *Conn) Fail(err error) { c.in <- inbound{err: err} }

// Sent returns every frame written so far.
func (c *Conn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dialer hands out a new Conn per dial.
type Dialer struct {
	Err error

	mu    sync.Mutex
	conns []*Conn
	urls  []string
}

func (d *Dialer) Dial(_ context.Context, url, _ string) (interfaces.WSConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.Err != nil {
		return nil, d.Err
	}
	c := NewConn()
	d.conns = append(d.conns, c)
	return c, nil
}

// Dials returns the number of dial attempts.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// URL returns the url of the i-th dial.
func (d *Dialer) URL(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

// Conn returns the i-th connection handed out.
func (d *Dialer) Conn(i int) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// Last returns the most recent connection, nil before the first dial.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}
