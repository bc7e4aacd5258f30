package interfaces

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// WSConn abstracts websocket Conn for testability.
type WSConn interface {
	// ReadMessage blocks for the next data frame. Control frames are passed
	// to the ping/pong handlers while it runs.
	ReadMessage() (messageType int, p []byte, err error)
	// WriteMessage writes a message of the given type with the given payload
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
	// Ping sends a ping frame to server
	Ping(data []byte) error
	// Pong sends a pong frame to server
	Pong(data []byte) error
	// SetPingHandler sets the handler for received ping frames
	SetPingHandler(h func(appData string) error)
	// SetPongHandler sets the handler for received pong frames
	SetPongHandler(h func(appData string) error)
}

// WSShim adapts real *websocket.Conn to WSConn.
type WSShim struct{ *websocket.Conn }

func (w WSShim) ReadMessage() (int, []byte, error)           { return w.Conn.ReadMessage() }
func (w WSShim) WriteJSON(v any) error                       { return w.Conn.WriteJSON(v) }
func (w WSShim) SetReadDeadline(t time.Time) error           { return w.Conn.SetReadDeadline(t) }
func (w WSShim) SetWriteDeadline(t time.Time) error          { return w.Conn.SetWriteDeadline(t) }
func (w WSShim) Close() error                                { return w.Conn.Close() }
func (w WSShim) Ping(data []byte) error                      { return w.WriteMessage(websocket.PingMessage, data) }
func (w WSShim) Pong(data []byte) error                      { return w.WriteMessage(websocket.PongMessage, data) }
func (w WSShim) SetPingHandler(h func(appData string) error) { w.Conn.SetPingHandler(h) }
func (w WSShim) SetPongHandler(h func(appData string) error) { w.Conn.SetPongHandler(h) }
func (w WSShim) WriteMessage(messageType int, data []byte) error {
	return w.Conn.WriteMessage(messageType, data)
}

// Streamer is the stream side of a gateway.
type Streamer interface {
	Subscribe(ctx context.Context, subs []schema.Subscription, consumers schema.Consumers) error
	Unsubscribe(ctx context.Context) error
	Resubscribe(ctx context.Context) error
	Close() error
}

// Identity names a gateway instance.
type Identity interface {
	ID() schema.GatewayID
	Name() schema.ExchangeName
	Market() schema.MarketType
}

// Gateway is what the manager needs from a gateway instance.
type Gateway interface {
	Identity
	Streamer
	Supports(m schema.Method) bool
	Invoke(ctx context.Context, name string, q schema.Query, h rest.Handler) error
	Do(ctx context.Context, m schema.Method, q schema.Query) rest.Outcome
}
