package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/router"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// Subscribe binds consumers and adds subs to the stream. Subscriptions
// already held are ignored. On a live connection only the frames of the new
// subscriptions are sent; otherwise the session connects with the full set.
func (g *Gateway) Subscribe(ctx context.Context, subs []schema.Subscription, consumers schema.Consumers) error {
	st := g.profile.Stream
	if st == nil || g.session == nil {
		return ErrNoStream
	}
	g.router.BindAll(consumers)

	g.mu.Lock()
	held := make(map[string]bool, len(g.subs))
	for _, s := range g.subs {
		held[s.Key()] = true
	}
	var added []schema.Subscription
	for _, s := range subs {
		if held[s.Key()] {
			continue
		}
		held[s.Key()] = true
		added = append(added, s)
	}
	all := append(append([]schema.Subscription(nil), g.subs...), added...)
	g.mu.Unlock()

	if len(all) == 0 {
		return nil
	}
	frames, err := st.Frames(all)
	if err != nil {
		return fmt.Errorf("render frames: %w", err)
	}

	g.mu.Lock()
	g.subs = all
	g.mu.Unlock()
	g.session.SetFrames(frames)

	if !g.session.Connected() {
		return g.session.Connect(ctx)
	}
	if len(added) == 0 {
		return nil
	}
	delta, err := st.Frames(added)
	if err != nil {
		return fmt.Errorf("render frames: %w", err)
	}
	logger.Info("%s 追加订阅 %d 个", g.id, len(added))
	for _, f := range delta.Subscribe {
		if err := g.session.Send(f); err != nil {
			return fmt.Errorf("send subscribe: %w", err)
		}
	}
	return nil
}

// Subscriptions returns the subscriptions currently held.
func (g *Gateway) Subscriptions() []schema.Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]schema.Subscription(nil), g.subs...)
}

// Unsubscribe sends the unsubscribe frames of every held subscription.
func (g *Gateway) Unsubscribe(ctx context.Context) error {
	if g.session == nil {
		return ErrNoStream
	}
	return g.session.Unsubscribe(ctx)
}

// Resubscribe tears the connection down and brings it back with the same set.
func (g *Gateway) Resubscribe(ctx context.Context) error {
	if g.session == nil {
		return ErrNoStream
	}
	return g.session.Reconnect(ctx)
}

// Close closes the stream. A gateway without a stream closes trivially.
func (g *Gateway) Close() error {
	if g.session == nil {
		return nil
	}
	return g.session.Close()
}

// Session exposes the stream session, nil for REST-only venues.
func (g *Gateway) Session() *ws.Session { return g.session }

// Router exposes the event router, nil for REST-only venues.
func (g *Gateway) Router() *router.Router { return g.router }

func (g *Gateway) onConnected() {
	g.router.Emit(&schema.SessionStart{Gateway: g.id, Time: time.Now()})
}
