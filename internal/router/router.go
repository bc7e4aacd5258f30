// Package router turns inbound stream messages into canonical events and
// hands them to the consumer bound for their kind.
package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// Resolver names the channel family of a message, e.g. "depth" for
// "btcusdt@depth20@100ms". ok is false for acks, pongs and anything else
// that carries no data.
type Resolver func(ws.Message) (channel string, ok bool)

// Normalizer converts one message of a channel into canonical events.
type Normalizer func(ws.Message) ([]schema.Event, error)

// ConsumerKey is the lookup key of the consumer table.
type ConsumerKey struct {
	Gateway schema.GatewayID
	Kind    schema.EventKind
}

// Router dispatches the messages of one gateway.
type Router struct {
	gateway     schema.GatewayID
	resolve     Resolver
	normalizers map[string]Normalizer
	now         func() time.Time

	mu        sync.RWMutex
	consumers map[ConsumerKey]schema.Consumer
	heartbeat schema.HeartbeatConsumer
}

// New builds a router. normalizers is keyed by the channel the resolver returns.
func New(gateway schema.GatewayID, resolve Resolver, normalizers map[string]Normalizer) *Router {
	if normalizers == nil {
		normalizers = map[string]Normalizer{}
	}
	return &Router{
		gateway:     gateway,
		resolve:     resolve,
		normalizers: normalizers,
		now:         time.Now,
		consumers:   make(map[ConsumerKey]schema.Consumer),
	}
}

// Bind sets the consumer of kind. A nil consumer unbinds it.
func (r *Router) Bind(kind schema.EventKind, c schema.Consumer) {
	key := ConsumerKey{Gateway: r.gateway, Kind: kind}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		delete(r.consumers, key)
		return
	}
	r.consumers[key] = c
}

// BindHeartbeat sets the heartbeat consumer.
func (r *Router) BindHeartbeat(h schema.HeartbeatConsumer) {
	r.mu.Lock()
	r.heartbeat = h
	r.mu.Unlock()
}

// BindAll binds every consumer of cs.
func (r *Router) BindAll(cs schema.Consumers) {
	for kind, c := range cs.ByKind {
		r.Bind(kind, c)
	}
	if cs.Heartbeat != nil {
		r.BindHeartbeat(cs.Heartbeat)
	}
}

// Bound reports whether kind has a consumer.
func (r *Router) Bound(kind schema.EventKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.consumers[ConsumerKey{Gateway: r.gateway, Kind: kind}]
	return ok
}

// Dispatch resolves, normalizes and delivers msg. Nothing is returned:
// unroutable or malformed messages are logged and dropped.
func (r *Router) Dispatch(msg ws.Message) {
	if r.resolve == nil {
		return
	}
	channel, ok := r.resolve(msg)
	if !ok {
		logger.Debug("%s 未识别的推送: %s", r.gateway, msg.Text())
		return
	}
	normalize, ok := r.normalizers[channel]
	if !ok {
		logger.Debug("%s 频道 %s 没有解析器", r.gateway, channel)
		return
	}

	events, err := safeNormalize(normalize, msg)
	if err != nil {
		logger.WithGateway(string(r.gateway)).Warnf("频道 %s 解析失败: %v", channel, err)
		return
	}
	for _, ev := range events {
		r.deliver(ev)
	}
}

// Emit delivers an event that did not come off the wire, such as the
// SessionStart sentinel.
func (r *Router) Emit(ev schema.Event) {
	r.deliver(ev)
}

func (r *Router) deliver(ev schema.Event) {
	if ev == nil {
		return
	}
	r.mu.RLock()
	consumer, ok := r.consumers[ConsumerKey{Gateway: r.gateway, Kind: ev.Kind()}]
	heartbeat := r.heartbeat
	r.mu.RUnlock()
	if !ok {
		logger.Debug("%s 没有 %s 的消费者, 丢弃", r.gateway, ev.Kind())
		return
	}

	if !r.safeConsume(consumer, ev) {
		return
	}
	if heartbeat != nil {
		heartbeat(schema.Heartbeat{
			Key:     ev.Topic() + "_" + string(ev.Kind()),
			Gateway: r.gateway,
			Time:    r.now(),
		})
	}
}

func (r *Router) safeConsume(c schema.Consumer, ev schema.Event) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("%s 消费者处理 %s panic: %v", r.gateway, ev.Kind(), p)
			ok = false
		}
	}()
	c(ev)
	return true
}

func safeNormalize(n Normalizer, msg ws.Message) (events []schema.Event, err error) {
	defer func() {
		if p := recover(); p != nil {
			events, err = nil, fmt.Errorf("normalizer panic: %v", p)
		}
	}()
	return n(msg)
}
