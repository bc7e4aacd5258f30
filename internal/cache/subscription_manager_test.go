package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

func TestSubscriptionManagerDedup(t *testing.T) {
	sm := NewSubscriptionManager()
	depth := schema.Subscription{Method: schema.GetDepths, Symbol: "BTC/USDT", DepthLimit: 20}
	kline := schema.Subscription{Method: schema.GetKlines, Symbol: "BTC/USDT", Interval: schema.Interval1m}

	added := sm.Add(gw, []schema.Subscription{depth, kline, depth})
	assert.Len(t, added, 2)
	assert.Empty(t, sm.Add(gw, []schema.Subscription{kline}))

	list := sm.List(gw)
	assert.Equal(t, []schema.Subscription{depth, kline}, list)
	assert.Equal(t, []schema.GatewayID{gw}, sm.Gateways())

	removed := sm.Remove(gw, []schema.Subscription{kline, {Method: schema.GetTicker, Symbol: "ETH/USDT"}})
	assert.Equal(t, []schema.Subscription{kline}, removed)
	assert.Len(t, sm.List(gw), 1)

	sm.Clear(gw)
	assert.Empty(t, sm.List(gw))
	assert.Empty(t, sm.Gateways())
}

func TestSubscriptionManagerAllTickers(t *testing.T) {
	sm := NewSubscriptionManager()
	a := schema.Subscription{Method: schema.GetTicker, AllTickers: true}
	b := schema.Subscription{Method: schema.GetTicker, Symbol: "BTC/USDT", AllTickers: true}
	assert.Len(t, sm.Add(gw, []schema.Subscription{a, b}), 1)
}
