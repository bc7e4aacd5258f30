package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// DefaultTradeHistory is the per-topic trade ring size when none is given.
const DefaultTradeHistory = 500

// MemoryCache keeps the latest market snapshot per (gateway, topic).
// Depth, kline, ticker and account values are swapped through atomic
// pointers so readers never block writers. Trades keep a bounded history.
type MemoryCache struct {
	depths   sync.Map // key -> *atomic.Pointer[schema.Depth]
	klines   sync.Map // key -> *atomic.Pointer[schema.Kline]
	tickers  sync.Map // key -> *atomic.Pointer[schema.Ticker]
	accounts sync.Map // gateway -> *atomic.Pointer[schema.Account]

	tradeCap int
	tradeMu  sync.Mutex
	trades   map[string]*deque.Deque[schema.Trade]
}

func NewMemoryCache(tradeHistory int) *MemoryCache {
	if tradeHistory <= 0 {
		tradeHistory = DefaultTradeHistory
	}
	return &MemoryCache{
		tradeCap: tradeHistory,
		trades:   make(map[string]*deque.Deque[schema.Trade]),
	}
}

// cacheKey joins gateway and topic, e.g. "binance_spot:BTCUSDT_1m".
func cacheKey(gateway schema.GatewayID, topic string) string {
	return string(gateway) + ":" + topic
}

func store[T any](m *sync.Map, key string, v *T) {
	p, _ := m.LoadOrStore(key, new(atomic.Pointer[T]))
	p.(*atomic.Pointer[T]).Store(v)
}

func load[T any](m *sync.Map, key string) (T, bool) {
	var zero T
	p, ok := m.Load(key)
	if !ok {
		return zero, false
	}
	v := p.(*atomic.Pointer[T]).Load()
	if v == nil {
		return zero, false
	}
	return *v, true
}

func (m *MemoryCache) SetDepth(d schema.Depth) {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	store(&m.depths, cacheKey(d.Gateway, d.Topic()), &d)
}

func (m *MemoryCache) GetDepth(gateway schema.GatewayID, symbol string) (schema.Depth, bool) {
	return load[schema.Depth](&m.depths, cacheKey(gateway, symbol))
}

// SetKline keeps only the latest candle of a symbol and interval.
func (m *MemoryCache) SetKline(k schema.Kline) {
	store(&m.klines, cacheKey(k.Gateway, k.Topic()), &k)
}

func (m *MemoryCache) GetKline(gateway schema.GatewayID, symbol string, interval schema.Interval) (schema.Kline, bool) {
	return load[schema.Kline](&m.klines, cacheKey(gateway, symbol+"_"+string(interval)))
}

func (m *MemoryCache) SetTicker(t schema.Ticker) {
	store(&m.tickers, cacheKey(t.Gateway, t.Topic()), &t)
}

func (m *MemoryCache) GetTicker(gateway schema.GatewayID, symbol string) (schema.Ticker, bool) {
	return load[schema.Ticker](&m.tickers, cacheKey(gateway, symbol))
}

func (m *MemoryCache) SetAccount(a schema.Account) {
	store(&m.accounts, string(a.Gateway), &a)
}

func (m *MemoryCache) GetAccount(gateway schema.GatewayID) (schema.Account, bool) {
	return load[schema.Account](&m.accounts, string(gateway))
}

// AddTrade appends to the topic history, evicting the oldest beyond capacity.
func (m *MemoryCache) AddTrade(t schema.Trade) {
	key := cacheKey(t.Gateway, t.Topic())
	m.tradeMu.Lock()
	defer m.tradeMu.Unlock()
	q, ok := m.trades[key]
	if !ok {
		q = new(deque.Deque[schema.Trade])
		m.trades[key] = q
	}
	q.PushBack(t)
	for q.Len() > m.tradeCap {
		q.PopFront()
	}
}

// RecentTrades returns up to n trades, oldest first. n <= 0 returns all.
func (m *MemoryCache) RecentTrades(gateway schema.GatewayID, symbol string, n int) []schema.Trade {
	m.tradeMu.Lock()
	defer m.tradeMu.Unlock()
	q, ok := m.trades[cacheKey(gateway, symbol)]
	if !ok {
		return nil
	}
	if n <= 0 || n > q.Len() {
		n = q.Len()
	}
	out := make([]schema.Trade, 0, n)
	for i := q.Len() - n; i < q.Len(); i++ {
		out = append(out, q.At(i))
	}
	return out
}

// Consumers returns stream consumers that write every event into the cache.
func (m *MemoryCache) Consumers() schema.Consumers {
	return schema.Consumers{ByKind: map[schema.EventKind]schema.Consumer{
		schema.KindDepth: func(ev schema.Event) { m.SetDepth(*ev.(*schema.Depth)) },
		schema.KindKline: func(ev schema.Event) { m.SetKline(*ev.(*schema.Kline)) },
		schema.KindTicker: func(ev schema.Event) {
			m.SetTicker(*ev.(*schema.Ticker))
		},
		schema.KindTickers: func(ev schema.Event) {
			for _, t := range ev.(*schema.Tickers).List {
				m.SetTicker(t)
			}
		},
		schema.KindTrade:   func(ev schema.Event) { m.AddTrade(*ev.(*schema.Trade)) },
		schema.KindAccount: func(ev schema.Event) { m.SetAccount(*ev.(*schema.Account)) },
	}}
}
