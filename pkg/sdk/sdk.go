package sdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/cache"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/config"
	binancefutures "github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange/binance/futures_usdt"
	binancespot "github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange/binance/spot"
	bscamm "github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange/bsc/amm"
	gatespot "github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange/gate/spot"
	mexcspot "github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange/mexc/spot"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/manager"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/interfaces"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// ErrUnsupportedVenue is returned for a venue/market with no profile.
var ErrUnsupportedVenue = errors.New("sdk: unsupported venue")

// profileFunc builds the venue profile of one gateway config.
type profileFunc func(gc config.GatewayConfig) gateway.VenueProfile

var venues = map[schema.GatewayID]profileFunc{
	schema.NewGatewayID(schema.BINANCE, schema.SPOT): func(gc config.GatewayConfig) gateway.VenueProfile {
		return binancespot.NewProfile(binancespot.Endpoints{REST: gc.RESTURL, Stream: gc.StreamURL})
	},
	schema.NewGatewayID(schema.BINANCE, schema.FUTURESUSDT): func(gc config.GatewayConfig) gateway.VenueProfile {
		return binancefutures.NewProfile(binancefutures.Endpoints{REST: gc.RESTURL, Stream: gc.StreamURL})
	},
	schema.NewGatewayID(schema.MEXC, schema.SPOT): func(gc config.GatewayConfig) gateway.VenueProfile {
		return mexcspot.NewProfile(mexcspot.Endpoints{REST: gc.RESTURL, Stream: gc.StreamURL})
	},
	schema.NewGatewayID(schema.GATE, schema.SPOT): func(gc config.GatewayConfig) gateway.VenueProfile {
		return gatespot.NewProfile(gatespot.Endpoints{REST: gc.RESTURL, Stream: gc.StreamURL})
	},
	schema.NewGatewayID(schema.BSC, schema.AMM): func(gc config.GatewayConfig) gateway.VenueProfile {
		return bscamm.NewProfile(gc.RPCURL)
	},
}

// Venues lists the gateway ids the SDK can build.
func Venues() []schema.GatewayID {
	out := make([]schema.GatewayID, 0, len(venues))
	for id := range venues {
		out = append(out, id)
	}
	return out
}

// Option customizes an SDK.
type Option func(*SDK)

// WithDialer replaces the websocket dialer of every gateway built later.
func WithDialer(d ws.Dialer) Option {
	return func(s *SDK) { s.dialer = d }
}

// WithTradeHistory sets how many trades the cache keeps per symbol.
func WithTradeHistory(n int) Option {
	return func(s *SDK) { s.tradeHistory = n }
}

// SDK provides a high-level interface over the configured gateways.
// Stream events land in the in-memory cache unless the caller binds its
// own consumers.
type SDK struct {
	manager    *manager.Manager
	cache      *cache.MemoryCache
	infos      *cache.ExchangeInfoCache
	heartbeats *cache.HeartbeatMonitor
	subs       *cache.SubscriptionManager

	dialer       ws.Dialer
	tradeHistory int
	// 配置存储
	configs map[schema.GatewayID]config.GatewayConfig
}

// NewSDK creates an SDK with no gateways.
func NewSDK(opts ...Option) *SDK {
	s := &SDK{
		manager:    manager.NewManager(),
		infos:      cache.NewExchangeInfoCache(),
		heartbeats: cache.NewHeartbeatMonitor(),
		subs:       cache.NewSubscriptionManager(),
		configs:    make(map[schema.GatewayID]config.GatewayConfig),
	}
	for _, o := range opts {
		o(s)
	}
	s.cache = cache.NewMemoryCache(s.tradeHistory)
	return s
}

// NewFromConfig configures the logger and builds every gateway of cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) (*SDK, error) {
	logger.Configure(cfg.LoggerOptions())
	s := NewSDK(opts...)
	for _, gc := range cfg.Gateways {
		if _, err := s.AddGateway(gc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddGateway builds and registers the gateway of gc. Re-adding an id
// replaces the old instance.
func (s *SDK) AddGateway(gc config.GatewayConfig) (*gateway.Gateway, error) {
	if gc.Market == "" {
		gc.Market = schema.SPOT
	}
	id := gc.ID()
	build, ok := venues[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVenue, id)
	}
	if gc.Credentials.IsZero() && gc.Credentials.Address == "" {
		gc.Credentials = config.FromEnv(gc.Venue)
	}

	g := gateway.New(build(gc), gateway.Options{
		Proxy:       gc.Proxy,
		Timeout:     gc.Timeout.Std(),
		RateLimit:   gc.RateLimit,
		Burst:       gc.Burst,
		KeepAlive:   gc.KeepAlive.Std(),
		Grace:       gc.Grace.Std(),
		Credentials: gc.Credentials,
		Dialer:      s.dialer,
	})
	s.manager.Add(g)
	s.subs.Clear(id)
	s.configs[id] = gc
	logger.Info("网关 %s 已创建, 支持 %d 个方法", id, len(g.Methods()))
	return g, nil
}

// RemoveGateway closes the gateway and forgets its subscriptions.
func (s *SDK) RemoveGateway(id schema.GatewayID) error {
	delete(s.configs, id)
	s.subs.Clear(id)
	return s.manager.Remove(id)
}

// Gateway returns the registered gateway id.
func (s *SDK) Gateway(id schema.GatewayID) (interfaces.Gateway, bool) {
	return s.manager.Get(id)
}

// ActiveGateways lists the registered gateway ids.
func (s *SDK) ActiveGateways() []schema.GatewayID { return s.manager.IDs() }

// IsGatewayActive reports whether id is registered.
func (s *SDK) IsGatewayActive(id schema.GatewayID) bool {
	_, ok := s.manager.Get(id)
	return ok
}

// Invoke runs a method by name asynchronously; see gateway.Gateway.Invoke.
func (s *SDK) Invoke(ctx context.Context, id schema.GatewayID, method string, q schema.Query, h rest.Handler) error {
	return s.manager.Invoke(ctx, id, method, q, h)
}

// Do runs a method synchronously.
func (s *SDK) Do(ctx context.Context, id schema.GatewayID, method schema.Method, q schema.Query) (rest.Outcome, error) {
	return s.manager.Do(ctx, id, method, q)
}

// Subscribe adds subs to gateway id. Subscriptions the SDK already tracks
// are skipped. Events are written to the cache and then passed to extra.
func (s *SDK) Subscribe(ctx context.Context, id schema.GatewayID, subs []schema.Subscription, extra schema.Consumers) error {
	g, ok := s.manager.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", manager.ErrGatewayNotFound, id)
	}
	added := s.subs.Add(id, subs)
	if len(added) == 0 {
		logger.Debug("网关 %s 没有新的订阅", id)
		return nil
	}
	if err := g.Subscribe(ctx, added, s.consumers(extra)); err != nil {
		s.subs.Remove(id, added)
		return err
	}
	return nil
}

// SubscribeConfigured subscribes every gateway to the subscriptions listed
// in its config.
func (s *SDK) SubscribeConfigured(ctx context.Context, extra schema.Consumers) error {
	plan := make(map[schema.GatewayID][]schema.Subscription)
	for id, gc := range s.configs {
		if added := s.subs.Add(id, gc.Subscriptions); len(added) > 0 {
			plan[id] = added
		}
	}
	if len(plan) == 0 {
		return nil
	}
	return s.manager.SubscribeAll(ctx, plan, s.consumers(extra))
}

// Subscriptions lists what the SDK tracks for id.
func (s *SDK) Subscriptions(id schema.GatewayID) []schema.Subscription {
	return s.subs.List(id)
}

// consumers chains the cache writers in front of the caller's consumers.
func (s *SDK) consumers(extra schema.Consumers) schema.Consumers {
	base := s.cache.Consumers()
	out := schema.Consumers{ByKind: make(map[schema.EventKind]schema.Consumer, len(base.ByKind))}
	for kind, c := range base.ByKind {
		out.ByKind[kind] = chain(c, extra.ByKind[kind])
	}
	for kind, c := range extra.ByKind {
		if _, ok := out.ByKind[kind]; !ok {
			out.ByKind[kind] = c
		}
	}
	record := s.heartbeats.Consumer()
	out.Heartbeat = record
	if extra.Heartbeat != nil {
		out.Heartbeat = func(h schema.Heartbeat) {
			record(h)
			extra.Heartbeat(h)
		}
	}
	return out
}

func chain(first, next schema.Consumer) schema.Consumer {
	if next == nil {
		return first
	}
	return func(ev schema.Event) {
		first(ev)
		next(ev)
	}
}

// RefreshExchangeInfo reloads the trading rules of id when older than ttl.
func (s *SDK) RefreshExchangeInfo(ctx context.Context, id schema.GatewayID, ttl time.Duration) (schema.ExchangeInfo, error) {
	g, ok := s.manager.Get(id)
	if !ok {
		return schema.ExchangeInfo{}, fmt.Errorf("%w: %s", manager.ErrGatewayNotFound, id)
	}
	fetch := func(ctx context.Context) (*schema.ExchangeInfo, error) {
		oc := g.Do(ctx, schema.GetExchangeInfos, schema.Query{})
		if oc.Kind != rest.KindSuccess {
			return nil, oc.Err
		}
		info, ok := oc.Result.(*schema.ExchangeInfo)
		if !ok {
			return nil, fmt.Errorf("unexpected exchange info result %T", oc.Result)
		}
		return info, nil
	}
	if err := s.infos.RefreshIfExpired(ctx, id, fetch, ttl); err != nil {
		return schema.ExchangeInfo{}, err
	}
	info, _ := s.infos.Get(id)
	return info, nil
}

// SymbolInfo returns the cached trading rule of a venue symbol.
func (s *SDK) SymbolInfo(id schema.GatewayID, venueSymbol string) (schema.Symbol, bool) {
	return s.infos.Symbol(id, venueSymbol)
}

// WatchDepth returns the cached depth of symbol (BASE/QUOTE or venue format).
func (s *SDK) WatchDepth(id schema.GatewayID, symbol string) (schema.Depth, bool) {
	sym, ok := s.venueSymbol(id, symbol)
	if !ok {
		return schema.Depth{}, false
	}
	return s.cache.GetDepth(id, sym)
}

// WatchKline returns the latest cached candle of symbol and interval.
func (s *SDK) WatchKline(id schema.GatewayID, symbol string, interval schema.Interval) (schema.Kline, bool) {
	sym, ok := s.venueSymbol(id, symbol)
	if !ok {
		return schema.Kline{}, false
	}
	return s.cache.GetKline(id, sym, interval)
}

// WatchTicker returns the cached ticker of symbol.
func (s *SDK) WatchTicker(id schema.GatewayID, symbol string) (schema.Ticker, bool) {
	sym, ok := s.venueSymbol(id, symbol)
	if !ok {
		return schema.Ticker{}, false
	}
	return s.cache.GetTicker(id, sym)
}

// RecentTrades returns up to n cached trades of symbol, oldest first.
func (s *SDK) RecentTrades(id schema.GatewayID, symbol string, n int) []schema.Trade {
	sym, ok := s.venueSymbol(id, symbol)
	if !ok {
		return nil
	}
	return s.cache.RecentTrades(id, sym, n)
}

func (s *SDK) venueSymbol(id schema.GatewayID, symbol string) (string, bool) {
	g, ok := s.manager.Get(id)
	if !ok {
		return "", false
	}
	sym, err := gateway.ToVenueSymbol(g.Name(), symbol)
	if err != nil {
		logger.Warn("格式化币对符号失败 %s: %v", symbol, err)
		return "", false
	}
	return sym, true
}

// Stale lists topics whose last event is older than maxAge.
func (s *SDK) Stale(maxAge time.Duration) []schema.Heartbeat {
	return s.heartbeats.Stale(maxAge)
}

func (s *SDK) Cache() *cache.MemoryCache               { return s.cache }
func (s *SDK) Heartbeats() *cache.HeartbeatMonitor     { return s.heartbeats }
func (s *SDK) ExchangeInfos() *cache.ExchangeInfoCache { return s.infos }

// Close closes every gateway.
func (s *SDK) Close() error {
	return s.manager.CloseAll()
}
