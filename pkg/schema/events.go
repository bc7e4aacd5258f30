package schema

// EventKind tags a canonical event so the router can look up its consumer.
type EventKind string

const (
	KindDepth         EventKind = "depth"
	KindTrade         EventKind = "trade"
	KindOrder         EventKind = "order"
	KindPosition      EventKind = "position"
	KindAccount       EventKind = "account"
	KindKline         EventKind = "kline"
	KindTicker        EventKind = "ticker"
	KindTickers       EventKind = "tickers"
	KindFundingRate   EventKind = "funding_rate"
	KindLeverage      EventKind = "leverage"
	KindWithdraw      EventKind = "withdraw"
	KindPendingOrders EventKind = "pending_orders"
	KindSessionStart  EventKind = "session_start"
)

// Event is implemented by every record a stream can deliver.
// Topic identifies the instrument (or account) the event is about.
type Event interface {
	Kind() EventKind
	Topic() string
}

func (d *Depth) Kind() EventKind         { return KindDepth }
func (d *Depth) Topic() string           { return d.Symbol }
func (t *Trade) Kind() EventKind         { return KindTrade }
func (t *Trade) Topic() string           { return t.Symbol }
func (o *Order) Kind() EventKind         { return KindOrder }
func (o *Order) Topic() string           { return o.Symbol }
func (p *Position) Kind() EventKind      { return KindPosition }
func (p *Position) Topic() string        { return p.Symbol }
func (a *Account) Kind() EventKind       { return KindAccount }
func (a *Account) Topic() string         { return string(a.Gateway) }
func (k *Kline) Kind() EventKind         { return KindKline }
func (k *Kline) Topic() string           { return k.Symbol + "_" + string(k.Interval) }
func (t *Ticker) Kind() EventKind        { return KindTicker }
func (t *Ticker) Topic() string          { return t.Symbol }
func (t *Tickers) Kind() EventKind       { return KindTickers }
func (t *Tickers) Topic() string         { return "all" }
func (f *FundingRate) Kind() EventKind   { return KindFundingRate }
func (f *FundingRate) Topic() string     { return f.Symbol }
func (l *Leverage) Kind() EventKind      { return KindLeverage }
func (l *Leverage) Topic() string        { return l.Symbol }
func (w *WithdrawRecord) Kind() EventKind      { return KindWithdraw }
func (w *WithdrawRecord) Topic() string        { return w.Asset }
func (p *PendingOrders) Kind() EventKind { return KindPendingOrders }
func (p *PendingOrders) Topic() string   { return p.Symbol }
func (s *SessionStart) Kind() EventKind  { return KindSessionStart }
func (s *SessionStart) Topic() string    { return string(s.Gateway) }

// Consumer receives events of one kind.
type Consumer func(Event)

// HeartbeatConsumer receives the liveness record of each delivered event.
type HeartbeatConsumer func(Heartbeat)

// Consumers is what a caller binds when subscribing.
type Consumers struct {
	ByKind    map[EventKind]Consumer
	Heartbeat HeartbeatConsumer
}
