package spot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/router"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

const (
	spotWSBase = "wss://stream.binance.com:9443/stream"

	// 多久发一次 pong 保活
	keepAlive = 700 * time.Second

	// channel families
	channelDepth   = "depth"
	channelTrade   = "aggTrade"
	channelKline   = "kline"
	channelTicker  = "ticker"
	channelTickers = "!ticker@arr"

	defaultStreamDepth = 20
	defaultSpeedMs     = 100
)

// subscriptionMessage is the combined-stream control frame.
type subscriptionMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint32   `json:"id"`
}

func streamProfile(url string) *gateway.StreamProfile {
	return &gateway.StreamProfile{
		URL:       url,
		KeepAlive: keepAlive,
		Frames:    frames,
		Resolve:   resolve,
		Normalizers: map[string]router.Normalizer{
			channelDepth:   onDepth,
			channelTrade:   onTrade,
			channelKline:   onKline,
			channelTicker:  onTicker,
			channelTickers: onTickers,
		},
	}
}

// streamNames renders subs as stream names, e.g. btcusdt@depth20@100ms.
func streamNames(subs []schema.Subscription) ([]string, error) {
	var names []string
	allTickers := false
	for _, sub := range subs {
		if sub.Method == schema.GetTicker && sub.AllTickers {
			if !allTickers {
				names = append(names, channelTickers)
				allTickers = true
			}
			continue
		}
		sym, err := gateway.ToVenueSymbol(schema.BINANCE, sub.Symbol)
		if err != nil {
			return nil, err
		}
		sym = strings.ToLower(sym)
		switch sub.Method {
		case schema.GetDepths:
			limit := sub.DepthLimit
			if limit <= 0 {
				limit = defaultStreamDepth
			}
			speed := sub.SpeedMs
			if speed <= 0 {
				speed = defaultSpeedMs
			}
			names = append(names, fmt.Sprintf("%s@depth%d@%dms", sym, limit, speed))
		case schema.GetPublicTrades, schema.GetTrades:
			names = append(names, sym+"@"+channelTrade)
		case schema.GetKlines:
			interval := sub.Interval
			if interval == "" {
				interval = schema.Interval1m
			}
			names = append(names, sym+"@kline_"+string(interval))
		case schema.GetTicker:
			names = append(names, sym+"@"+channelTicker)
		default:
			return nil, fmt.Errorf("binance spot: %s has no stream", sub.Method)
		}
	}
	return names, nil
}

func frames(subs []schema.Subscription) (ws.Frames, error) {
	names, err := streamNames(subs)
	if err != nil {
		return ws.Frames{}, err
	}
	if len(names) == 0 {
		return ws.Frames{}, nil
	}
	return ws.Frames{
		Subscribe:   []ws.Frame{ws.JSONFrame(subscriptionMessage{Method: "SUBSCRIBE", Params: names, ID: exchange.RequestID()})},
		Unsubscribe: []ws.Frame{ws.JSONFrame(subscriptionMessage{Method: "UNSUBSCRIBE", Params: names, ID: exchange.RequestID()})},
	}, nil
}

// resolve maps the "stream" field to its channel family. Subscription acks
// ({"result":null,"id":1}) carry no stream and are skipped.
func resolve(msg ws.Message) (string, bool) {
	obj, ok := msg.Object()
	if !ok {
		return "", false
	}
	stream, ok := obj["stream"].(string)
	if !ok || stream == "" {
		return "", false
	}
	if stream == channelTickers {
		return channelTickers, true
	}
	_, name, ok := strings.Cut(stream, "@")
	if !ok {
		return "", false
	}
	switch {
	case strings.HasPrefix(name, channelDepth):
		return channelDepth, true
	case name == channelTrade:
		return channelTrade, true
	case strings.HasPrefix(name, channelKline):
		return channelKline, true
	case name == channelTicker:
		return channelTicker, true
	}
	return "", false
}

type envelope[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

// symbol returns the upper-case symbol prefix of the stream name.
func (e envelope[T]) symbol() string {
	sym, _, _ := strings.Cut(e.Stream, "@")
	return strings.ToUpper(sym)
}

type partialDepth struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func onDepth(msg ws.Message) ([]schema.Event, error) {
	env, err := exchange.Decode[envelope[partialDepth]](msg)
	if err != nil {
		return nil, err
	}
	limit := 0
	if _, rest, ok := strings.Cut(env.Stream, "@depth"); ok {
		n, _, _ := strings.Cut(rest, "@")
		limit, _ = strconv.Atoi(n)
	}
	return []schema.Event{&schema.Depth{
		Exchange:     schema.BINANCE,
		Market:       schema.SPOT,
		Gateway:      gatewayID,
		Symbol:       env.symbol(),
		Bids:         schema.ParseLevels(env.Data.Bids, limit),
		Asks:         schema.ParseLevels(env.Data.Asks, limit),
		UpdatedAt:    msg.Received,
		LastUpdateId: strconv.FormatInt(env.Data.LastUpdateID, 10),
	}}, nil
}

// Binance payloads pair keys that differ only in case ("e"/"E", "l"/"L").
// encoding/json matches keys case-insensitively, so each twin gets a field.
type aggTrade struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggID        int64  `json:"a"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
	Ignore       bool   `json:"M"`
}

func onTrade(msg ws.Message) ([]schema.Event, error) {
	env, err := exchange.Decode[envelope[aggTrade]](msg)
	if err != nil {
		return nil, err
	}
	t := env.Data
	return []schema.Event{&schema.Trade{
		Exchange:  schema.BINANCE,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Symbol:    env.symbol(),
		TradeID:   strconv.FormatInt(t.AggID, 10),
		Side:      takerSide(t.IsBuyerMaker),
		Price:     exchange.Dec(t.Price),
		Quantity:  exchange.Dec(t.Qty),
		Timestamp: exchange.Millis(t.TradeTime),
		VenueTime: exchange.Millis(t.EventTime),
	}}, nil
}

type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	K         struct {
		Start    int64  `json:"t"` // Kline start time
		Close    int64  `json:"T"` // Kline close time
		Interval string `json:"i"`
		O        string `json:"o"`
		C        string `json:"c"`
		H        string `json:"h"`
		L        string `json:"l"`
		V        string `json:"v"` // Base asset volume
		N        int64  `json:"n"` // Number of trades
		X        bool   `json:"x"` // Is this kline closed?
		Q        string `json:"q"` // Quote asset volume
		LastID   int64  `json:"L"`
		TakerV   string `json:"V"`
		TakerQ   string `json:"Q"`
	} `json:"k"`
}

func onKline(msg ws.Message) ([]schema.Event, error) {
	env, err := exchange.Decode[envelope[klineEvent]](msg)
	if err != nil {
		return nil, err
	}
	k := env.Data.K
	return []schema.Event{&schema.Kline{
		Exchange:    schema.BINANCE,
		Market:      schema.SPOT,
		Gateway:     gatewayID,
		Symbol:      env.symbol(),
		Interval:    schema.Interval(k.Interval),
		OpenTime:    exchange.Millis(k.Start),
		CloseTime:   exchange.Millis(k.Close),
		Open:        exchange.Dec(k.O),
		High:        exchange.Dec(k.H),
		Low:         exchange.Dec(k.L),
		Close:       exchange.Dec(k.C),
		Volume:      exchange.Dec(k.V),
		QuoteVolume: exchange.Dec(k.Q),
		TradeNum:    k.N,
		IsFinal:     k.X,
	}}, nil
}

type tickerEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	O         string `json:"o"`
	H         string `json:"h"`
	L         string `json:"l"`
	C         string `json:"c"`
	V         string `json:"v"`
	Q         string `json:"q"`
	OpenTime  int64  `json:"O"`
	CloseTime int64  `json:"C"`
	LastID    int64  `json:"L"`
	LastQty   string `json:"Q"`
}

func (t tickerEvent) ticker() schema.Ticker {
	return schema.Ticker{
		Exchange:  schema.BINANCE,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Symbol:    strings.ToUpper(t.Symbol),
		Open:      exchange.Dec(t.O),
		High:      exchange.Dec(t.H),
		Low:       exchange.Dec(t.L),
		Price:     exchange.Dec(t.C),
		Volume:    exchange.Dec(t.V),
		QuoteVol:  exchange.Dec(t.Q),
		Timestamp: exchange.Millis(t.EventTime),
	}
}

func onTicker(msg ws.Message) ([]schema.Event, error) {
	env, err := exchange.Decode[envelope[tickerEvent]](msg)
	if err != nil {
		return nil, err
	}
	t := env.Data.ticker()
	return []schema.Event{&t}, nil
}

func onTickers(msg ws.Message) ([]schema.Event, error) {
	env, err := exchange.Decode[envelope[[]tickerEvent]](msg)
	if err != nil {
		return nil, err
	}
	all := &schema.Tickers{Gateway: gatewayID, List: make([]schema.Ticker, 0, len(env.Data))}
	for _, t := range env.Data {
		all.List = append(all.List, t.ticker())
	}
	return []schema.Event{all}, nil
}
