package futures_usdt

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
	futuresWSBase = "wss://fstream.binance.com/stream"

	// 服务端每3分钟发ping, 10分钟内无pong断开
	keepAlive = 180 * time.Second

	channelDepth     = "depth"
	channelTrade     = "aggTrade"
	channelKline     = "kline"
	channelMarkPrice = "markPrice"

	defaultStreamDepth = 20
	defaultSpeedMs     = 100
)

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
			channelDepth:     onDepth,
			channelTrade:     onTrade,
			channelKline:     onKline,
			channelMarkPrice: onMarkPrice,
		},
	}
}

// streamNames renders subs as stream names. Futures depth only accepts 5, 10
// or 20 levels and 100, 250 or 500 ms.
func streamNames(subs []schema.Subscription) ([]string, error) {
	names := make([]string, 0, len(subs))
	for _, sub := range subs {
		sym, err := gateway.ToVenueSymbol(schema.BINANCE, sub.Symbol)
		if err != nil {
			return nil, err
		}
		sym = strings.ToLower(sym)
		switch sub.Method {
		case schema.GetDepths:
			names = append(names, fmt.Sprintf("%s@depth%d@%dms", sym, depthLevels(sub.DepthLimit), depthSpeed(sub.SpeedMs)))
		case schema.GetPublicTrades, schema.GetTrades:
			names = append(names, sym+"@"+channelTrade)
		case schema.GetKlines:
			interval := sub.Interval
			if interval == "" {
				interval = schema.Interval1m
			}
			names = append(names, sym+"@kline_"+string(interval))
		case schema.GetFundingRate:
			names = append(names, sym+"@"+channelMarkPrice+"@1s")
		default:
			return nil, fmt.Errorf("binance futures: %s has no stream", sub.Method)
		}
	}
	return names, nil
}

func depthLevels(n int) int {
	switch {
	case n <= 0:
		return defaultStreamDepth
	case n <= 5:
		return 5
	case n <= 10:
		return 10
	}
	return 20
}

func depthSpeed(ms int) int {
	switch {
	case ms <= 0:
		return defaultSpeedMs
	case ms <= 100:
		return 100
	case ms <= 250:
		return 250
	}
	return 500
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

func resolve(msg ws.Message) (string, bool) {
	obj, ok := msg.Object()
	if !ok {
		return "", false
	}
	stream, _ := obj["stream"].(string)
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
	case strings.HasPrefix(name, channelMarkPrice):
		return channelMarkPrice, true
	}
	return "", false
}

type envelope[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

func (e envelope[T]) symbol() string {
	sym, _, _ := strings.Cut(e.Stream, "@")
	return strings.ToUpper(sym)
}

// depthUpdate is the partial book payload; unlike spot it carries the event
// and transaction times.
type depthUpdate struct {
	EventType       string     `json:"e"`
	EventTime       int64      `json:"E"`
	TransactionTime int64      `json:"T"`
	Symbol          string     `json:"s"`
	FirstUpdateID   int64      `json:"U"`
	FinalUpdateID   int64      `json:"u"`
	Bids            [][]string `json:"b"`
	Asks            [][]string `json:"a"`
}

func onDepth(msg ws.Message) ([]schema.Event, error) {
	env, err := exchange.Decode[envelope[depthUpdate]](msg)
	if err != nil {
		return nil, err
	}
	d := env.Data
	limit := 0
	if _, rest, ok := strings.Cut(env.Stream, "@depth"); ok {
		n, _, _ := strings.Cut(rest, "@")
		limit, _ = strconv.Atoi(n)
	}
	return []schema.Event{&schema.Depth{
		Exchange:     schema.BINANCE,
		Market:       schema.FUTURESUSDT,
		Gateway:      gatewayID,
		Symbol:       env.symbol(),
		Bids:         schema.ParseLevels(d.Bids, limit),
		Asks:         schema.ParseLevels(d.Asks, limit),
		VenueTime:    exchange.Millis(d.TransactionTime),
		UpdatedAt:    msg.Received,
		LastUpdateId: strconv.FormatInt(d.FinalUpdateID, 10),
	}}, nil
}

// Keys that differ only in case get their own field, since encoding/json
// falls back to case-insensitive matching.
type aggTrade struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	AggID        int64  `json:"a"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// trade is shared by the aggTrades endpoint and the aggTrade stream.
func (t aggTrade) trade(symbol string) schema.Trade {
	side := schema.OrderSideBuy
	if t.IsBuyerMaker {
		side = schema.OrderSideSell
	}
	return schema.Trade{
		Exchange:  schema.BINANCE,
		Market:    schema.FUTURESUSDT,
		Gateway:   gatewayID,
		Symbol:    symbol,
		TradeID:   strconv.FormatInt(t.AggID, 10),
		Side:      side,
		Price:     exchange.Dec(t.Price),
		Quantity:  exchange.Dec(t.Qty),
		Timestamp: exchange.Millis(t.TradeTime),
		VenueTime: exchange.Millis(t.EventTime),
	}
}

func onTrade(msg ws.Message) ([]schema.Event, error) {
	env, err := exchange.Decode[envelope[aggTrade]](msg)
	if err != nil {
		return nil, err
	}
	t := env.Data.trade(env.symbol())
	return []schema.Event{&t}, nil
}

type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	K         struct {
		Start    int64  `json:"t"`
		Close    int64  `json:"T"`
		Interval string `json:"i"`
		O        string `json:"o"`
		C        string `json:"c"`
		H        string `json:"h"`
		L        string `json:"l"`
		V        string `json:"v"`
		N        int64  `json:"n"`
		X        bool   `json:"x"`
		Q        string `json:"q"`
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
		Market:      schema.FUTURESUSDT,
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

type markPriceEvent struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	MarkPrice   string `json:"p"`
	SettlePrice string `json:"P"`
	FundingRate string `json:"r"`
	NextFunding int64  `json:"T"`
}

// onMarkPrice turns the mark price push into a funding rate event.
func onMarkPrice(msg ws.Message) ([]schema.Event, error) {
	env, err := exchange.Decode[envelope[markPriceEvent]](msg)
	if err != nil {
		return nil, err
	}
	m := env.Data
	return []schema.Event{&schema.FundingRate{
		Gateway:     gatewayID,
		Symbol:      env.symbol(),
		Rate:        exchange.Dec(m.FundingRate),
		NextFunding: exchange.Millis(m.NextFunding),
	}}, nil
}
