package spot

import (
	"encoding/json"
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
	wsURL = "wss://api.gateio.ws/ws/v4/"

	keepAlive = 15 * time.Second

	channelOrderBook    = "spot.order_book"
	channelTrades       = "spot.trades"
	channelCandlesticks = "spot.candlesticks"
	channelTickers      = "spot.tickers"
	channelPing         = "spot.ping"

	defaultStreamDepth = 20
	defaultSpeedMs     = 100
)

// request is a Gate v4 control frame. Time is stamped when it is marshaled.
type request struct {
	Channel string   `json:"channel"`
	Event   string   `json:"event,omitempty"`
	Payload []string `json:"payload,omitempty"`
}

func (r request) MarshalJSON() ([]byte, error) {
	type plain request
	return json.Marshal(struct {
		Time int64 `json:"time"`
		plain
	}{Time: time.Now().Unix(), plain: plain(r)})
}

var pingFrame = ws.JSONFrame(request{Channel: channelPing})

func streamProfile(url string) *gateway.StreamProfile {
	return &gateway.StreamProfile{
		URL:            url,
		KeepAlive:      keepAlive,
		KeepAliveFrame: &pingFrame,
		Frames:         frames,
		Resolve:        resolve,
		Normalizers: map[string]router.Normalizer{
			channelOrderBook:    onOrderBook,
			channelTrades:       onTrade,
			channelCandlesticks: onCandlestick,
			channelTickers:      onTicker,
		},
	}
}

// requests renders one control frame per order book or candlestick
// subscription. Trades and tickers share a frame each.
func requests(subs []schema.Subscription, event string) ([]request, error) {
	var out []request
	var trades, tickers []string
	for _, sub := range subs {
		pair, err := gateway.ToVenueSymbol(schema.GATE, sub.Symbol)
		if err != nil {
			return nil, err
		}
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
			out = append(out, request{Channel: channelOrderBook, Event: event,
				Payload: []string{pair, strconv.Itoa(limit), fmt.Sprintf("%dms", speed)}})
		case schema.GetKlines:
			interval := sub.Interval
			if interval == "" {
				interval = schema.Interval1m
			}
			out = append(out, request{Channel: channelCandlesticks, Event: event,
				Payload: []string{string(interval), pair}})
		case schema.GetPublicTrades, schema.GetTrades:
			trades = append(trades, pair)
		case schema.GetTicker:
			tickers = append(tickers, pair)
		default:
			return nil, fmt.Errorf("gate spot: %s has no stream", sub.Method)
		}
	}
	if len(trades) > 0 {
		out = append(out, request{Channel: channelTrades, Event: event, Payload: trades})
	}
	if len(tickers) > 0 {
		out = append(out, request{Channel: channelTickers, Event: event, Payload: tickers})
	}
	return out, nil
}

func frames(subs []schema.Subscription) (ws.Frames, error) {
	sub, err := requests(subs, "subscribe")
	if err != nil {
		return ws.Frames{}, err
	}
	unsub, _ := requests(subs, "unsubscribe")
	var fr ws.Frames
	for i := range sub {
		fr.Subscribe = append(fr.Subscribe, ws.JSONFrame(sub[i]))
		fr.Unsubscribe = append(fr.Unsubscribe, ws.JSONFrame(unsub[i]))
	}
	return fr, nil
}

// resolve accepts only "update" pushes; subscribe acks and spot.pong are skipped.
func resolve(msg ws.Message) (string, bool) {
	obj, ok := msg.Object()
	if !ok {
		return "", false
	}
	if event, _ := obj["event"].(string); event != "update" {
		return "", false
	}
	channel, _ := obj["channel"].(string)
	switch channel {
	case channelOrderBook, channelTrades, channelCandlesticks, channelTickers:
		return channel, true
	}
	return "", false
}

type push[T any] struct {
	TimeMs  int64  `json:"time_ms"`
	Channel string `json:"channel"`
	Result  T      `json:"result"`
}

type bookSnapshot struct {
	T            int64      `json:"t"`
	LastUpdateID int64      `json:"lastUpdateId"`
	Symbol       string     `json:"s"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func onOrderBook(msg ws.Message) ([]schema.Event, error) {
	p, err := exchange.Decode[push[bookSnapshot]](msg)
	if err != nil {
		return nil, err
	}
	b := p.Result
	return []schema.Event{&schema.Depth{
		Exchange:     schema.GATE,
		Market:       schema.SPOT,
		Gateway:      gatewayID,
		Symbol:       b.Symbol,
		Bids:         schema.ParseLevels(b.Bids, 0),
		Asks:         schema.ParseLevels(b.Asks, 0),
		VenueTime:    exchange.Millis(b.T),
		UpdatedAt:    msg.Received,
		LastUpdateId: strconv.FormatInt(b.LastUpdateID, 10),
	}}, nil
}

type tradePush struct {
	ID           int64  `json:"id"`
	CreateTimeMs string `json:"create_time_ms"`
	Side         string `json:"side"`
	CurrencyPair string `json:"currency_pair"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
}

func onTrade(msg ws.Message) ([]schema.Event, error) {
	p, err := exchange.Decode[push[tradePush]](msg)
	if err != nil {
		return nil, err
	}
	t := p.Result
	return []schema.Event{&schema.Trade{
		Exchange:  schema.GATE,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Symbol:    t.CurrencyPair,
		TradeID:   strconv.FormatInt(t.ID, 10),
		Side:      schema.OrderSide(t.Side),
		Price:     exchange.Dec(t.Price),
		Quantity:  exchange.Dec(t.Amount),
		Timestamp: exchange.Seconds(msToSeconds(t.CreateTimeMs)),
		VenueTime: exchange.Millis(p.TimeMs),
	}}, nil
}

type candlePush struct {
	T      string `json:"t"`
	Quote  string `json:"v"`
	Close  string `json:"c"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Open   string `json:"o"`
	Name   string `json:"n"` // 1m_BTC_USDT
	Amount string `json:"a"`
	Closed bool   `json:"w"`
}

func onCandlestick(msg ws.Message) ([]schema.Event, error) {
	p, err := exchange.Decode[push[candlePush]](msg)
	if err != nil {
		return nil, err
	}
	c := p.Result
	interval, pair, ok := strings.Cut(c.Name, "_")
	if !ok {
		return nil, fmt.Errorf("gate spot: bad candlestick name %q", c.Name)
	}
	return []schema.Event{&schema.Kline{
		Exchange:    schema.GATE,
		Market:      schema.SPOT,
		Gateway:     gatewayID,
		Symbol:      pair,
		Interval:    schema.Interval(interval),
		OpenTime:    exchange.Seconds(c.T),
		Open:        exchange.Dec(c.Open),
		High:        exchange.Dec(c.High),
		Low:         exchange.Dec(c.Low),
		Close:       exchange.Dec(c.Close),
		Volume:      exchange.Dec(c.Amount),
		QuoteVolume: exchange.Dec(c.Quote),
		IsFinal:     c.Closed,
	}}, nil
}

func onTicker(msg ws.Message) ([]schema.Event, error) {
	p, err := exchange.Decode[push[ticker]](msg)
	if err != nil {
		return nil, err
	}
	t := p.Result.canonical(exchange.Millis(p.TimeMs))
	return []schema.Event{&t}, nil
}
