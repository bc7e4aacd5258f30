package spot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/router"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

const (
	wsURL = "wss://wbs.mexc.com/ws"

	// 服务端 60 秒无数据会断开
	keepAlive = 30 * time.Second

	channelBookTicker = "spot@public.bookTicker.v3.api"
	channelDeals      = "spot@public.deals.v3.api"
	channelDepth      = "spot@public.limit.depth.v3.api"
	channelKline      = "spot@public.kline.v3.api"

	defaultStreamDepth = 20
)

var pingFrame = ws.TextFrame(`{"method":"PING"}`)

var streamIntervals = map[schema.Interval]string{
	schema.Interval1m:  "Min1",
	schema.Interval5m:  "Min5",
	schema.Interval15m: "Min15",
	schema.Interval1h:  "Min60",
	schema.Interval4h:  "Hour4",
	schema.Interval1d:  "Day1",
}

type subscriptionMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

func streamProfile(url string) *gateway.StreamProfile {
	return &gateway.StreamProfile{
		URL:            url,
		KeepAlive:      keepAlive,
		KeepAliveFrame: &pingFrame,
		Frames:         frames,
		Resolve:        resolve,
		Normalizers: map[string]router.Normalizer{
			channelBookTicker: onBookTicker,
			channelDeals:      onDeals,
			channelDepth:      onDepth,
			channelKline:      onKline,
		},
	}
}

// channels renders subs as MEXC channel names. Ticker subscriptions use the
// best bid/ask channel.
func channels(subs []schema.Subscription) ([]string, error) {
	var out []string
	for _, sub := range subs {
		sym, err := gateway.ToVenueSymbol(schema.MEXC, sub.Symbol)
		if err != nil {
			return nil, err
		}
		switch sub.Method {
		case schema.GetTicker:
			out = append(out, channelBookTicker+"@"+sym)
		case schema.GetPublicTrades, schema.GetTrades:
			out = append(out, channelDeals+"@"+sym)
		case schema.GetDepths:
			limit := sub.DepthLimit
			if limit <= 0 {
				limit = defaultStreamDepth
			}
			out = append(out, fmt.Sprintf("%s@%s@%d", channelDepth, sym, limit))
		case schema.GetKlines:
			interval := sub.Interval
			if interval == "" {
				interval = schema.Interval1m
			}
			venue, ok := streamIntervals[interval]
			if !ok {
				return nil, fmt.Errorf("mexc spot: unsupported interval %s", interval)
			}
			out = append(out, channelKline+"@"+sym+"@"+venue)
		default:
			return nil, fmt.Errorf("mexc spot: %s has no stream", sub.Method)
		}
	}
	return out, nil
}

func frames(subs []schema.Subscription) (ws.Frames, error) {
	names, err := channels(subs)
	if err != nil {
		return ws.Frames{}, err
	}
	if len(names) == 0 {
		return ws.Frames{}, nil
	}
	return ws.Frames{
		Subscribe:   []ws.Frame{ws.JSONFrame(subscriptionMessage{Method: "SUBSCRIPTION", Params: names})},
		Unsubscribe: []ws.Frame{ws.JSONFrame(subscriptionMessage{Method: "UNSUBSCRIPTION", Params: names})},
	}, nil
}

// resolve reads the "c" field. Acks and PONG replies have none.
func resolve(msg ws.Message) (string, bool) {
	obj, ok := msg.Object()
	if !ok {
		return "", false
	}
	c, ok := obj["c"].(string)
	if !ok || c == "" {
		return "", false
	}
	family, _, _ := strings.Cut(c, "@")
	switch family {
	case channelBookTicker, channelDeals, channelDepth, channelKline:
		return family, true
	}
	return "", false
}

type push[T any] struct {
	Channel string `json:"c"`
	Symbol  string `json:"s"`
	Time    int64  `json:"t"`
	Data    T      `json:"d"`
}

type bookTickerData struct {
	AskQty   string `json:"A"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	BidPrice string `json:"b"`
}

func onBookTicker(msg ws.Message) ([]schema.Event, error) {
	p, err := exchange.Decode[push[bookTickerData]](msg)
	if err != nil {
		return nil, err
	}
	return []schema.Event{&schema.Depth{
		Exchange:  schema.MEXC,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Symbol:    p.Symbol,
		Bids:      schema.ParseLevels([][]string{{p.Data.BidPrice, p.Data.BidQty}}, 1),
		Asks:      schema.ParseLevels([][]string{{p.Data.AskPrice, p.Data.AskQty}}, 1),
		VenueTime: exchange.Millis(p.Time),
		UpdatedAt: msg.Received,
	}}, nil
}

type dealsData struct {
	Deals []struct {
		Side  int    `json:"S"`
		Price string `json:"p"`
		Qty   string `json:"v"`
		Time  int64  `json:"t"`
	} `json:"deals"`
}

func onDeals(msg ws.Message) ([]schema.Event, error) {
	p, err := exchange.Decode[push[dealsData]](msg)
	if err != nil {
		return nil, err
	}
	events := make([]schema.Event, 0, len(p.Data.Deals))
	for _, d := range p.Data.Deals {
		side := schema.OrderSideSell
		if d.Side == 1 {
			side = schema.OrderSideBuy
		}
		events = append(events, &schema.Trade{
			Exchange:  schema.MEXC,
			Market:    schema.SPOT,
			Gateway:   gatewayID,
			Symbol:    p.Symbol,
			Side:      side,
			Price:     exchange.Dec(d.Price),
			Quantity:  exchange.Dec(d.Qty),
			Timestamp: exchange.Millis(d.Time),
			VenueTime: exchange.Millis(p.Time),
		})
	}
	return events, nil
}

type level struct {
	Price string `json:"p"`
	Qty   string `json:"v"`
}

func levels(in []level, limit int) []schema.PriceLevel {
	rows := make([][]string, 0, len(in))
	for _, l := range in {
		rows = append(rows, []string{l.Price, l.Qty})
	}
	return schema.ParseLevels(rows, limit)
}

type depthData struct {
	Asks    []level `json:"asks"`
	Bids    []level `json:"bids"`
	Version string  `json:"r"`
}

func onDepth(msg ws.Message) ([]schema.Event, error) {
	p, err := exchange.Decode[push[depthData]](msg)
	if err != nil {
		return nil, err
	}
	// spot@public.limit.depth.v3.api@BTCUSDT@20
	limit := 0
	if i := strings.LastIndex(p.Channel, "@"); i >= 0 {
		limit, _ = strconv.Atoi(p.Channel[i+1:])
	}
	return []schema.Event{&schema.Depth{
		Exchange:     schema.MEXC,
		Market:       schema.SPOT,
		Gateway:      gatewayID,
		Symbol:       p.Symbol,
		Bids:         levels(p.Data.Bids, limit),
		Asks:         levels(p.Data.Asks, limit),
		VenueTime:    exchange.Millis(p.Time),
		UpdatedAt:    msg.Received,
		LastUpdateId: p.Data.Version,
	}}, nil
}

type klineData struct {
	K struct {
		Start    int64                   `json:"t"`
		End      int64                   `json:"T"`
		Interval string                  `json:"i"`
		O        exchange.StringOrNumber `json:"o"`
		C        exchange.StringOrNumber `json:"c"`
		H        exchange.StringOrNumber `json:"h"`
		L        exchange.StringOrNumber `json:"l"`
		V        exchange.StringOrNumber `json:"v"`
		A        exchange.StringOrNumber `json:"a"` // 成交额
	} `json:"k"`
}

func canonicalInterval(venue string) schema.Interval {
	for k, v := range streamIntervals {
		if v == venue {
			return k
		}
	}
	return schema.Interval(venue)
}

func onKline(msg ws.Message) ([]schema.Event, error) {
	p, err := exchange.Decode[push[klineData]](msg)
	if err != nil {
		return nil, err
	}
	k := p.Data.K
	dec := func(s exchange.StringOrNumber) decimal.Decimal { return exchange.Dec(s.String()) }
	return []schema.Event{&schema.Kline{
		Exchange:    schema.MEXC,
		Market:      schema.SPOT,
		Gateway:     gatewayID,
		Symbol:      p.Symbol,
		Interval:    canonicalInterval(k.Interval),
		OpenTime:    time.Unix(k.Start, 0),
		CloseTime:   time.Unix(k.End, 0),
		Open:        dec(k.O),
		High:        dec(k.H),
		Low:         dec(k.L),
		Close:       dec(k.C),
		Volume:      dec(k.V),
		QuoteVolume: dec(k.A),
	}}, nil
}
