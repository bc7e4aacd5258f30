package futures_usdt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws/wstest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

func TestStreamNamesSnapDepth(t *testing.T) {
	names, err := streamNames([]schema.Subscription{
		{Method: schema.GetDepths, Symbol: "BTC/USDT:USDT", DepthLimit: 7, SpeedMs: 200},
		{Method: schema.GetDepths, Symbol: "ETHUSDT"},
		{Method: schema.GetPublicTrades, Symbol: "BTCUSDT"},
		{Method: schema.GetKlines, Symbol: "BTCUSDT", Interval: schema.Interval5m},
		{Method: schema.GetFundingRate, Symbol: "BTCUSDT"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"btcusdt@depth10@250ms",
		"ethusdt@depth20@100ms",
		"btcusdt@aggTrade",
		"btcusdt@kline_5m",
		"btcusdt@markPrice@1s",
	}, names)

	_, err = streamNames([]schema.Subscription{{Method: schema.GetTicker, Symbol: "BTCUSDT"}})
	assert.Error(t, err)
}

func TestResolveFutures(t *testing.T) {
	cases := map[string]string{
		`{"stream":"btcusdt@depth5@100ms","data":{}}`: channelDepth,
		`{"stream":"btcusdt@aggTrade","data":{}}`:     channelTrade,
		`{"stream":"btcusdt@kline_1m","data":{}}`:     channelKline,
		`{"stream":"btcusdt@markPrice@1s","data":{}}`: channelMarkPrice,
	}
	for raw, want := range cases {
		got, ok := resolve(ws.NewMessage([]byte(raw)))
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := resolve(ws.NewMessage([]byte(`{"result":null,"id":3}`)))
	assert.False(t, ok)
}

func TestOnDepthUsesShortKeys(t *testing.T) {
	evs, err := onDepth(ws.NewMessage([]byte(`{"stream":"btcusdt@depth5@100ms","data":{"e":"depthUpdate","E":2,"T":1,"s":"BTCUSDT","U":1,"u":77,"pu":0,
		"b":[["10","1"],["9","1"]],"a":[["11","2"]]}}`)))
	require.NoError(t, err)
	d := evs[0].(*schema.Depth)
	assert.Equal(t, "BTCUSDT", d.Symbol)
	assert.Equal(t, "77", d.LastUpdateId)
	assert.Len(t, d.Bids, 2)
	assert.Equal(t, int64(1), d.VenueTime.UnixMilli())
}

func TestOnMarkPrice(t *testing.T) {
	evs, err := onMarkPrice(ws.NewMessage([]byte(`{"stream":"btcusdt@markPrice@1s","data":{"e":"markPriceUpdate","E":1,"s":"BTCUSDT","p":"30000","r":"0.00010000","T":1700003600000}}`)))
	require.NoError(t, err)
	fr := evs[0].(*schema.FundingRate)
	assert.Equal(t, schema.KindFundingRate, fr.Kind())
	assert.Equal(t, "BTCUSDT", fr.Topic())
	assert.True(t, decimal.RequireFromString("0.0001").Equal(fr.Rate))
}

func TestFundingStreamEndToEnd(t *testing.T) {
	d := &wstest.Dialer{}
	g := gateway.New(NewProfile(Endpoints{Stream: "wss://test/fstream"}), gateway.Options{Dialer: d, Grace: -1})
	t.Cleanup(func() { _ = g.Close() })

	got := make(chan *schema.FundingRate, 1)
	err := g.Subscribe(context.Background(), []schema.Subscription{{Method: schema.GetFundingRate, Symbol: "BTC/USDT:USDT"}}, schema.Consumers{
		ByKind: map[schema.EventKind]schema.Consumer{
			schema.KindFundingRate: func(ev schema.Event) { got <- ev.(*schema.FundingRate) },
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "wss://test/fstream", d.URL(0))

	var sub subscriptionMessage
	require.NoError(t, json.Unmarshal([]byte(d.Last().Sent()[0]), &sub))
	assert.Equal(t, []string{"btcusdt@markPrice@1s"}, sub.Params)

	d.Last().Text(`{"stream":"btcusdt@markPrice@1s","data":{"s":"BTCUSDT","p":"1","r":"0.0003","T":5}}`)
	select {
	case fr := <-got:
		assert.Equal(t, schema.GatewayID("binance_futures_usdt"), fr.Gateway)
	case <-time.After(time.Second):
		t.Fatal("no funding rate event")
	}
}
