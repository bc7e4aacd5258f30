package futures_usdt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

type captured struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   string
}

func newTestGateway(t *testing.T, status int, reply string) (*gateway.Gateway, chan captured) {
	t.Helper()
	got := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- captured{method: r.Method, path: r.URL.Path, query: r.URL.Query(), header: r.Header, body: string(b)}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	g := gateway.New(NewProfile(Endpoints{REST: srv.URL}), gateway.Options{
		Credentials: schema.Credentials{Key: "api-key", Secret: "api-secret"},
	})
	return g, got
}

func TestProfileIdentity(t *testing.T) {
	g := New(gateway.Options{})
	assert.Equal(t, schema.GatewayID("binance_futures_usdt"), g.ID())
	assert.True(t, g.Supports(schema.GetFundingRate))
	assert.True(t, g.Supports(schema.ClosePosition))
	assert.False(t, g.Supports(schema.Withdraw))
}

func TestDepth(t *testing.T) {
	g, got := newTestGateway(t, 200, `{"lastUpdateId":42,"E":1,"T":1700000000000,"bids":[["100.5","1"]],"asks":[["100.6","3"],["100.7","1"]]}`)

	oc := g.Do(context.Background(), schema.GetDepths, schema.Query{Symbol: "BTC/USDT:USDT"})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	req := <-got
	assert.Equal(t, apiV1Depth, req.path)
	assert.Equal(t, "BTCUSDT", req.query.Get("symbol"))
	assert.Equal(t, "20", req.query.Get("limit"))

	d := oc.Result.(*schema.Depth)
	assert.Equal(t, schema.FUTURESUSDT, d.Market)
	assert.Len(t, d.Asks, 2)
	assert.Equal(t, int64(1700000000000), d.VenueTime.UnixMilli())
}

func TestAggTradesWindow(t *testing.T) {
	g, got := newTestGateway(t, 200, `[{"a":5,"p":"30000.1","q":"0.01","T":1700000000000,"m":true}]`)

	start := time.UnixMilli(1700000000000)
	oc := g.Do(context.Background(), schema.GetPublicTrades, schema.Query{Symbol: "BTC/USDT:USDT", Limit: 10, StartTime: start})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	req := <-got
	assert.Equal(t, apiV1AggTrades, req.path)
	assert.Equal(t, "1700000000000", req.query.Get("startTime"))
	assert.Empty(t, req.query.Get("endTime"))

	trades := oc.Result.([]schema.Trade)
	require.Len(t, trades, 1)
	assert.Equal(t, "BTCUSDT", trades[0].Symbol)
	assert.Equal(t, schema.OrderSideSell, trades[0].Side)
}

func TestExchangeInfoPerpetualsOnly(t *testing.T) {
	g, _ := newTestGateway(t, 200, `{"timezone":"UTC","serverTime":1,"symbols":[
		{"symbol":"BTCUSDT","status":"TRADING","contractType":"PERPETUAL","baseAsset":"BTC","quoteAsset":"USDT","marginAsset":"USDT",
		 "pricePrecision":2,"quantityPrecision":3,"filters":[{"filterType":"LOT_SIZE","minQty":"0.001"},{"filterType":"MIN_NOTIONAL","notional":"100"}]},
		{"symbol":"BTCUSDT_240628","status":"TRADING","contractType":"CURRENT_QUARTER","baseAsset":"BTC","quoteAsset":"USDT","marginAsset":"USDT"}]}`)

	oc := g.Do(context.Background(), schema.GetExchangeInfos, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	info := oc.Result.(*schema.ExchangeInfo)
	require.Len(t, info.Symbols, 1)
	s := info.Symbols[0]
	assert.Equal(t, "USDT", s.Margin)
	assert.Equal(t, 3, s.QuantityPrecision)
	assert.Equal(t, "0.001", s.MinQuantity)
	assert.Equal(t, "100", s.MinNotional)
}

func TestFundingRates(t *testing.T) {
	g, got := newTestGateway(t, 200, `[{"symbol":"BTCUSDT","markPrice":"1","lastFundingRate":"0.0001","nextFundingTime":1700003600000},
		{"symbol":"ETHUSDT","markPrice":"1","lastFundingRate":"-0.0002","nextFundingTime":1700003600000}]`)

	oc := g.Do(context.Background(), schema.GetFundingRates, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	assert.Empty(t, (<-got).query.Get("symbol"))

	rates := oc.Result.([]schema.FundingRate)
	require.Len(t, rates, 2)
	assert.True(t, decimal.RequireFromString("-0.0002").Equal(rates[1].Rate))
	assert.Equal(t, int64(1700003600000), rates[0].NextFunding.UnixMilli())
}

func TestPositionsSkipFlat(t *testing.T) {
	g, got := newTestGateway(t, 200, `[
		{"symbol":"BTCUSDT","positionAmt":"-0.5","entryPrice":"30000","unRealizedProfit":"12.5","leverage":"10","positionSide":"BOTH","updateTime":5},
		{"symbol":"ETHUSDT","positionAmt":"0","entryPrice":"0","unRealizedProfit":"0","leverage":"20","positionSide":"BOTH"}]`)

	oc := g.Do(context.Background(), schema.GetPositions, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	req := <-got
	assert.Equal(t, apiV2PositionRisk, req.path)
	assert.Len(t, req.query.Get("signature"), 64)

	ps := oc.Result.([]schema.Position)
	require.Len(t, ps, 1)
	assert.Equal(t, schema.OrderSideSell, ps[0].Side)
	assert.True(t, decimal.RequireFromString("0.5").Equal(ps[0].Quantity))
	assert.Equal(t, 10, ps[0].Leverage)
}

func TestUpdateLeverage(t *testing.T) {
	g, got := newTestGateway(t, 200, `{"symbol":"BTCUSDT","leverage":15,"maxNotionalValue":"1000000"}`)

	oc := g.Do(context.Background(), schema.UpdateLeverage, schema.Query{Symbol: "BTC/USDT:USDT", Leverage: 15})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	req := <-got
	assert.Equal(t, http.MethodPost, req.method)
	form, err := url.ParseQuery(req.body)
	require.NoError(t, err)
	assert.Equal(t, "15", form.Get("leverage"))
	assert.Equal(t, 15, oc.Result.(*schema.Leverage).Leverage)

	oc = g.Do(context.Background(), schema.UpdateLeverage, schema.Query{Symbol: "BTC/USDT:USDT"})
	assert.Equal(t, rest.KindError, oc.Kind)
}

func TestAccountLockedIsWalletMinusAvailable(t *testing.T) {
	g, _ := newTestGateway(t, 200, `{"updateTime":1,"assets":[
		{"asset":"USDT","walletBalance":"100","availableBalance":"60"},
		{"asset":"BNB","walletBalance":"0","availableBalance":"0"}]}`)

	oc := g.Do(context.Background(), schema.GetAccount, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	acc := oc.Result.(*schema.Account)
	require.Len(t, acc.Balances, 1)
	assert.True(t, decimal.NewFromInt(60).Equal(acc.Balances[0].Free))
	assert.True(t, decimal.NewFromInt(40).Equal(acc.Balances[0].Locked))
}

func TestClosePositionIsReduceOnlyOpposite(t *testing.T) {
	g, got := newTestGateway(t, 200, `{"symbol":"BTCUSDT","orderId":8,"clientOrderId":"c","price":"0","avgPrice":"30010","origQty":"0.5","executedQty":"0.5","cumQuote":"15005","status":"FILLED","type":"MARKET","side":"BUY","reduceOnly":true,"updateTime":9}`)

	oc := g.Do(context.Background(), schema.ClosePosition, schema.Query{Order: &schema.OrderRequest{
		Symbol:   "BTC/USDT:USDT",
		Side:     schema.OrderSideSell,
		Quantity: decimal.RequireFromString("0.5"),
	}})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	form, err := url.ParseQuery((<-got).body)
	require.NoError(t, err)
	assert.Equal(t, "BUY", form.Get("side"))
	assert.Equal(t, "MARKET", form.Get("type"))
	assert.Equal(t, "true", form.Get("reduceOnly"))
	assert.Equal(t, "0.5", form.Get("quantity"))

	o := oc.Result.(*schema.Order)
	assert.True(t, o.ReduceOnly)
	assert.True(t, decimal.NewFromInt(30010).Equal(o.Price))
}

func TestClosePositionNeedsQuantity(t *testing.T) {
	g, _ := newTestGateway(t, 200, `{}`)
	oc := g.Do(context.Background(), schema.ClosePosition, schema.Query{Order: &schema.OrderRequest{Symbol: "BTC/USDT:USDT", Side: schema.OrderSideBuy}})
	assert.Equal(t, rest.KindError, oc.Kind)
}

func TestLimitOrderDefaultsGTC(t *testing.T) {
	g, got := newTestGateway(t, 200, `{"symbol":"BTCUSDT","orderId":1,"status":"NEW","type":"LIMIT","side":"SELL","price":"31000","origQty":"1"}`)

	oc := g.Do(context.Background(), schema.SubmitOrder, schema.Query{Order: &schema.OrderRequest{
		Symbol:   "BTC/USDT:USDT",
		Side:     schema.OrderSideSell,
		Type:     schema.OrderTypeLimit,
		Price:    decimal.NewFromInt(31000),
		Quantity: decimal.NewFromInt(1),
	}})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	req := <-got
	assert.Equal(t, apiV1Order, req.path)
	assert.Equal(t, "api-key", req.header.Get("X-MBX-APIKEY"))
	form, err := url.ParseQuery(req.body)
	require.NoError(t, err)
	assert.Equal(t, "GTC", form.Get("timeInForce"))
	assert.Equal(t, "31000", form.Get("price"))
	assert.Empty(t, form.Get("reduceOnly"))
	assert.Equal(t, schema.OrderStatusOpen, oc.Result.(*schema.Order).Status)
}

func TestCancelUnknownOrderIsBenign(t *testing.T) {
	g, got := newTestGateway(t, 400, `{"code":-2011,"msg":"Unknown order sent."}`)

	oc := g.Do(context.Background(), schema.CancelOrder, schema.Query{Symbol: "BTC/USDT:USDT", OrderID: "9"})
	assert.Equal(t, rest.KindFailure, oc.Kind)
	assert.True(t, oc.Benign)

	req := <-got
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "9", req.query.Get("orderId"))
}
