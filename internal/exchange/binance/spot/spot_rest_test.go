package spot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

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

func TestDepthMapsLevels(t *testing.T) {
	g, got := newTestGateway(t, 200, `{"lastUpdateId":42,"bids":[["100.5","1"],["100.4","2"]],"asks":[["100.6","3"]]}`)

	oc := g.Do(context.Background(), schema.GetDepths, schema.Query{Symbol: "BTC/USDT", DepthLimit: 5})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	req := <-got
	assert.Equal(t, apiV3Depth, req.path)
	assert.Equal(t, "BTCUSDT", req.query.Get("symbol"))
	assert.Equal(t, "5", req.query.Get("limit"))

	d := oc.Result.(*schema.Depth)
	assert.Equal(t, "BTCUSDT", d.Symbol)
	assert.Equal(t, schema.GatewayID("binance_spot"), d.Gateway)
	require.Len(t, d.Bids, 2)
	assert.True(t, decimal.RequireFromString("100.5").Equal(d.Bids[0].Price))
	assert.Equal(t, "42", d.LastUpdateId)
}

func TestServerTime(t *testing.T) {
	g, _ := newTestGateway(t, 200, `{"serverTime":1700000000123}`)
	oc := g.Do(context.Background(), schema.GetTime, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind)
	assert.Equal(t, int64(1700000000123), oc.Result.(*schema.ServerTime).Time.UnixMilli())
}

func TestExchangeInfoFiltersAndPrecision(t *testing.T) {
	g, _ := newTestGateway(t, 200, `{"timezone":"UTC","serverTime":1,"symbols":[
		{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT","isSpotTradingAllowed":true,
		 "filters":[{"filterType":"PRICE_FILTER","tickSize":"0.01000000"},{"filterType":"LOT_SIZE","minQty":"0.00001000","stepSize":"0.00001000"},{"filterType":"NOTIONAL","minNotional":"5.00000000"}]},
		{"symbol":"OLDUSDT","status":"BREAK","baseAsset":"OLD","quoteAsset":"USDT","isSpotTradingAllowed":true}]}`)

	oc := g.Do(context.Background(), schema.GetExchangeInfos, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	info := oc.Result.(*schema.ExchangeInfo)
	require.Len(t, info.Symbols, 1)
	s := info.Symbols[0]
	assert.Equal(t, 2, s.PricePrecision)
	assert.Equal(t, 5, s.QuantityPrecision)
	assert.Equal(t, "5.00000000", s.MinNotional)
}

func TestSubmitOrderIsSignedForm(t *testing.T) {
	g, got := newTestGateway(t, 200, `{"symbol":"BTCUSDT","orderId":7,"clientOrderId":"abc","price":"0","origQty":"1","executedQty":"1","cummulativeQuoteQty":"100","status":"FILLED","type":"MARKET","side":"BUY"}`)

	oc := g.Do(context.Background(), schema.SubmitOrder, schema.Query{Order: &schema.OrderRequest{
		Symbol:   "BTC/USDT",
		Side:     schema.OrderSideBuy,
		Type:     schema.OrderTypeMarket,
		Quantity: decimal.NewFromInt(1),
	}})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	req := <-got
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "api-key", req.header.Get("X-MBX-APIKEY"))
	form, err := url.ParseQuery(req.body)
	require.NoError(t, err)
	assert.Equal(t, "BUY", form.Get("side"))
	assert.Equal(t, "MARKET", form.Get("type"))
	assert.Len(t, form.Get("newClientOrderId"), 32)
	assert.NotEmpty(t, form.Get("timestamp"))
	assert.Len(t, form.Get("signature"), 64)

	o := oc.Result.(*schema.Order)
	assert.Equal(t, schema.OrderStatusFilled, o.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(o.Price), "market order price falls back to average")
}

func TestCancelUnknownOrderIsBenignFailure(t *testing.T) {
	g, got := newTestGateway(t, 400, `{"code":-2011,"msg":"Unknown order sent."}`)

	oc := g.Do(context.Background(), schema.CancelOrder, schema.Query{Symbol: "BTC/USDT", OrderID: "9"})
	assert.Equal(t, rest.KindFailure, oc.Kind)
	assert.True(t, oc.Benign)

	req := <-got
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "9", req.query.Get("orderId"))
	assert.NotEmpty(t, req.query.Get("signature"))
}

func TestCancelOrderNeedsID(t *testing.T) {
	g, _ := newTestGateway(t, 200, `{}`)
	oc := g.Do(context.Background(), schema.CancelOrder, schema.Query{Symbol: "BTC/USDT"})
	assert.Equal(t, rest.BuildError, oc.ErrorKind())
	assert.ErrorIs(t, oc.Err, errNoOrderID)
}

func TestAccountBalances(t *testing.T) {
	g, got := newTestGateway(t, 200, `{"updateTime":5,"balances":[{"asset":"BTC","free":"0.5","locked":"0.1"}]}`)
	oc := g.Do(context.Background(), schema.GetAccount, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	<-got

	acc := oc.Result.(*schema.Account)
	require.Len(t, acc.Balances, 1)
	assert.Equal(t, "BTC", acc.Balances[0].Asset)
	assert.True(t, decimal.RequireFromString("0.1").Equal(acc.Balances[0].Locked))
}

func TestKlineRows(t *testing.T) {
	g, _ := newTestGateway(t, 200, `[[1700000000000,"1","3","0.5","2","10",1700000059999,"20",4,"0","0","0"]]`)
	oc := g.Do(context.Background(), schema.GetKlines, schema.Query{Symbol: "BTC/USDT", Interval: schema.Interval1m})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	ks := oc.Result.([]schema.Kline)
	require.Len(t, ks, 1)
	assert.True(t, decimal.NewFromInt(2).Equal(ks[0].Close))
	assert.Equal(t, int64(4), ks[0].TradeNum)
	assert.True(t, ks[0].IsFinal)
}

func TestAllTickers(t *testing.T) {
	g, got := newTestGateway(t, 200, `[{"symbol":"BTCUSDT","lastPrice":"1"},{"symbol":"ETHUSDT","lastPrice":"2"}]`)
	oc := g.Do(context.Background(), schema.GetTicker, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	assert.Empty(t, (<-got).query.Get("symbol"))
	assert.Len(t, oc.Result.(*schema.Tickers).List, 2)
}

func TestUnsupportedMethods(t *testing.T) {
	g := New(gateway.Options{})
	assert.False(t, g.Supports(schema.Withdraw))
	assert.False(t, g.Supports(schema.GetFundingRate))
	assert.True(t, g.Supports(schema.CancelOrders))
}
