package amm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

type rpcCall struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func newNode(t *testing.T, result string) (*gateway.Gateway, chan rpcCall) {
	t.Helper()
	got := make(chan rpcCall, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var c rpcCall
		_ = json.Unmarshal(b, &c)
		got <- c
		_, _ = w.Write([]byte(result))
	}))
	t.Cleanup(srv.Close)
	g := gateway.New(NewProfile(srv.URL), gateway.Options{
		Credentials: schema.Credentials{Address: "0x1111111111111111111111111111111111111111"},
	})
	return g, got
}

func word(n int64) string {
	s := decimal.NewFromInt(n).BigInt().Text(16)
	return strings.Repeat("0", wordHex-len(s)) + s
}

func TestBlockNumber(t *testing.T) {
	g, got := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"0x2540be3ff"}`)

	oc := g.Do(context.Background(), schema.GetTime, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	call := <-got
	assert.Equal(t, "2.0", call.JSONRPC)
	assert.Equal(t, "eth_blockNumber", call.Method)
	assert.Equal(t, uint64(9999999999), oc.Result.(*schema.ServerTime).Block)
}

func TestNativeBalance(t *testing.T) {
	// 1.5 BNB
	g, got := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"0x14d1120d7b160000"}`)

	oc := g.Do(context.Background(), schema.GetAccount, schema.Query{})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	call := <-got
	assert.Equal(t, "eth_getBalance", call.Method)
	assert.JSONEq(t, `"0x1111111111111111111111111111111111111111"`, string(call.Params[0]))

	acc := oc.Result.(*schema.Account)
	require.Len(t, acc.Balances, 1)
	assert.Equal(t, "BNB", acc.Balances[0].Asset)
	assert.True(t, decimal.RequireFromString("1.5").Equal(acc.Balances[0].Free))
}

func TestTokenBalanceUsesBalanceOf(t *testing.T) {
	g, got := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"0x`+word(2000000000000000000)+`"}`)

	oc := g.Do(context.Background(), schema.GetAccount, schema.Query{Extra: map[string]any{ExtraToken: "0xtoken"}})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	call := <-got
	assert.Equal(t, "eth_call", call.Method)
	var args callArgs
	require.NoError(t, json.Unmarshal(call.Params[0], &args))
	assert.Equal(t, "0xtoken", args.To)
	assert.True(t, strings.HasPrefix(args.Data, selectorBalanceOf))
	assert.Len(t, args.Data, len(selectorBalanceOf)+wordHex)
	assert.True(t, decimal.NewFromInt(2).Equal(oc.Result.(*schema.Account).Balances[0].Free))
}

func TestAccountNeedsAddress(t *testing.T) {
	g := gateway.New(NewProfile("http://127.0.0.1:1"), gateway.Options{})
	oc := g.Do(context.Background(), schema.GetAccount, schema.Query{})
	assert.Equal(t, rest.BuildError, oc.ErrorKind())
	assert.ErrorIs(t, oc.Err, errNoAddress)
}

func TestReservesDecode(t *testing.T) {
	result := "0x" + word(32) + word(4) + word(100) + word(250) + word(0) + word(7)
	g, got := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"`+result+`"}`)

	oc := g.Do(context.Background(), schema.GetDepths, schema.Query{
		Symbol: "CAKE/WBNB",
		Extra:  map[string]any{ExtraContract: "0xreader", ExtraCallData: "0xdeadbeef"},
	})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
	<-got

	d := oc.Result.(*schema.Depth)
	assert.Equal(t, "CAKE-WBNB", d.Symbol)
	require.Len(t, d.Bids, 1, "pools with an empty reserve0 are skipped")
	assert.True(t, decimal.RequireFromString("2.5").Equal(d.Bids[0].Price))
	assert.True(t, decimal.NewFromInt(100).Equal(d.Bids[0].Quantity))
}

func TestReservesNeedCallData(t *testing.T) {
	g, _ := newNode(t, `{}`)
	oc := g.Do(context.Background(), schema.GetDepths, schema.Query{})
	assert.ErrorIs(t, oc.Err, errNoContract)
}

func TestRPCErrorIsDecodeError(t *testing.T) {
	g, _ := newNode(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`)
	oc := g.Do(context.Background(), schema.GetTime, schema.Query{})
	assert.Equal(t, rest.KindError, oc.Kind)
	assert.Equal(t, rest.DecodeError, oc.ErrorKind())
	assert.Contains(t, oc.Err.Error(), "header not found")
}

func TestNoStream(t *testing.T) {
	g := New(gateway.Options{})
	err := g.Subscribe(context.Background(), []schema.Subscription{{Method: schema.GetDepths, Symbol: "CAKE/WBNB"}}, schema.Consumers{})
	assert.ErrorIs(t, err, gateway.ErrNoStream)
}

func TestReservesRejectOversizedLength(t *testing.T) {
	result := "0x" + word(32) + strings.Repeat("f", wordHex) + word(100) + word(250)
	g, _ := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"`+result+`"}`)

	var fired int32
	var last rest.Outcome
	done := make(chan struct{}, 4)
	record := func(o rest.Outcome) {
		atomic.AddInt32(&fired, 1)
		last = o
		done <- struct{}{}
	}
	g.GetDepths(context.Background(), schema.Query{
		Symbol: "CAKE/WBNB",
		Extra:  map[string]any{ExtraContract: "0xreader", ExtraCallData: "0xdeadbeef"},
	}, rest.HandlerFuncs{Success: record, Failure: record, Error: record, Timeout: record})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("no callback for a malformed reserves reply")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.Equal(t, rest.DecodeError, last.ErrorKind())
	assert.Contains(t, last.Err.Error(), "exceeds payload")
}

func TestSubmitOrderSendsRawTx(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	g, got := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"`+hash+`"}`)

	oc := g.Do(context.Background(), schema.SubmitOrder, schema.Query{
		Order: &schema.OrderRequest{Symbol: "CAKE/WBNB"},
		Extra: map[string]any{ExtraRawTx: "0xf86c0a8502540be400"},
	})
	require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)

	call := <-got
	assert.Equal(t, "eth_sendRawTransaction", call.Method)
	require.Len(t, call.Params, 1)
	assert.JSONEq(t, `"0xf86c0a8502540be400"`, string(call.Params[0]))

	o := oc.Result.(*schema.Order)
	assert.Equal(t, hash, o.OrderID)
	assert.Equal(t, schema.OrderStatusPending, o.Status)
}

func TestSubmitOrderNeedsRawTx(t *testing.T) {
	g, _ := newNode(t, `{}`)
	oc := g.Do(context.Background(), schema.SubmitOrder, schema.Query{Order: &schema.OrderRequest{Symbol: "CAKE/WBNB"}})
	assert.Equal(t, rest.BuildError, oc.ErrorKind())
	assert.ErrorIs(t, oc.Err, errNoRawTx)
}

func TestGetOrderFromReceipt(t *testing.T) {
	hash := "0x" + strings.Repeat("cd", 32)
	cases := []struct {
		name   string
		result string
		want   schema.OrderStatus
	}{
		{"filled", `{"transactionHash":"` + hash + `","blockNumber":"0x1","status":"0x1","logs":[{"address":"0xpair"}]}`, schema.OrderStatusFilled},
		{"reverted", `{"transactionHash":"` + hash + `","blockNumber":"0x1","status":"0x0","logs":[]}`, schema.OrderStatusFailed},
		{"no logs", `{"transactionHash":"` + hash + `","blockNumber":"0x1","status":"0x1","logs":[]}`, schema.OrderStatusFailed},
		{"not mined", `null`, schema.OrderStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, got := newNode(t, `{"jsonrpc":"2.0","id":1,"result":`+tc.result+`}`)

			oc := g.Do(context.Background(), schema.GetOrder, schema.Query{OrderID: hash})
			require.Equal(t, rest.KindSuccess, oc.Kind, oc.Err)
			call := <-got
			assert.Equal(t, "eth_getTransactionReceipt", call.Method)
			assert.JSONEq(t, `"`+hash+`"`, string(call.Params[0]))
			o := oc.Result.(*schema.Order)
			assert.Equal(t, tc.want, o.Status)
			assert.Equal(t, hash, o.OrderID)
		})
	}
}

func TestGetOrderNeedsHash(t *testing.T) {
	g, _ := newNode(t, `{}`)
	oc := g.Do(context.Background(), schema.GetOrder, schema.Query{})
	assert.ErrorIs(t, oc.Err, errNoTxHash)
}
