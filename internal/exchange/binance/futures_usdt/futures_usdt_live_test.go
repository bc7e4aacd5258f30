//go:build integration

package futures_usdt

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

func TestBinanceFuturesREST_FundingRate(t *testing.T) {
	logger.Init()
	logger.SetLogLevel(logger.DEBUG)
	log.Printf("=== Binance Futures REST 资金费率 测试 ===")

	g := New(gateway.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	oc := g.Do(ctx, schema.GetFundingRate, schema.Query{Symbol: "BTC/USDT:USDT"})
	if oc.Kind != rest.KindSuccess {
		t.Fatalf("funding rate error: %v", oc.Err)
	}
	fr := oc.Result.(*schema.FundingRate)
	log.Printf("资金费率: %s=%s, 下次结算=%s", fr.Symbol, fr.Rate, fr.NextFunding.Format(time.RFC3339))
}

func TestBinanceFuturesWS_Depth(t *testing.T) {
	logger.Init()
	logger.SetLogLevel(logger.DEBUG)
	log.Printf("=== Binance Futures WS Depth 测试 ===")

	g := New(gateway.Options{})
	defer g.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	got := make(chan *schema.Depth, 1)
	err := g.Subscribe(ctx, []schema.Subscription{{Method: schema.GetDepths, Symbol: "BTC/USDT:USDT", DepthLimit: 5}}, schema.Consumers{
		ByKind: map[schema.EventKind]schema.Consumer{
			schema.KindDepth: func(ev schema.Event) {
				select {
				case got <- ev.(*schema.Depth):
				default:
				}
			},
		},
	})
	if err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	select {
	case d := <-got:
		log.Printf("WS Depth: %s Bids=%d, Asks=%d", d.Symbol, len(d.Bids), len(d.Asks))
	case <-ctx.Done():
		t.Fatalf("超时未收到深度数据")
	}
}
