//go:build integration

package spot

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

func TestBinanceSpotREST_Depth(t *testing.T) {
	logger.Init()
	logger.SetLogLevel(logger.DEBUG)
	log.Printf("=== Binance Spot REST Depth 测试 ===")

	g := New(gateway.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	oc := g.Do(ctx, schema.GetDepths, schema.Query{Symbol: "BTC/USDT", DepthLimit: 5})
	if oc.Kind != rest.KindSuccess {
		t.Fatalf("depth error: %v", oc.Err)
	}
	d := oc.Result.(*schema.Depth)
	if len(d.Bids) == 0 && len(d.Asks) == 0 {
		t.Fatalf("empty orderbook")
	}
	log.Printf("REST Depth: Bids=%d, Asks=%d, 最佳买价=%v, 最佳卖价=%v",
		len(d.Bids), len(d.Asks), d.Bids[0].Price, d.Asks[0].Price)
}

func TestBinanceSpotWS_Depth(t *testing.T) {
	logger.Init()
	logger.SetLogLevel(logger.DEBUG)
	log.Printf("=== Binance Spot WS Depth 测试 ===")

	g := New(gateway.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	got := make(chan *schema.Depth, 1)
	err := g.Subscribe(ctx, []schema.Subscription{{Method: schema.GetDepths, Symbol: "BTC/USDT", DepthLimit: 5}}, schema.Consumers{
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
	defer g.Close()

	select {
	case d := <-got:
		log.Printf("[%s] 买一:%v 卖一:%v", d.Symbol, d.Bids[0].Price, d.Asks[0].Price)
	case <-ctx.Done():
		t.Fatalf("未收到深度推送")
	}
}
