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

func TestMexcSpotREST_Ticker(t *testing.T) {
	logger.Init()
	logger.SetLogLevel(logger.DEBUG)
	log.Printf("=== MEXC Spot REST 最优挂单测试 ===")

	g := New(gateway.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	oc := g.Do(ctx, schema.GetDepths, schema.Query{Symbol: "BTC/USDT", DepthLimit: 1})
	if oc.Kind != rest.KindSuccess {
		t.Fatalf("bookTicker error: %v", oc.Err)
	}
	d := oc.Result.(*schema.Depth)
	log.Printf("[%s] 买一:%v 卖一:%v", d.Symbol, d.Bids[0].Price, d.Asks[0].Price)
}

func TestMexcSpotWS_Deals(t *testing.T) {
	logger.Init()
	logger.SetLogLevel(logger.DEBUG)
	log.Printf("=== MEXC Spot WS 成交测试 ===")

	g := New(gateway.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	got := make(chan *schema.Trade, 1)
	err := g.Subscribe(ctx, []schema.Subscription{{Method: schema.GetPublicTrades, Symbol: "BTC/USDT"}}, schema.Consumers{
		ByKind: map[schema.EventKind]schema.Consumer{
			schema.KindTrade: func(ev schema.Event) {
				select {
				case got <- ev.(*schema.Trade):
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
	case tr := <-got:
		log.Printf("[%s] %s %v@%v", tr.Symbol, tr.Side, tr.Quantity, tr.Price)
	case <-ctx.Done():
		t.Fatalf("未收到成交推送")
	}
}
