package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/config"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/sdk"
)

func main() {
	path := flag.String("config", "quick_start/gateways.yaml", "gateway config file")
	flag.Parse()

	fmt.Println("=== Rhino Gateway 快速开始 ===")
	logger.Init()

	// 1. 读取配置并创建SDK
	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	gw, err := sdk.NewFromConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. REST: 每个网关查询一次服务器时间
	for _, id := range gw.ActiveGateways() {
		oc, err := gw.Do(ctx, id, schema.GetTime, schema.Query{Timeout: 5 * time.Second})
		if err != nil {
			continue
		}
		if oc.Kind != rest.KindSuccess {
			fmt.Printf("%s 服务器时间查询失败: %s %v\n", id, oc.Kind, oc.Err)
			continue
		}
		st, ok := oc.Result.(*schema.ServerTime)
		if !ok {
			continue
		}
		if st.Block > 0 {
			fmt.Printf("%s 最新区块: %d\n", id, st.Block)
		} else {
			fmt.Printf("%s 服务器时间: %s\n", id, st.Time.Format(time.RFC3339))
		}
	}

	// 3. 订阅配置中的推送, 数据写入内存缓存
	fmt.Println("订阅配置中的推送...")
	if err := gw.SubscribeConfigured(ctx, schema.Consumers{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("启动数据监控循环，每3秒打印一次...")
	fmt.Println("按 Ctrl+C 退出程序")

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			fmt.Printf("\n=== %s ===\n", time.Now().Format("2006-01-02 15:04:05"))
			for _, gc := range cfg.Gateways {
				printGateway(gw, gc)
			}
			for _, hb := range gw.Stale(30 * time.Second) {
				fmt.Printf("超过30秒没有数据: %s %s\n", hb.Gateway, hb.Key)
			}
			fmt.Println("---")
		case <-quit:
			fmt.Println("\n收到退出信号，正在关闭...")
			return
		}
	}
}

func printGateway(gw *sdk.SDK, gc config.GatewayConfig) {
	id := gc.ID()
	for _, sub := range gc.Subscriptions {
		switch sub.Method {
		case schema.GetDepths:
			if depth, ok := gw.WatchDepth(id, sub.Symbol); ok && len(depth.Bids) > 0 && len(depth.Asks) > 0 {
				fmt.Printf("%s %s深度: 买单%d档, 卖单%d档, 买一=%s, 卖一=%s\n",
					id, sub.Symbol, len(depth.Bids), len(depth.Asks), depth.Bids[0].Price, depth.Asks[0].Price)
			} else {
				fmt.Printf("%s %s深度: 暂无数据\n", id, sub.Symbol)
			}
		case schema.GetKlines:
			if kline, ok := gw.WatchKline(id, sub.Symbol, sub.Interval); ok {
				fmt.Printf("%s %s K线: 开盘=%s, 最高=%s, 最低=%s, 收盘=%s, 成交量=%s\n",
					id, sub.Symbol, kline.Open, kline.High, kline.Low, kline.Close, kline.Volume)
			} else {
				fmt.Printf("%s %s K线: 暂无数据\n", id, sub.Symbol)
			}
		case schema.GetPublicTrades:
			trades := gw.RecentTrades(id, sub.Symbol, 1)
			if len(trades) > 0 {
				fmt.Printf("%s %s 最新成交: 价格=%s, 数量=%s\n", id, sub.Symbol, trades[0].Price, trades[0].Quantity)
			} else {
				fmt.Printf("%s %s 成交: 暂无数据\n", id, sub.Symbol)
			}
		case schema.GetTicker:
			if t, ok := gw.WatchTicker(id, sub.Symbol); ok {
				fmt.Printf("%s %s 行情: 最新价=%s\n", id, sub.Symbol, t.Price)
			} else {
				fmt.Printf("%s %s 行情: 暂无数据\n", id, sub.Symbol)
			}
		}
	}
}
