package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeName defines supported exchange.
type ExchangeName string

const (
	BINANCE ExchangeName = "binance"
	GATE    ExchangeName = "gate"
	MEXC    ExchangeName = "mexc"
	BSC     ExchangeName = "bsc"
)

// MarketType categorizes market segments.
type MarketType string

const (
	SPOT        MarketType = "spot"
	FUTURESUSDT MarketType = "futures_usdt" // USDT-margined
	FUTURESCOIN MarketType = "futures_coin" // coin-margined
	AMM         MarketType = "amm"          // 链上 AMM
)

// GatewayID identifies one gateway instance, e.g. "binance_spot".
type GatewayID string

// NewGatewayID joins exchange and market into a gateway id.
func NewGatewayID(exchange ExchangeName, market MarketType) GatewayID {
	return GatewayID(string(exchange) + "_" + string(market))
}

// Interval for Kline/candles.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// MaxDepthLevels caps every Depth side.
const MaxDepthLevels = 50

// PriceLevel represents a single order book level.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Depth represents order book snapshot.
type Depth struct {
	Exchange     ExchangeName `json:"exchange"`
	Market       MarketType   `json:"market"`
	Gateway      GatewayID    `json:"gateway"`
	Symbol       string       `json:"symbol"`
	Bids         []PriceLevel `json:"bids"` // 买盘,由大到小排序
	Asks         []PriceLevel `json:"asks"` // 卖盘,由小到大排序
	VenueTime    time.Time    `json:"venueTime"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	LastUpdateId string       `json:"rawVersion,omitempty"`
}

// ParseLevels converts [[price, qty], ...] rows into at most limit levels.
// limit <= 0 or above MaxDepthLevels falls back to MaxDepthLevels.
func ParseLevels(rows [][]string, limit int) []PriceLevel {
	if limit <= 0 || limit > MaxDepthLevels {
		limit = MaxDepthLevels
	}
	out := make([]PriceLevel, 0, min(len(rows), limit))
	for _, row := range rows {
		if len(out) == limit {
			break
		}
		if len(row) < 2 {
			continue
		}
		p, err := decimal.NewFromString(row[0])
		if err != nil {
			continue
		}
		q, err := decimal.NewFromString(row[1])
		if err != nil {
			continue
		}
		out = append(out, PriceLevel{Price: p, Quantity: q})
	}
	return out
}

// Level returns the i-th level (0 = best) of a side and whether it exists.
func Level(side []PriceLevel, i int) (PriceLevel, bool) {
	if i < 0 || i >= len(side) {
		return PriceLevel{}, false
	}
	return side[i], true
}

// Ticker represents the latest price.
type Ticker struct {
	Exchange  ExchangeName    `json:"exchange"`
	Market    MarketType      `json:"market"`
	Gateway   GatewayID       `json:"gateway"`
	Symbol    string          `json:"symbol"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume,omitempty"`
	QuoteVol  decimal.Decimal `json:"quoteVolume,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Tickers is the "all tickers" push some venues multiplex on one channel.
type Tickers struct {
	Gateway GatewayID `json:"gateway"`
	List    []Ticker  `json:"list"`
}

// Kline represents a normalized candle.
type Kline struct {
	Exchange    ExchangeName    `json:"exchange"`
	Market      MarketType      `json:"market"`
	Gateway     GatewayID       `json:"gateway"`
	Symbol      string          `json:"symbol"`
	Interval    Interval        `json:"interval"`
	OpenTime    time.Time       `json:"openTime"`
	CloseTime   time.Time       `json:"closeTime"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
	QuoteVolume decimal.Decimal `json:"quoteVolume"`
	TradeNum    int64           `json:"tradeNum"`
	IsFinal     bool            `json:"isFinal"`
}

// OrderSide defines the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"  // 买单
	OrderSideSell OrderSide = "sell" // 卖单
)

// OrderType defines the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market" // 市价单
	OrderTypeLimit  OrderType = "limit"  // 限价单
)

// OrderStatus defines the status of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // 待处理
	OrderStatusOpen      OrderStatus = "open"      // 已开仓
	OrderStatusFilled    OrderStatus = "filled"    // 已成交
	OrderStatusPartially OrderStatus = "partially" // 部分成交
	OrderStatusCanceled  OrderStatus = "canceled"  // 已取消
	OrderStatusRejected  OrderStatus = "rejected"  // 已拒绝
	OrderStatusFailed    OrderStatus = "failed"    // 执行失败(链上)
)

// Order represents a trading order.
type Order struct {
	Exchange      ExchangeName    `json:"exchange"`      // 交易所
	Market        MarketType      `json:"market"`        // 市场类型
	Gateway       GatewayID       `json:"gateway"`       // 网关
	Symbol        string          `json:"symbol"`        // 交易对
	OrderID       string          `json:"orderId"`       // 订单ID
	ClientOrderID string          `json:"clientOrderId"` // 客户端订单ID
	Side          OrderSide       `json:"side"`          // 订单方向
	Type          OrderType       `json:"type"`          // 订单类型
	Status        OrderStatus     `json:"status"`        // 订单状态
	Price         decimal.Decimal `json:"price"`         // 价格
	Quantity      decimal.Decimal `json:"quantity"`      // 数量
	FilledQty     decimal.Decimal `json:"filledQty"`     // 已成交数量
	QuoteQty      decimal.Decimal `json:"quoteQty"`      // 报价数量
	TimeInForce   string          `json:"timeInForce"`   // 有效期类型
	ReduceOnly    bool            `json:"reduceOnly"`    // 只减仓
	CreatedAt     time.Time       `json:"createdAt"`     // 创建时间
	UpdatedAt     time.Time       `json:"updatedAt"`     // 更新时间
}

// Trade represents a completed trade.
type Trade struct {
	Exchange        ExchangeName    `json:"exchange"`        // 交易所
	Market          MarketType      `json:"market"`          // 市场类型
	Gateway         GatewayID       `json:"gateway"`         // 网关
	Symbol          string          `json:"symbol"`          // 交易对
	TradeID         string          `json:"tradeId"`         // 成交ID
	OrderID         string          `json:"orderId"`         // 订单ID
	Side            OrderSide       `json:"side"`            // 成交方向
	Price           decimal.Decimal `json:"price"`           // 成交价格
	Quantity        decimal.Decimal `json:"quantity"`        // 成交数量
	Commission      decimal.Decimal `json:"commission"`      // 手续费
	CommissionAsset string          `json:"commissionAsset"` // 手续费资产
	Timestamp       time.Time       `json:"timestamp"`       // 成交时间
	VenueTime       time.Time       `json:"venueTime"`       // 交易所推送时间
	IsMaker         bool            `json:"isMaker"`         // 是否为挂单方
}

// Balance is one asset line of an Account.
type Balance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// Account holds balances of one venue account.
type Account struct {
	Exchange  ExchangeName `json:"exchange"`
	Market    MarketType   `json:"market"`
	Gateway   GatewayID    `json:"gateway"`
	Address   string       `json:"address,omitempty"` // 链上账户地址
	Balances  []Balance    `json:"balances"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Position represents a derivatives position.
type Position struct {
	Gateway       GatewayID       `json:"gateway"`
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	EntryPrice    decimal.Decimal `json:"entryPrice"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	Leverage      int             `json:"leverage"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// FundingRate is the current funding of a perpetual contract.
type FundingRate struct {
	Gateway     GatewayID       `json:"gateway"`
	Symbol      string          `json:"symbol"`
	Rate        decimal.Decimal `json:"rate"`
	NextFunding time.Time       `json:"nextFunding"`
}

// Leverage is the result of a leverage update.
type Leverage struct {
	Gateway  GatewayID `json:"gateway"`
	Symbol   string    `json:"symbol"`
	Leverage int       `json:"leverage"`
}

// WithdrawRecord describes a withdrawal request or its status.
type WithdrawRecord struct {
	Gateway GatewayID       `json:"gateway"`
	ID      string          `json:"id"`
	Asset   string          `json:"asset"`
	Chain   string          `json:"chain"`
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
}

// PendingOrders lists open orders of one symbol.
type PendingOrders struct {
	Gateway GatewayID `json:"gateway"`
	Symbol  string    `json:"symbol"`
	Orders  []Order   `json:"orders"`
}

// ServerTime is the venue clock (or latest block for chains).
type ServerTime struct {
	Gateway GatewayID `json:"gateway"`
	Time    time.Time `json:"time"`
	Block   uint64    `json:"block,omitempty"`
}

// CoinInfo describes deposit/withdraw availability of an asset.
type CoinInfo struct {
	Gateway         GatewayID `json:"gateway"`
	Asset           string    `json:"asset"`
	DepositEnabled  bool      `json:"depositEnabled"`
	WithdrawEnabled bool      `json:"withdrawEnabled"`
}

// SessionStart is the sentinel emitted when a stream connection comes up.
type SessionStart struct {
	Gateway GatewayID `json:"gateway"`
	Time    time.Time `json:"time"`
}

// Heartbeat is the per-topic liveness record emitted after each delivered event.
type Heartbeat struct {
	Key     string    `json:"key"`
	Gateway GatewayID `json:"gateway"`
	Time    time.Time `json:"time"`
}

// ExchangeInfo 表示交易所的交易规则信息
type ExchangeInfo struct {
	Exchange   ExchangeName `json:"exchange"`   // 交易所名称
	Market     MarketType   `json:"market"`     // 市场类型
	Symbols    []Symbol     `json:"symbols"`    // 支持的交易对列表
	UpdatedAt  time.Time    `json:"updatedAt"`  // 更新时间
	ServerTime time.Time    `json:"serverTime"` // 服务器时间
	Timezone   string       `json:"timezone"`   // 时区
}
