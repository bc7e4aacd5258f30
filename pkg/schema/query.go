package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Credentials are the per-call API key material. They are never persisted.
type Credentials struct {
	Key     string `json:"-" yaml:"-"`
	Secret  string `json:"-" yaml:"-"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"` // 链上钱包地址
}

// IsZero reports whether no key material is set.
func (c Credentials) IsZero() bool {
	return c.Key == "" && c.Secret == ""
}

// OrderRequest is the canonical order a caller submits.
type OrderRequest struct {
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Type          OrderType       `json:"type"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	QuoteQty      decimal.Decimal `json:"quoteQty"`
	TimeInForce   string          `json:"timeInForce,omitempty"`
	ClientOrderID string          `json:"clientOrderId,omitempty"`
	OrderID       string          `json:"orderId,omitempty"` // 撤单时使用
	ReduceOnly    bool            `json:"reduceOnly,omitempty"`
}

// WithdrawRequest carries withdraw parameters.
type WithdrawRequest struct {
	Asset   string          `json:"asset"`
	Chain   string          `json:"chain"`
	Address string          `json:"address"`
	Memo    string          `json:"memo,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	ID      string          `json:"id,omitempty"` // 查询提币状态时使用
}

// Query is the canonical request every facade operation accepts.
// Unused fields are ignored by operations that do not need them.
type Query struct {
	Symbol      string // BASE/QUOTE[:MARGIN]
	VenueSymbol string // 已是交易所格式时直接使用
	DepthLimit  int
	Interval    Interval
	Limit       int
	StartTime   time.Time
	EndTime     time.Time

	Order    *OrderRequest
	Orders   []OrderRequest
	OrderID  string
	Leverage int
	Withdraw *WithdrawRequest

	Credentials Credentials
	Proxy       string
	Timeout     time.Duration
	// Extra is carried through to the outcome untouched.
	Extra map[string]any
}

// Subscription names one stream the caller wants.
type Subscription struct {
	Method     Method   `json:"method" yaml:"method"` // GetDepths, GetPublicTrades, GetKlines, GetTicker
	Symbol     string   `json:"symbol" yaml:"symbol"`
	DepthLimit int      `json:"depthLimit,omitempty" yaml:"depth_limit,omitempty"`
	Interval   Interval `json:"interval,omitempty" yaml:"interval,omitempty"`
	SpeedMs    int      `json:"speedMs,omitempty" yaml:"speed_ms,omitempty"`
	AllTickers bool     `json:"allTickers,omitempty" yaml:"all_tickers,omitempty"`
}

// Key identifies the subscription for dedup.
func (s Subscription) Key() string {
	if s.AllTickers {
		return string(s.Method) + "|*"
	}
	return string(s.Method) + "|" + s.Symbol + "|" + string(s.Interval)
}
