package spot

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

const (
	mexcBaseURL = "https://api.mexc.com"

	apiTime            = "/api/v3/time"
	apiDepth           = "/api/v3/depth"
	apiBookTicker      = "/api/v3/ticker/bookTicker"
	apiTicker24h       = "/api/v3/ticker/24hr"
	apiKlines          = "/api/v3/klines"
	apiOrder           = "/api/v3/order"
	apiOpenOrders      = "/api/v3/openOrders"
	apiAllOrders       = "/api/v3/allOrders"
	apiAccount         = "/api/v3/account"
	apiCoinConfig      = "/api/v3/capital/config/getall"
	apiWithdrawApply   = "/api/v3/capital/withdraw/apply"
	apiWithdrawHistory = "/api/v3/capital/withdraw/history"

	defaultDepthLimit    = 20
	defaultWithdrawLimit = 20
)

var (
	errNoOrder    = errors.New("mexc spot: order is required")
	errNoOrderID  = errors.New("mexc spot: order id is required")
	errNoWithdraw = errors.New("mexc spot: withdraw request is required")
)

var gatewayID = schema.NewGatewayID(schema.MEXC, schema.SPOT)

// mexc 的 kline 周期写法与其它交易所不同
var restIntervals = map[schema.Interval]string{
	schema.Interval1m:  "1m",
	schema.Interval5m:  "5m",
	schema.Interval15m: "15m",
	schema.Interval1h:  "60m",
	schema.Interval4h:  "4h",
	schema.Interval1d:  "1d",
}

type spotREST struct {
	base string
}

func (s spotREST) operations() map[schema.Method]gateway.Operation {
	return map[schema.Method]gateway.Operation{
		schema.GetTime:        {Build: s.buildTime, Map: exchange.JSONMapper(mapServerTime)},
		schema.GetDepths:      {Build: s.buildDepth},
		schema.GetCoinInfo:    {Build: s.buildCoinInfo, Map: exchange.JSONMapper(mapCoinInfo)},
		schema.GetAccount:     {Build: s.buildAccount, Map: exchange.JSONMapper(mapAccount)},
		schema.SubmitOrder:    {Build: s.buildSubmitOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.CancelOrder:    {Build: s.buildCancelOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.GetOpenOrders:  {Build: s.buildOpenOrders, Map: exchange.JSONMapper(mapOrders)},
		schema.GetOrders:      {Build: s.buildAllOrders, Map: exchange.JSONMapper(mapOrders)},
		schema.Withdraw:       {Build: s.buildWithdraw, Map: exchange.JSONMapper(mapWithdrawApply)},
		schema.WithdrawStatus: {Build: s.buildWithdrawStatus, Map: exchange.JSONMapper(mapWithdrawHistory)},
		schema.GetKlines:      {Build: s.buildKlines},
		schema.GetTicker:      {Build: s.buildTicker},
	}
}

func (s spotREST) signed(method, path string) *rest.Request {
	req := rest.NewRequest(method, s.base+path)
	req.NeedsSign = true
	return req
}

func (s spotREST) buildTime(schema.Query) (*rest.Request, error) {
	return rest.NewRequest(http.MethodGet, s.base+apiTime), nil
}

// buildDepth uses bookTicker for a single level, across all symbols when no
// symbol is given, and the order book endpoint otherwise.
func (s spotREST) buildDepth(q schema.Query) (*rest.Request, error) {
	if q.DepthLimit == 1 {
		req := rest.NewRequest(http.MethodGet, s.base+apiBookTicker)
		if q.Symbol == "" && q.VenueSymbol == "" {
			req.Mapper = exchange.JSONMapper(func(rows []bookTicker) (any, error) {
				out := make([]schema.Depth, 0, len(rows))
				for _, r := range rows {
					if r.complete() {
						out = append(out, *r.depth())
					}
				}
				return out, nil
			})
			return req, nil
		}
		sym, err := gateway.VenueSymbol(schema.MEXC, q)
		if err != nil {
			return nil, err
		}
		req.Params.Add("symbol", sym)
		req.Mapper = exchange.JSONMapper(func(r bookTicker) (any, error) {
			return r.depth(), nil
		})
		return req, nil
	}

	sym, err := gateway.VenueSymbol(schema.MEXC, q)
	if err != nil {
		return nil, err
	}
	limit := q.DepthLimit
	if limit <= 0 {
		limit = defaultDepthLimit
	}
	req := rest.NewRequest(http.MethodGet, s.base+apiDepth)
	req.Params.Add("symbol", sym)
	req.Params.Add("limit", strconv.Itoa(limit))
	req.Mapper = exchange.JSONMapper(func(r depthResponse) (any, error) {
		return &schema.Depth{
			Exchange:     schema.MEXC,
			Market:       schema.SPOT,
			Gateway:      gatewayID,
			Symbol:       sym,
			Bids:         schema.ParseLevels(r.Bids, limit),
			Asks:         schema.ParseLevels(r.Asks, limit),
			VenueTime:    exchange.Millis(r.Timestamp),
			UpdatedAt:    time.Now(),
			LastUpdateId: strconv.FormatInt(r.LastUpdateID, 10),
		}, nil
	})
	return req, nil
}

func (s spotREST) buildCoinInfo(schema.Query) (*rest.Request, error) {
	return s.signed(http.MethodGet, apiCoinConfig), nil
}

func (s spotREST) buildAccount(schema.Query) (*rest.Request, error) {
	return s.signed(http.MethodGet, apiAccount), nil
}

func (s spotREST) buildSubmitOrder(q schema.Query) (*rest.Request, error) {
	o := q.Order
	if o == nil {
		return nil, errNoOrder
	}
	sym, err := gateway.OrderSymbol(schema.MEXC, q)
	if err != nil {
		return nil, err
	}

	orderType := strings.ToUpper(string(o.Type))
	switch strings.ToUpper(o.TimeInForce) {
	case "IOC":
		orderType = "IMMEDIATE_OR_CANCEL"
	case "FOK":
		orderType = "FILL_OR_KILL"
	}

	var body rest.Params
	body.Add("symbol", sym)
	body.Add("side", strings.ToUpper(string(o.Side)))
	body.Add("type", orderType)
	if o.Type == schema.OrderTypeMarket && o.Quantity.IsZero() && o.QuoteQty.IsPositive() {
		body.Add("quoteOrderQty", o.QuoteQty.String())
	} else {
		body.Add("quantity", o.Quantity.String())
	}
	if o.Price.IsPositive() {
		body.Add("price", o.Price.String())
	}
	body.Add("newClientOrderId", exchange.ClientOrderID(o.ClientOrderID, 32))

	req := s.signed(http.MethodPost, apiOrder)
	req.Body = body
	return req, nil
}

func (s spotREST) buildCancelOrder(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.OrderSymbol(schema.MEXC, q)
	if err != nil {
		return nil, err
	}
	id := q.OrderID
	if id == "" && q.Order != nil {
		id = q.Order.OrderID
	}
	if id == "" {
		return nil, errNoOrderID
	}
	req := s.signed(http.MethodDelete, apiOrder)
	req.Params.Add("symbol", sym)
	req.Params.Add("orderId", id)
	return req, nil
}

func (s spotREST) buildOpenOrders(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.MEXC, q)
	if err != nil {
		return nil, err
	}
	req := s.signed(http.MethodGet, apiOpenOrders)
	req.Params.Add("symbol", sym)
	return req, nil
}

func (s spotREST) buildAllOrders(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.MEXC, q)
	if err != nil {
		return nil, err
	}
	req := s.signed(http.MethodGet, apiAllOrders)
	req.Params.Add("symbol", sym)
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	return req, nil
}

func (s spotREST) buildWithdraw(q schema.Query) (*rest.Request, error) {
	w := q.Withdraw
	if w == nil {
		return nil, errNoWithdraw
	}
	var body rest.Params
	body.Add("coin", w.Asset)
	body.Add("network", withdrawNetwork(w.Chain))
	body.Add("address", w.Address)
	if w.Memo != "" {
		body.Add("memo", w.Memo)
	}
	body.Add("amount", w.Amount.String())

	req := s.signed(http.MethodPost, apiWithdrawApply)
	req.Body = body
	req.Extra = map[string]any{"withdraw": *w}
	return req, nil
}

// withdrawNetwork maps short chain names to MEXC network labels.
func withdrawNetwork(chain string) string {
	switch strings.ToUpper(chain) {
	case "BSC", "BEP20":
		return "BNB Smart Chain(BEP20)"
	}
	return chain
}

func (s spotREST) buildWithdrawStatus(q schema.Query) (*rest.Request, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultWithdrawLimit
	}
	req := s.signed(http.MethodGet, apiWithdrawHistory)
	req.Params.Add("limit", strconv.Itoa(limit))
	if q.Withdraw != nil && q.Withdraw.Asset != "" {
		req.Params.Add("coin", q.Withdraw.Asset)
	}
	return req, nil
}

func (s spotREST) buildKlines(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.MEXC, q)
	if err != nil {
		return nil, err
	}
	interval := q.Interval
	if interval == "" {
		interval = schema.Interval1m
	}
	venueInterval, ok := restIntervals[interval]
	if !ok {
		return nil, errors.New("mexc spot: unsupported interval " + string(interval))
	}
	req := rest.NewRequest(http.MethodGet, s.base+apiKlines)
	req.Params.Add("symbol", sym)
	req.Params.Add("interval", venueInterval)
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	req.Mapper = exchange.JSONMapper(func(rows [][]any) (any, error) {
		out := make([]schema.Kline, 0, len(rows))
		for _, r := range rows {
			if len(r) < 8 {
				continue
			}
			out = append(out, schema.Kline{
				Exchange:    schema.MEXC,
				Market:      schema.SPOT,
				Gateway:     gatewayID,
				Symbol:      sym,
				Interval:    interval,
				OpenTime:    exchange.Millis(int64(num(r[0]).IntPart())),
				Open:        num(r[1]),
				High:        num(r[2]),
				Low:         num(r[3]),
				Close:       num(r[4]),
				Volume:      num(r[5]),
				CloseTime:   exchange.Millis(int64(num(r[6]).IntPart())),
				QuoteVolume: num(r[7]),
			})
		}
		return out, nil
	})
	return req, nil
}

func (s spotREST) buildTicker(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.MEXC, q)
	if err != nil {
		return nil, err
	}
	req := rest.NewRequest(http.MethodGet, s.base+apiTicker24h)
	req.Params.Add("symbol", sym)
	req.Mapper = exchange.JSONMapper(func(r ticker24h) (any, error) {
		return &schema.Ticker{
			Exchange:  schema.MEXC,
			Market:    schema.SPOT,
			Gateway:   gatewayID,
			Symbol:    r.Symbol,
			Open:      exchange.Dec(r.OpenPrice),
			High:      exchange.Dec(r.HighPrice),
			Low:       exchange.Dec(r.LowPrice),
			Price:     exchange.Dec(r.LastPrice),
			Volume:    exchange.Dec(r.Volume),
			QuoteVol:  exchange.Dec(r.QuoteVolume),
			Timestamp: exchange.Millis(r.CloseTime),
		}, nil
	})
	return req, nil
}

func num(v any) decimal.Decimal {
	switch n := v.(type) {
	case string:
		return exchange.Dec(n)
	case float64:
		return decimal.NewFromFloat(n)
	}
	return decimal.Zero
}

// ---- wire types ----

type serverTime struct {
	ServerTime int64 `json:"serverTime"`
}

func mapServerTime(r serverTime) (any, error) {
	return &schema.ServerTime{Gateway: gatewayID, Time: exchange.Millis(r.ServerTime)}, nil
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
	Timestamp    int64      `json:"timestamp"`
}

type bookTicker struct {
	Symbol   string  `json:"symbol"`
	BidPrice *string `json:"bidPrice"`
	BidQty   *string `json:"bidQty"`
	AskPrice *string `json:"askPrice"`
	AskQty   *string `json:"askQty"`
}

func (b bookTicker) complete() bool {
	return b.BidPrice != nil && b.BidQty != nil && b.AskPrice != nil && b.AskQty != nil
}

func (b bookTicker) depth() *schema.Depth {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return &schema.Depth{
		Exchange:  schema.MEXC,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Symbol:    b.Symbol,
		Bids:      schema.ParseLevels([][]string{{str(b.BidPrice), str(b.BidQty)}}, 1),
		Asks:      schema.ParseLevels([][]string{{str(b.AskPrice), str(b.AskQty)}}, 1),
		UpdatedAt: time.Now(),
	}
}

type coinConfig struct {
	Coin        string `json:"coin"`
	NetworkList []struct {
		Network        string `json:"network"`
		DepositEnable  bool   `json:"depositEnable"`
		WithdrawEnable bool   `json:"withdrawEnable"`
	} `json:"networkList"`
}

// mapCoinInfo reports an asset as enabled when any of its networks is.
func mapCoinInfo(rows []coinConfig) (any, error) {
	out := make([]schema.CoinInfo, 0, len(rows))
	for _, c := range rows {
		info := schema.CoinInfo{Gateway: gatewayID, Asset: c.Coin}
		for _, n := range c.NetworkList {
			info.DepositEnabled = info.DepositEnabled || n.DepositEnable
			info.WithdrawEnabled = info.WithdrawEnabled || n.WithdrawEnable
		}
		out = append(out, info)
	}
	return out, nil
}

type accountResponse struct {
	UpdateTime int64 `json:"updateTime"`
	Balances   []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

func mapAccount(r accountResponse) (any, error) {
	acc := &schema.Account{
		Exchange:  schema.MEXC,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Balances:  make([]schema.Balance, 0, len(r.Balances)),
		UpdatedAt: exchange.Millis(r.UpdateTime),
	}
	for _, b := range r.Balances {
		acc.Balances = append(acc.Balances, schema.Balance{
			Asset:  b.Asset,
			Free:   exchange.Dec(b.Free),
			Locked: exchange.Dec(b.Locked),
		})
	}
	return acc, nil
}

type orderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             string `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	Time                int64  `json:"time"`
	TransactTime        int64  `json:"transactTime"`
	UpdateTime          int64  `json:"updateTime"`
}

func (o orderResponse) order() schema.Order {
	created := o.Time
	if created == 0 {
		created = o.TransactTime
	}
	orderType := schema.OrderTypeLimit
	if o.Type == "MARKET" {
		orderType = schema.OrderTypeMarket
	}
	status := orderStatus(o.Status)
	// 下单返回没有 status
	if o.Status == "" {
		status = schema.OrderStatusOpen
	}
	return schema.Order{
		Exchange:      schema.MEXC,
		Market:        schema.SPOT,
		Gateway:       gatewayID,
		Symbol:        o.Symbol,
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		Side:          schema.OrderSide(strings.ToLower(o.Side)),
		Type:          orderType,
		Status:        status,
		Price:         exchange.Dec(o.Price),
		Quantity:      exchange.Dec(o.OrigQty),
		FilledQty:     exchange.Dec(o.ExecutedQty),
		QuoteQty:      exchange.Dec(o.CummulativeQuoteQty),
		CreatedAt:     exchange.Millis(created),
		UpdatedAt:     exchange.Millis(o.UpdateTime),
	}
}

func mapOrder(o orderResponse) (any, error) {
	out := o.order()
	return &out, nil
}

func mapOrders(rows []orderResponse) (any, error) {
	out := make([]schema.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.order())
	}
	return out, nil
}

func orderStatus(s string) schema.OrderStatus {
	switch s {
	case "NEW":
		return schema.OrderStatusOpen
	case "PARTIALLY_FILLED":
		return schema.OrderStatusPartially
	case "FILLED":
		return schema.OrderStatusFilled
	case "CANCELED", "PARTIALLY_CANCELED":
		return schema.OrderStatusCanceled
	}
	return schema.OrderStatusPending
}

type withdrawApply struct {
	ID string `json:"id"`
}

func mapWithdrawApply(r withdrawApply) (any, error) {
	return &schema.WithdrawRecord{Gateway: gatewayID, ID: r.ID, Status: withdrawStatuses[1]}, nil
}

type withdrawRecord struct {
	ID      string `json:"id"`
	TxID    string `json:"txId"`
	Coin    string `json:"coin"`
	Network string `json:"network"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Status  int    `json:"status"`
}

var withdrawStatuses = map[int]string{
	1: "apply",
	2: "auditing",
	3: "wait",
	4: "processing",
	5: "wait_packaging",
	6: "wait_confirm",
	7: "success",
	8: "failed",
	9: "cancel",
}

func mapWithdrawHistory(rows []withdrawRecord) (any, error) {
	out := make([]schema.WithdrawRecord, 0, len(rows))
	for _, r := range rows {
		status, ok := withdrawStatuses[r.Status]
		if !ok {
			status = "unknown"
		}
		out = append(out, schema.WithdrawRecord{
			Gateway: gatewayID,
			ID:      r.ID,
			Asset:   r.Coin,
			Chain:   r.Network,
			Address: r.Address,
			Amount:  exchange.Dec(r.Amount),
			Status:  status,
		})
	}
	return out, nil
}

type ticker24h struct {
	Symbol      string `json:"symbol"`
	OpenPrice   string `json:"openPrice"`
	HighPrice   string `json:"highPrice"`
	LowPrice    string `json:"lowPrice"`
	LastPrice   string `json:"lastPrice"`
	Volume      string `json:"volume"`
	QuoteVolume string `json:"quoteVolume"`
	CloseTime   int64  `json:"closeTime"`
}
