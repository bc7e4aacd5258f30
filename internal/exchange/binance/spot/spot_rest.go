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
	spotBaseURL = "https://api.binance.com"

	// API endpoints
	apiV3Time         = "/api/v3/time"
	apiV3ExchangeInfo = "/api/v3/exchangeInfo"
	apiV3Depth        = "/api/v3/depth"
	apiV3Trades       = "/api/v3/trades"
	apiV3MyTrades     = "/api/v3/myTrades"
	apiV3Order        = "/api/v3/order"
	apiV3OpenOrders   = "/api/v3/openOrders"
	apiV3AllOrders    = "/api/v3/allOrders"
	apiV3Account      = "/api/v3/account"
	apiV3Klines       = "/api/v3/klines"
	apiV3Ticker24h    = "/api/v3/ticker/24hr"

	defaultDepthLimit = 20
	allOrdersLimit    = 30
)

var (
	errNoOrder   = errors.New("binance spot: order is required")
	errNoOrderID = errors.New("binance spot: order id or client order id is required")
)

var gatewayID = schema.NewGatewayID(schema.BINANCE, schema.SPOT)

// spotREST builds the REST operations of Binance Spot.
type spotREST struct {
	base string
}

func (s spotREST) operations() map[schema.Method]gateway.Operation {
	return map[schema.Method]gateway.Operation{
		schema.GetTime:          {Build: s.get(apiV3Time), Map: exchange.JSONMapper(mapServerTime)},
		schema.GetExchangeInfos: {Build: s.get(apiV3ExchangeInfo), Map: exchange.JSONMapper(mapExchangeInfo)},
		schema.GetDepths:        {Build: s.buildDepth},
		schema.GetPublicTrades:  {Build: s.buildPublicTrades},
		schema.GetTrades:        {Build: s.buildMyTrades},
		schema.SubmitOrder:      {Build: s.buildSubmitOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.CancelOrder:      {Build: s.buildCancelOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.CancelOrders:     {Build: s.buildCancelOrders, Map: exchange.JSONMapper(mapOrders)},
		schema.GetOrder:         {Build: s.buildGetOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.GetOrders:        {Build: s.buildGetOrders, Map: exchange.JSONMapper(mapOrders)},
		schema.GetOpenOrders:    {Build: s.buildOpenOrders, Map: exchange.JSONMapper(mapOrders)},
		schema.GetAccount:       {Build: s.buildAccount, Map: exchange.JSONMapper(mapAccount)},
		schema.GetKlines:        {Build: s.buildKlines},
		schema.GetTicker:        {Build: s.buildTicker},
	}
}

func (s spotREST) get(path string) func(schema.Query) (*rest.Request, error) {
	return func(schema.Query) (*rest.Request, error) {
		return rest.NewRequest(http.MethodGet, s.base+path), nil
	}
}

func (s spotREST) signed(method, path string) *rest.Request {
	req := rest.NewRequest(method, s.base+path)
	req.NeedsSign = true
	return req
}

func (s spotREST) buildDepth(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	limit := q.DepthLimit
	if limit <= 0 {
		limit = defaultDepthLimit
	}
	req := rest.NewRequest(http.MethodGet, s.base+apiV3Depth)
	req.Params.Add("symbol", sym)
	req.Params.Add("limit", strconv.Itoa(limit))
	req.Mapper = exchange.JSONMapper(func(r depthResponse) (any, error) {
		return r.depth(sym, limit), nil
	})
	return req, nil
}

func (s spotREST) buildPublicTrades(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	req := rest.NewRequest(http.MethodGet, s.base+apiV3Trades)
	req.Params.Add("symbol", sym)
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	req.Mapper = exchange.JSONMapper(func(rows []publicTrade) (any, error) {
		out := make([]schema.Trade, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.trade(sym))
		}
		return out, nil
	})
	return req, nil
}

func (s spotREST) buildMyTrades(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	req := s.signed(http.MethodGet, apiV3MyTrades)
	req.Params.Add("symbol", sym)
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	if !q.StartTime.IsZero() {
		req.Params.Add("startTime", strconv.FormatInt(q.StartTime.UnixMilli(), 10))
	}
	if !q.EndTime.IsZero() {
		req.Params.Add("endTime", strconv.FormatInt(q.EndTime.UnixMilli(), 10))
	}
	req.Mapper = exchange.JSONMapper(func(rows []myTrade) (any, error) {
		out := make([]schema.Trade, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.trade())
		}
		return out, nil
	})
	return req, nil
}

func (s spotREST) buildSubmitOrder(q schema.Query) (*rest.Request, error) {
	o := q.Order
	if o == nil {
		return nil, errNoOrder
	}
	sym, err := gateway.OrderSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}

	var body rest.Params
	body.Add("symbol", sym)
	body.Add("side", strings.ToUpper(string(o.Side)))
	body.Add("type", strings.ToUpper(string(o.Type)))
	if o.Type == schema.OrderTypeMarket && o.Quantity.IsZero() && o.QuoteQty.IsPositive() {
		body.Add("quoteOrderQty", o.QuoteQty.String())
	} else {
		body.Add("quantity", o.Quantity.String())
	}
	if o.Type == schema.OrderTypeLimit {
		tif := o.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		body.Add("timeInForce", tif)
	}
	if o.Price.IsPositive() {
		body.Add("price", o.Price.String())
	}
	body.Add("newClientOrderId", exchange.ClientOrderID(o.ClientOrderID, 32))

	req := s.signed(http.MethodPost, apiV3Order)
	req.Body = body
	return req, nil
}

func (s spotREST) buildCancelOrder(q schema.Query) (*rest.Request, error) {
	req := s.signed(http.MethodDelete, apiV3Order)
	if err := s.orderRef(req, q); err != nil {
		return nil, err
	}
	return req, nil
}

func (s spotREST) buildGetOrder(q schema.Query) (*rest.Request, error) {
	req := s.signed(http.MethodGet, apiV3Order)
	if err := s.orderRef(req, q); err != nil {
		return nil, err
	}
	return req, nil
}

// orderRef adds symbol and orderId/origClientOrderId.
func (s spotREST) orderRef(req *rest.Request, q schema.Query) error {
	var o schema.OrderRequest
	if q.Order != nil {
		o = *q.Order
	}
	sym, err := gateway.OrderSymbol(schema.BINANCE, q)
	if err != nil {
		return err
	}
	id := q.OrderID
	if id == "" {
		id = o.OrderID
	}
	if id == "" && o.ClientOrderID == "" {
		return errNoOrderID
	}
	req.Params.Add("symbol", sym)
	if id != "" {
		req.Params.Add("orderId", id)
	}
	if o.ClientOrderID != "" {
		req.Params.Add("origClientOrderId", o.ClientOrderID)
	}
	return nil
}

func (s spotREST) buildCancelOrders(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	req := s.signed(http.MethodDelete, apiV3OpenOrders)
	req.Params.Add("symbol", sym)
	return req, nil
}

func (s spotREST) buildGetOrders(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = allOrdersLimit
	}
	req := s.signed(http.MethodGet, apiV3AllOrders)
	req.Params.Add("symbol", sym)
	req.Params.Add("limit", strconv.Itoa(limit))
	return req, nil
}

func (s spotREST) buildOpenOrders(q schema.Query) (*rest.Request, error) {
	req := s.signed(http.MethodGet, apiV3OpenOrders)
	if q.Symbol != "" || q.VenueSymbol != "" {
		sym, err := gateway.VenueSymbol(schema.BINANCE, q)
		if err != nil {
			return nil, err
		}
		req.Params.Add("symbol", sym)
	}
	return req, nil
}

func (s spotREST) buildAccount(schema.Query) (*rest.Request, error) {
	req := s.signed(http.MethodGet, apiV3Account)
	req.Params.Add("omitZeroBalances", "true")
	return req, nil
}

func (s spotREST) buildKlines(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	interval := q.Interval
	if interval == "" {
		interval = schema.Interval1m
	}
	req := rest.NewRequest(http.MethodGet, s.base+apiV3Klines)
	req.Params.Add("symbol", sym)
	req.Params.Add("interval", string(interval))
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	if !q.StartTime.IsZero() {
		req.Params.Add("startTime", strconv.FormatInt(q.StartTime.UnixMilli(), 10))
	}
	if !q.EndTime.IsZero() {
		req.Params.Add("endTime", strconv.FormatInt(q.EndTime.UnixMilli(), 10))
	}
	req.Mapper = exchange.JSONMapper(func(rows [][]any) (any, error) {
		return klineRows(sym, interval, rows), nil
	})
	return req, nil
}

// buildTicker returns one ticker for a symbol, or all of them as Tickers.
func (s spotREST) buildTicker(q schema.Query) (*rest.Request, error) {
	req := rest.NewRequest(http.MethodGet, s.base+apiV3Ticker24h)
	if q.Symbol == "" && q.VenueSymbol == "" {
		req.Mapper = exchange.JSONMapper(func(rows []ticker24h) (any, error) {
			out := &schema.Tickers{Gateway: gatewayID, List: make([]schema.Ticker, 0, len(rows))}
			for _, r := range rows {
				out.List = append(out.List, r.ticker())
			}
			return out, nil
		})
		return req, nil
	}
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	req.Params.Add("symbol", sym)
	req.Mapper = exchange.JSONMapper(func(r ticker24h) (any, error) {
		t := r.ticker()
		return &t, nil
	})
	return req, nil
}

// isBenign marks "Unknown order sent" on cancel as harmless.
var isBenign = rest.BenignCodes(-2011)

// ---- wire types ----

type serverTime struct {
	ServerTime int64 `json:"serverTime"`
}

func mapServerTime(r serverTime) (any, error) {
	return &schema.ServerTime{Gateway: gatewayID, Time: exchange.Millis(r.ServerTime)}, nil
}

type exchangeInfo struct {
	Timezone   string `json:"timezone"`
	ServerTime int64  `json:"serverTime"`
	Symbols    []struct {
		Symbol               string `json:"symbol"`
		Status               string `json:"status"`
		BaseAsset            string `json:"baseAsset"`
		BaseAssetPrecision   int    `json:"baseAssetPrecision"`
		QuoteAsset           string `json:"quoteAsset"`
		QuotePrecision       int    `json:"quoteAssetPrecision"`
		IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
		Filters              []struct {
			FilterType  string `json:"filterType"`
			TickSize    string `json:"tickSize,omitempty"`
			MinQty      string `json:"minQty,omitempty"`
			StepSize    string `json:"stepSize,omitempty"`
			MinNotional string `json:"minNotional,omitempty"`
		} `json:"filters"`
	} `json:"symbols"`
}

func mapExchangeInfo(r exchangeInfo) (any, error) {
	symbols := make([]schema.Symbol, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		// 只保留可交易的现货币对
		if s.Status != "TRADING" || !s.IsSpotTradingAllowed {
			continue
		}
		sym := schema.Symbol{
			Symbol:            s.Symbol,
			Base:              s.BaseAsset,
			Quote:             s.QuoteAsset,
			ExchangeName:      schema.BINANCE,
			MarketType:        schema.SPOT,
			QuantityPrecision: s.BaseAssetPrecision,
			PricePrecision:    s.QuotePrecision,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				if f.TickSize != "" {
					sym.PricePrecision = precisionOf(f.TickSize)
				}
			case "LOT_SIZE":
				sym.MinQuantity = f.MinQty
				if f.StepSize != "" {
					sym.QuantityPrecision = precisionOf(f.StepSize)
				}
			case "MIN_NOTIONAL", "NOTIONAL":
				sym.MinNotional = f.MinNotional
			}
		}
		symbols = append(symbols, sym)
	}
	return &schema.ExchangeInfo{
		Exchange:   schema.BINANCE,
		Market:     schema.SPOT,
		Symbols:    symbols,
		UpdatedAt:  time.Now(),
		ServerTime: exchange.Millis(r.ServerTime),
		Timezone:   r.Timezone,
	}, nil
}

// precisionOf turns a step such as "0.00100000" into 3.
func precisionOf(step string) int {
	s := exchange.Dec(step).String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (r depthResponse) depth(symbol string, limit int) *schema.Depth {
	return &schema.Depth{
		Exchange:     schema.BINANCE,
		Market:       schema.SPOT,
		Gateway:      gatewayID,
		Symbol:       symbol,
		Bids:         schema.ParseLevels(r.Bids, limit),
		Asks:         schema.ParseLevels(r.Asks, limit),
		UpdatedAt:    time.Now(),
		LastUpdateId: strconv.FormatInt(r.LastUpdateID, 10),
	}
}

type publicTrade struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	Time         int64  `json:"time"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

func (t publicTrade) trade(symbol string) schema.Trade {
	return schema.Trade{
		Exchange:  schema.BINANCE,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Symbol:    symbol,
		TradeID:   strconv.FormatInt(t.ID, 10),
		Side:      takerSide(t.IsBuyerMaker),
		Price:     exchange.Dec(t.Price),
		Quantity:  exchange.Dec(t.Qty),
		Timestamp: exchange.Millis(t.Time),
	}
}

// takerSide: buyer is maker means the taker sold.
func takerSide(buyerMaker bool) schema.OrderSide {
	if buyerMaker {
		return schema.OrderSideSell
	}
	return schema.OrderSideBuy
}

type myTrade struct {
	Symbol          string `json:"symbol"`
	ID              int64  `json:"id"`
	OrderID         int64  `json:"orderId"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
	IsMaker         bool   `json:"isMaker"`
}

func (t myTrade) trade() schema.Trade {
	side := schema.OrderSideSell
	if t.IsBuyer {
		side = schema.OrderSideBuy
	}
	return schema.Trade{
		Exchange:        schema.BINANCE,
		Market:          schema.SPOT,
		Gateway:         gatewayID,
		Symbol:          t.Symbol,
		TradeID:         strconv.FormatInt(t.ID, 10),
		OrderID:         strconv.FormatInt(t.OrderID, 10),
		Side:            side,
		Price:           exchange.Dec(t.Price),
		Quantity:        exchange.Dec(t.Qty),
		Commission:      exchange.Dec(t.Commission),
		CommissionAsset: t.CommissionAsset,
		Timestamp:       exchange.Millis(t.Time),
		IsMaker:         t.IsMaker,
	}
}

type orderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	OrigClientOrderID   string `json:"origClientOrderId"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	TimeInForce         string `json:"timeInForce"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	Time                int64  `json:"time"`
	TransactTime        int64  `json:"transactTime"`
	UpdateTime          int64  `json:"updateTime"`
}

func (o orderResponse) order() schema.Order {
	price := exchange.Dec(o.Price)
	filled := exchange.Dec(o.ExecutedQty)
	quote := exchange.Dec(o.CummulativeQuoteQty)
	// 市价单没有价格, 用成交均价代替
	if price.IsZero() && filled.IsPositive() {
		price = quote.Div(filled)
	}
	created := o.Time
	if created == 0 {
		created = o.TransactTime
	}
	clientID := o.ClientOrderID
	if o.OrigClientOrderID != "" {
		clientID = o.OrigClientOrderID
	}
	return schema.Order{
		Exchange:      schema.BINANCE,
		Market:        schema.SPOT,
		Gateway:       gatewayID,
		Symbol:        o.Symbol,
		OrderID:       strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: clientID,
		Side:          schema.OrderSide(strings.ToLower(o.Side)),
		Type:          schema.OrderType(strings.ToLower(o.Type)),
		Status:        orderStatus(o.Status),
		Price:         price,
		Quantity:      exchange.Dec(o.OrigQty),
		FilledQty:     filled,
		QuoteQty:      quote,
		TimeInForce:   o.TimeInForce,
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
	case "CANCELED", "EXPIRED", "EXPIRED_IN_MATCH":
		return schema.OrderStatusCanceled
	case "REJECTED":
		return schema.OrderStatusRejected
	}
	return schema.OrderStatusPending
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
		Exchange:  schema.BINANCE,
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

// klineRows converts [openTime, o, h, l, c, v, closeTime, quoteVol, trades, ...].
func klineRows(symbol string, interval schema.Interval, rows [][]any) []schema.Kline {
	out := make([]schema.Kline, 0, len(rows))
	for _, r := range rows {
		if len(r) < 9 {
			continue
		}
		out = append(out, schema.Kline{
			Exchange:    schema.BINANCE,
			Market:      schema.SPOT,
			Gateway:     gatewayID,
			Symbol:      symbol,
			Interval:    interval,
			OpenTime:    exchange.Millis(toInt(r[0])),
			Open:        toDec(r[1]),
			High:        toDec(r[2]),
			Low:         toDec(r[3]),
			Close:       toDec(r[4]),
			Volume:      toDec(r[5]),
			CloseTime:   exchange.Millis(toInt(r[6])),
			QuoteVolume: toDec(r[7]),
			TradeNum:    toInt(r[8]),
			IsFinal:     time.Now().After(exchange.Millis(toInt(r[6]))),
		})
	}
	return out
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func toDec(v any) decimal.Decimal {
	switch n := v.(type) {
	case string:
		return exchange.Dec(n)
	case float64:
		return decimal.NewFromFloat(n)
	}
	return decimal.Zero
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

func (t ticker24h) ticker() schema.Ticker {
	return schema.Ticker{
		Exchange:  schema.BINANCE,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Symbol:    t.Symbol,
		Open:      exchange.Dec(t.OpenPrice),
		High:      exchange.Dec(t.HighPrice),
		Low:       exchange.Dec(t.LowPrice),
		Price:     exchange.Dec(t.LastPrice),
		Volume:    exchange.Dec(t.Volume),
		QuoteVol:  exchange.Dec(t.QuoteVolume),
		Timestamp: exchange.Millis(t.CloseTime),
	}
}
