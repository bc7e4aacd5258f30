package futures_usdt

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
	binanceFuturesUSDTBaseURL = "https://fapi.binance.com"

	apiV1Time         = "/fapi/v1/time"
	apiV1ExchangeInfo = "/fapi/v1/exchangeInfo"
	apiV1Depth        = "/fapi/v1/depth"
	apiV1Kline        = "/fapi/v1/klines"
	apiV1AggTrades    = "/fapi/v1/aggTrades"
	apiV1PremiumIndex = "/fapi/v1/premiumIndex"
	apiV1Order        = "/fapi/v1/order"
	apiV1OpenOrders   = "/fapi/v1/openOrders"
	apiV1AllOpen      = "/fapi/v1/allOpenOrders"
	apiV1Leverage     = "/fapi/v1/leverage"
	apiV2PositionRisk = "/fapi/v2/positionRisk"
	apiV2Account      = "/fapi/v2/account"

	defaultDepthLimit = 20
)

var (
	errNoOrder    = errors.New("binance futures: order is required")
	errNoOrderID  = errors.New("binance futures: order id or client order id is required")
	errNoLeverage = errors.New("binance futures: leverage must be positive")
	errNoQuantity = errors.New("binance futures: close quantity is required")
)

var gatewayID = schema.NewGatewayID(schema.BINANCE, schema.FUTURESUSDT)

// isBenign: -2011 unknown order on cancel.
var isBenign = rest.BenignCodes(-2011)

type futuresREST struct {
	base string
}

func (f futuresREST) operations() map[schema.Method]gateway.Operation {
	return map[schema.Method]gateway.Operation{
		schema.GetTime:          {Build: f.get(apiV1Time), Map: exchange.JSONMapper(mapServerTime)},
		schema.GetExchangeInfos: {Build: f.get(apiV1ExchangeInfo), Map: exchange.JSONMapper(mapExchangeInfo)},
		schema.GetDepths:        {Build: f.buildDepth},
		schema.GetKlines:        {Build: f.buildKlines},
		schema.GetPublicTrades:  {Build: f.buildAggTrades},
		schema.GetFundingRate:   {Build: f.buildFundingRate},
		schema.GetFundingRates:  {Build: f.buildFundingRates},
		schema.GetPosition:      {Build: f.buildPosition},
		schema.GetPositions:     {Build: f.buildPositions},
		schema.UpdateLeverage:   {Build: f.buildLeverage, Map: exchange.JSONMapper(mapLeverage)},
		schema.GetAccount:       {Build: f.buildAccount, Map: exchange.JSONMapper(mapAccount)},
		schema.SubmitOrder:      {Build: f.buildSubmitOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.ClosePosition:    {Build: f.buildClosePosition, Map: exchange.JSONMapper(mapOrder)},
		schema.CancelOrder:      {Build: f.buildCancelOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.CancelOrders:     {Build: f.buildCancelOrders},
		schema.GetOrder:         {Build: f.buildGetOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.GetOpenOrders:    {Build: f.buildOpenOrders, Map: exchange.JSONMapper(mapOrders)},
	}
}

func (f futuresREST) get(path string) func(schema.Query) (*rest.Request, error) {
	return func(schema.Query) (*rest.Request, error) {
		return rest.NewRequest(http.MethodGet, f.base+path), nil
	}
}

func (f futuresREST) signed(method, path string) *rest.Request {
	req := rest.NewRequest(method, f.base+path)
	req.NeedsSign = true
	return req
}

func (f futuresREST) buildDepth(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	limit := q.DepthLimit
	if limit <= 0 {
		limit = defaultDepthLimit
	}
	req := rest.NewRequest(http.MethodGet, f.base+apiV1Depth)
	req.Params.Add("symbol", sym)
	req.Params.Add("limit", strconv.Itoa(limit))
	req.Mapper = exchange.JSONMapper(func(r depthResponse) (any, error) {
		return &schema.Depth{
			Exchange:     schema.BINANCE,
			Market:       schema.FUTURESUSDT,
			Gateway:      gatewayID,
			Symbol:       sym,
			Bids:         schema.ParseLevels(r.Bids, limit),
			Asks:         schema.ParseLevels(r.Asks, limit),
			VenueTime:    exchange.Millis(r.T),
			UpdatedAt:    time.Now(),
			LastUpdateId: strconv.FormatInt(r.LastUpdateID, 10),
		}, nil
	})
	return req, nil
}

func (f futuresREST) buildKlines(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	interval := q.Interval
	if interval == "" {
		interval = schema.Interval1m
	}
	req := rest.NewRequest(http.MethodGet, f.base+apiV1Kline)
	req.Params.Add("symbol", sym)
	req.Params.Add("interval", string(interval))
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	req.Mapper = exchange.JSONMapper(func(rows [][]any) (any, error) {
		return klineRows(sym, interval, rows), nil
	})
	return req, nil
}

// buildAggTrades honours the optional time window.
func (f futuresREST) buildAggTrades(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	req := rest.NewRequest(http.MethodGet, f.base+apiV1AggTrades)
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
	req.Mapper = exchange.JSONMapper(func(rows []aggTrade) (any, error) {
		out := make([]schema.Trade, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.trade(sym))
		}
		return out, nil
	})
	return req, nil
}

func (f futuresREST) buildFundingRate(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	req := rest.NewRequest(http.MethodGet, f.base+apiV1PremiumIndex)
	req.Params.Add("symbol", sym)
	req.Mapper = exchange.JSONMapper(func(r premiumIndex) (any, error) {
		fr := r.fundingRate()
		return &fr, nil
	})
	return req, nil
}

// buildFundingRates without a symbol returns every perpetual.
func (f futuresREST) buildFundingRates(schema.Query) (*rest.Request, error) {
	req := rest.NewRequest(http.MethodGet, f.base+apiV1PremiumIndex)
	req.Mapper = exchange.JSONMapper(func(rows []premiumIndex) (any, error) {
		out := make([]schema.FundingRate, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.fundingRate())
		}
		return out, nil
	})
	return req, nil
}

func (f futuresREST) buildPosition(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	req := f.signed(http.MethodGet, apiV2PositionRisk)
	req.Params.Add("symbol", sym)
	req.Mapper = exchange.JSONMapper(func(rows []positionRisk) (any, error) {
		// 单向持仓模式只有一条; 双向持仓取第一条非零仓位
		p := schema.Position{Gateway: gatewayID, Symbol: sym}
		for _, r := range rows {
			if r.Symbol != sym {
				continue
			}
			p = r.position()
			if !p.Quantity.IsZero() {
				break
			}
		}
		return &p, nil
	})
	return req, nil
}

// buildPositions lists non-zero positions only.
func (f futuresREST) buildPositions(schema.Query) (*rest.Request, error) {
	req := f.signed(http.MethodGet, apiV2PositionRisk)
	req.Mapper = exchange.JSONMapper(func(rows []positionRisk) (any, error) {
		out := make([]schema.Position, 0, len(rows))
		for _, r := range rows {
			if p := r.position(); !p.Quantity.IsZero() {
				out = append(out, p)
			}
		}
		return out, nil
	})
	return req, nil
}

func (f futuresREST) buildLeverage(q schema.Query) (*rest.Request, error) {
	if q.Leverage <= 0 {
		return nil, errNoLeverage
	}
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	var body rest.Params
	body.Add("symbol", sym)
	body.Add("leverage", strconv.Itoa(q.Leverage))
	req := f.signed(http.MethodPost, apiV1Leverage)
	req.Body = body
	return req, nil
}

func (f futuresREST) buildAccount(schema.Query) (*rest.Request, error) {
	return f.signed(http.MethodGet, apiV2Account), nil
}

func (f futuresREST) buildSubmitOrder(q schema.Query) (*rest.Request, error) {
	o := q.Order
	if o == nil {
		return nil, errNoOrder
	}
	sym, err := gateway.OrderSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	return f.orderRequest(sym, *o), nil
}

// buildClosePosition sends a reduce-only market order against the position
// described by q.Order (Side is the position side).
func (f futuresREST) buildClosePosition(q schema.Query) (*rest.Request, error) {
	o := q.Order
	if o == nil {
		return nil, errNoOrder
	}
	if !o.Quantity.IsPositive() {
		return nil, errNoQuantity
	}
	sym, err := gateway.OrderSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	side := schema.OrderSideSell
	if o.Side == schema.OrderSideSell {
		side = schema.OrderSideBuy
	}
	return f.orderRequest(sym, schema.OrderRequest{
		Side:          side,
		Type:          schema.OrderTypeMarket,
		Quantity:      o.Quantity,
		ReduceOnly:    true,
		ClientOrderID: o.ClientOrderID,
	}), nil
}

func (f futuresREST) orderRequest(sym string, o schema.OrderRequest) *rest.Request {
	var body rest.Params
	body.Add("symbol", sym)
	body.Add("side", strings.ToUpper(string(o.Side)))
	body.Add("type", strings.ToUpper(string(o.Type)))
	body.Add("quantity", o.Quantity.String())
	if o.Type == schema.OrderTypeLimit {
		tif := o.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		body.Add("timeInForce", tif)
		body.Add("price", o.Price.String())
	}
	if o.ReduceOnly {
		body.Add("reduceOnly", "true")
	}
	body.Add("newClientOrderId", exchange.ClientOrderID(o.ClientOrderID, 32))
	body.Add("newOrderRespType", "RESULT")

	req := f.signed(http.MethodPost, apiV1Order)
	req.Body = body
	return req
}

func (f futuresREST) buildCancelOrder(q schema.Query) (*rest.Request, error) {
	req := f.signed(http.MethodDelete, apiV1Order)
	return req, orderRef(req, q)
}

func (f futuresREST) buildGetOrder(q schema.Query) (*rest.Request, error) {
	req := f.signed(http.MethodGet, apiV1Order)
	return req, orderRef(req, q)
}

func orderRef(req *rest.Request, q schema.Query) error {
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

// buildCancelOrders cancels every open order of a symbol. The venue replies
// {"code":200,"msg":"..."} which carries no orders.
func (f futuresREST) buildCancelOrders(q schema.Query) (*rest.Request, error) {
	sym, err := gateway.VenueSymbol(schema.BINANCE, q)
	if err != nil {
		return nil, err
	}
	req := f.signed(http.MethodDelete, apiV1AllOpen)
	req.Params.Add("symbol", sym)
	return req, nil
}

func (f futuresREST) buildOpenOrders(q schema.Query) (*rest.Request, error) {
	req := f.signed(http.MethodGet, apiV1OpenOrders)
	if q.Symbol != "" || q.VenueSymbol != "" {
		sym, err := gateway.VenueSymbol(schema.BINANCE, q)
		if err != nil {
			return nil, err
		}
		req.Params.Add("symbol", sym)
	}
	return req, nil
}

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
		Symbol            string `json:"symbol"`
		Status            string `json:"status"`
		ContractType      string `json:"contractType"`
		BaseAsset         string `json:"baseAsset"`
		QuoteAsset        string `json:"quoteAsset"`
		MarginAsset       string `json:"marginAsset"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		Filters           []struct {
			FilterType  string `json:"filterType"`
			MinQty      string `json:"minQty,omitempty"`
			MinNotional string `json:"minNotional,omitempty"`
			Notional    string `json:"notional,omitempty"`
		} `json:"filters"`
	} `json:"symbols"`
}

func mapExchangeInfo(r exchangeInfo) (any, error) {
	symbols := make([]schema.Symbol, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		// 只处理可交易的永续合约
		if s.Status != "TRADING" || s.ContractType != "PERPETUAL" {
			continue
		}
		sym := schema.Symbol{
			Symbol:            s.Symbol,
			Base:              s.BaseAsset,
			Quote:             s.QuoteAsset,
			Margin:            s.MarginAsset,
			ExchangeName:      schema.BINANCE,
			MarketType:        schema.FUTURESUSDT,
			QuantityPrecision: s.QuantityPrecision,
			PricePrecision:    s.PricePrecision,
		}
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "LOT_SIZE":
				sym.MinQuantity = flt.MinQty
			case "MIN_NOTIONAL":
				// 期货合约的最小名义价值字段名为 notional
				sym.MinNotional = flt.Notional
				if sym.MinNotional == "" {
					sym.MinNotional = flt.MinNotional
				}
			}
		}
		symbols = append(symbols, sym)
	}
	return &schema.ExchangeInfo{
		Exchange:   schema.BINANCE,
		Market:     schema.FUTURESUSDT,
		Symbols:    symbols,
		UpdatedAt:  time.Now(),
		ServerTime: exchange.Millis(r.ServerTime),
		Timezone:   r.Timezone,
	}, nil
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	T            int64      `json:"T"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

type premiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

func (p premiumIndex) fundingRate() schema.FundingRate {
	return schema.FundingRate{
		Gateway:     gatewayID,
		Symbol:      p.Symbol,
		Rate:        exchange.Dec(p.LastFundingRate),
		NextFunding: exchange.Millis(p.NextFundingTime),
	}
}

type positionRisk struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
	PositionSide     string `json:"positionSide"`
	UpdateTime       int64  `json:"updateTime"`
}

// position derives the side from the sign of positionAmt.
func (r positionRisk) position() schema.Position {
	amt := exchange.Dec(r.PositionAmt)
	side := schema.OrderSideBuy
	if amt.IsNegative() || r.PositionSide == "SHORT" {
		side = schema.OrderSideSell
	}
	lev, _ := strconv.Atoi(r.Leverage)
	return schema.Position{
		Gateway:       gatewayID,
		Symbol:        r.Symbol,
		Side:          side,
		Quantity:      amt.Abs(),
		EntryPrice:    exchange.Dec(r.EntryPrice),
		UnrealizedPnL: exchange.Dec(r.UnRealizedProfit),
		Leverage:      lev,
		UpdatedAt:     exchange.Millis(r.UpdateTime),
	}
}

type leverageResponse struct {
	Symbol   string `json:"symbol"`
	Leverage int    `json:"leverage"`
}

func mapLeverage(r leverageResponse) (any, error) {
	return &schema.Leverage{Gateway: gatewayID, Symbol: r.Symbol, Leverage: r.Leverage}, nil
}

type accountResponse struct {
	UpdateTime int64 `json:"updateTime"`
	Assets     []struct {
		Asset            string `json:"asset"`
		WalletBalance    string `json:"walletBalance"`
		AvailableBalance string `json:"availableBalance"`
	} `json:"assets"`
}

// mapAccount reports available balance as free and the rest of the wallet
// balance as locked.
func mapAccount(r accountResponse) (any, error) {
	acc := &schema.Account{
		Exchange:  schema.BINANCE,
		Market:    schema.FUTURESUSDT,
		Gateway:   gatewayID,
		Balances:  make([]schema.Balance, 0, len(r.Assets)),
		UpdatedAt: exchange.Millis(r.UpdateTime),
	}
	for _, a := range r.Assets {
		wallet := exchange.Dec(a.WalletBalance)
		if wallet.IsZero() {
			continue
		}
		free := exchange.Dec(a.AvailableBalance)
		acc.Balances = append(acc.Balances, schema.Balance{
			Asset:  a.Asset,
			Free:   free,
			Locked: wallet.Sub(free),
		})
	}
	return acc, nil
}

type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	AvgPrice      string `json:"avgPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	CumQuote      string `json:"cumQuote"`
	Status        string `json:"status"`
	TimeInForce   string `json:"timeInForce"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	ReduceOnly    bool   `json:"reduceOnly"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
}

func (o orderResponse) order() schema.Order {
	price := exchange.Dec(o.Price)
	// 市价单价格为0, 用成交均价代替
	if price.IsZero() {
		price = exchange.Dec(o.AvgPrice)
	}
	created := o.Time
	if created == 0 {
		created = o.UpdateTime
	}
	return schema.Order{
		Exchange:      schema.BINANCE,
		Market:        schema.FUTURESUSDT,
		Gateway:       gatewayID,
		Symbol:        o.Symbol,
		OrderID:       strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Side:          schema.OrderSide(strings.ToLower(o.Side)),
		Type:          schema.OrderType(strings.ToLower(o.Type)),
		Status:        orderStatus(o.Status),
		Price:         price,
		Quantity:      exchange.Dec(o.OrigQty),
		FilledQty:     exchange.Dec(o.ExecutedQty),
		QuoteQty:      exchange.Dec(o.CumQuote),
		TimeInForce:   o.TimeInForce,
		ReduceOnly:    o.ReduceOnly,
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

// klineRows converts [openTime, o, h, l, c, v, closeTime, quoteVol, trades, ...].
func klineRows(symbol string, interval schema.Interval, rows [][]any) []schema.Kline {
	out := make([]schema.Kline, 0, len(rows))
	for _, r := range rows {
		if len(r) < 9 {
			continue
		}
		closeTime := exchange.Millis(toInt(r[6]))
		out = append(out, schema.Kline{
			Exchange:    schema.BINANCE,
			Market:      schema.FUTURESUSDT,
			Gateway:     gatewayID,
			Symbol:      symbol,
			Interval:    interval,
			OpenTime:    exchange.Millis(toInt(r[0])),
			Open:        toDec(r[1]),
			High:        toDec(r[2]),
			Low:         toDec(r[3]),
			Close:       toDec(r[4]),
			Volume:      toDec(r[5]),
			CloseTime:   closeTime,
			QuoteVolume: toDec(r[7]),
			TradeNum:    toInt(r[8]),
			IsFinal:     time.Now().After(closeTime),
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
