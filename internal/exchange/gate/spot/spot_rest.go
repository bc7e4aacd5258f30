package spot

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

const (
	baseURL = "https://api.gateio.ws/api/v4"

	pathTime          = "/spot/time"
	pathCurrencyPairs = "/spot/currency_pairs"
	pathOrderBook     = "/spot/order_book"
	pathCurrencies    = "/spot/currencies"
	pathAccounts      = "/spot/accounts"
	pathOrders        = "/spot/orders"
	pathCandlesticks  = "/spot/candlesticks"
	pathTickers       = "/spot/tickers"
	pathMyTrades      = "/spot/my_trades"
	pathWithdrawals   = "/withdrawals"
	pathWithdrawList  = "/wallet/withdrawals"

	defaultDepthLimit = 20
	// text 字段要求 t- 前缀,总长不超过 30
	clientIDLen = 28
)

var (
	errNoOrder    = errors.New("gate spot: order is required")
	errNoOrderID  = errors.New("gate spot: order id is required")
	errNoWithdraw = errors.New("gate spot: withdraw request is required")
)

var gatewayID = schema.NewGatewayID(schema.GATE, schema.SPOT)

type spotREST struct {
	base string
}

func (s spotREST) operations() map[schema.Method]gateway.Operation {
	return map[schema.Method]gateway.Operation{
		schema.GetTime:          {Build: s.public(pathTime), Map: exchange.JSONMapper(mapServerTime)},
		schema.GetExchangeInfos: {Build: s.public(pathCurrencyPairs), Map: exchange.JSONMapper(mapCurrencyPairs)},
		schema.GetDepths:        {Build: s.buildDepth},
		schema.GetCoinInfo:      {Build: s.public(pathCurrencies), Map: exchange.JSONMapper(mapCurrencies)},
		schema.GetAccount:       {Build: s.private(http.MethodGet, pathAccounts), Map: exchange.JSONMapper(mapAccounts)},
		schema.GetTrades:        {Build: s.buildMyTrades, Map: exchange.JSONMapper(mapMyTrades)},
		schema.SubmitOrder:      {Build: s.buildSubmitOrder, Map: exchange.JSONMapper(mapOrder)},
		schema.CancelOrder:      {Build: s.orderByID(http.MethodDelete), Map: exchange.JSONMapper(mapOrder)},
		schema.GetOrder:         {Build: s.orderByID(http.MethodGet), Map: exchange.JSONMapper(mapOrder)},
		schema.GetOpenOrders:    {Build: s.buildOpenOrders, Map: exchange.JSONMapper(mapOrders)},
		schema.Withdraw:         {Build: s.buildWithdraw, Map: exchange.JSONMapper(mapWithdraw)},
		schema.WithdrawStatus:   {Build: s.buildWithdrawStatus, Map: exchange.JSONMapper(mapWithdrawals)},
		schema.GetKlines:        {Build: s.buildKlines},
		schema.GetTicker:        {Build: s.buildTicker, Map: exchange.JSONMapper(mapTickers)},
	}
}

func (s spotREST) public(path string) func(schema.Query) (*rest.Request, error) {
	return func(schema.Query) (*rest.Request, error) {
		return rest.NewRequest(http.MethodGet, s.base+path), nil
	}
}

func (s spotREST) private(method, path string) func(schema.Query) (*rest.Request, error) {
	return func(schema.Query) (*rest.Request, error) {
		return s.signed(method, path), nil
	}
}

func (s spotREST) signed(method, path string) *rest.Request {
	req := rest.NewRequest(method, s.base+path)
	req.NeedsSign = true
	req.Encoding = rest.EncodingJSON
	return req
}

func (s spotREST) buildDepth(q schema.Query) (*rest.Request, error) {
	pair, err := gateway.VenueSymbol(schema.GATE, q)
	if err != nil {
		return nil, err
	}
	limit := q.DepthLimit
	if limit <= 0 {
		limit = defaultDepthLimit
	}
	req := rest.NewRequest(http.MethodGet, s.base+pathOrderBook)
	req.Params.Add("currency_pair", pair)
	req.Params.Add("limit", strconv.Itoa(limit))
	req.Params.Add("with_id", "true")
	req.Mapper = exchange.JSONMapper(func(r orderBook) (any, error) {
		return &schema.Depth{
			Exchange:     schema.GATE,
			Market:       schema.SPOT,
			Gateway:      gatewayID,
			Symbol:       pair,
			Bids:         schema.ParseLevels(r.Bids, limit),
			Asks:         schema.ParseLevels(r.Asks, limit),
			VenueTime:    exchange.Millis(r.Current),
			UpdatedAt:    time.Now(),
			LastUpdateId: strconv.FormatInt(r.ID, 10),
		}, nil
	})
	return req, nil
}

func (s spotREST) buildMyTrades(q schema.Query) (*rest.Request, error) {
	pair, err := gateway.VenueSymbol(schema.GATE, q)
	if err != nil {
		return nil, err
	}
	req := s.signed(http.MethodGet, pathMyTrades)
	req.Params.Add("currency_pair", pair)
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	return req, nil
}

// submitOrder is the JSON body of POST /spot/orders.
type submitOrder struct {
	Text         string `json:"text"`
	CurrencyPair string `json:"currency_pair"`
	Type         string `json:"type"`
	Account      string `json:"account"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price,omitempty"`
	TimeInForce  string `json:"time_in_force"`
}

func clientText(id string) string {
	id = exchange.ClientOrderID(strings.TrimPrefix(id, "t-"), clientIDLen)
	if len(id) > clientIDLen {
		id = id[:clientIDLen]
	}
	return "t-" + id
}

func (s spotREST) buildSubmitOrder(q schema.Query) (*rest.Request, error) {
	o := q.Order
	if o == nil {
		return nil, errNoOrder
	}
	pair, err := gateway.OrderSymbol(schema.GATE, q)
	if err != nil {
		return nil, err
	}
	body := submitOrder{
		Text:         clientText(o.ClientOrderID),
		CurrencyPair: pair,
		Type:         string(o.Type),
		Account:      "spot",
		Side:         string(o.Side),
		Amount:       o.Quantity.String(),
		TimeInForce:  "gtc",
	}
	if tif := strings.ToLower(o.TimeInForce); tif != "" {
		body.TimeInForce = tif
	}
	if o.Type == schema.OrderTypeMarket {
		// 市价单只支持 ioc/fok,买单 amount 为计价币数量
		if body.TimeInForce == "gtc" {
			body.TimeInForce = "ioc"
		}
		if o.Side == schema.OrderSideBuy && o.QuoteQty.IsPositive() {
			body.Amount = o.QuoteQty.String()
		}
	} else {
		body.Price = o.Price.String()
	}
	req := s.signed(http.MethodPost, pathOrders)
	req.Body = body
	return req, nil
}

// orderByID builds /spot/orders/{id}?currency_pair=... for cancel and query.
func (s spotREST) orderByID(method string) func(schema.Query) (*rest.Request, error) {
	return func(q schema.Query) (*rest.Request, error) {
		pair, err := gateway.OrderSymbol(schema.GATE, q)
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
		req := s.signed(method, pathOrders+"/"+id)
		req.Params.Add("currency_pair", pair)
		return req, nil
	}
}

func (s spotREST) buildOpenOrders(q schema.Query) (*rest.Request, error) {
	pair, err := gateway.VenueSymbol(schema.GATE, q)
	if err != nil {
		return nil, err
	}
	req := s.signed(http.MethodGet, pathOrders)
	req.Params.Add("currency_pair", pair)
	req.Params.Add("status", "open")
	return req, nil
}

type withdrawBody struct {
	Currency string `json:"currency"`
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Memo     string `json:"memo,omitempty"`
	Chain    string `json:"chain"`
}

func (s spotREST) buildWithdraw(q schema.Query) (*rest.Request, error) {
	w := q.Withdraw
	if w == nil {
		return nil, errNoWithdraw
	}
	req := s.signed(http.MethodPost, pathWithdrawals)
	req.Body = withdrawBody{
		Currency: w.Asset,
		Address:  w.Address,
		Amount:   w.Amount.String(),
		Memo:     w.Memo,
		Chain:    strings.ToUpper(w.Chain),
	}
	return req, nil
}

func (s spotREST) buildWithdrawStatus(q schema.Query) (*rest.Request, error) {
	req := s.signed(http.MethodGet, pathWithdrawList)
	if q.Withdraw != nil && q.Withdraw.Asset != "" {
		req.Params.Add("currency", q.Withdraw.Asset)
	}
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	return req, nil
}

func (s spotREST) buildKlines(q schema.Query) (*rest.Request, error) {
	pair, err := gateway.VenueSymbol(schema.GATE, q)
	if err != nil {
		return nil, err
	}
	interval := q.Interval
	if interval == "" {
		interval = schema.Interval1m
	}
	req := rest.NewRequest(http.MethodGet, s.base+pathCandlesticks)
	req.Params.Add("currency_pair", pair)
	req.Params.Add("interval", string(interval))
	if q.Limit > 0 {
		req.Params.Add("limit", strconv.Itoa(q.Limit))
	}
	// [t, 成交额, close, high, low, open, 成交量, 是否完结]
	req.Mapper = exchange.JSONMapper(func(rows [][]string) (any, error) {
		out := make([]schema.Kline, 0, len(rows))
		for _, r := range rows {
			if len(r) < 7 {
				continue
			}
			open := exchange.Seconds(r[0])
			out = append(out, schema.Kline{
				Exchange:    schema.GATE,
				Market:      schema.SPOT,
				Gateway:     gatewayID,
				Symbol:      pair,
				Interval:    interval,
				OpenTime:    open,
				QuoteVolume: exchange.Dec(r[1]),
				Close:       exchange.Dec(r[2]),
				High:        exchange.Dec(r[3]),
				Low:         exchange.Dec(r[4]),
				Open:        exchange.Dec(r[5]),
				Volume:      exchange.Dec(r[6]),
				IsFinal:     len(r) > 7 && r[7] == "true",
			})
		}
		return out, nil
	})
	return req, nil
}

func (s spotREST) buildTicker(q schema.Query) (*rest.Request, error) {
	req := rest.NewRequest(http.MethodGet, s.base+pathTickers)
	if q.Symbol == "" && q.VenueSymbol == "" {
		return req, nil
	}
	pair, err := gateway.VenueSymbol(schema.GATE, q)
	if err != nil {
		return nil, err
	}
	req.Params.Add("currency_pair", pair)
	req.Mapper = exchange.JSONMapper(func(rows []ticker) (any, error) {
		if len(rows) == 0 {
			return nil, errors.New("gate spot: empty ticker reply")
		}
		t := rows[0].canonical(time.Now())
		return &t, nil
	})
	return req, nil
}

// isBenign matches Gate's label-style errors.
func isBenign(_ int, body any) bool {
	m, ok := body.(map[string]any)
	if !ok {
		return false
	}
	label, _ := m["label"].(string)
	return label == "ORDER_NOT_FOUND" || label == "ORDER_CLOSED"
}

// ---- wire types ----

type serverTime struct {
	ServerTime int64 `json:"server_time"`
}

func mapServerTime(r serverTime) (any, error) {
	return &schema.ServerTime{Gateway: gatewayID, Time: exchange.Millis(r.ServerTime)}, nil
}

type currencyPair struct {
	ID              string `json:"id"`
	Base            string `json:"base"`
	Quote           string `json:"quote"`
	MinBaseAmount   string `json:"min_base_amount"`
	MinQuoteAmount  string `json:"min_quote_amount"`
	AmountPrecision int    `json:"amount_precision"`
	Precision       int    `json:"precision"`
	TradeStatus     string `json:"trade_status"`
}

func mapCurrencyPairs(rows []currencyPair) (any, error) {
	info := &schema.ExchangeInfo{
		Exchange:  schema.GATE,
		Market:    schema.SPOT,
		UpdatedAt: time.Now(),
		Symbols:   make([]schema.Symbol, 0, len(rows)),
	}
	for _, p := range rows {
		if p.TradeStatus != "tradable" {
			continue
		}
		info.Symbols = append(info.Symbols, schema.Symbol{
			Symbol:            p.ID,
			Base:              p.Base,
			Quote:             p.Quote,
			ExchangeName:      schema.GATE,
			MarketType:        schema.SPOT,
			QuantityPrecision: p.AmountPrecision,
			PricePrecision:    p.Precision,
			MinQuantity:       p.MinBaseAmount,
			MinNotional:       p.MinQuoteAmount,
		})
	}
	return info, nil
}

type orderBook struct {
	ID      int64      `json:"id"`
	Current int64      `json:"current"`
	Update  int64      `json:"update"`
	Asks    [][]string `json:"asks"`
	Bids    [][]string `json:"bids"`
}

type currency struct {
	Currency         string `json:"currency"`
	Delisted         bool   `json:"delisted"`
	WithdrawDisabled bool   `json:"withdraw_disabled"`
	DepositDisabled  bool   `json:"deposit_disabled"`
}

func mapCurrencies(rows []currency) (any, error) {
	out := make([]schema.CoinInfo, 0, len(rows))
	for _, c := range rows {
		out = append(out, schema.CoinInfo{
			Gateway:         gatewayID,
			Asset:           c.Currency,
			DepositEnabled:  !c.Delisted && !c.DepositDisabled,
			WithdrawEnabled: !c.Delisted && !c.WithdrawDisabled,
		})
	}
	return out, nil
}

type accountLine struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

func mapAccounts(rows []accountLine) (any, error) {
	acc := &schema.Account{
		Exchange:  schema.GATE,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Balances:  make([]schema.Balance, 0, len(rows)),
		UpdatedAt: time.Now(),
	}
	for _, r := range rows {
		acc.Balances = append(acc.Balances, schema.Balance{
			Asset:  r.Currency,
			Free:   exchange.Dec(r.Available),
			Locked: exchange.Dec(r.Locked),
		})
	}
	return acc, nil
}

type myTrade struct {
	ID           string `json:"id"`
	CreateTimeMs string `json:"create_time_ms"`
	CurrencyPair string `json:"currency_pair"`
	Side         string `json:"side"`
	Role         string `json:"role"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	OrderID      string `json:"order_id"`
	Fee          string `json:"fee"`
	FeeCurrency  string `json:"fee_currency"`
}

func mapMyTrades(rows []myTrade) (any, error) {
	out := make([]schema.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, schema.Trade{
			Exchange:        schema.GATE,
			Market:          schema.SPOT,
			Gateway:         gatewayID,
			Symbol:          r.CurrencyPair,
			TradeID:         r.ID,
			OrderID:         r.OrderID,
			Side:            schema.OrderSide(r.Side),
			Price:           exchange.Dec(r.Price),
			Quantity:        exchange.Dec(r.Amount),
			Commission:      exchange.Dec(r.Fee),
			CommissionAsset: r.FeeCurrency,
			Timestamp:       exchange.Seconds(msToSeconds(r.CreateTimeMs)),
			IsMaker:         r.Role == "maker",
		})
	}
	return out, nil
}

// msToSeconds turns "1700000000123.456" ms into a seconds string.
func msToSeconds(ms string) string {
	return exchange.Dec(ms).Shift(-3).String()
}

type orderReply struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	CreateTimeMs int64  `json:"create_time_ms"`
	UpdateTimeMs int64  `json:"update_time_ms"`
	Status       string `json:"status"`
	CurrencyPair string `json:"currency_pair"`
	Type         string `json:"type"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	TimeInForce  string `json:"time_in_force"`
	Left         string `json:"left"`
	FilledTotal  string `json:"filled_total"`
	FinishAs     string `json:"finish_as"`
}

func (o orderReply) order() schema.Order {
	amount := exchange.Dec(o.Amount)
	filled := amount.Sub(exchange.Dec(o.Left))
	return schema.Order{
		Exchange:      schema.GATE,
		Market:        schema.SPOT,
		Gateway:       gatewayID,
		Symbol:        o.CurrencyPair,
		OrderID:       o.ID,
		ClientOrderID: o.Text,
		Side:          schema.OrderSide(o.Side),
		Type:          schema.OrderType(o.Type),
		Status:        orderStatus(o.Status, o.FinishAs, filled.IsPositive()),
		Price:         exchange.Dec(o.Price),
		Quantity:      amount,
		FilledQty:     filled,
		QuoteQty:      exchange.Dec(o.FilledTotal),
		TimeInForce:   o.TimeInForce,
		CreatedAt:     exchange.Millis(o.CreateTimeMs),
		UpdatedAt:     exchange.Millis(o.UpdateTimeMs),
	}
}

func orderStatus(status, finishAs string, anyFilled bool) schema.OrderStatus {
	switch status {
	case "open":
		if anyFilled {
			return schema.OrderStatusPartially
		}
		return schema.OrderStatusOpen
	case "closed":
		if finishAs == "filled" || finishAs == "" {
			return schema.OrderStatusFilled
		}
		return schema.OrderStatusCanceled
	case "cancelled":
		return schema.OrderStatusCanceled
	}
	return schema.OrderStatusPending
}

func mapOrder(o orderReply) (any, error) {
	out := o.order()
	return &out, nil
}

func mapOrders(rows []orderReply) (any, error) {
	out := make([]schema.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.order())
	}
	return out, nil
}

type withdrawal struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Status   string `json:"status"`
	Chain    string `json:"chain"`
}

func (w withdrawal) withdraw() schema.WithdrawRecord {
	return schema.WithdrawRecord{
		Gateway: gatewayID,
		ID:      w.ID,
		Asset:   w.Currency,
		Chain:   w.Chain,
		Address: w.Address,
		Amount:  exchange.Dec(w.Amount),
		Status:  strings.ToLower(w.Status),
	}
}

func mapWithdraw(w withdrawal) (any, error) {
	out := w.withdraw()
	return &out, nil
}

func mapWithdrawals(rows []withdrawal) (any, error) {
	out := make([]schema.WithdrawRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.withdraw())
	}
	return out, nil
}

type ticker struct {
	CurrencyPair string `json:"currency_pair"`
	Last         string `json:"last"`
	High24h      string `json:"high_24h"`
	Low24h       string `json:"low_24h"`
	BaseVolume   string `json:"base_volume"`
	QuoteVolume  string `json:"quote_volume"`
}

func (t ticker) canonical(at time.Time) schema.Ticker {
	return schema.Ticker{
		Exchange:  schema.GATE,
		Market:    schema.SPOT,
		Gateway:   gatewayID,
		Symbol:    t.CurrencyPair,
		High:      exchange.Dec(t.High24h),
		Low:       exchange.Dec(t.Low24h),
		Price:     exchange.Dec(t.Last),
		Volume:    exchange.Dec(t.BaseVolume),
		QuoteVol:  exchange.Dec(t.QuoteVolume),
		Timestamp: at,
	}
}

func mapTickers(rows []ticker) (any, error) {
	now := time.Now()
	all := &schema.Tickers{Gateway: gatewayID, List: make([]schema.Ticker, 0, len(rows))}
	for _, r := range rows {
		all.List = append(all.List, r.canonical(now))
	}
	return all, nil
}
