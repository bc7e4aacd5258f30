// Package gateway is the capability-indexed facade in front of one venue.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/router"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/sign"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// Options are the per-instance settings of a gateway.
type Options struct {
	Proxy       string
	Timeout     time.Duration
	RateLimit   float64 // requests per second, 0 disables
	Burst       int
	KeepAlive   time.Duration // overrides the venue default when > 0
	Grace       time.Duration
	Credentials schema.Credentials // used when a Query carries none
	Dialer      ws.Dialer
}

// MethodFunc is one entry of the method table.
type MethodFunc func(ctx context.Context, q schema.Query, h rest.Handler)

// MethodTable maps every canonical method to its implementation.
type MethodTable map[schema.Method]MethodFunc

// Gateway runs the operations and the stream of a venue profile.
type Gateway struct {
	id       schema.GatewayID
	profile  VenueProfile
	opts     Options
	pipeline *rest.Pipeline
	methods  MethodTable

	router  *router.Router
	session *ws.Session

	mu   sync.Mutex
	subs []schema.Subscription
}

// New builds a gateway and its method table.
func New(profile VenueProfile, opts Options) *Gateway {
	g := &Gateway{
		id:      profile.ID(),
		profile: profile,
		opts:    opts,
		pipeline: rest.NewPipeline(
			rest.WithSigner(profile.Signer),
			rest.WithBenign(profile.Benign),
			rest.WithRateLimit(opts.RateLimit, opts.Burst),
			rest.WithTimeout(opts.Timeout),
		),
	}
	g.methods = g.buildMethodTable()

	if st := profile.Stream; st != nil {
		g.router = router.New(g.id, st.Resolve, st.Normalizers)
		keepAlive := st.KeepAlive
		if opts.KeepAlive > 0 {
			keepAlive = opts.KeepAlive
		}
		g.session = ws.NewSession(ws.Config{
			Name:           string(g.id),
			URL:            st.URL,
			Proxy:          opts.Proxy,
			KeepAlive:      keepAlive,
			KeepAliveFrame: st.KeepAliveFrame,
			Grace:          opts.Grace,
			Dialer:         opts.Dialer,
			OnConnected:    g.onConnected,
			OnMessage:      g.router.Dispatch,
		})
	}
	return g
}

func (g *Gateway) buildMethodTable() MethodTable {
	table := make(MethodTable, len(schema.AllMethods()))
	for _, m := range schema.AllMethods() {
		m := m
		op, ok := g.profile.Operations[m]
		if !ok || op.Build == nil {
			table[m] = func(context.Context, schema.Query, rest.Handler) {
				logger.Debug("%s 不支持 %s", g.id, m)
			}
			continue
		}
		table[m] = func(ctx context.Context, q schema.Query, h rest.Handler) {
			req, err := g.build(m, op, q)
			if err != nil {
				rest.BuildFailure(req, err).Dispatch(h)
				return
			}
			g.pipeline.Execute(ctx, req, h)
		}
	}
	return table
}

// build turns q into a ready request. The returned request is non-nil even
// on error so the outcome can carry Extra.
func (g *Gateway) build(m schema.Method, op Operation, q schema.Query) (*rest.Request, error) {
	if q.Proxy == "" {
		q.Proxy = g.opts.Proxy
	}
	if q.Credentials.IsZero() {
		q.Credentials = g.opts.Credentials
	}

	req, err := op.Build(q)
	if err != nil {
		logger.WithGateway(string(g.id)).Warnf("%s 构建请求失败: %v", m, err)
		return &rest.Request{Gateway: string(g.id), Extra: q.Extra}, err
	}
	req.Gateway = string(g.id)
	if req.Mapper == nil {
		req.Mapper = op.Map
	}
	if req.Timeout <= 0 {
		req.Timeout = q.Timeout
	}
	if req.Proxy == "" {
		req.Proxy = q.Proxy
	}
	if req.Extra == nil {
		req.Extra = make(map[string]any, len(q.Extra)+1)
	}
	for k, v := range q.Extra {
		if _, set := req.Extra[k]; !set {
			req.Extra[k] = v
		}
	}
	req.Extra["method"] = string(m)
	if req.NeedsSign {
		req.Extra[sign.ExtraCredentials] = q.Credentials
	}
	return req, nil
}

// ID returns the gateway id, e.g. binance_spot.
func (g *Gateway) ID() schema.GatewayID { return g.id }

// Name returns the exchange.
func (g *Gateway) Name() schema.ExchangeName { return g.profile.Exchange }

// Market returns the market type.
func (g *Gateway) Market() schema.MarketType { return g.profile.Market }

// Supports reports whether the venue implements m.
func (g *Gateway) Supports(m schema.Method) bool {
	op, ok := g.profile.Operations[m]
	return ok && op.Build != nil
}

// Methods lists the supported methods in canonical order.
func (g *Gateway) Methods() []schema.Method {
	var out []schema.Method
	for _, m := range schema.AllMethods() {
		if g.Supports(m) {
			out = append(out, m)
		}
	}
	return out
}

// Method looks a method up by name ("get_depths", "GetDepths").
func (g *Gateway) Method(name string) (MethodFunc, error) {
	m, ok := schema.ParseMethod(name)
	if !ok {
		return nil, ErrUnknownMethod
	}
	return g.methods[m], nil
}

// Invoke runs a method by name. Unsupported methods are a no-op.
func (g *Gateway) Invoke(ctx context.Context, name string, q schema.Query, h rest.Handler) error {
	fn, err := g.Method(name)
	if err != nil {
		return err
	}
	fn(ctx, q, h)
	return nil
}

// Do runs m synchronously. An unsupported method yields a Build error outcome.
func (g *Gateway) Do(ctx context.Context, m schema.Method, q schema.Query) rest.Outcome {
	op, ok := g.profile.Operations[m]
	if !ok || op.Build == nil {
		return rest.BuildFailure(nil, ErrUnknownMethod)
	}
	req, err := g.build(m, op, q)
	if err != nil {
		return rest.BuildFailure(req, err)
	}
	return g.pipeline.Do(ctx, req)
}

func (g *Gateway) call(ctx context.Context, m schema.Method, q schema.Query, h rest.Handler) {
	g.methods[m](ctx, q, h)
}

func (g *Gateway) GetTime(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetTime, q, h)
}

func (g *Gateway) GetExchangeInfos(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetExchangeInfos, q, h)
}

func (g *Gateway) GetCoinInfo(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetCoinInfo, q, h)
}

func (g *Gateway) GetDepths(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetDepths, q, h)
}

func (g *Gateway) GetTrades(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetTrades, q, h)
}

func (g *Gateway) GetPublicTrades(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetPublicTrades, q, h)
}

func (g *Gateway) SubmitOrder(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.SubmitOrder, q, h)
}

func (g *Gateway) BatchSubmitOrders(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.BatchSubmitOrders, q, h)
}

func (g *Gateway) CancelOrder(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.CancelOrder, q, h)
}

func (g *Gateway) CancelBatchOrders(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.CancelBatchOrders, q, h)
}

func (g *Gateway) CancelOrders(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.CancelOrders, q, h)
}

func (g *Gateway) ClosePosition(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.ClosePosition, q, h)
}

func (g *Gateway) ClosePositions(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.ClosePositions, q, h)
}

func (g *Gateway) GetAccount(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetAccount, q, h)
}

func (g *Gateway) Withdraw(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.Withdraw, q, h)
}

func (g *Gateway) WithdrawStatus(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.WithdrawStatus, q, h)
}

func (g *Gateway) UpdateLeverage(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.UpdateLeverage, q, h)
}

func (g *Gateway) GetPosition(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetPosition, q, h)
}

func (g *Gateway) GetPositions(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetPositions, q, h)
}

func (g *Gateway) GetOrder(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetOrder, q, h)
}

func (g *Gateway) GetOrders(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetOrders, q, h)
}

func (g *Gateway) GetOpenOrders(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetOpenOrders, q, h)
}

func (g *Gateway) GetFundingRate(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetFundingRate, q, h)
}

func (g *Gateway) GetFundingRates(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetFundingRates, q, h)
}

func (g *Gateway) GetKlines(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetKlines, q, h)
}

func (g *Gateway) GetPending(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetPending, q, h)
}

func (g *Gateway) GetTicker(ctx context.Context, q schema.Query, h rest.Handler) {
	g.call(ctx, schema.GetTicker, q, h)
}
