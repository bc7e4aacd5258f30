package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
)

// DefaultTimeout applies when a Request carries no Timeout.
const DefaultTimeout = 10 * time.Second

// Signer produces a signed copy of a request.
type Signer interface {
	Sign(*Request) (*Request, error)
}

// BenignFunc reports whether a non-200 body is a known harmless venue reply,
// e.g. Binance -2011 (unknown order) on cancel.
type BenignFunc func(status int, body any) bool

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSigner sets the signer used for NeedsSign requests.
func WithSigner(s Signer) Option {
	return func(p *Pipeline) { p.signer = s }
}

// WithBenign sets the benign failure classifier.
func WithBenign(fn BenignFunc) Option {
	return func(p *Pipeline) { p.benign = fn }
}

// WithRateLimit throttles calls to rps with the given burst. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Pipeline) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Pipeline executes Requests: sign, build, send, classify, dispatch.
// It never retries. A Pipeline is safe for concurrent use.
type Pipeline struct {
	signer  Signer
	benign  BenignFunc
	limiter *rate.Limiter
	timeout time.Duration

	mu      sync.RWMutex
	clients map[string]*resty.Client // proxy -> client
}

// NewPipeline creates a pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{timeout: DefaultTimeout, clients: make(map[string]*resty.Client)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs req in its own goroutine and returns immediately. h receives
// exactly one callback.
func (p *Pipeline) Execute(ctx context.Context, req *Request, h Handler) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("REST 回调 panic: %v (url=%s)", r, req.URL)
			}
		}()
		p.Do(ctx, req).Dispatch(h)
	}()
}

// Do runs req synchronously and returns its Outcome.
func (p *Pipeline) Do(ctx context.Context, req *Request) Outcome {
	start := time.Now()
	oc := p.do(ctx, req)
	oc.Elapsed = time.Since(start)
	p.logOutcome(oc)
	return oc
}

func (p *Pipeline) do(ctx context.Context, req *Request) Outcome {
	if req == nil {
		return errorOutcome(nil, BuildError, 0, errors.New("nil request"))
	}

	if req.NeedsSign {
		if p.signer == nil {
			return errorOutcome(req, BuildError, 0, errors.New("request needs signing but no signer is configured"))
		}
		signed, err := p.signer.Sign(req)
		if err != nil {
			return errorOutcome(req, BuildError, 0, fmt.Errorf("sign: %w", err))
		}
		req = signed
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return errorOutcome(req, TransportError, 0, err)
			}
			return timeoutOutcome(req, err)
		}
	}

	r := p.client(req.Proxy).R().SetContext(ctx)
	for k, v := range req.Header {
		r.SetHeader(k, v)
	}
	if req.hasBody() {
		body, err := req.EncodeBody()
		if err != nil {
			return errorOutcome(req, BuildError, 0, err)
		}
		if _, ok := req.Header["Content-Type"]; !ok {
			r.SetHeader("Content-Type", req.contentType())
		}
		r.SetBody(body)
	}

	resp, err := r.Execute(req.Method, req.FullURL())
	if err != nil {
		if isTimeout(ctx, err) {
			return timeoutOutcome(req, err)
		}
		return errorOutcome(req, TransportError, 0, err)
	}

	return p.classify(req, resp.StatusCode(), resp.Body())
}

func (p *Pipeline) classify(req *Request, status int, raw []byte) Outcome {
	body, err := decodeJSON(raw)
	if err != nil {
		oc := errorOutcome(req, DecodeError, status, err)
		oc.Raw = raw
		return oc
	}

	if status != 200 {
		return Outcome{
			Kind:    KindFailure,
			Request: req,
			Status:  status,
			Body:    body,
			Raw:     raw,
			Err:     &Error{Kind: ApplicationError, Status: status, Err: fmt.Errorf("venue rejected request: %s", truncate(raw))},
			Benign:  p.benign != nil && p.benign(status, body),
		}
	}

	oc := Outcome{Kind: KindSuccess, Request: req, Status: status, Body: body, Raw: raw}
	if req.Mapper != nil {
		result, err := mapBody(req.Mapper, raw, body)
		if err != nil {
			oc := errorOutcome(req, DecodeError, status, fmt.Errorf("map response: %w", err))
			oc.Raw = raw
			return oc
		}
		oc.Result = result
	}
	return oc
}

// mapBody runs m, turning a panic on an unexpected shape into an error.
func mapBody(m Mapper, raw []byte, body any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("mapper panic: %v", r)
		}
	}()
	return m(raw, body)
}

// client returns the resty client of a proxy, creating it on first use.
func (p *Pipeline) client(proxy string) *resty.Client {
	p.mu.RLock()
	c, ok := p.clients[proxy]
	p.mu.RUnlock()
	if ok {
		return c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = p.clients[proxy]; ok {
		return c
	}
	c = resty.New()
	if proxy != "" {
		c.SetProxy(proxy)
	}
	p.clients[proxy] = c
	return c
}

func (p *Pipeline) logOutcome(oc Outcome) {
	if oc.Kind == KindSuccess {
		return
	}
	fields := logger.Fields{"kind": oc.Kind.String(), "status": oc.Status, "elapsed": oc.Elapsed.String()}
	if oc.Request != nil {
		fields["gateway"] = oc.Request.Gateway
		fields["url"] = oc.Request.URL
	}
	entry := logger.WithFields(fields)
	switch {
	case oc.Benign:
		entry.Debugf("交易所返回可忽略错误: %s", truncate(oc.Raw))
	case oc.Kind == KindFailure:
		entry.Warnf("REST 请求失败: %s", truncate(oc.Raw))
	default:
		entry.Errorf("REST 请求异常: %v", oc.Err)
	}
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// 整个响应体必须是单个 JSON 值
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("decode response: trailing data after JSON value")
	}
	return v, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}

// BenignCodes matches bodies of the form {"code": <n>, ...} against codes.
func BenignCodes(codes ...int64) BenignFunc {
	return func(_ int, body any) bool {
		m, ok := body.(map[string]any)
		if !ok {
			return false
		}
		n, ok := m["code"].(json.Number)
		if !ok {
			return false
		}
		code, err := n.Int64()
		if err != nil {
			return false
		}
		for _, c := range codes {
			if c == code {
				return true
			}
		}
		return false
	}
}
