package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	mu       sync.Mutex
	success  int
	failure  int
	errored  int
	timeouts int
	last     Outcome
	done     chan struct{}
}

func newCountingHandler() *countingHandler {
	return &countingHandler{done: make(chan struct{}, 64)}
}

func (h *countingHandler) record(o Outcome, n *int) {
	h.mu.Lock()
	*n++
	h.last = o
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *countingHandler) OnSuccess(o Outcome) { h.record(o, &h.success) }
func (h *countingHandler) OnFailure(o Outcome) { h.record(o, &h.failure) }
func (h *countingHandler) OnError(o Outcome)   { h.record(o, &h.errored) }
func (h *countingHandler) OnTimeout(o Outcome) { h.record(o, &h.timeouts) }

func (h *countingHandler) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.success + h.failure + h.errored + h.timeouts
}

func (h *countingHandler) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not called")
	}
}

type staticSigner struct{ err error }

func (s staticSigner) Sign(r *Request) (*Request, error) {
	if s.err != nil {
		return nil, s.err
	}
	c := r.Clone()
	c.Params.Add("signature", "sig")
	return c, nil
}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDoSuccessPreservesNumbers(t *testing.T) {
	srv := jsonServer(t, 200, `{"price":"1.10","qty":12345678901234567890}`)
	p := NewPipeline()

	oc := p.Do(context.Background(), NewRequest(http.MethodGet, srv.URL))
	require.Equal(t, KindSuccess, oc.Kind)
	assert.Nil(t, oc.Err)
	assert.Equal(t, 200, oc.Status)

	body := oc.Body.(map[string]any)
	assert.Equal(t, json.Number("12345678901234567890"), body["qty"])
	assert.Equal(t, "1.10", body["price"])
}

func TestQueryOrderMatchesInsertionOrder(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	req := NewRequest(http.MethodGet, srv.URL+"/api/v3/depth")
	req.Params.Add("symbol", "BTCUSDT")
	req.Params.Add("limit", "5")
	req.Params.Add("a", "x y")
	req.NeedsSign = true

	oc := NewPipeline(WithSigner(staticSigner{})).Do(context.Background(), req)
	require.Equal(t, KindSuccess, oc.Kind)
	assert.Equal(t, "symbol=BTCUSDT&limit=5&a=x+y&signature=sig", got)
	assert.Len(t, req.Params, 3, "original request must stay unsigned")
}

func TestPostBodyEncodings(t *testing.T) {
	type seen struct{ contentType, body string }
	var last seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		last = seen{r.Header.Get("Content-Type"), string(b)}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()
	p := NewPipeline()

	form := NewRequest(http.MethodPost, srv.URL)
	form.Body = Params{{"symbol", "BTCUSDT"}, {"side", "BUY"}}
	require.Equal(t, KindSuccess, p.Do(context.Background(), form).Kind)
	assert.Equal(t, "application/x-www-form-urlencoded", last.contentType)
	assert.Equal(t, "symbol=BTCUSDT&side=BUY", last.body)

	rpc := NewRequest(http.MethodPost, srv.URL)
	rpc.Encoding = EncodingJSON
	rpc.Body = map[string]any{"jsonrpc": "2.0", "id": 1, "method": "eth_blockNumber", "params": []any{}}
	require.Equal(t, KindSuccess, p.Do(context.Background(), rpc).Kind)
	assert.Equal(t, "application/json", last.contentType)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`, last.body)
}

func TestNon200IsFailure(t *testing.T) {
	srv := jsonServer(t, 400, `{"code":-1121,"msg":"Invalid symbol."}`)
	oc := NewPipeline(WithBenign(BenignCodes(-2011))).Do(context.Background(), NewRequest(http.MethodGet, srv.URL))

	require.Equal(t, KindFailure, oc.Kind)
	assert.Equal(t, 400, oc.Status)
	assert.False(t, oc.Benign)
	assert.Equal(t, ApplicationError, oc.ErrorKind())
}

func TestBenignCodeIsStillFailure(t *testing.T) {
	srv := jsonServer(t, 400, `{"code":-2011,"msg":"Unknown order sent."}`)
	h := newCountingHandler()

	NewPipeline(WithBenign(BenignCodes(-2011))).Execute(context.Background(), NewRequest(http.MethodDelete, srv.URL), h)
	h.wait(t)

	assert.Equal(t, 1, h.failure)
	assert.Equal(t, 1, h.total())
	assert.True(t, h.last.Benign)
}

func TestUndecodableBodyIsError(t *testing.T) {
	for _, status := range []int{200, 502} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			srv := jsonServer(t, status, `<html>bad gateway</html>`)
			oc := NewPipeline().Do(context.Background(), NewRequest(http.MethodGet, srv.URL))
			require.Equal(t, KindError, oc.Kind)
			assert.Equal(t, DecodeError, oc.ErrorKind())
			assert.Zero(t, oc.Status)
			assert.Nil(t, oc.Body)
			assert.Equal(t, status, oc.Err.(*Error).Status)
			assert.Equal(t, "<html>bad gateway</html>", string(oc.Raw))
		})
	}
}

func TestTrailingDataAfterJSONIsError(t *testing.T) {
	srv := jsonServer(t, 200, `{"ok":1}<html>oops</html>`)
	h := newCountingHandler()

	NewPipeline().Execute(context.Background(), NewRequest(http.MethodGet, srv.URL), h)
	h.wait(t)

	assert.Equal(t, 1, h.errored)
	assert.Equal(t, 1, h.total())
	assert.Equal(t, DecodeError, h.last.ErrorKind())

	// 末尾空白仍然合法
	padded := jsonServer(t, 200, "{\"ok\":1}\n")
	assert.Equal(t, KindSuccess, NewPipeline().Do(context.Background(), NewRequest(http.MethodGet, padded.URL)).Kind)
}

func TestMapperPanicRoutesToOnError(t *testing.T) {
	srv := jsonServer(t, 200, `{"bids":[]}`)
	req := NewRequest(http.MethodGet, srv.URL)
	req.Mapper = func(_ []byte, body any) (any, error) {
		return body.(map[string]any)["bids"].([]any)[0], nil
	}

	h := newCountingHandler()
	NewPipeline().Execute(context.Background(), req, h)
	h.wait(t)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.errored)
	assert.Equal(t, 1, h.total())
	assert.Equal(t, DecodeError, h.last.ErrorKind())
	assert.Nil(t, h.last.Result)

	var oc Outcome
	assert.NotPanics(t, func() { oc = NewPipeline().Do(context.Background(), req) })
	assert.Equal(t, KindError, oc.Kind)
}

func TestMapperResultAndError(t *testing.T) {
	srv := jsonServer(t, 200, `{"serverTime":1700000000000}`)
	p := NewPipeline()

	ok := NewRequest(http.MethodGet, srv.URL)
	ok.Mapper = func(raw []byte, _ any) (any, error) {
		var v struct{ ServerTime int64 }
		return v.ServerTime, json.Unmarshal(raw, &v)
	}
	oc := p.Do(context.Background(), ok)
	require.Equal(t, KindSuccess, oc.Kind)
	assert.Equal(t, int64(1700000000000), oc.Result)

	bad := NewRequest(http.MethodGet, srv.URL)
	bad.Mapper = func([]byte, any) (any, error) { return nil, errors.New("unexpected shape") }
	oc = p.Do(context.Background(), bad)
	require.Equal(t, KindError, oc.Kind)
	assert.Equal(t, DecodeError, oc.ErrorKind())
}

func TestTimeoutInvokesOnlyOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	req := NewRequest(http.MethodGet, srv.URL)
	req.Timeout = 50 * time.Millisecond
	h := newCountingHandler()
	NewPipeline().Execute(context.Background(), req, h)
	h.wait(t)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.timeouts)
	assert.Equal(t, 1, h.total())
}

func TestTransportFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	oc := NewPipeline().Do(context.Background(), NewRequest(http.MethodGet, url))
	require.Equal(t, KindError, oc.Kind)
	assert.Equal(t, TransportError, oc.ErrorKind())
	assert.Zero(t, oc.Status)
}

func TestSignFailureRoutesToOnError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	req := NewRequest(http.MethodGet, srv.URL)
	req.NeedsSign = true
	h := newCountingHandler()
	NewPipeline(WithSigner(staticSigner{err: errors.New("missing api key")})).Execute(context.Background(), req, h)
	h.wait(t)

	assert.Equal(t, 1, h.errored)
	assert.Equal(t, 1, h.total())
	assert.Equal(t, BuildError, h.last.ErrorKind())
	assert.Zero(t, atomic.LoadInt32(&hits))

	unsigned := NewPipeline().Do(context.Background(), req)
	assert.Equal(t, BuildError, unsigned.ErrorKind())
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") == "1" {
			w.WriteHeader(500)
		}
		fmt.Fprintf(w, `{"n":%q}`, r.URL.Query().Get("n"))
	}))
	defer srv.Close()

	p := NewPipeline()
	const n = 20
	var wg sync.WaitGroup
	var mismatched, success, failure int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		req := NewRequest(http.MethodGet, srv.URL)
		req.Params.Add("n", fmt.Sprint(i))
		req.Params.Add("fail", fmt.Sprint(i%2))
		req.Extra = map[string]any{"n": fmt.Sprint(i)}
		p.Execute(context.Background(), req, HandlerFuncs{
			Success: func(o Outcome) {
				defer wg.Done()
				atomic.AddInt32(&success, 1)
				if o.Body.(map[string]any)["n"] != o.Extra()["n"] {
					atomic.AddInt32(&mismatched, 1)
				}
			},
			Failure: func(o Outcome) {
				defer wg.Done()
				atomic.AddInt32(&failure, 1)
			},
		})
	}
	wg.Wait()

	assert.Equal(t, int32(n/2), success)
	assert.Equal(t, int32(n/2), failure)
	assert.Zero(t, mismatched)
}

func TestRateLimitWaitPastDeadlineIsTimeout(t *testing.T) {
	srv := jsonServer(t, 200, `{}`)
	p := NewPipeline(WithRateLimit(0.01, 1))

	req := NewRequest(http.MethodGet, srv.URL)
	req.Timeout = 50 * time.Millisecond
	assert.Equal(t, KindSuccess, p.Do(context.Background(), req).Kind)
	assert.Equal(t, KindTimeout, p.Do(context.Background(), req).Kind)
}

func TestHandlerFuncsSwallowNil(t *testing.T) {
	assert.NotPanics(t, func() {
		Outcome{Kind: KindTimeout}.Dispatch(HandlerFuncs{})
		Outcome{Kind: KindSuccess}.Dispatch(nil)
	})
}
