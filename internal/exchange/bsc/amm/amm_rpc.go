package amm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/exchange"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

const (
	defaultRPC = "https://bsc-dataseed.bnbchain.org"

	// Extra keys read by GetDepths, GetAccount and SubmitOrder.
	ExtraContract = "contract" // eth_call 目标合约
	ExtraCallData = "data"     // 调用方编码好的 calldata
	ExtraToken    = "token"    // BEP20 合约地址,为空时查 BNB 余额
	ExtraRawTx    = "rawTx"    // 调用方签好名的交易

	// balanceOf(address)
	selectorBalanceOf = "0x70a08231"

	nativeAsset    = "BNB"
	nativeDecimals = 18
	wordHex        = 64
)

var (
	errNoAddress  = errors.New("bsc amm: credentials address is required")
	errNoContract = errors.New("bsc amm: extra contract and data are required")
	errNoRawTx    = errors.New("bsc amm: extra rawTx is required")
	errNoTxHash   = errors.New("bsc amm: order id (tx hash) is required")
)

var gatewayID = schema.NewGatewayID(schema.BSC, schema.AMM)

// rpcRequest is a JSON-RPC 2.0 call.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint32 `json:"id"`
}

type rpcResponse struct {
	ID     uint32          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type callArgs struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type node struct {
	url string
}

func (n node) operations() map[schema.Method]gateway.Operation {
	return map[schema.Method]gateway.Operation{
		schema.GetTime:     {Build: n.buildBlockNumber, Map: rpcMapper(mapBlockNumber)},
		schema.GetAccount:  {Build: n.buildBalance},
		schema.GetDepths:   {Build: n.buildReserves},
		schema.SubmitOrder: {Build: n.buildSendRaw},
		schema.GetOrder:    {Build: n.buildReceipt},
	}
}

func (n node) call(method string, params ...any) *rest.Request {
	req := rest.NewRequest(http.MethodPost, n.url)
	req.Encoding = rest.EncodingJSON
	req.Body = rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: exchange.RequestID()}
	return req
}

// rpcObjectMapper unwraps the JSON-RPC envelope. An error member fails the
// outcome even though the node answered 200.
func rpcObjectMapper(fn func(result json.RawMessage) (any, error)) rest.Mapper {
	return exchange.JSONMapper(func(r rpcResponse) (any, error) {
		if r.Error != nil {
			return nil, fmt.Errorf("rpc error %d: %s", r.Error.Code, r.Error.Message)
		}
		return fn(r.Result)
	})
}

// rpcMapper is rpcObjectMapper for hex string results.
func rpcMapper(fn func(result string) (any, error)) rest.Mapper {
	return rpcObjectMapper(func(raw json.RawMessage) (any, error) {
		var result string
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &result); err != nil {
				return nil, fmt.Errorf("bsc amm: result is not a string: %w", err)
			}
		}
		return fn(result)
	})
}

func (n node) buildBlockNumber(schema.Query) (*rest.Request, error) {
	return n.call("eth_blockNumber"), nil
}

func mapBlockNumber(result string) (any, error) {
	v, err := hexInt(result)
	if err != nil {
		return nil, err
	}
	return &schema.ServerTime{Gateway: gatewayID, Time: time.Now(), Block: v.Uint64()}, nil
}

// buildBalance reads the native balance, or a BEP20 balance when Extra
// carries a token contract. Amounts are in whole units assuming 18 decimals.
func (n node) buildBalance(q schema.Query) (*rest.Request, error) {
	addr := q.Credentials.Address
	if addr == "" {
		return nil, errNoAddress
	}
	asset := nativeAsset
	var req *rest.Request
	if token, _ := q.Extra[ExtraToken].(string); token != "" {
		asset = token
		req = n.call("eth_call", callArgs{To: token, Data: selectorBalanceOf + padAddress(addr)}, "latest")
	} else {
		req = n.call("eth_getBalance", addr, "latest")
	}
	req.Mapper = rpcMapper(func(result string) (any, error) {
		wei, err := hexInt(result)
		if err != nil {
			return nil, err
		}
		amount := decimal.NewFromBigInt(wei, -nativeDecimals)
		return &schema.Account{
			Exchange:  schema.BSC,
			Market:    schema.AMM,
			Gateway:   gatewayID,
			Address:   addr,
			Balances:  []schema.Balance{{Asset: asset, Free: amount}},
			UpdatedAt: time.Now(),
		}, nil
	})
	return req, nil
}

// buildReserves calls a reserves reader contract with caller-encoded data.
// The reply is a uint256[] of (reserve0, reserve1) pairs, one per pool.
func (n node) buildReserves(q schema.Query) (*rest.Request, error) {
	contract, _ := q.Extra[ExtraContract].(string)
	data, _ := q.Extra[ExtraCallData].(string)
	if contract == "" || data == "" {
		return nil, errNoContract
	}
	symbol := q.VenueSymbol
	if symbol == "" && q.Symbol != "" {
		s, err := gateway.ToVenueSymbol(schema.BSC, q.Symbol)
		if err != nil {
			return nil, err
		}
		symbol = s
	}
	req := n.call("eth_call", callArgs{To: contract, Data: data}, "latest")
	req.Mapper = rpcMapper(func(result string) (any, error) {
		pools, err := decodeReserves(result)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		d := &schema.Depth{
			Exchange:  schema.BSC,
			Market:    schema.AMM,
			Gateway:   gatewayID,
			Symbol:    symbol,
			VenueTime: now,
			UpdatedAt: now,
		}
		// 每个池子一档: price = reserve1/reserve0, quantity = reserve0
		for _, p := range pools {
			if p[0].IsZero() {
				continue
			}
			d.Bids = append(d.Bids, schema.PriceLevel{Price: p[1].DivRound(p[0], 18), Quantity: p[0]})
		}
		d.Asks = d.Bids
		return d, nil
	})
	return req, nil
}

// decodeReserves reads an ABI-encoded dynamic uint256 array:
// offset word, length word, then the elements.
func decodeReserves(result string) ([][2]decimal.Decimal, error) {
	body := strings.TrimPrefix(result, "0x")
	if len(body) < 2*wordHex || len(body)%wordHex != 0 {
		return nil, fmt.Errorf("bsc amm: short reserves reply (%d hex chars)", len(body))
	}
	n, err := hexInt(body[wordHex : 2*wordHex])
	if err != nil {
		return nil, err
	}
	words := body[2*wordHex:]
	if !n.IsInt64() || n.Sign() < 0 || n.Int64() > int64(len(words)/wordHex) {
		return nil, fmt.Errorf("bsc amm: reserves length %s exceeds payload", n)
	}
	count := n.Int64()
	elems := make([]decimal.Decimal, 0, count)
	for i := int64(0); i < count; i++ {
		v, err := hexInt(words[i*wordHex : (i+1)*wordHex])
		if err != nil {
			return nil, err
		}
		elems = append(elems, decimal.NewFromBigInt(v, 0))
	}
	pools := make([][2]decimal.Decimal, 0, len(elems)/2)
	for i := 0; i+1 < len(elems); i += 2 {
		pools = append(pools, [2]decimal.Decimal{elems[i], elems[i+1]})
	}
	return pools, nil
}

// buildSendRaw broadcasts a transaction the caller already signed. The
// result is the tx hash, which GetOrder takes as OrderID.
func (n node) buildSendRaw(q schema.Query) (*rest.Request, error) {
	raw, _ := q.Extra[ExtraRawTx].(string)
	if raw == "" {
		return nil, errNoRawTx
	}
	var symbol string
	if q.Order != nil {
		symbol = q.Order.Symbol
	}
	req := n.call("eth_sendRawTransaction", raw)
	req.Mapper = rpcMapper(func(hash string) (any, error) {
		if hash == "" {
			return nil, errors.New("bsc amm: node returned no tx hash")
		}
		return &schema.Order{
			Exchange:  schema.BSC,
			Market:    schema.AMM,
			Gateway:   gatewayID,
			Symbol:    symbol,
			OrderID:   hash,
			Status:    schema.OrderStatusPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}, nil
	})
	return req, nil
}

func (n node) buildReceipt(q schema.Query) (*rest.Request, error) {
	if q.OrderID == "" {
		return nil, errNoTxHash
	}
	hash := q.OrderID
	req := n.call("eth_getTransactionReceipt", hash)
	req.Mapper = rpcObjectMapper(func(raw json.RawMessage) (any, error) {
		return mapReceipt(hash, raw)
	})
	return req, nil
}

type receipt struct {
	TransactionHash string            `json:"transactionHash"`
	BlockNumber     string            `json:"blockNumber"`
	Status          string            `json:"status"`
	Logs            []json.RawMessage `json:"logs"`
}

// mapReceipt: 未上链为 pending, status 0x0 或无日志为 failed, 否则 filled.
func mapReceipt(hash string, raw json.RawMessage) (any, error) {
	o := &schema.Order{Exchange: schema.BSC, Market: schema.AMM, Gateway: gatewayID, OrderID: hash, UpdatedAt: time.Now()}
	if len(raw) == 0 || string(raw) == "null" {
		o.Status = schema.OrderStatusPending
		return o, nil
	}
	var r receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("bsc amm: decode receipt: %w", err)
	}
	switch {
	case r.Status == "0x0", len(r.Logs) == 0:
		o.Status = schema.OrderStatusFailed
	default:
		o.Status = schema.OrderStatusFilled
	}
	return o, nil
}

func hexInt(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("bsc amm: bad hex quantity %q", s)
	}
	return v, nil
}

// padAddress left-pads a 20-byte address to one ABI word.
func padAddress(addr string) string {
	a := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(a) >= wordHex {
		return a
	}
	return strings.Repeat("0", wordHex-len(a)) + a
}
