package schema

import "strings"

// Method names one canonical gateway operation.
type Method string

const (
	GetTime           Method = "get_time"
	GetExchangeInfos  Method = "get_exchange_infos"
	GetCoinInfo       Method = "get_coin_info"
	GetDepths         Method = "get_depths"
	GetTrades         Method = "get_trades"
	GetPublicTrades   Method = "get_public_trades"
	SubmitOrder       Method = "submit_order"
	BatchSubmitOrders Method = "batch_submit_orders"
	CancelOrder       Method = "cancel_order"
	CancelBatchOrders Method = "cancel_batch_orders"
	CancelOrders      Method = "cancel_orders"
	ClosePosition     Method = "close_position"
	ClosePositions    Method = "close_positions"
	GetAccount        Method = "get_account"
	Withdraw          Method = "withdraw"
	WithdrawStatus    Method = "withdraw_status"
	UpdateLeverage    Method = "update_leverage"
	GetPosition       Method = "get_position"
	GetPositions      Method = "get_positions"
	GetOrder          Method = "get_order"
	GetOrders         Method = "get_orders"
	GetOpenOrders     Method = "get_open_orders"
	GetFundingRate    Method = "get_funding_rate"
	GetFundingRates   Method = "get_funding_rates"
	GetKlines         Method = "get_klines"
	GetPending        Method = "get_pending"
	GetTicker         Method = "get_ticker"
)

var allMethods = []Method{
	GetTime, GetExchangeInfos, GetCoinInfo, GetDepths, GetTrades, GetPublicTrades,
	SubmitOrder, BatchSubmitOrders, CancelOrder, CancelBatchOrders, CancelOrders,
	ClosePosition, ClosePositions, GetAccount, Withdraw, WithdrawStatus,
	UpdateLeverage, GetPosition, GetPositions, GetOrder, GetOrders, GetOpenOrders,
	GetFundingRate, GetFundingRates, GetKlines, GetPending, GetTicker,
}

// AllMethods lists every canonical operation in declaration order.
func AllMethods() []Method {
	out := make([]Method, len(allMethods))
	copy(out, allMethods)
	return out
}

// ParseMethod accepts "get_depths", "GetDepths" or "getDepths".
func ParseMethod(name string) (Method, bool) {
	key := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	for _, m := range allMethods {
		if strings.ReplaceAll(string(m), "_", "") == key {
			return m, true
		}
	}
	return "", false
}
