package schema

import (
	"fmt"
	"strings"
)

// Symbol 表示一个完整的币对信息
type Symbol struct {
	Symbol       string       `json:"symbol"`       // 交易所格式的币对符号
	Base         string       `json:"base"`         // 基础币种
	Quote        string       `json:"quote"`        // 计价币种
	Margin       string       `json:"margin"`       // 保证金币种（期货时存在）
	ExchangeName ExchangeName `json:"exchangeName"` // 交易所名称
	MarketType   MarketType   `json:"marketType"`   // 市场类型

	// 交易规则信息
	QuantityPrecision int    `json:"quantityPrecision"` // 数量精度（小数位数）
	PricePrecision    int    `json:"pricePrecision"`    // 价格精度（小数位数）
	MinQuantity       string `json:"minQuantity"`       // 最小下单数量
	MinNotional       string `json:"minNotional"`       // 最小下单金额
}

// NewSymbol 创建一个新的Symbol实例
func NewSymbol(symbol, base, quote, margin string, exchangeName ExchangeName, marketType MarketType) *Symbol {
	return &Symbol{
		Symbol:       symbol,
		Base:         strings.ToUpper(base),
		Quote:        strings.ToUpper(quote),
		Margin:       strings.ToUpper(margin),
		ExchangeName: exchangeName,
		MarketType:   marketType,
	}
}

// String 返回币对的字符串表示
func (s *Symbol) String() string {
	if s.Margin != "" {
		return fmt.Sprintf("%s/%s:%s", s.Base, s.Quote, s.Margin)
	}
	return fmt.Sprintf("%s/%s", s.Base, s.Quote)
}

// IsSpot 判断是否为现货市场
func (s *Symbol) IsSpot() bool {
	return s.MarketType == SPOT
}

// IsFutures 判断是否为期货市场
func (s *Symbol) IsFutures() bool {
	return s.MarketType == FUTURESUSDT || s.MarketType == FUTURESCOIN
}

// NormalizeMarketType 将字符串转换为MarketType类型
func NormalizeMarketType(market string) MarketType {
	switch strings.ToLower(strings.TrimSpace(market)) {
	case "futuresusdt", "futures_usdt", "usdt_futures":
		return FUTURESUSDT
	case "futurescoin", "futures_coin", "coin_futures":
		return FUTURESCOIN
	case "spot", "":
		return SPOT
	default:
		return MarketType(strings.ToLower(strings.TrimSpace(market)))
	}
}

// ParseSymbol 解析币对格式 [a]/[b]:[c] 或 [a]/[b]
//   - 现货: BTC/USDT
//   - U本位合约: BTC/USDT:USDT (quote = margin)
//   - 币本位合约: BTC/USD:BTC (base = margin)
func ParseSymbol(symbolStr string) (*Symbol, error) {
	symbolStr = strings.TrimSpace(symbolStr)

	baseQuote, margin, futures := strings.Cut(symbolStr, ":")
	base, quote, err := parseBaseQuote(baseQuote)
	if err != nil {
		return nil, fmt.Errorf("invalid symbol %q: %w", symbolStr, err)
	}
	if !futures {
		return NewSymbol(symbolStr, base, quote, "", "", SPOT), nil
	}

	margin = strings.TrimSpace(margin)
	if margin == "" || strings.Contains(margin, ":") {
		return nil, fmt.Errorf("invalid futures symbol format: must be [base]/[quote]:[margin], got: %s", symbolStr)
	}
	market := FUTURESUSDT
	if strings.EqualFold(margin, base) {
		market = FUTURESCOIN
	}
	return NewSymbol(symbolStr, base, quote, margin, "", market), nil
}

func parseBaseQuote(baseQuote string) (base, quote string, err error) {
	parts := strings.Split(strings.TrimSpace(baseQuote), "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("must be [base]/[quote], got: %s", baseQuote)
	}
	base = strings.TrimSpace(parts[0])
	quote = strings.TrimSpace(parts[1])
	if base == "" || quote == "" {
		return "", "", fmt.Errorf("base and quote cannot be empty, got: %s", baseQuote)
	}
	return base, quote, nil
}

// FormatSymbol 根据Symbol和ExchangeName生成交易所特定的币对符号
func FormatSymbol(symbol *Symbol, exchangeName ExchangeName) (string, error) {
	if symbol == nil {
		return "", fmt.Errorf("symbol cannot be nil")
	}
	switch exchangeName {
	case BINANCE:
		if symbol.MarketType == FUTURESCOIN {
			return symbol.Base + symbol.Quote + "_PERP", nil // BTCUSD_PERP
		}
		return symbol.Base + symbol.Quote, nil // BTCUSDT
	case GATE:
		return symbol.Base + "_" + symbol.Quote, nil // BTC_USDT
	case MEXC:
		return symbol.Base + symbol.Quote, nil
	case BSC:
		// 链上池子以 BASE-QUOTE 记名,实际地址由调用方提供
		return symbol.Base + "-" + symbol.Quote, nil
	default:
		return symbol.Base + symbol.Quote, nil
	}
}

// FormatSymbolByExchange 根据交易所名称、基础币种、计价币种、保证金币种和市场类型生成交易所特定的币对符号
func FormatSymbolByExchange(exchangeName ExchangeName, base, quote, margin string, marketType MarketType) (string, error) {
	return FormatSymbol(NewSymbol("", base, quote, margin, exchangeName, marketType), exchangeName)
}

var commonQuotes = []string{"USDT", "USDC", "FDUSD", "BUSD", "BTC", "ETH", "BNB", "USD", "EUR"}

// ParseExchangeSymbol 从交易所币对符号反解析为 base、quote、margin
func ParseExchangeSymbol(exchangeSymbol string, exchangeName ExchangeName, marketType MarketType) (*Symbol, error) {
	if exchangeSymbol == "" {
		return nil, fmt.Errorf("exchange symbol cannot be empty")
	}
	raw := strings.ToUpper(exchangeSymbol)

	var base, quote string
	switch exchangeName {
	case GATE, BSC:
		sep := "_"
		if exchangeName == BSC {
			sep = "-"
		}
		b, q, ok := strings.Cut(raw, sep)
		if !ok || b == "" || q == "" {
			return nil, fmt.Errorf("cannot parse %s symbol: %s", exchangeName, exchangeSymbol)
		}
		base, quote = b, q
	default:
		raw = strings.TrimSuffix(raw, "_PERP")
		for _, q := range commonQuotes {
			if b := strings.TrimSuffix(raw, q); b != raw && len(b) >= 2 {
				base, quote = b, q
				break
			}
		}
		if base == "" {
			return nil, fmt.Errorf("cannot smart parse symbol: %s", exchangeSymbol)
		}
	}

	margin := ""
	switch marketType {
	case FUTURESUSDT:
		margin = quote
	case FUTURESCOIN:
		margin = base
	}
	return NewSymbol(exchangeSymbol, base, quote, margin, exchangeName, marketType), nil
}
