// Package futures_usdt is the Binance USDT-margined perpetual venue profile.
package futures_usdt

import (
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/sign"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// Endpoints overrides the production hosts, mainly for tests.
type Endpoints struct {
	REST   string
	Stream string
}

// NewProfile bundles REST and WS for Binance USDT-M futures. Signing is the
// same HMAC scheme as spot.
func NewProfile(ep Endpoints) gateway.VenueProfile {
	if ep.REST == "" {
		ep.REST = binanceFuturesUSDTBaseURL
	}
	if ep.Stream == "" {
		ep.Stream = futuresWSBase
	}
	return gateway.VenueProfile{
		Exchange:   schema.BINANCE,
		Market:     schema.FUTURESUSDT,
		Signer:     sign.BinanceSigner{},
		Benign:     isBenign,
		Operations: futuresREST{base: ep.REST}.operations(),
		Stream:     streamProfile(ep.Stream),
	}
}

func New(opts gateway.Options) *gateway.Gateway {
	return gateway.New(NewProfile(Endpoints{}), opts)
}
