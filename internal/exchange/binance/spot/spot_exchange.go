// Package spot is the Binance Spot venue profile.
package spot

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

// NewProfile bundles REST and WS for Binance Spot.
func NewProfile(ep Endpoints) gateway.VenueProfile {
	if ep.REST == "" {
		ep.REST = spotBaseURL
	}
	if ep.Stream == "" {
		ep.Stream = spotWSBase
	}
	return gateway.VenueProfile{
		Exchange:   schema.BINANCE,
		Market:     schema.SPOT,
		Signer:     sign.BinanceSigner{},
		Benign:     isBenign,
		Operations: spotREST{base: ep.REST}.operations(),
		Stream:     streamProfile(ep.Stream),
	}
}

// New returns a ready Binance Spot gateway.
func New(opts gateway.Options) *gateway.Gateway {
	return gateway.New(NewProfile(Endpoints{}), opts)
}
