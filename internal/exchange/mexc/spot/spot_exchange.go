// Package spot is the MEXC Spot venue profile.
package spot

import (
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/sign"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// Endpoints overrides the production hosts.
type Endpoints struct {
	REST   string
	Stream string
}

// 30001: 订单不存在 (撤单时已成交)
var isBenign = rest.BenignCodes(30001)

func NewProfile(ep Endpoints) gateway.VenueProfile {
	if ep.REST == "" {
		ep.REST = mexcBaseURL
	}
	if ep.Stream == "" {
		ep.Stream = wsURL
	}
	return gateway.VenueProfile{
		Exchange:   schema.MEXC,
		Market:     schema.SPOT,
		Signer:     sign.MexcSigner{},
		Benign:     isBenign,
		Operations: spotREST{base: ep.REST}.operations(),
		Stream:     streamProfile(ep.Stream),
	}
}

// New returns a MEXC Spot gateway on the production hosts.
func New(opts gateway.Options) *gateway.Gateway {
	return gateway.New(NewProfile(Endpoints{}), opts)
}
