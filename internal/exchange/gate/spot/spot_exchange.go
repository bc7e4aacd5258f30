// Package spot is the Gate Spot venue profile.
package spot

import (
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/sign"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// Endpoints overrides the production hosts. REST includes the /api/v4 prefix.
type Endpoints struct {
	REST   string
	Stream string
}

func NewProfile(ep Endpoints) gateway.VenueProfile {
	if ep.REST == "" {
		ep.REST = baseURL
	}
	if ep.Stream == "" {
		ep.Stream = wsURL
	}
	return gateway.VenueProfile{
		Exchange:   schema.GATE,
		Market:     schema.SPOT,
		Signer:     sign.GateSigner{},
		Benign:     isBenign,
		Operations: spotREST{base: ep.REST}.operations(),
		Stream:     streamProfile(ep.Stream),
	}
}

// New returns a Gate Spot gateway.
func New(opts gateway.Options) *gateway.Gateway {
	return gateway.New(NewProfile(Endpoints{}), opts)
}
