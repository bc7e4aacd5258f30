// Package amm reads BSC AMM pools and balances over a JSON-RPC node.
package amm

import (
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// NewProfile returns the BSC AMM profile against rpcURL (a public node when empty).
// There is no signer and no stream.
func NewProfile(rpcURL string) gateway.VenueProfile {
	if rpcURL == "" {
		rpcURL = defaultRPC
	}
	return gateway.VenueProfile{
		Exchange:   schema.BSC,
		Market:     schema.AMM,
		Operations: node{url: rpcURL}.operations(),
	}
}

func New(opts gateway.Options) *gateway.Gateway {
	return gateway.New(NewProfile(""), opts)
}
