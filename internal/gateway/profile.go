package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/router"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

var (
	// ErrUnknownMethod is returned for a name that is no canonical operation.
	ErrUnknownMethod = errors.New("gateway: unknown method")
	// ErrNoStream is returned by Subscribe on a venue without a stream.
	ErrNoStream = errors.New("gateway: venue has no stream")
	// ErrMissingSymbol is returned by builders that need a symbol.
	ErrMissingSymbol = errors.New("gateway: symbol is required")
)

// Operation builds the request of one canonical method.
type Operation struct {
	Build func(q schema.Query) (*rest.Request, error)
	// Map interprets the 200 body; used when Build sets no Mapper.
	Map rest.Mapper
}

// StreamProfile describes a venue's push endpoint.
type StreamProfile struct {
	URL            string
	KeepAlive      time.Duration
	KeepAliveFrame *ws.Frame
	// Frames renders the subscribe/unsubscribe frames of subs.
	Frames      func(subs []schema.Subscription) (ws.Frames, error)
	Resolve     router.Resolver
	Normalizers map[string]router.Normalizer
}

// VenueProfile is everything that makes one venue/market different.
type VenueProfile struct {
	Exchange   schema.ExchangeName
	Market     schema.MarketType
	Signer     rest.Signer
	Benign     rest.BenignFunc
	Operations map[schema.Method]Operation
	Stream     *StreamProfile
}

// ID returns the gateway id of the profile.
func (p VenueProfile) ID() schema.GatewayID {
	return schema.NewGatewayID(p.Exchange, p.Market)
}

// VenueSymbol returns q.VenueSymbol, or q.Symbol converted to the venue format.
func VenueSymbol(exchange schema.ExchangeName, q schema.Query) (string, error) {
	if q.VenueSymbol != "" {
		return q.VenueSymbol, nil
	}
	return ToVenueSymbol(exchange, q.Symbol)
}

// ToVenueSymbol converts BASE/QUOTE[:MARGIN] to the venue format. A string
// without "/" is assumed to be in venue format already.
func ToVenueSymbol(exchange schema.ExchangeName, symbol string) (string, error) {
	if symbol == "" {
		return "", ErrMissingSymbol
	}
	if !strings.Contains(symbol, "/") {
		return symbol, nil
	}
	sym, err := schema.ParseSymbol(symbol)
	if err != nil {
		return "", fmt.Errorf("parse symbol: %w", err)
	}
	return schema.FormatSymbol(sym, exchange)
}

// OrderSymbol is VenueSymbol falling back to q.Order.Symbol.
func OrderSymbol(exchange schema.ExchangeName, q schema.Query) (string, error) {
	if q.Symbol == "" && q.VenueSymbol == "" && q.Order != nil {
		q.Symbol = q.Order.Symbol
	}
	return VenueSymbol(exchange, q)
}
