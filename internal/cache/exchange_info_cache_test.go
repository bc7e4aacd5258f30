package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

func TestExchangeInfoRefreshIfExpired(t *testing.T) {
	c := NewExchangeInfoCache()
	assert.True(t, c.Expired(gw, 0))

	calls := 0
	fetch := func(context.Context) (*schema.ExchangeInfo, error) {
		calls++
		return &schema.ExchangeInfo{Exchange: schema.BINANCE, Symbols: []schema.Symbol{{Symbol: "BTCUSDT", Base: "BTC"}}}, nil
	}

	require.NoError(t, c.RefreshIfExpired(context.Background(), gw, fetch, time.Hour))
	require.NoError(t, c.RefreshIfExpired(context.Background(), gw, fetch, time.Hour))
	assert.Equal(t, 1, calls)

	s, ok := c.Symbol(gw, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "BTC", s.Base)
	_, ok = c.Symbol(gw, "ETHUSDT")
	assert.False(t, ok)

	c.Clear(gw)
	_, ok = c.Get(gw)
	assert.False(t, ok)
}

func TestExchangeInfoRefreshError(t *testing.T) {
	c := NewExchangeInfoCache()
	boom := errors.New("boom")
	err := c.Refresh(context.Background(), gw, func(context.Context) (*schema.ExchangeInfo, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, c.Expired(gw, time.Hour))
}
