package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

func TestHeartbeatMonitor(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeatMonitor()
	h.now = func() time.Time { return now }

	record := h.Consumer()
	record(schema.Heartbeat{Gateway: gw, Key: "BTCUSDT_depth", Time: now.Add(-2 * time.Minute)})
	record(schema.Heartbeat{Gateway: gw, Key: "ETHUSDT_depth", Time: now.Add(-5 * time.Minute)})
	record(schema.Heartbeat{Gateway: gw, Key: "BTCUSDT_trade", Time: now.Add(-time.Second)})
	record(schema.Heartbeat{Gateway: "gate_spot", Key: "BTCUSDT_depth", Time: now})

	hb, ok := h.Last(gw, "BTCUSDT_depth")
	require.True(t, ok)
	assert.Equal(t, now.Add(-2*time.Minute), hb.Time)
	_, ok = h.Last(gw, "SOLUSDT_depth")
	assert.False(t, ok)

	stale := h.Stale(time.Minute)
	require.Len(t, stale, 2)
	assert.Equal(t, "ETHUSDT_depth", stale[0].Key, "oldest first")
	assert.Equal(t, "BTCUSDT_depth", stale[1].Key)

	record(schema.Heartbeat{Gateway: gw, Key: "ETHUSDT_depth", Time: now})
	assert.Len(t, h.Stale(time.Minute), 1)
}
