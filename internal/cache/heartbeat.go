package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// HeartbeatMonitor remembers the last heartbeat per (gateway, key).
type HeartbeatMonitor struct {
	mu    sync.RWMutex
	beats map[string]schema.Heartbeat
	now   func() time.Time
}

func NewHeartbeatMonitor() *HeartbeatMonitor {
	return &HeartbeatMonitor{beats: make(map[string]schema.Heartbeat), now: time.Now}
}

func (h *HeartbeatMonitor) Record(hb schema.Heartbeat) {
	h.mu.Lock()
	h.beats[cacheKey(hb.Gateway, hb.Key)] = hb
	h.mu.Unlock()
}

// Consumer adapts Record for schema.Consumers.
func (h *HeartbeatMonitor) Consumer() schema.HeartbeatConsumer {
	return h.Record
}

func (h *HeartbeatMonitor) Last(gateway schema.GatewayID, key string) (schema.Heartbeat, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hb, ok := h.beats[cacheKey(gateway, key)]
	return hb, ok
}

// Stale lists heartbeats older than maxAge, oldest first.
func (h *HeartbeatMonitor) Stale(maxAge time.Duration) []schema.Heartbeat {
	cutoff := h.now().Add(-maxAge)
	h.mu.RLock()
	var out []schema.Heartbeat
	for _, hb := range h.beats {
		if hb.Time.Before(cutoff) {
			out = append(out, hb)
		}
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
