package cache

import (
	"sort"
	"sync"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// SubscriptionManager tracks the subscriptions requested per gateway.
// Entries are deduplicated by Subscription.Key.
type SubscriptionManager struct {
	mu   sync.RWMutex
	subs map[schema.GatewayID]map[string]schema.Subscription
}

func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{subs: make(map[schema.GatewayID]map[string]schema.Subscription)}
}

// Add records subs and returns the ones not tracked before.
func (sm *SubscriptionManager) Add(gateway schema.GatewayID, subs []schema.Subscription) []schema.Subscription {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	held, ok := sm.subs[gateway]
	if !ok {
		held = make(map[string]schema.Subscription)
		sm.subs[gateway] = held
	}
	var added []schema.Subscription
	for _, s := range subs {
		if _, exists := held[s.Key()]; exists {
			continue
		}
		held[s.Key()] = s
		added = append(added, s)
	}
	return added
}

// Remove drops subs and returns the ones that were actually tracked.
func (sm *SubscriptionManager) Remove(gateway schema.GatewayID, subs []schema.Subscription) []schema.Subscription {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	held := sm.subs[gateway]
	var removed []schema.Subscription
	for _, s := range subs {
		if _, exists := held[s.Key()]; exists {
			delete(held, s.Key())
			removed = append(removed, s)
		}
	}
	return removed
}

// List returns the tracked subscriptions of a gateway sorted by key.
func (sm *SubscriptionManager) List(gateway schema.GatewayID) []schema.Subscription {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	held := sm.subs[gateway]
	keys := make([]string, 0, len(held))
	for k := range held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]schema.Subscription, 0, len(keys))
	for _, k := range keys {
		out = append(out, held[k])
	}
	return out
}

// Gateways lists gateways with at least one tracked subscription.
func (sm *SubscriptionManager) Gateways() []schema.GatewayID {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]schema.GatewayID, 0, len(sm.subs))
	for id, held := range sm.subs {
		if len(held) > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear forgets everything tracked for gateway.
func (sm *SubscriptionManager) Clear(gateway schema.GatewayID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.subs, gateway)
}
