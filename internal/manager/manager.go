package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/gateway"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/interfaces"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// ErrGatewayNotFound is returned for an id with no registered gateway.
var ErrGatewayNotFound = errors.New("manager: gateway not found")

// Manager is a registry of gateway instances keyed by GatewayID.
type Manager struct {
	mu       sync.RWMutex
	gateways map[schema.GatewayID]interfaces.Gateway
}

func NewManager() *Manager {
	return &Manager{gateways: make(map[schema.GatewayID]interfaces.Gateway)}
}

// Add registers g, replacing (and closing) any gateway with the same id.
func (m *Manager) Add(g interfaces.Gateway) {
	m.mu.Lock()
	old, exists := m.gateways[g.ID()]
	m.gateways[g.ID()] = g
	m.mu.Unlock()

	if exists && old != g {
		if err := old.Close(); err != nil {
			logger.Warn("网关 %s 旧实例关闭失败: %v", g.ID(), err)
		}
	}
	logger.Info("网关 %s 已注册", g.ID())
}

// Remove closes the gateway and drops it from the registry.
func (m *Manager) Remove(id schema.GatewayID) error {
	m.mu.Lock()
	g, ok := m.gateways[id]
	delete(m.gateways, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrGatewayNotFound, id)
	}
	if err := g.Close(); err != nil {
		logger.Warn("网关 %s WebSocket 断开失败: %v", id, err)
	}
	logger.Info("网关 %s 已从manager中删除", id)
	return nil
}

func (m *Manager) Get(id schema.GatewayID) (interfaces.Gateway, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gateways[id]
	return g, ok
}

// IDs lists the registered gateways in sorted order.
func (m *Manager) IDs() []schema.GatewayID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.GatewayID, 0, len(m.gateways))
	for id := range m.gateways {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Invoke runs method on the gateway id. Unsupported methods are a no-op on
// the gateway side.
func (m *Manager) Invoke(ctx context.Context, id schema.GatewayID, method string, q schema.Query, h rest.Handler) error {
	g, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrGatewayNotFound, id)
	}
	return g.Invoke(ctx, method, q, h)
}

// Do runs method synchronously on the gateway id.
func (m *Manager) Do(ctx context.Context, id schema.GatewayID, method schema.Method, q schema.Query) (rest.Outcome, error) {
	g, ok := m.Get(id)
	if !ok {
		return rest.Outcome{}, fmt.Errorf("%w: %s", ErrGatewayNotFound, id)
	}
	return g.Do(ctx, method, q), nil
}

// SubscribeAll subscribes every gateway listed in subs concurrently. Gateways
// without a stream are skipped. It fails only when every attempt failed.
func (m *Manager) SubscribeAll(ctx context.Context, subs map[schema.GatewayID][]schema.Subscription, consumers schema.Consumers) error {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		failed  []string
		success int
		errs    []error
	)

	for id, list := range subs {
		g, ok := m.Get(id)
		if !ok {
			logger.Warn("订阅跳过未注册网关: %s", id)
			mu.Lock()
			failed = append(failed, string(id))
			errs = append(errs, fmt.Errorf("%w: %s", ErrGatewayNotFound, id))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(g interfaces.Gateway, list []schema.Subscription) {
			defer wg.Done()
			err := g.Subscribe(ctx, list, consumers)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, gateway.ErrNoStream):
				logger.Debug("网关 %s 没有推送流, 跳过订阅", g.ID())
			case err != nil:
				failed = append(failed, string(g.ID()))
				errs = append(errs, fmt.Errorf("%s: %w", g.ID(), err))
				logger.Error("网关 %s 订阅失败: %v", g.ID(), err)
			default:
				success++
				logger.Info("网关 %s 订阅成功: %d 个", g.ID(), len(list))
			}
		}(g, list)
	}
	wg.Wait()

	if len(failed) > 0 {
		sort.Strings(failed)
		logger.Info("WebSocket 订阅完成: %d 个成功, %d 个失败", success, len(failed))
		logger.Warn("失败的网关: %v", failed)
	}
	if success == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// CloseAll closes every gateway and returns the joined close errors.
func (m *Manager) CloseAll() error {
	m.mu.RLock()
	list := make([]interfaces.Gateway, 0, len(m.gateways))
	for _, g := range m.gateways {
		list = append(list, g)
	}
	m.mu.RUnlock()

	var errs []error
	for _, g := range list {
		if err := g.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.ID(), err))
		}
	}
	logger.Info("已关闭 %d 个网关", len(list))
	return errors.Join(errs...)
}
