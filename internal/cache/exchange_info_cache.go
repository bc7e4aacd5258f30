package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// DefaultInfoTTL is how long trading rules stay fresh.
const DefaultInfoTTL = 24 * time.Hour

// InfoFetcher loads the trading rules of one gateway.
type InfoFetcher func(ctx context.Context) (*schema.ExchangeInfo, error)

// ExchangeInfoCache 管理各网关交易规则的内存缓存
type ExchangeInfoCache struct {
	mu    sync.RWMutex
	cache map[schema.GatewayID]schema.ExchangeInfo
}

func NewExchangeInfoCache() *ExchangeInfoCache {
	return &ExchangeInfoCache{cache: make(map[schema.GatewayID]schema.ExchangeInfo)}
}

func (c *ExchangeInfoCache) Set(id schema.GatewayID, info schema.ExchangeInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info.UpdatedAt = time.Now()
	c.cache[id] = info
	logger.Info("交易规则信息已缓存: %s, 交易对数量: %d", id, len(info.Symbols))
}

func (c *ExchangeInfoCache) Get(id schema.GatewayID) (schema.ExchangeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.cache[id]
	return info, ok
}

// Symbol looks up one venue symbol in the cached rules.
func (c *ExchangeInfoCache) Symbol(id schema.GatewayID, symbol string) (schema.Symbol, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.cache[id]
	if !ok {
		return schema.Symbol{}, false
	}
	for _, s := range info.Symbols {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return schema.Symbol{}, false
}

// Expired reports whether the entry is missing or older than ttl.
func (c *ExchangeInfoCache) Expired(id schema.GatewayID, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultInfoTTL
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.cache[id]
	return !ok || time.Since(info.UpdatedAt) > ttl
}

// Refresh fetches and stores the rules of id.
func (c *ExchangeInfoCache) Refresh(ctx context.Context, id schema.GatewayID, fetch InfoFetcher) error {
	logger.Info("正在刷新交易规则信息: %s", id)
	info, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("refresh exchange info %s: %w", id, err)
	}
	c.Set(id, *info)
	return nil
}

// RefreshIfExpired refreshes only when Expired reports true.
func (c *ExchangeInfoCache) RefreshIfExpired(ctx context.Context, id schema.GatewayID, fetch InfoFetcher, ttl time.Duration) error {
	if !c.Expired(id, ttl) {
		return nil
	}
	return c.Refresh(ctx, id, fetch)
}

func (c *ExchangeInfoCache) Clear(id schema.GatewayID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, id)
	logger.Info("已清空交易规则信息缓存: %s", id)
}
