// 检测器注册表缓存
// 合并后的分类定义序列化为JSON放进Redis，多个分析进程共享同一份注册表，
// 配置热更新时失效缓存即可让所有进程在下一条流量前重建。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"traceguard/internal/config"
	"traceguard/internal/detector"
	"traceguard/internal/pkg/logger"
)

// RegistryCache 带Redis缓存的检测器注册表提供者
// 进程内持有当前注册表的内存副本，Redis里的定义列表变化时重建
type RegistryCache struct {
	client *redis.Client
	cfg    func() *config.DetectorConfig
	key    string
	ttl    time.Duration

	mu       sync.RWMutex
	current  *detector.Registry
	checksum string
}

// NewRegistryCache 创建注册表缓存
// cfg 为配置取函数而非快照，热更新后下一次加载使用新配置
func NewRegistryCache(client *redis.Client, cfg func() *config.DetectorConfig) *RegistryCache {
	c := cfg()
	return &RegistryCache{
		client: client,
		cfg:    cfg,
		key:    c.CacheKey,
		ttl:    c.CacheTTL,
	}
}

// Registry 获取当前注册表
// 优先用Redis里的共享定义；缓存缺失时按本进程配置重建并回写
func (p *RegistryCache) Registry(ctx context.Context) (*detector.Registry, error) {
	payload, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Redis故障时降级为本地构建，检测不中断
		logger.Warnf("failed to read detector cache, falling back to local build: %v", err)
		return p.localRegistry()
	}

	if errors.Is(err, redis.Nil) {
		registry, err := detector.NewRegistry(p.cfg())
		if err != nil {
			return nil, fmt.Errorf("failed to build detector registry: %w", err)
		}
		if err := p.store(ctx, registry); err != nil {
			logger.Warnf("failed to write detector cache: %v", err)
		}
		p.remember(registry, "")
		return registry, nil
	}

	checksum := fmt.Sprintf("%d:%x", len(payload), payload[:min(32, len(payload))])
	p.mu.RLock()
	if p.current != nil && p.checksum == checksum {
		registry := p.current
		p.mu.RUnlock()
		return registry, nil
	}
	p.mu.RUnlock()

	var defs []detector.ClassDefinition
	if err := json.Unmarshal(payload, &defs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached detector definitions: %w", err)
	}
	registry, err := detector.FromDefinitions(defs)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild detector registry from cache: %w", err)
	}
	p.remember(registry, checksum)
	return registry, nil
}

// Invalidate 失效缓存 [配置热更新回调里调用]
func (p *RegistryCache) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.checksum = ""
	p.mu.Unlock()
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate detector cache: %w", err)
	}
	return nil
}

// store 序列化注册表定义并写入Redis
func (p *RegistryCache) store(ctx context.Context, registry *detector.Registry) error {
	payload, err := json.Marshal(registry.Definitions())
	if err != nil {
		return fmt.Errorf("failed to marshal detector definitions: %w", err)
	}
	return p.client.Set(ctx, p.key, payload, p.ttl).Err()
}

// localRegistry 本地降级构建
func (p *RegistryCache) localRegistry() (*detector.Registry, error) {
	p.mu.RLock()
	if p.current != nil {
		registry := p.current
		p.mu.RUnlock()
		return registry, nil
	}
	p.mu.RUnlock()
	registry, err := detector.NewRegistry(p.cfg())
	if err != nil {
		return nil, fmt.Errorf("failed to build detector registry: %w", err)
	}
	p.remember(registry, "")
	return registry, nil
}

func (p *RegistryCache) remember(registry *detector.Registry, checksum string) {
	p.mu.Lock()
	p.current = registry
	p.checksum = checksum
	p.mu.Unlock()
}
