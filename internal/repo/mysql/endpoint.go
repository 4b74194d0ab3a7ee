// 端点仓储
package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"traceguard/internal/inference"
	"traceguard/internal/model"
	"traceguard/internal/pkg/logger"
)

// EndpointRepository 端点仓储
type EndpointRepository interface {
	// FindMatching 按主机+方法定位能匹配具体路径的端点 [参数最少者优先]
	FindMatching(ctx context.Context, host string, method model.RestMethod, path string) (*model.ApiEndpoint, error)
	// Create 插入新端点，唯一键冲突时返回 duplicate=true
	Create(ctx context.Context, endpoint *model.ApiEndpoint) (bool, error)
	// FindByTemplate 按模板路径精确查找
	FindByTemplate(ctx context.Context, host string, method model.RestMethod, path string) (*model.ApiEndpoint, error)
	// GetByUUID 按UUID查找
	GetByUUID(ctx context.Context, uuid string) (*model.ApiEndpoint, error)
	// ListByHost 列出主机下全部端点
	ListByHost(ctx context.Context, host string) ([]*model.ApiEndpoint, error)
}

type endpointRepository struct {
	db *gorm.DB
}

// NewEndpointRepository 创建端点仓储实例
func NewEndpointRepository(db *gorm.DB) EndpointRepository {
	return &endpointRepository{db: db}
}

// FindMatching 定位能匹配具体路径的端点
// 候选集按(host, method)取出并按参数个数升序排列，正则匹配在应用侧完成；
// 多个模板同时命中时，排序保证参数最少(最具体)的模板胜出。
// GraphQL端点按路径后缀匹配，不走正则。
func (r *endpointRepository) FindMatching(ctx context.Context, host string, method model.RestMethod, path string) (*model.ApiEndpoint, error) {
	var candidates []*model.ApiEndpoint
	err := r.db.WithContext(ctx).
		Where("host = ? AND method = ?", host, method).
		Order("number_params ASC, path ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint candidates: %w", err)
	}

	for _, candidate := range candidates {
		if candidate.IsGraphQL {
			if strings.HasSuffix(path, candidate.Path) {
				return candidate, nil
			}
			continue
		}
		if candidate.NumberParams == 0 {
			if candidate.Path == path {
				return candidate, nil
			}
			continue
		}
		matched, err := inference.MatchesPath(candidate.PathRegex, path)
		if err != nil {
			logger.Warnf("endpoint %s carries invalid path regex %q: %v", candidate.UUID, candidate.PathRegex, err)
			continue
		}
		if matched {
			return candidate, nil
		}
	}
	return nil, nil
}

// Create 插入新端点
// (host, method, path) 唯一键冲突说明另一个进程已创建同模板端点，
// 返回 duplicate=true 由调用方重新查询，不视为错误
func (r *endpointRepository) Create(ctx context.Context, endpoint *model.ApiEndpoint) (bool, error) {
	err := r.db.WithContext(ctx).Create(endpoint).Error
	if err == nil {
		return false, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKey(err) {
		return true, nil
	}
	return false, fmt.Errorf("failed to create endpoint: %w", err)
}

// FindByTemplate 按模板路径精确查找端点
func (r *endpointRepository) FindByTemplate(ctx context.Context, host string, method model.RestMethod, path string) (*model.ApiEndpoint, error) {
	var endpoint model.ApiEndpoint
	err := r.db.WithContext(ctx).
		Where("host = ? AND method = ? AND path = ?", host, method, path).
		First(&endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find endpoint by template: %w", err)
	}
	return &endpoint, nil
}

// GetByUUID 按UUID查找端点
func (r *endpointRepository) GetByUUID(ctx context.Context, uuid string) (*model.ApiEndpoint, error) {
	var endpoint model.ApiEndpoint
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}
	return &endpoint, nil
}

// ListByHost 列出主机下全部端点
func (r *endpointRepository) ListByHost(ctx context.Context, host string) ([]*model.ApiEndpoint, error) {
	var endpoints []*model.ApiEndpoint
	err := r.db.WithContext(ctx).
		Where("host = ?", host).
		Order("path ASC").
		Find(&endpoints).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints for host %s: %w", host, err)
	}
	return endpoints, nil
}
