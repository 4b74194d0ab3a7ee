// 主机仓储
package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"traceguard/internal/model"
)

// HostRepository 主机仓储
type HostRepository interface {
	// Exists 主机是否已登记
	Exists(ctx context.Context, host string) (bool, error)
	// List 列出全部主机
	List(ctx context.Context) ([]*model.Host, error)
}

type hostRepository struct {
	db *gorm.DB
}

// NewHostRepository 创建主机仓储实例
func NewHostRepository(db *gorm.DB) HostRepository {
	return &hostRepository{db: db}
}

// Exists 主机是否已登记
func (r *hostRepository) Exists(ctx context.Context, host string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Host{}).
		Where("host = ?", host).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check host %s: %w", host, err)
	}
	return count > 0, nil
}

// List 列出全部主机
func (r *hostRepository) List(ctx context.Context) ([]*model.Host, error) {
	var hosts []*model.Host
	err := r.db.WithContext(ctx).Order("host ASC").Find(&hosts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	return hosts, nil
}
