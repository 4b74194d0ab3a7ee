// 告警仓储
package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"traceguard/internal/model"
)

// AlertRepository 告警仓储
type AlertRepository interface {
	// ExistsUnresolved 端点下是否存在同类型同描述的未解决告警
	ExistsUnresolved(ctx context.Context, endpointUUID string, alertType model.AlertType, description string) (bool, error)
	// UpdateStatus 更新告警状态
	UpdateStatus(ctx context.Context, alertUUID string, status model.AlertStatus) error
	// ListByEndpoint 列出端点下全部告警
	ListByEndpoint(ctx context.Context, endpointUUID string) ([]*model.Alert, error)
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository 创建告警仓储实例
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// ExistsUnresolved 查重
// 已解决(Resolved)的告警不挡新告警，相同条件再次出现时允许新建
func (r *alertRepository) ExistsUnresolved(ctx context.Context, endpointUUID string, alertType model.AlertType, description string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Alert{}).
		Where("api_endpoint_uuid = ? AND type = ? AND description = ? AND status <> ?",
			endpointUUID, alertType, description, model.AlertStatusResolved).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count existing alerts: %w", err)
	}
	return count > 0, nil
}

// UpdateStatus 更新告警状态
func (r *alertRepository) UpdateStatus(ctx context.Context, alertUUID string, status model.AlertStatus) error {
	result := r.db.WithContext(ctx).Model(&model.Alert{}).
		Where("uuid = ?", alertUUID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update alert status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("alert %s not found", alertUUID)
	}
	return nil
}

// ListByEndpoint 列出端点下全部告警 [新告警在前]
func (r *alertRepository) ListByEndpoint(ctx context.Context, endpointUUID string) ([]*model.Alert, error) {
	var alerts []*model.Alert
	err := r.db.WithContext(ctx).
		Where("api_endpoint_uuid = ?", endpointUUID).
		Order("created_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}
