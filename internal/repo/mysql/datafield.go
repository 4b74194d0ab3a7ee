// 数据字段仓储
package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"traceguard/internal/model"
)

// DataFieldRepository 数据字段仓储
type DataFieldRepository interface {
	// ListByEndpoint 列出端点下全部字段记录
	ListByEndpoint(ctx context.Context, endpointUUID string) ([]*model.DataField, error)
	// MarkFalsePositive 把字段上的某个分类移入误报列表
	MarkFalsePositive(ctx context.Context, fieldUUID string, class model.DataClass) error
}

type dataFieldRepository struct {
	db *gorm.DB
}

// NewDataFieldRepository 创建数据字段仓储实例
func NewDataFieldRepository(db *gorm.DB) DataFieldRepository {
	return &dataFieldRepository{db: db}
}

// ListByEndpoint 列出端点下全部字段记录
func (r *dataFieldRepository) ListByEndpoint(ctx context.Context, endpointUUID string) ([]*model.DataField, error) {
	var fields []*model.DataField
	err := r.db.WithContext(ctx).
		Where("api_endpoint_uuid = ?", endpointUUID).
		Order("data_section ASC, data_path ASC, status_code ASC, content_type ASC").
		Find(&fields).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list data fields: %w", err)
	}
	return fields, nil
}

// MarkFalsePositive 把分类移入误报列表
// 移入后该分类从已检出列表删除，且后续流量不会再把它加回来
func (r *dataFieldRepository) MarkFalsePositive(ctx context.Context, fieldUUID string, class model.DataClass) error {
	var field model.DataField
	if err := r.db.WithContext(ctx).Where("uuid = ?", fieldUUID).First(&field).Error; err != nil {
		return fmt.Errorf("failed to load data field %s: %w", fieldUUID, err)
	}
	if field.IsFalsePositive(class) {
		return nil
	}

	field.FalsePositives = append(field.FalsePositives, class)
	remaining := field.DataClasses[:0]
	for _, c := range field.DataClasses {
		if c != class {
			remaining = append(remaining, c)
		}
	}
	field.DataClasses = remaining
	if len(field.DataClasses) == 0 {
		field.DataTag = ""
	}

	if err := r.db.WithContext(ctx).Save(&field).Error; err != nil {
		return fmt.Errorf("failed to mark false positive on field %s: %w", fieldUUID, err)
	}
	return nil
}
