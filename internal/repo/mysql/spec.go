// OpenAPI文档仓储
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traceguard/internal/model"
)

// SpecRepository OpenAPI文档仓储
type SpecRepository interface {
	// GetByName 按文档名查找
	GetByName(ctx context.Context, name string) (*model.OpenApiSpec, error)
	// Upsert 新建或更新文档 [更新时清空行号摘录缓存]
	Upsert(ctx context.Context, spec *model.OpenApiSpec) error
	// BindEndpoints 把文档绑定到主机下匹配模板的端点
	BindEndpoints(ctx context.Context, specName, host string, paths []string) (int64, error)
}

type specRepository struct {
	db *gorm.DB
}

// NewSpecRepository 创建文档仓储实例
func NewSpecRepository(db *gorm.DB) SpecRepository {
	return &specRepository{db: db}
}

// GetByName 按文档名查找
func (r *specRepository) GetByName(ctx context.Context, name string) (*model.OpenApiSpec, error) {
	var spec model.OpenApiSpec
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&spec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spec %s: %w", name, err)
	}
	return &spec, nil
}

// Upsert 新建或更新文档
// 文档内容变化后旧的行号摘录全部失效，缓存直接清空重建
func (r *specRepository) Upsert(ctx context.Context, spec *model.OpenApiSpec) error {
	spec.SpecUpdatedAt = time.Now()
	spec.LineContexts = nil
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"raw", "extension", "spec_updated_at", "line_contexts", "updated_at",
			}),
		}).
		Create(spec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert spec %s: %w", spec.Name, err)
	}
	return nil
}

// BindEndpoints 把文档绑定到主机下路径模板匹配的端点，返回绑定数量
func (r *specRepository) BindEndpoints(ctx context.Context, specName, host string, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&model.ApiEndpoint{}).
		Where("host = ? AND path IN ?", host, paths).
		Update("spec_name", specName)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to bind spec %s to endpoints: %w", specName, result.Error)
	}
	return result.RowsAffected, nil
}
