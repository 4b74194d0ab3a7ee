// Webhook仓储
package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"traceguard/internal/model"
)

// WebhookRepository Webhook仓储
type WebhookRepository interface {
	// List 列出全部Webhook配置
	List(ctx context.Context) ([]*model.Webhook, error)
	// SaveRuns 回写投递记录
	SaveRuns(ctx context.Context, webhook *model.Webhook) error
}

type webhookRepository struct {
	db *gorm.DB
}

// NewWebhookRepository 创建Webhook仓储实例
func NewWebhookRepository(db *gorm.DB) WebhookRepository {
	return &webhookRepository{db: db}
}

// List 列出全部Webhook配置
func (r *webhookRepository) List(ctx context.Context) ([]*model.Webhook, error) {
	var webhooks []*model.Webhook
	err := r.db.WithContext(ctx).Find(&webhooks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return webhooks, nil
}

// SaveRuns 回写投递记录 [只更新runs列，避免覆盖并发修改的订阅配置]
func (r *webhookRepository) SaveRuns(ctx context.Context, webhook *model.Webhook) error {
	err := r.db.WithContext(ctx).Model(&model.Webhook{}).
		Where("uuid = ?", webhook.UUID).
		Select("runs", "updated_at").
		Updates(webhook).Error
	if err != nil {
		return fmt.Errorf("failed to save webhook runs: %w", err)
	}
	return nil
}
