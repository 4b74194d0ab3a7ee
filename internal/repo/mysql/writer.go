// 分析结果事务写入器
// 一条流量分析的全部变更(流量、字段、告警、端点元数据、小时聚合、主机)
// 在同一个数据库事务里落库，失败时整体回滚由上层重试，不留半写状态。
package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traceguard/internal/model"
)

// TraceWriter 分析结果写入器
type TraceWriter interface {
	// SaveAnalyzedTrace 把一条流量的完整写集写入数据库
	SaveAnalyzedTrace(ctx context.Context, result *model.AnalysisResult) error
}

type traceWriter struct {
	db     *gorm.DB
	policy RetryPolicy
}

// NewTraceWriter 创建写入器实例
func NewTraceWriter(db *gorm.DB, policy RetryPolicy) TraceWriter {
	return &traceWriter{db: db, policy: policy}
}

// SaveAnalyzedTrace 事务写入分析结果
// 死锁和锁等待超时按策略退避重试，整个事务作为重试单元
func (w *traceWriter) SaveAnalyzedTrace(ctx context.Context, result *model.AnalysisResult) error {
	return WithRetry(ctx, w.policy, "save analyzed trace", func() error {
		return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return w.writeAll(tx, result)
		})
	})
}

func (w *traceWriter) writeAll(tx *gorm.DB, result *model.AnalysisResult) error {
	// 1. 流量记录
	if result.Trace != nil {
		if err := tx.Create(result.Trace).Error; err != nil {
			return fmt.Errorf("failed to insert trace: %w", err)
		}
	}

	// 2. 数据字段 [按唯一五元组upsert，并发写入同一字段时后写覆盖分类列表]
	for _, field := range result.DataFields {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "api_endpoint_uuid"}, {Name: "data_section"}, {Name: "data_path"},
				{Name: "status_code"}, {Name: "content_type"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"data_classes", "scanner_identified", "data_tag", "data_type", "is_nullable", "updated_at",
			}),
		}).Create(field).Error
		if err != nil {
			return fmt.Errorf("failed to upsert data field %s/%s: %w", field.DataSection, field.DataPath, err)
		}
	}

	// 3. 告警 [去重键冲突时静默跳过，另一个进程已创建同样的告警]
	for _, alert := range result.Alerts {
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(alert).Error
		if err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", alert.Type, err)
		}
	}

	// 4. 端点元数据
	if result.EndpointChanged && result.Endpoint != nil && result.Endpoint.UUID != "" {
		// 走结构体更新让JSON序列化器处理IP映射列
		err := tx.Model(&model.ApiEndpoint{}).
			Where("uuid = ?", result.Endpoint.UUID).
			Select("risk_score", "last_active", "host_ips", "src_ips", "updated_at").
			Updates(result.Endpoint).Error
		if err != nil {
			return fmt.Errorf("failed to update endpoint: %w", err)
		}
	}

	// 5. 小时聚合 [唯一键(端点,小时桶)，冲突时计数加一]
	if result.Trace != nil && result.Endpoint != nil {
		hourly := &model.AggregateTraceDataHourly{
			APIEndpointUUID: result.Endpoint.UUID,
			Hour:            result.Trace.CapturedAt.UTC().Format(model.HourBucketLayout),
			NumCalls:        1,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "api_endpoint_uuid"}, {Name: "hour"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"num_calls": gorm.Expr("num_calls + 1"),
			}),
		}).Create(hourly).Error
		if err != nil {
			return fmt.Errorf("failed to upsert hourly aggregate: %w", err)
		}
	}

	// 6. 新主机登记
	if result.NewHost && result.Endpoint != nil {
		host := &model.Host{Host: result.Endpoint.Host}
		err := tx.Where("host = ?", host.Host).FirstOrCreate(host).Error
		if err != nil {
			return fmt.Errorf("failed to register host %s: %w", host.Host, err)
		}
	}

	// 7. 文档行号摘录缓存回写
	if result.SpecChanged && result.Spec != nil && result.Spec.UUID != "" {
		err := tx.Model(&model.OpenApiSpec{}).
			Where("uuid = ?", result.Spec.UUID).
			Select("line_contexts", "updated_at").
			Updates(result.Spec).Error
		if err != nil {
			return fmt.Errorf("failed to update spec line contexts: %w", err)
		}
	}

	return nil
}
