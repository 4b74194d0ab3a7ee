// 告警外发
// 新告警产生后逐个投递到订阅的Webhook，投递失败按配置重试，
// 投递结果追加到Webhook的运行记录(上限10条)。外发失败从不影响流量处理。
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"traceguard/internal/config"
	"traceguard/internal/model"
	"traceguard/internal/pkg/logger"
	"traceguard/internal/repo/mysql"
)

// alertPayload 投递的消息体
type alertPayload struct {
	Type        model.AlertType        `json:"type"`
	Description string                 `json:"description"`
	RiskScore   model.RiskScore        `json:"risk_score"`
	Status      model.AlertStatus      `json:"status"`
	Context     map[string]interface{} `json:"context,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Dispatcher 告警外发器
type Dispatcher struct {
	cfg      *config.WebhookConfig
	webhooks mysql.WebhookRepository
	client   *http.Client
}

// NewDispatcher 创建外发器实例
func NewDispatcher(cfg *config.WebhookConfig, webhooks mysql.WebhookRepository) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		webhooks: webhooks,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Dispatch 把本次产生的告警投递到订阅的Webhook
// 任何失败只记录日志和运行记录，不向调用方返回错误
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []*model.Alert, host string) {
	if len(alerts) == 0 {
		return
	}
	hooks, err := d.webhooks.List(ctx)
	if err != nil {
		logger.Errorf("failed to load webhooks: %v", err)
		return
	}

	for _, hook := range hooks {
		changed := false
		for _, alert := range alerts {
			if !hook.Subscribes(alert.Type, host) {
				continue
			}
			run := d.deliver(ctx, hook, alert)
			hook.AppendRun(run)
			changed = true
			if !run.OK {
				logger.Warnf("webhook %s delivery failed: %s", hook.URL, run.Message)
			}
		}
		if changed {
			if err := d.webhooks.SaveRuns(ctx, hook); err != nil {
				logger.Errorf("failed to save webhook runs for %s: %v", hook.URL, err)
			}
		}
	}
}

// deliver 投递单条告警，失败按重试次数重试
func (d *Dispatcher) deliver(ctx context.Context, hook *model.Webhook, alert *model.Alert) model.WebhookRun {
	payload, err := json.Marshal(alertPayload{
		Type:        alert.Type,
		Description: alert.Description,
		RiskScore:   alert.RiskScore,
		Status:      alert.Status,
		Context:     alert.Context,
		CreatedAt:   alert.CreatedAt,
	})
	if err != nil {
		return model.WebhookRun{OK: false, Message: fmt.Sprintf("failed to marshal alert: %v", err), RanAt: time.Now()}
	}

	retries := hook.MaxRetries
	if retries <= 0 {
		retries = d.cfg.DefaultRetry
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.WebhookRun{OK: false, Message: ctx.Err().Error(), RanAt: time.Now()}
			case <-time.After(d.cfg.RetryDelay):
			}
		}
		lastErr = d.post(ctx, hook.URL, payload)
		if lastErr == nil {
			return model.WebhookRun{OK: true, Message: string(alert.Type), RanAt: time.Now()}
		}
	}
	return model.WebhookRun{OK: false, Message: lastErr.Error(), RanAt: time.Now()}
}

// post 单次HTTP投递，非2xx视为失败
func (d *Dispatcher) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
