// Webhook模型
package model

import "time"

// MaxWebhookRuns 每个Webhook保留的投递记录上限
const MaxWebhookRuns = 10

// WebhookRun 一次投递记录
type WebhookRun struct {
	OK      bool      `json:"ok"`
	Message string    `json:"message"`
	RanAt   time.Time `json:"ran_at"`
}

// Webhook 告警外发配置
// AlertTypes 为空表示订阅全部类型；投递失败独立重试，不影响流量事务
type Webhook struct {
	BaseModel
	URL        string       `json:"url" gorm:"type:varchar(500);not null;comment:投递地址"`
	AlertTypes []AlertType  `json:"alert_types" gorm:"serializer:json;comment:订阅的告警类型"`
	Hosts      []string     `json:"hosts" gorm:"serializer:json;comment:订阅的主机,空为全部"`
	MaxRetries int          `json:"max_retries" gorm:"not null;default:3;comment:单次投递最大重试次数"`
	Runs       []WebhookRun `json:"runs" gorm:"serializer:json;comment:最近投递记录(上限10条)"`
}

// TableName 指定表名
func (Webhook) TableName() string {
	return "webhooks"
}

// Subscribes Webhook是否订阅了指定类型和主机的告警
func (w *Webhook) Subscribes(alertType AlertType, host string) bool {
	if len(w.AlertTypes) > 0 {
		found := false
		for _, t := range w.AlertTypes {
			if t == alertType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(w.Hosts) > 0 {
		found := false
		for _, h := range w.Hosts {
			if h == host {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AppendRun 追加投递记录，超过上限时淘汰最早的记录
func (w *Webhook) AppendRun(run WebhookRun) {
	w.Runs = append(w.Runs, run)
	if len(w.Runs) > MaxWebhookRuns {
		w.Runs = w.Runs[len(w.Runs)-MaxWebhookRuns:]
	}
}
