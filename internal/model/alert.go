// 告警模型
package model

// Alert 安全告警
// 去重约束: 同一 (APIEndpointUUID, Type, Description) 下最多存在一条未解决告警
// 已解决的告警不会被自动重新打开，相同条件再次出现时新建记录
type Alert struct {
	BaseModel
	APIEndpointUUID string                 `json:"api_endpoint_uuid" gorm:"type:char(36);not null;index:idx_alert_dedup,priority:1;comment:所属端点UUID"`
	Type            AlertType              `json:"type" gorm:"type:varchar(60);not null;index:idx_alert_dedup,priority:2;comment:告警类型"`
	Description     string                 `json:"description" gorm:"type:varchar(500);not null;index:idx_alert_dedup,priority:3;comment:告警描述(去重键之一)"`
	RiskScore       RiskScore              `json:"risk_score" gorm:"type:varchar(10);not null;comment:风险等级(创建时按类型确定)"`
	Status          AlertStatus            `json:"status" gorm:"type:varchar(15);not null;default:Open;index:idx_alert_dedup,priority:4;comment:告警状态"`
	Context         map[string]interface{} `json:"context" gorm:"serializer:json;comment:结构化上下文(触发流量、文档行号等)"`
}

// TableName 指定表名
func (Alert) TableName() string {
	return "alerts"
}

// IsResolved 告警是否已解决
func (a *Alert) IsResolved() bool {
	return a.Status == AlertStatusResolved
}

// DedupKey 告警去重键 [批内去重与数据库查重共用]
func (a *Alert) DedupKey() string {
	return a.APIEndpointUUID + "|" + string(a.Type) + "|" + a.Description
}

// NewAlert 创建告警，风险等级由类型查表确定
func NewAlert(endpointUUID string, alertType AlertType, description string, context map[string]interface{}) *Alert {
	return &Alert{
		APIEndpointUUID: endpointUUID,
		Type:            alertType,
		Description:     description,
		RiskScore:       RiskScoreForAlert(alertType),
		Status:          AlertStatusOpen,
		Context:         context,
	}
}
