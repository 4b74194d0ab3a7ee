// API端点模型
// 端点由流量推断产生，(host, method, path) 全局唯一
package model

import "time"

// ApiEndpoint 推断出的API端点
// Path 为参数化模板(如 /users/{param1})，PathRegex 为对应的匹配正则
// NumberParams 记录模板中的参数个数，多个端点同时命中时参数最少者优先
type ApiEndpoint struct {
	BaseModel
	Host          string               `json:"host" gorm:"type:varchar(255);not null;uniqueIndex:uq_endpoint,priority:1;index:idx_endpoint_host_method,priority:1;comment:主机名"`
	Method        RestMethod           `json:"method" gorm:"type:varchar(10);not null;uniqueIndex:uq_endpoint,priority:2;index:idx_endpoint_host_method,priority:2;comment:HTTP方法"`
	Path          string               `json:"path" gorm:"type:varchar(500);not null;uniqueIndex:uq_endpoint,priority:3;comment:参数化路径模板"`
	PathRegex     string               `json:"path_regex" gorm:"type:varchar(1000);not null;comment:路径匹配正则"`
	NumberParams  int                  `json:"number_params" gorm:"not null;default:0;comment:模板参数个数"`
	RiskScore     RiskScore            `json:"risk_score" gorm:"type:varchar(10);not null;default:none;comment:聚合风险等级"`
	FirstDetected time.Time            `json:"first_detected" gorm:"comment:首次发现时间"`
	LastActive    time.Time            `json:"last_active" gorm:"comment:最近活跃时间"`
	HostIPs       map[string]time.Time `json:"host_ips" gorm:"serializer:json;comment:目标IP及最近出现时间"`
	SrcIPs        map[string]time.Time `json:"src_ips" gorm:"serializer:json;comment:来源IP及最近出现时间"`
	IsGraphQL     bool                 `json:"is_graphql" gorm:"not null;default:false;comment:是否GraphQL端点"`
	SpecName      string               `json:"spec_name" gorm:"type:varchar(255);comment:关联的OpenAPI文档名"`
}

// TableName 指定表名
func (ApiEndpoint) TableName() string {
	return "api_endpoints"
}

// HasSpec 端点是否关联了OpenAPI文档
func (e *ApiEndpoint) HasSpec() bool {
	return e.SpecName != ""
}
