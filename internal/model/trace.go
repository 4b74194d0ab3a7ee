// 流量模型
// 队列投递的原始流量和入库后的流量记录
package model

import (
	"strings"
	"time"
)

// PairObject 有序键值对 [请求参数和头部允许重名，不能用map]
type PairObject struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TraceMeta 流量采集元数据
type TraceMeta struct {
	Source          string `json:"source"`
	SourcePort      int    `json:"sourcePort"`
	Destination     string `json:"destination"`
	DestinationPort int    `json:"destinationPort"`
	Environment     string `json:"environment"`
	Incoming        bool   `json:"incoming"`
}

// SessionMeta 会话元数据 [由上游探针补充，可能为空]
type SessionMeta struct {
	AuthenticationProvided   *bool  `json:"authenticationProvided,omitempty"`
	AuthenticationSuccessful *bool  `json:"authenticationSuccessful,omitempty"`
	AuthType                 string `json:"authType,omitempty"`
	User                     string `json:"user,omitempty"`
}

// ProcessedTraceData 上游探针预计算的摘要 [可缺省]
type ProcessedTraceData struct {
	RequestContentType    string                 `json:"requestContentType,omitempty"`
	ResponseContentType   string                 `json:"responseContentType,omitempty"`
	SensitiveDataDetected map[string][]DataClass `json:"sensitiveDataDetected,omitempty"`
	ValidationErrors      map[string][]string    `json:"validationErrors,omitempty"`
	GraphQLPaths          []string               `json:"graphQlPaths,omitempty"`
}

// ApiTrace 一次观测到的HTTP交互
// 入库后除衍生的IP聚合外不再修改
type ApiTrace struct {
	BaseModel
	Host              string       `json:"host" gorm:"type:varchar(255);not null;index:idx_trace_host;comment:主机名"`
	Method            RestMethod   `json:"method" gorm:"type:varchar(10);not null;comment:HTTP方法"`
	Path              string       `json:"path" gorm:"type:varchar(500);not null;comment:请求路径"`
	APIEndpointUUID   string       `json:"api_endpoint_uuid" gorm:"type:char(36);index:idx_trace_endpoint;comment:关联端点UUID"`
	RequestParameters []PairObject `json:"request_parameters" gorm:"serializer:json;comment:查询参数"`
	RequestHeaders    []PairObject `json:"request_headers" gorm:"serializer:json;comment:请求头"`
	RequestBody       string       `json:"request_body" gorm:"type:longtext;comment:请求体"`
	ResponseStatus    int          `json:"response_status" gorm:"comment:响应状态码"`
	ResponseHeaders   []PairObject `json:"response_headers" gorm:"serializer:json;comment:响应头"`
	ResponseBody      string       `json:"response_body" gorm:"type:longtext;comment:响应体"`
	Meta              TraceMeta    `json:"meta" gorm:"serializer:json;comment:采集元数据"`
	SessionMeta       *SessionMeta `json:"session_meta" gorm:"serializer:json;comment:会话元数据"`
	CapturedAt        time.Time    `json:"captured_at" gorm:"comment:采集时间"`
	Redacted          bool         `json:"redacted" gorm:"not null;default:false;comment:是否已脱敏"`
}

// TableName 指定表名
func (ApiTrace) TableName() string {
	return "api_traces"
}

// Header 按名字(不区分大小写)查找头部值，找不到返回空串
func Header(pairs []PairObject, name string) string {
	for _, p := range pairs {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ""
}
