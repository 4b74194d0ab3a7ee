// 主机与小时聚合模型
package model

// Host 观测到的主机 [首次出现时登记]
type Host struct {
	BaseModel
	Host string `json:"host" gorm:"type:varchar(255);not null;uniqueIndex:uq_host;comment:主机名"`
}

// TableName 指定表名
func (Host) TableName() string {
	return "hosts"
}

// AggregateTraceDataHourly 端点的小时级调用量计数
// 唯一键 (APIEndpointUUID, Hour)，同一小时内重复观测累加
type AggregateTraceDataHourly struct {
	BaseModel
	APIEndpointUUID string `json:"api_endpoint_uuid" gorm:"type:char(36);not null;uniqueIndex:uq_hourly,priority:1;comment:所属端点UUID"`
	Hour            string `json:"hour" gorm:"type:varchar(13);not null;uniqueIndex:uq_hourly,priority:2;comment:小时桶 2026-01-02T15"`
	NumCalls        uint64 `json:"num_calls" gorm:"not null;default:0;comment:调用次数"`
}

// TableName 指定表名
func (AggregateTraceDataHourly) TableName() string {
	return "aggregate_trace_data_hourly"
}

// HourBucketLayout 小时桶的时间格式
const HourBucketLayout = "2006-01-02T15"
