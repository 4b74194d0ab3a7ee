// 分析结果写集
package model

// AnalysisResult 一条流量分析产生的全部待写入变更
// 事务写入器把整个写集放进同一个数据库事务
type AnalysisResult struct {
	Trace           *ApiTrace    // 待插入的流量记录
	Endpoint        *ApiEndpoint // 端点记录
	EndpointChanged bool         // 端点元数据(风险/时间/IP映射)是否需要更新
	NewHost         bool         // 是否首次见到该主机
	DataFields      []*DataField // 待插入或更新的数据字段
	Alerts          []*Alert     // 去重后的新告警
	Spec            *OpenApiSpec // 行号摘录缓存有更新时带上文档记录
	SpecChanged     bool         // 文档缓存是否需要回写
}
