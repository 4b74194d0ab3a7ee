// OpenAPI文档模型
package model

import "time"

// SpecExcerpt 文档行定位摘录 [每个(文档,描述)对只计算一次]
type SpecExcerpt struct {
	LineNumber int    `json:"line_number"`
	Excerpt    string `json:"excerpt"`
}

// OpenApiSpec 端点关联的OpenAPI文档
// Raw 保存原始文本，行号定位依赖原始文本而非解析结果
type OpenApiSpec struct {
	BaseModel
	Name          string                 `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:uq_spec_name;comment:文档名"`
	Raw           string                 `json:"raw" gorm:"type:longtext;comment:原始文档文本"`
	Extension     string                 `json:"extension" gorm:"type:varchar(10);comment:文档格式 json/yaml"`
	SpecUpdatedAt time.Time              `json:"spec_updated_at" gorm:"comment:文档更新时间"`
	LineContexts  map[string]SpecExcerpt `json:"line_contexts" gorm:"serializer:json;comment:按描述缓存的行号摘录"`
}

// TableName 指定表名
func (OpenApiSpec) TableName() string {
	return "open_api_specs"
}

// IsJSON 文档是否为JSON格式
func (s *OpenApiSpec) IsJSON() bool {
	return s.Extension == "json"
}
