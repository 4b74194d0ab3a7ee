// 数据字段模型
// 每条记录对应端点流量中的一个字段位置，按五元组唯一
package model

// DataField 端点流量中被分类的字段位置
// 唯一键: (APIEndpointUUID, DataSection, DataPath, StatusCode, ContentType)
// 同一逻辑字段在不同响应变体(状态码/内容类型)下独立跟踪
// 请求侧区段的 StatusCode 恒为 -1、ContentType 恒为空串
type DataField struct {
	BaseModel
	APIEndpointUUID   string      `json:"api_endpoint_uuid" gorm:"type:char(36);not null;uniqueIndex:uq_data_field,priority:1;index:idx_data_field_endpoint;comment:所属端点UUID"`
	DataSection       DataSection `json:"data_section" gorm:"type:varchar(20);not null;uniqueIndex:uq_data_field,priority:2;comment:所属区段"`
	DataPath          string      `json:"data_path" gorm:"type:varchar(500);not null;uniqueIndex:uq_data_field,priority:3;comment:字段路径"`
	StatusCode        int         `json:"status_code" gorm:"not null;default:-1;uniqueIndex:uq_data_field,priority:4;comment:响应状态码"`
	ContentType       string      `json:"content_type" gorm:"type:varchar(100);not null;default:'';uniqueIndex:uq_data_field,priority:5;comment:内容类型"`
	DataClasses       []DataClass `json:"data_classes" gorm:"serializer:json;comment:检出的敏感数据分类"`
	ScannerIdentified []DataClass `json:"scanner_identified" gorm:"serializer:json;comment:扫描器识别的分类"`
	FalsePositives    []DataClass `json:"false_positives" gorm:"serializer:json;comment:误报抑制列表"`
	DataTag           string      `json:"data_tag" gorm:"type:varchar(20);comment:敏感标记"`
	DataType          DataType    `json:"data_type" gorm:"type:varchar(10);comment:字段值类型"`
	IsNullable        bool        `json:"is_nullable" gorm:"not null;default:false;comment:是否观察到空值"`
}

// TableName 指定表名
func (DataField) TableName() string {
	return "data_fields"
}

// DataTagPII 字段检出敏感数据时打的标记
const DataTagPII = "PII"

// HasClass 字段是否已含有指定分类
func (f *DataField) HasClass(c DataClass) bool {
	for _, dc := range f.DataClasses {
		if dc == c {
			return true
		}
	}
	return false
}

// IsFalsePositive 分类是否被标记为误报 [误报分类永不重新加入]
func (f *DataField) IsFalsePositive(c DataClass) bool {
	for _, dc := range f.FalsePositives {
		if dc == c {
			return true
		}
	}
	return false
}

// AddClass 合并新分类，跳过误报分类和已存在分类
// 返回是否发生了变化
func (f *DataField) AddClass(c DataClass) bool {
	if f.IsFalsePositive(c) || f.HasClass(c) {
		return false
	}
	f.DataClasses = append(f.DataClasses, c)
	f.ScannerIdentified = append(f.ScannerIdentified, c)
	f.DataTag = DataTagPII
	return true
}
