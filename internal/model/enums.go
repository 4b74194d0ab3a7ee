// 领域枚举定义
// 告警类型、数据分类、风险等级等全部使用封闭枚举，禁止自由字符串散落各层
package model

// RiskScore 风险等级
type RiskScore string

const (
	RiskNone   RiskScore = "none"
	RiskLow    RiskScore = "low"
	RiskMedium RiskScore = "medium"
	RiskHigh   RiskScore = "high"
)

// riskScoreOrder 风险等级排序权重 [数值越大风险越高]
var riskScoreOrder = map[RiskScore]int{
	RiskNone:   0,
	RiskLow:    1,
	RiskMedium: 2,
	RiskHigh:   3,
}

// Compare 比较两个风险等级，返回 -1/0/1
func (r RiskScore) Compare(other RiskScore) int {
	a, b := riskScoreOrder[r], riskScoreOrder[other]
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// AlertType 告警类型
type AlertType string

const (
	AlertTypeNewEndpoint          AlertType = "New Endpoint Detected"
	AlertTypeOpenAPISpecDiff      AlertType = "Open API Spec Diff"
	AlertTypePIIDataDetected      AlertType = "PII Data Detected"
	AlertTypeQuerySensitiveData   AlertType = "Sensitive Data in Query Params"
	AlertTypePathSensitiveData    AlertType = "Sensitive Data in Path Params"
	AlertTypeBasicAuthDetected    AlertType = "Basic Authentication Detected"
	AlertTypeUnsecuredEndpoint    AlertType = "Endpoint not secured by SSL"
	AlertTypeUnauthSensitiveData  AlertType = "Unauthenticated Endpoint returning Sensitive Data"
	AlertTypeMissingHSTS          AlertType = "Missing HSTS Header"
)

// AlertStatus 告警状态
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "Open"
	AlertStatusAcknowledged AlertStatus = "Acknowledged"
	AlertStatusResolved     AlertStatus = "Resolved"
	AlertStatusIgnored      AlertStatus = "Ignored"
)

// DataClass 敏感数据分类
type DataClass string

const (
	DataClassEmail       DataClass = "Email"
	DataClassCreditCard  DataClass = "Credit Card Number"
	DataClassSSN         DataClass = "Social Security Number"
	DataClassPhoneNumber DataClass = "Phone Number"
	DataClassIPAddress   DataClass = "IP Address"
	DataClassCoordinate  DataClass = "Geographic Coordinates"
	DataClassVIN         DataClass = "Vehicle Identification Number"
	DataClassAddress     DataClass = "Address"
	DataClassDOB         DataClass = "Date of Birth"
	DataClassDLNumber    DataClass = "Driver License Number"
	DataClassAadhar      DataClass = "Aadhar Number"
	DataClassBrazilCPF   DataClass = "Brazil CPF"
)

// DataSection 流量字段所属区段
type DataSection string

const (
	SectionRequestPath    DataSection = "reqPath"
	SectionRequestQuery   DataSection = "reqQuery"
	SectionRequestHeader  DataSection = "reqHeaders"
	SectionRequestBody    DataSection = "reqBody"
	SectionResponseHeader DataSection = "resHeaders"
	SectionResponseBody   DataSection = "resBody"
)

// DataType 字段值类型
type DataType string

const (
	DataTypeNumber  DataType = "number"
	DataTypeInteger DataType = "integer"
	DataTypeString  DataType = "string"
	DataTypeBoolean DataType = "boolean"
	DataTypeObject  DataType = "object"
	DataTypeArray   DataType = "array"
	DataTypeUnknown DataType = "unknown"
)

// RestMethod HTTP方法
type RestMethod string

const (
	MethodGet     RestMethod = "GET"
	MethodPost    RestMethod = "POST"
	MethodPut     RestMethod = "PUT"
	MethodPatch   RestMethod = "PATCH"
	MethodDelete  RestMethod = "DELETE"
	MethodHead    RestMethod = "HEAD"
	MethodOptions RestMethod = "OPTIONS"
	MethodTrace   RestMethod = "TRACE"
	MethodConnect RestMethod = "CONNECT"
)

// AnalysisType 分析模式 [full 走完整管线, partial 跳过脱敏等重型步骤]
type AnalysisType string

const (
	AnalysisFull    AnalysisType = "full"
	AnalysisPartial AnalysisType = "partial"
)
