// 静态风险映射表
// 告警类型和数据分类的风险等级在创建时一次性确定，后续不再重算
package model

// AlertTypeToRiskScore 告警类型到风险等级的静态映射
var AlertTypeToRiskScore = map[AlertType]RiskScore{
	AlertTypeNewEndpoint:         RiskLow,
	AlertTypeOpenAPISpecDiff:     RiskMedium,
	AlertTypePIIDataDetected:     RiskHigh,
	AlertTypeQuerySensitiveData:  RiskHigh,
	AlertTypePathSensitiveData:   RiskHigh,
	AlertTypeBasicAuthDetected:   RiskMedium,
	AlertTypeUnsecuredEndpoint:   RiskHigh,
	AlertTypeUnauthSensitiveData: RiskHigh,
	AlertTypeMissingHSTS:         RiskMedium,
}

// DataClassToRiskScore 数据分类到风险等级的静态映射
var DataClassToRiskScore = map[DataClass]RiskScore{
	DataClassEmail:       RiskMedium,
	DataClassCreditCard:  RiskHigh,
	DataClassSSN:         RiskHigh,
	DataClassPhoneNumber: RiskMedium,
	DataClassIPAddress:   RiskMedium,
	DataClassCoordinate:  RiskMedium,
	DataClassVIN:         RiskLow,
	DataClassAddress:     RiskHigh,
	DataClassDOB:         RiskMedium,
	DataClassDLNumber:    RiskHigh,
	DataClassAadhar:      RiskHigh,
	DataClassBrazilCPF:   RiskHigh,
}

// RiskScoreForAlert 获取告警类型的风险等级，未登记的类型按 none 处理
func RiskScoreForAlert(t AlertType) RiskScore {
	if score, ok := AlertTypeToRiskScore[t]; ok {
		return score
	}
	return RiskNone
}

// AggregateRiskScore 按检出的敏感数据分类数量聚合端点风险
// 规则: 3类及以上为 high，2类为 medium，1类为 low，无检出为 none
func AggregateRiskScore(classes []DataClass) RiskScore {
	switch n := len(classes); {
	case n >= 3:
		return RiskHigh
	case n == 2:
		return RiskMedium
	case n == 1:
		return RiskLow
	default:
		return RiskNone
	}
}
