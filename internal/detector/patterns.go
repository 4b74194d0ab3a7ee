// 内置检测规则
// 值正则全部带边界锚定 (^|\s)...($|\s)，避免长字符串中的子串误命中
package detector

import (
	"traceguard/internal/model"
)

// builtinPattern 内置分类的规则定义
type builtinPattern struct {
	class      model.DataClass
	pattern    string            // 值匹配正则，空表示仅按键名检测
	keyPattern string            // 键名匹配正则，可空
	validate   func(string) bool // 校验函数，可空
}

// builtinPatterns 内置敏感数据分类规则表
var builtinPatterns = []builtinPattern{
	{
		class:   model.DataClassEmail,
		pattern: `(^|\s)[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9.-]+($|\s)`,
	},
	{
		class: model.DataClassCreditCard,
		pattern: `(^|\s)(4[0-9]{12}([0-9]{3})?` + // Visa
			`|[25][1-7][0-9]{14}` + // Mastercard
			`|6(011|5[0-9]{2})[0-9]{12}` + // Discover
			`|3[47][0-9]{13}` + // AmEx
			`|3(0[0-5]|[68][0-9])[0-9]{11}` + // Diners Club
			`|(2131|1800|35[0-9]{3})[0-9]{11})($|\s)`, // JCB
	},
	{
		class:    model.DataClassSSN,
		pattern:  `(^|\s)[0-8][0-9]{2}-[0-9]{2}-[0-9]{4}($|\s)`,
		validate: ssnValid,
	},
	{
		class:   model.DataClassPhoneNumber,
		pattern: `(^|\s)(\+?[0-9]{1,2}[\s.-]?)?(\([0-9]{3}\)|[0-9]{3})[\s.-][0-9]{3}[\s.-]?[0-9]{4}($|\s)`,
	},
	{
		class:   model.DataClassIPAddress,
		pattern: `(^|\s)((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)($|\s)`,
	},
	{
		class:   model.DataClassCoordinate,
		pattern: `(^|\s)-?[0-9]{1,3}\.[0-9]{3,},\s*-?[0-9]{1,3}\.[0-9]{3,}($|\s)`,
	},
	{
		class:   model.DataClassVIN,
		pattern: `(^|\s)[A-HJ-NPR-Z0-9]{17}($|\s)`,
	},
	{
		class:      model.DataClassAddress,
		keyPattern: `(?i)address`,
	},
	{
		class:   model.DataClassDOB,
		pattern: `(^|\s)[0-9]{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])($|\s)`,
	},
	{
		class:   model.DataClassDLNumber,
		pattern: `(^|\s)([A-Z][0-9]{7}([0-9]{4})?|[A-Z][0-9]{3}-[0-9]{4}-[0-9]{4})($|\s)`,
	},
	{
		class:    model.DataClassAadhar,
		pattern:  `(^|\s)[0-9]{4}\s?[0-9]{4}\s?[0-9]{4}($|\s)`,
		validate: aadharValid,
	},
	{
		class:    model.DataClassBrazilCPF,
		pattern:  `(^|\s)[0-9]{3}\.?[0-9]{3}\.?[0-9]{3}-?[0-9]{2}($|\s)`,
		validate: cpfValid,
	},
}

// validatorForClass 按分类名取校验函数 [缓存反序列化后重新挂载用]
func validatorForClass(class model.DataClass) func(string) bool {
	switch class {
	case model.DataClassAadhar:
		return aadharValid
	case model.DataClassBrazilCPF:
		return cpfValid
	case model.DataClassSSN:
		return ssnValid
	default:
		return nil
	}
}
