package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceguard/internal/config"
	"traceguard/internal/model"
)

func newBuiltinRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(&config.DetectorConfig{})
	require.NoError(t, err)
	return registry
}

func TestScanValue_Email(t *testing.T) {
	registry := newBuiltinRegistry(t)

	assert.Contains(t, registry.ScanValue("alice@example.com"), model.DataClassEmail)
	// 嵌在长字符串中间没有空白边界时不命中
	assert.NotContains(t, registry.ScanValue("xxalice@example.comyy-trailing"), model.DataClassEmail)
	assert.Contains(t, registry.ScanValue("contact alice@example.com now"), model.DataClassEmail)
}

func TestScanValue_CreditCard(t *testing.T) {
	registry := newBuiltinRegistry(t)

	assert.Contains(t, registry.ScanValue("4111111111111111"), model.DataClassCreditCard) // Visa
	assert.Contains(t, registry.ScanValue("378282246310005"), model.DataClassCreditCard)  // AmEx
	assert.Empty(t, registry.ScanValue("not-a-card"))
}

func TestScanValue_SSNValidation(t *testing.T) {
	registry := newBuiltinRegistry(t)

	assert.Contains(t, registry.ScanValue("212-09-9999"), model.DataClassSSN)
	// 区号000/666/9xx 和 组号00 是无效SSN，正则命中但校验排除
	assert.NotContains(t, registry.ScanValue("000-12-3456"), model.DataClassSSN)
	assert.NotContains(t, registry.ScanValue("666-12-3456"), model.DataClassSSN)
	assert.NotContains(t, registry.ScanValue("123-00-3456"), model.DataClassSSN)
	assert.NotContains(t, registry.ScanValue("123-45-0000"), model.DataClassSSN)
}

func TestScanValue_AadharChecksum(t *testing.T) {
	registry := newBuiltinRegistry(t)

	// 234123412346 是Verhoeff校验通过的样例号码
	assert.Contains(t, registry.ScanValue("2341 2341 2346"), model.DataClassAadhar)
	assert.NotContains(t, registry.ScanValue("2341 2341 2347"), model.DataClassAadhar)
	// 首位0/1不是合法Aadhar
	assert.NotContains(t, registry.ScanValue("1341 2341 2346"), model.DataClassAadhar)
}

func TestScanValue_BrazilCPF(t *testing.T) {
	registry := newBuiltinRegistry(t)

	// 529.982.247-25 校验位合法
	assert.Contains(t, registry.ScanValue("529.982.247-25"), model.DataClassBrazilCPF)
	assert.Contains(t, registry.ScanValue("52998224725"), model.DataClassBrazilCPF)
	assert.NotContains(t, registry.ScanValue("529.982.247-26"), model.DataClassBrazilCPF)
	// 全同数字串校验位碰巧自洽，但不是合法CPF
	assert.NotContains(t, registry.ScanValue("111.111.111-11"), model.DataClassBrazilCPF)
}

func TestScanKey_Address(t *testing.T) {
	registry := newBuiltinRegistry(t)

	assert.Contains(t, registry.ScanKey("billing_address"), model.DataClassAddress)
	assert.Contains(t, registry.ScanKey("user.Address.street"), model.DataClassAddress)
	assert.Empty(t, registry.ScanKey("username"))
}

func TestNewRegistry_DisabledClass(t *testing.T) {
	registry, err := NewRegistry(&config.DetectorConfig{
		DisabledClasses: []string{string(model.DataClassEmail)},
	})
	require.NoError(t, err)

	assert.False(t, registry.Has(model.DataClassEmail))
	assert.Empty(t, registry.ScanValue("alice@example.com"))
	assert.True(t, registry.Has(model.DataClassSSN))
}

func TestNewRegistry_CustomClass(t *testing.T) {
	registry, err := NewRegistry(&config.DetectorConfig{
		CustomClasses: []config.CustomClassConfig{
			{
				Name:      "Internal User ID",
				Pattern:   `(^|\s)usr_[0-9a-f]{16}($|\s)`,
				RiskScore: "low",
			},
		},
	})
	require.NoError(t, err)

	classes := registry.ScanValue("usr_0123456789abcdef")
	assert.Contains(t, classes, model.DataClass("Internal User ID"))
	assert.Equal(t, model.RiskLow, registry.RiskScoreOf("Internal User ID"))
}

func TestNewRegistry_CustomOverridesBuiltin(t *testing.T) {
	registry, err := NewRegistry(&config.DetectorConfig{
		CustomClasses: []config.CustomClassConfig{
			{
				Name:      string(model.DataClassEmail),
				Pattern:   `(^|\s)[a-z]+@corp\.internal($|\s)`,
				RiskScore: "high",
			},
		},
	})
	require.NoError(t, err)

	// 自定义定义覆盖内置：通用邮箱不再命中，内部域名命中
	assert.Empty(t, registry.ScanValue("alice@example.com"))
	assert.Contains(t, registry.ScanValue("alice@corp.internal"), model.DataClassEmail)
	assert.Equal(t, model.RiskHigh, registry.RiskScoreOf(model.DataClassEmail))
}

func TestNewRegistry_InvalidCustomPattern(t *testing.T) {
	_, err := NewRegistry(&config.DetectorConfig{
		CustomClasses: []config.CustomClassConfig{
			{Name: "Broken", Pattern: `([unclosed`},
		},
	})
	assert.Error(t, err)
}

func TestFromDefinitions_RoundTrip(t *testing.T) {
	original := newBuiltinRegistry(t)

	rebuilt, err := FromDefinitions(original.Definitions())
	require.NoError(t, err)

	// 校验函数反序列化后重新挂载，Aadhar校验行为一致
	assert.Contains(t, rebuilt.ScanValue("2341 2341 2346"), model.DataClassAadhar)
	assert.NotContains(t, rebuilt.ScanValue("2341 2341 2347"), model.DataClassAadhar)
	assert.Equal(t, len(original.Definitions()), len(rebuilt.Definitions()))
}
