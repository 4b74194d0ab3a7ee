// 检测器注册表
// 内置分类和配置中的自定义分类合并为一张注册表，停用的分类在合并时剔除。
// 注册表可序列化为定义列表放入Redis缓存，多个消费进程共享同一份合并结果。
package detector

import (
	"fmt"
	"regexp"
	"strings"

	"traceguard/internal/config"
	"traceguard/internal/model"
)

// Detector 单个分类的检测器
type Detector struct {
	Class     model.DataClass
	RiskScore model.RiskScore
	Builtin   bool

	pattern    *regexp.Regexp    // 值匹配正则，可空
	keyPattern *regexp.Regexp    // 键名匹配正则，可空
	validate   func(string) bool // 校验函数，可空
}

// MatchValue 值是否命中该分类
// 正则命中后若存在校验函数，任一命中片段通过校验才算检出
func (d *Detector) MatchValue(value string) bool {
	if d.pattern == nil || value == "" {
		return false
	}
	matches := d.pattern.FindAllString(value, -1)
	if len(matches) == 0 {
		return false
	}
	if d.validate == nil {
		return true
	}
	for _, m := range matches {
		if d.validate(strings.TrimSpace(m)) {
			return true
		}
	}
	return false
}

// MatchKey 键名是否命中该分类
func (d *Detector) MatchKey(key string) bool {
	if d.keyPattern == nil || key == "" {
		return false
	}
	return d.keyPattern.MatchString(key)
}

// ClassDefinition 可序列化的分类定义 [Redis缓存的存储形态]
type ClassDefinition struct {
	Name       string          `json:"name"`
	Pattern    string          `json:"pattern,omitempty"`
	KeyPattern string          `json:"key_pattern,omitempty"`
	RiskScore  model.RiskScore `json:"risk_score"`
	Builtin    bool            `json:"builtin"`
}

// Registry 合并后的检测器注册表
type Registry struct {
	detectors []*Detector
}

// NewRegistry 按配置构建注册表
// 内置分类剔除停用项后与自定义分类合并，自定义分类名与内置重名时覆盖内置定义
func NewRegistry(cfg *config.DetectorConfig) (*Registry, error) {
	disabled := make(map[string]bool)
	custom := make(map[string]bool)
	if cfg != nil {
		for _, name := range cfg.DisabledClasses {
			disabled[name] = true
		}
		for _, c := range cfg.CustomClasses {
			custom[c.Name] = true
		}
	}

	registry := &Registry{}

	for _, bp := range builtinPatterns {
		if disabled[string(bp.class)] || custom[string(bp.class)] {
			continue
		}
		det, err := compileDetector(ClassDefinition{
			Name:       string(bp.class),
			Pattern:    bp.pattern,
			KeyPattern: bp.keyPattern,
			RiskScore:  model.DataClassToRiskScore[bp.class],
			Builtin:    true,
		})
		if err != nil {
			return nil, err
		}
		registry.detectors = append(registry.detectors, det)
	}

	if cfg != nil {
		for _, c := range cfg.CustomClasses {
			if disabled[c.Name] {
				continue
			}
			risk, err := parseRiskScore(c.RiskScore)
			if err != nil {
				return nil, fmt.Errorf("custom data class %s: %w", c.Name, err)
			}
			det, err := compileDetector(ClassDefinition{
				Name:       c.Name,
				Pattern:    c.Pattern,
				KeyPattern: c.KeyPattern,
				RiskScore:  risk,
			})
			if err != nil {
				return nil, err
			}
			registry.detectors = append(registry.detectors, det)
		}
	}

	return registry, nil
}

// FromDefinitions 从序列化的定义列表重建注册表
// 校验函数不参与序列化，反序列化时按分类名重新挂载
func FromDefinitions(defs []ClassDefinition) (*Registry, error) {
	registry := &Registry{}
	for _, def := range defs {
		det, err := compileDetector(def)
		if err != nil {
			return nil, err
		}
		registry.detectors = append(registry.detectors, det)
	}
	return registry, nil
}

// compileDetector 编译单个分类定义
func compileDetector(def ClassDefinition) (*Detector, error) {
	det := &Detector{
		Class:     model.DataClass(def.Name),
		RiskScore: def.RiskScore,
		Builtin:   def.Builtin,
		validate:  validatorForClass(model.DataClass(def.Name)),
	}
	if def.Pattern != "" {
		pattern, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern for data class %s: %w", def.Name, err)
		}
		det.pattern = pattern
	}
	if def.KeyPattern != "" {
		keyPattern, err := regexp.Compile(def.KeyPattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile key pattern for data class %s: %w", def.Name, err)
		}
		det.keyPattern = keyPattern
	}
	return det, nil
}

// parseRiskScore 解析风险等级字符串
func parseRiskScore(s string) (model.RiskScore, error) {
	if s == "" {
		return model.RiskMedium, nil
	}
	score := model.RiskScore(strings.ToLower(s))
	switch score {
	case model.RiskNone, model.RiskLow, model.RiskMedium, model.RiskHigh:
		return score, nil
	default:
		return "", fmt.Errorf("invalid risk score: %s", s)
	}
}

// Definitions 导出可序列化的定义列表
func (r *Registry) Definitions() []ClassDefinition {
	defs := make([]ClassDefinition, 0, len(r.detectors))
	for _, d := range r.detectors {
		def := ClassDefinition{
			Name:      string(d.Class),
			RiskScore: d.RiskScore,
			Builtin:   d.Builtin,
		}
		if d.pattern != nil {
			def.Pattern = d.pattern.String()
		}
		if d.keyPattern != nil {
			def.KeyPattern = d.keyPattern.String()
		}
		defs = append(defs, def)
	}
	return defs
}

// ScanValue 扫描标量值，返回命中的分类 [按注册表顺序，结果确定]
func (r *Registry) ScanValue(value string) []model.DataClass {
	var classes []model.DataClass
	for _, d := range r.detectors {
		if d.MatchValue(value) {
			classes = append(classes, d.Class)
		}
	}
	return classes
}

// ScanKey 扫描字段键名，返回命中的分类
func (r *Registry) ScanKey(key string) []model.DataClass {
	var classes []model.DataClass
	for _, d := range r.detectors {
		if d.MatchKey(key) {
			classes = append(classes, d.Class)
		}
	}
	return classes
}

// Has 注册表是否包含指定分类
func (r *Registry) Has(class model.DataClass) bool {
	for _, d := range r.detectors {
		if d.Class == class {
			return true
		}
	}
	return false
}

// RiskScoreOf 获取分类的风险等级，未登记返回 none
func (r *Registry) RiskScoreOf(class model.DataClass) model.RiskScore {
	for _, d := range r.detectors {
		if d.Class == class {
			return d.RiskScore
		}
	}
	return model.RiskNone
}
