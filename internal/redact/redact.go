// 流量脱敏
// 在分类和入库之前按禁用路径遮蔽配置的字段，五个区段独立处理。
// 禁用路径是区段前缀语法(req.body.ssn)，比较时统一按小写。
package redact

import (
	"strings"

	"traceguard/internal/model"
	"traceguard/internal/pkg/jsontree"
)

// RedactedValue 被遮蔽字段的统一占位值
const RedactedValue = "[REDACTED]"

// 禁用路径的区段前缀
const (
	prefixQuery          = "req.query"
	prefixRequestHeader  = "req.headers"
	prefixRequestBody    = "req.body"
	prefixResponseHeader = "res.headers"
	prefixResponseBody   = "res.body"
)

// RedactTrace 对一条流量执行脱敏，原地修改
// disabledPaths为空时不做任何处理
func RedactTrace(trace *model.QueuedTrace, disabledPaths []string) {
	if trace == nil || len(disabledPaths) == 0 {
		return
	}

	folded := make([]string, 0, len(disabledPaths))
	for _, p := range disabledPaths {
		folded = append(folded, strings.ToLower(p))
	}

	redactPairs(trace.RequestParameters, folded, prefixQuery)
	redactPairs(trace.RequestHeaders, folded, prefixRequestHeader)
	trace.RequestBody = redactBody(trace.RequestBody, folded, prefixRequestBody)
	redactPairs(trace.ResponseHeaders, folded, prefixResponseHeader)
	trace.ResponseBody = redactBody(trace.ResponseBody, folded, prefixResponseBody)

	trace.Redacted = true
}

// redactPairs 处理键值对区段(查询参数和头部)
func redactPairs(pairs []model.PairObject, disabled []string, sectionPrefix string) {
	fullSection := fullyContained(disabled, sectionPrefix)
	for i := range pairs {
		pairPath := sectionPrefix + "." + strings.ToLower(pairs[i].Name)
		switch {
		case fullSection || fullyContained(disabled, pairPath):
			pairs[i].Value = RedactedValue
		case partiallyContained(disabled, pairPath):
			// 值本身可能是嵌套JSON，继续按下一层路径遮蔽
			pairs[i].Value = redactNestedValue(pairs[i].Value, disabled, pairPath)
		}
	}
}

// redactNestedValue 对键值对里的JSON值递归脱敏，非JSON时原样保留
func redactNestedValue(value string, disabled []string, path string) string {
	node, err := jsontree.Parse(value)
	if err != nil {
		return value
	}
	redactNode(node, disabled, path, false)
	encoded, err := node.Encode()
	if err != nil {
		return value
	}
	return encoded
}

// redactBody 处理请求体/响应体区段
// 整段禁用时: JSON体的所有叶子变为占位值，非JSON体整体替换为占位值字面量。
// 非JSON体且未整段禁用时原样放行。
func redactBody(body string, disabled []string, sectionPrefix string) string {
	if body == "" {
		return body
	}

	fullSection := fullyContained(disabled, sectionPrefix)

	node, err := jsontree.Parse(body)
	if err != nil {
		if fullSection {
			return RedactedValue
		}
		return body
	}

	redactNode(node, disabled, sectionPrefix, fullSection)

	encoded, err := node.Encode()
	if err != nil {
		return body
	}
	return encoded
}

// redactNode 递归遮蔽JSON节点
// redactAll为真时当前子树所有叶子都被遮蔽；否则按禁用路径逐层判定：
// 完全匹配的成员整体遮蔽，前缀匹配的成员继续下钻，其余成员原样保留。
// 数组元素不贡献路径层级，沿用当前路径继续。
func redactNode(node *jsontree.Value, disabled []string, path string, redactAll bool) {
	switch node.Kind {
	case jsontree.Object:
		for i := range node.Members {
			member := &node.Members[i]
			memberPath := path + "." + strings.ToLower(member.Key)
			switch {
			case redactAll || fullyContained(disabled, memberPath):
				redactNode(member.Value, disabled, memberPath, true)
			case partiallyContained(disabled, memberPath):
				redactNode(member.Value, disabled, memberPath, false)
			}
		}
	case jsontree.Array:
		for _, item := range node.Items {
			redactNode(item, disabled, path, redactAll)
		}
	default:
		if redactAll {
			*node = *jsontree.NewString(RedactedValue)
		}
	}
}

// fullyContained 路径是否与某条禁用路径完全一致
func fullyContained(disabled []string, path string) bool {
	for _, d := range disabled {
		if d == path {
			return true
		}
	}
	return false
}

// partiallyContained 某条禁用路径是否以该路径为前缀 [需要继续下钻]
func partiallyContained(disabled []string, path string) bool {
	prefix := path + "."
	for _, d := range disabled {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
