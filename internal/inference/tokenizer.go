// 路径推断
// 把具体请求路径转换为参数化模板和匹配正则，逐token判断字面量还是变量
package inference

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// InferredEndpoint 推断结果
type InferredEndpoint struct {
	Path         string // 参数化模板，如 /users/{param1}
	PathRegex    string // 匹配正则，GraphQL端点为空
	NumberParams int    // 模板参数个数
	IsGraphQL    bool   // GraphQL端点按后缀匹配，不走正则
}

// InferEndpoint 从具体路径推断端点模板
// GraphQL路径(后缀命中graphQLPaths)跳过token化，模板即字面路径。
// 正则整体包装为 ^<body>(/)*$，容忍末尾斜杠。
func InferEndpoint(path string, graphQLPaths []string) InferredEndpoint {
	if IsGraphQLPath(path, graphQLPaths) {
		return InferredEndpoint{
			Path:      path,
			IsGraphQL: true,
		}
	}

	var templateParts, regexParts []string
	paramCount := 0

	for _, token := range strings.Split(path, "/") {
		if token == "" {
			continue
		}
		if IsSuspectedParameter(token) {
			paramCount++
			templateParts = append(templateParts, fmt.Sprintf("{param%d}", paramCount))
			regexParts = append(regexParts, "/[^/]+")
		} else {
			templateParts = append(templateParts, token)
			regexParts = append(regexParts, "/"+regexp.QuoteMeta(token))
		}
	}

	return InferredEndpoint{
		Path:         "/" + strings.Join(templateParts, "/"),
		PathRegex:    "^" + strings.Join(regexParts, "") + "(/)*$",
		NumberParams: paramCount,
	}
}

// IsGraphQLPath 路径是否命中GraphQL后缀
func IsGraphQLPath(path string, graphQLPaths []string) bool {
	for _, suffix := range graphQLPaths {
		if suffix != "" && strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// mongoIDPattern 24位十六进制对象ID
var mongoIDPattern = regexp.MustCompile(`^[a-fA-F0-9]{24}$`)

// IsSuspectedParameter token是否疑似路径参数
// 数字、UUID、对象ID以及较长的字母数字混合串视为参数，纯单词视为字面量
func IsSuspectedParameter(token string) bool {
	if token == "" {
		return false
	}
	if _, err := strconv.ParseFloat(token, 64); err == nil {
		return true
	}
	if _, err := uuid.Parse(token); err == nil {
		return true
	}
	if mongoIDPattern.MatchString(token) {
		return true
	}

	// 长的字母数字混合token按高熵ID处理
	if len(token) >= 8 {
		hasLetter, hasDigit := false, false
		for _, r := range token {
			switch {
			case r >= '0' && r <= '9':
				hasDigit = true
			case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
				hasLetter = true
			}
		}
		if hasLetter && hasDigit {
			return true
		}
	}

	return false
}

// MatchesPath 端点正则是否匹配具体路径
// 正则来自存储的端点记录，编译失败按不匹配处理并返回错误
func MatchesPath(pathRegex, path string) (bool, error) {
	re, err := regexp.Compile(pathRegex)
	if err != nil {
		return false, fmt.Errorf("failed to compile endpoint regex %q: %w", pathRegex, err)
	}
	return re.MatchString(path), nil
}
