// 文档行号定位
// 用yaml节点树在原始文档文本中定位操作定义的行号，截取上下文片段。
// JSON文档同样走yaml解析器(JSON是YAML子集)，两种格式一套逻辑。
package specdiff

import (
	"fmt"
	"strings"

	"traceguard/internal/model"

	"gopkg.in/yaml.v3"
)

// excerptRadius 摘录在目标行上下各取的行数
const excerptRadius = 5

// LocateOperation 定位端点操作在文档中的行号并生成摘录
// 找不到对应节点时返回false
func LocateOperation(spec *model.OpenApiSpec, endpointPath string, method model.RestMethod) (model.SpecExcerpt, bool) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(spec.Raw), &root); err != nil {
		return model.SpecExcerpt{}, false
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	_, pathsNode := findMappingEntry(doc, "paths")
	if pathsNode == nil {
		return model.SpecExcerpt{}, false
	}
	pathKey, pathNode := findMappingEntry(pathsNode, endpointPath)
	if pathNode == nil {
		return model.SpecExcerpt{}, false
	}
	// 行号取键节点("get:"所在行)，值节点的行号指向第一个子键
	line := pathKey.Line
	if opKey, opNode := findMappingEntry(pathNode, strings.ToLower(string(method))); opNode != nil {
		line = opKey.Line
	}

	return model.SpecExcerpt{
		LineNumber: line,
		Excerpt:    excerptAround(spec.Raw, line),
	}, true
}

// findMappingEntry 在映射节点中按键取(键节点,值节点)
func findMappingEntry(node *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i], node.Content[i+1]
		}
	}
	return nil, nil
}

// excerptAround 截取目标行上下各excerptRadius行，行号前置便于展示
func excerptAround(raw string, line int) string {
	lines := strings.Split(raw, "\n")
	start := line - 1 - excerptRadius
	if start < 0 {
		start = 0
	}
	end := line + excerptRadius
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%d: %s\n", i+1, lines[i])
	}
	return sb.String()
}

// ContextForMessage 取某条差异描述的行号摘录，带缓存
// 每个(文档,描述)对只计算一次，命中缓存直接返回；
// 新计算的摘录写回spec记录，返回值标记是否发生了更新
func ContextForMessage(spec *model.OpenApiSpec, message string, endpointPath string, method model.RestMethod) (model.SpecExcerpt, bool) {
	if excerpt, ok := spec.LineContexts[message]; ok {
		return excerpt, false
	}

	excerpt, ok := LocateOperation(spec, endpointPath, method)
	if !ok {
		excerpt = model.SpecExcerpt{}
	}

	if spec.LineContexts == nil {
		spec.LineContexts = make(map[string]model.SpecExcerpt)
	}
	spec.LineContexts[message] = excerpt
	return excerpt, true
}
