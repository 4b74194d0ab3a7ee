// 数据字段提取与分类
// 遍历流量的查询参数、头部和JSON体，产出按(状态码,内容类型,区段,路径)
// 去重的字段记录集合，每个标量叶子跑全部检测器。
package analyzer

import (
	"fmt"
	"mime"
	"strings"
	"time"

	"traceguard/internal/detector"
	"traceguard/internal/model"
	"traceguard/internal/pkg/jsontree"
)

// 请求侧区段的占位键值 [请求字段与响应状态/内容类型无关]
const (
	requestStatusCode  = -1
	requestContentType = ""
)

// arrayToken 数组层级在字段路径中的token
const arrayToken = "[]"

// FieldScan 一条流量的字段提取结果
type FieldScan struct {
	Fields       []*model.DataField                // 需要插入或更新的字段记录
	SensitiveMap map[model.DataSection][]model.DataClass // 各区段检出的分类 [展示和告警用]
}

// fieldExtractor 单条流量的提取状态机
type fieldExtractor struct {
	registry       *detector.Registry
	endpoint       *model.ApiEndpoint
	existing       map[string]*model.DataField // 库中已有字段，按组合键索引
	staged         map[string]*model.DataField // 本次流量触达的字段
	stagedOrder    []string                    // 触达顺序 [保证输出确定]
	changed        map[string]bool             // 是否发生需要落库的变化
	totalFields    int                         // 端点当前字段总数 [画上限用]
	fieldLimit     int
	updateInterval time.Duration
	now            time.Time
	sensitive      map[model.DataSection]map[model.DataClass]bool
	sensitiveOrder map[model.DataSection][]model.DataClass
}

// ExtractDataFields 提取并分类一条流量的全部字段
// existing为端点已有字段记录；limit为单端点字段数上限，超限后不再新建；
// updateInterval内无变化的已有字段不重复落库
func ExtractDataFields(
	registry *detector.Registry,
	endpoint *model.ApiEndpoint,
	existing []*model.DataField,
	trace *model.QueuedTrace,
	limit int,
	updateInterval time.Duration,
	now time.Time,
) *FieldScan {
	ex := &fieldExtractor{
		registry:       registry,
		endpoint:       endpoint,
		existing:       make(map[string]*model.DataField, len(existing)),
		staged:         make(map[string]*model.DataField),
		changed:        make(map[string]bool),
		totalFields:    len(existing),
		fieldLimit:     limit,
		updateInterval: updateInterval,
		now:            now,
		sensitive:      make(map[model.DataSection]map[model.DataClass]bool),
		sensitiveOrder: make(map[model.DataSection][]model.DataClass),
	}
	for _, f := range existing {
		ex.existing[fieldKey(f.StatusCode, f.ContentType, f.DataSection, f.DataPath)] = f
	}

	statusCode := trace.ResponseStatus
	reqContentType, resContentType := contentTypes(trace)

	// 请求侧区段只在响应成功(<400)或无响应时记录，避免从被拒绝的请求学习字段
	if statusCode <= 0 || statusCode < 400 {
		ex.scanPathParams(trace)
		ex.scanPairs(model.SectionRequestQuery, trace.RequestParameters, requestStatusCode, requestContentType)
		ex.scanPairs(model.SectionRequestHeader, trace.RequestHeaders, requestStatusCode, requestContentType)
		ex.scanBody(model.SectionRequestBody, trace.RequestBody, reqContentType, requestStatusCode, requestContentType)
	}

	if statusCode > 0 {
		ex.scanPairs(model.SectionResponseHeader, trace.ResponseHeaders, statusCode, "")
		ex.scanBody(model.SectionResponseBody, trace.ResponseBody, resContentType, statusCode, resContentType)
	}

	return ex.result()
}

// contentTypes 求请求/响应内容类型的essence
// 优先用上游探针预计算的值，否则解析Content-Type头
func contentTypes(trace *model.QueuedTrace) (string, string) {
	reqCT, resCT := "", ""
	if trace.ProcessedTraceData != nil {
		reqCT = trace.ProcessedTraceData.RequestContentType
		resCT = trace.ProcessedTraceData.ResponseContentType
	}
	if reqCT == "" {
		reqCT = mediaEssence(model.Header(trace.RequestHeaders, "Content-Type"))
	}
	if resCT == "" {
		resCT = mediaEssence(model.Header(trace.ResponseHeaders, "Content-Type"))
	}
	return reqCT, resCT
}

// mediaEssence 去掉参数部分的媒体类型 [application/json; charset=utf-8 → application/json]
func mediaEssence(contentType string) string {
	if contentType == "" {
		return ""
	}
	essence, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return essence
}

// isJSONContentType JSON类媒体类型判定
func isJSONContentType(essence string) bool {
	return essence == "application/json" ||
		strings.HasSuffix(essence, "+json") ||
		essence == "" // 无内容类型声明时尝试按JSON解析
}

// scanPathParams 扫描路径参数
// 端点模板的{paramN}位置对应流量路径的具体token，路径参数无键名启发
func (ex *fieldExtractor) scanPathParams(trace *model.QueuedTrace) {
	if ex.endpoint.NumberParams == 0 || ex.endpoint.IsGraphQL {
		return
	}
	templateTokens := splitTokens(ex.endpoint.Path)
	pathTokens := splitTokens(trace.Path)
	if len(templateTokens) != len(pathTokens) {
		return
	}
	for i, tt := range templateTokens {
		if !strings.HasPrefix(tt, "{") || !strings.HasSuffix(tt, "}") {
			continue
		}
		paramName := strings.Trim(tt, "{}")
		ex.handleLeaf(model.SectionRequestPath, paramName, jsontree.NewString(pathTokens[i]),
			requestStatusCode, requestContentType)
	}
}

// scanPairs 扫描键值对区段
// 值本身可能是嵌套JSON，解析成功时递归展开，否则按字符串叶子处理
func (ex *fieldExtractor) scanPairs(section model.DataSection, pairs []model.PairObject, statusCode int, contentType string) {
	for _, pair := range pairs {
		if pair.Name == "" {
			continue
		}
		node, err := jsontree.Parse(pair.Value)
		if err != nil || node.IsScalar() {
			ex.handleLeaf(section, pair.Name, jsontree.NewString(pair.Value), statusCode, contentType)
			continue
		}
		ex.walkNode(section, pair.Name, node, statusCode, contentType)
	}
}

// scanBody 扫描请求体/响应体
// JSON类内容解析为节点树递归，其余内容整体作为一个不透明字符串叶子
func (ex *fieldExtractor) scanBody(section model.DataSection, body, essence string, statusCode int, contentType string) {
	if body == "" {
		return
	}
	if isJSONContentType(essence) {
		if node, err := jsontree.Parse(body); err == nil {
			ex.walkNode(section, "", node, statusCode, contentType)
			return
		}
		if essence != "" {
			// 声明为JSON但解析失败，按不透明串记录
			ex.handleLeaf(section, "", jsontree.NewString(body), statusCode, contentType)
			return
		}
	}
	ex.handleLeaf(section, "", jsontree.NewString(body), statusCode, contentType)
}

// walkNode 递归遍历JSON节点，构建点加方括号的字段路径 (items.[].email)
func (ex *fieldExtractor) walkNode(section model.DataSection, path string, node *jsontree.Value, statusCode int, contentType string) {
	switch node.Kind {
	case jsontree.Object:
		for _, m := range node.Members {
			childPath := m.Key
			if path != "" {
				childPath = path + "." + m.Key
			}
			ex.walkNode(section, childPath, m.Value, statusCode, contentType)
		}
	case jsontree.Array:
		childPath := arrayToken
		if path != "" {
			childPath = path + "." + arrayToken
		}
		for _, item := range node.Items {
			ex.walkNode(section, childPath, item, statusCode, contentType)
		}
	default:
		ex.handleLeaf(section, path, node, statusCode, contentType)
	}
}

// handleLeaf 处理一个标量叶子：登记字段记录并跑检测器
func (ex *fieldExtractor) handleLeaf(section model.DataSection, path string, node *jsontree.Value, statusCode int, contentType string) {
	key := fieldKey(statusCode, contentType, section, path)

	field, ok := ex.staged[key]
	if !ok {
		if existing, found := ex.existing[key]; found {
			field = existing
		} else {
			// 新字段受端点字段总数上限约束
			if ex.fieldLimit > 0 && ex.totalFields >= ex.fieldLimit {
				return
			}
			field = &model.DataField{
				APIEndpointUUID: ex.endpoint.UUID,
				DataSection:     section,
				DataPath:        path,
				StatusCode:      statusCode,
				ContentType:     contentType,
			}
			ex.totalFields++
			ex.changed[key] = true
		}
		ex.staged[key] = field
		ex.stagedOrder = append(ex.stagedOrder, key)
	}

	// 类型与空值提示
	dataType := dataTypeOf(node)
	if node.Kind == jsontree.Null {
		if !field.IsNullable {
			field.IsNullable = true
			ex.changed[key] = true
		}
	} else if field.DataType != dataType {
		field.DataType = dataType
		ex.changed[key] = true
	}

	// 值检测与键名启发
	classes := ex.registry.ScanValue(node.ScalarString())
	classes = append(classes, ex.registry.ScanKey(path)...)
	for _, class := range classes {
		if field.AddClass(class) {
			ex.changed[key] = true
		}
		if !field.IsFalsePositive(class) {
			ex.markSensitive(section, class)
		}
	}
}

// markSensitive 登记区段检出的分类 [保持首次出现顺序]
func (ex *fieldExtractor) markSensitive(section model.DataSection, class model.DataClass) {
	if ex.sensitive[section] == nil {
		ex.sensitive[section] = make(map[model.DataClass]bool)
	}
	if !ex.sensitive[section][class] {
		ex.sensitive[section][class] = true
		ex.sensitiveOrder[section] = append(ex.sensitiveOrder[section], class)
	}
}

// result 汇总本次提取需要落库的字段
// 新字段和有变化的字段必落库；无变化的已有字段超过重落间隔时也落一次，
// 让UpdatedAt反映字段仍在流量中出现
func (ex *fieldExtractor) result() *FieldScan {
	scan := &FieldScan{
		SensitiveMap: make(map[model.DataSection][]model.DataClass, len(ex.sensitiveOrder)),
	}
	for section, classes := range ex.sensitiveOrder {
		scan.SensitiveMap[section] = classes
	}

	for _, key := range ex.stagedOrder {
		field := ex.staged[key]
		if ex.changed[key] {
			scan.Fields = append(scan.Fields, field)
			continue
		}
		if ex.updateInterval > 0 && ex.now.Sub(field.UpdatedAt) > ex.updateInterval {
			scan.Fields = append(scan.Fields, field)
		}
	}
	return scan
}

// fieldKey 字段记录的组合键
func fieldKey(statusCode int, contentType string, section model.DataSection, path string) string {
	return fmt.Sprintf("%d_%s_%s_%s", statusCode, contentType, section, path)
}

// dataTypeOf JSON节点对应的字段值类型
func dataTypeOf(node *jsontree.Value) model.DataType {
	switch node.Kind {
	case jsontree.Bool:
		return model.DataTypeBoolean
	case jsontree.Number:
		if _, err := node.NumVal.Int64(); err == nil {
			return model.DataTypeInteger
		}
		return model.DataTypeNumber
	case jsontree.String:
		return model.DataTypeString
	case jsontree.Array:
		return model.DataTypeArray
	case jsontree.Object:
		return model.DataTypeObject
	default:
		return model.DataTypeUnknown
	}
}

// splitTokens 切分路径为非空token
func splitTokens(path string) []string {
	var tokens []string
	for _, t := range strings.Split(path, "/") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// DistinctClasses 汇总字段集合中的全部分类 [端点风险聚合用]
func DistinctClasses(fields []*model.DataField) []model.DataClass {
	seen := make(map[model.DataClass]bool)
	var classes []model.DataClass
	for _, f := range fields {
		for _, c := range f.DataClasses {
			if !seen[c] {
				seen[c] = true
				classes = append(classes, c)
			}
		}
	}
	return classes
}
