// 告警构建
// 从单条流量的分析中间结果推导候选告警，先做批内去重，再经仓储查重
// 过滤已存在的未解决告警，保证同一(端点,类型,描述)只有一条活跃告警。
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"traceguard/internal/model"
	"traceguard/internal/pkg/logger"
	"traceguard/internal/specdiff"
)

// AlertRepository 告警查重仓储
type AlertRepository interface {
	// ExistsUnresolved 端点下是否已存在同类型同描述的未解决告警
	ExistsUnresolved(ctx context.Context, endpointUUID string, alertType model.AlertType, description string) (bool, error)
}

// alertBuilder 单条流量的告警收集器
type alertBuilder struct {
	endpoint *model.ApiEndpoint
	trace    *model.QueuedTrace
	staged   map[string]bool
	alerts   []*model.Alert
}

// stage 登记一条候选告警 [批内按去重键去重]
func (b *alertBuilder) stage(alertType model.AlertType, description string, context map[string]interface{}) {
	alert := model.NewAlert(b.endpoint.UUID, alertType, description, context)
	key := alert.DedupKey()
	if b.staged[key] {
		return
	}
	b.staged[key] = true
	b.alerts = append(b.alerts, alert)
}

// traceContext 告警上下文里的触发流量摘要
func (b *alertBuilder) traceContext() map[string]interface{} {
	return map[string]interface{}{
		"trace_host":      b.trace.Host,
		"trace_method":    string(b.trace.Method),
		"trace_path":      b.trace.Path,
		"response_status": b.trace.ResponseStatus,
	}
}

// BuildAlerts 构建一条流量的全部候选告警
// newEndpoint 为本次是否新建端点；specDiffs 为文档比对产出的差异描述；
// scan 为字段提取结果。函数同时负责批内去重和仓储查重。
func BuildAlerts(
	ctx context.Context,
	repo AlertRepository,
	endpoint *model.ApiEndpoint,
	trace *model.QueuedTrace,
	newEndpoint bool,
	specDiffs []string,
	spec *model.OpenApiSpec,
	scan *FieldScan,
) ([]*model.Alert, bool, error) {
	b := &alertBuilder{
		endpoint: endpoint,
		trace:    trace,
		staged:   make(map[string]bool),
	}

	if newEndpoint {
		b.buildNewEndpointAlert()
	}
	specChanged := b.buildSpecDiffAlerts(specDiffs, spec)
	b.buildBasicAuthAlert()
	b.buildSensitiveParamAlerts(scan)
	b.buildUnauthSensitiveAlert(scan)
	b.buildMissingHSTSAlert()

	// 仓储查重：已存在同键未解决告警的候选丢弃
	var out []*model.Alert
	for _, alert := range b.alerts {
		exists, err := repo.ExistsUnresolved(ctx, alert.APIEndpointUUID, alert.Type, alert.Description)
		if err != nil {
			return nil, specChanged, fmt.Errorf("failed to check existing alert: %w", err)
		}
		if exists {
			continue
		}
		out = append(out, alert)
	}
	if len(out) > 0 {
		logger.Debugf("staged %d alert(s) for endpoint %s %s%s", len(out), endpoint.Method, endpoint.Host, endpoint.Path)
	}
	return out, specChanged, nil
}

// buildNewEndpointAlert 新端点告警
func (b *alertBuilder) buildNewEndpointAlert() {
	description := fmt.Sprintf("New endpoint detected: %s %s%s", b.endpoint.Method, b.endpoint.Host, b.endpoint.Path)
	b.stage(model.AlertTypeNewEndpoint, description, b.traceContext())
}

// buildSpecDiffAlerts 文档差异告警
// 每条差异描述独立成告警；描述的行号摘录按文档缓存，首次计算时回写文档记录
func (b *alertBuilder) buildSpecDiffAlerts(specDiffs []string, spec *model.OpenApiSpec) bool {
	specChanged := false
	for _, diff := range specDiffs {
		alertContext := b.traceContext()
		alertContext["spec_name"] = b.endpoint.SpecName
		if spec != nil {
			excerpt, updated := specdiff.ContextForMessage(spec, diff, b.endpoint.Path, b.endpoint.Method)
			if updated {
				specChanged = true
			}
			if excerpt.LineNumber > 0 {
				alertContext["spec_line"] = excerpt.LineNumber
				alertContext["spec_excerpt"] = excerpt.Excerpt
			}
		}
		b.stage(model.AlertTypeOpenAPISpecDiff, diff, alertContext)
	}
	return specChanged
}

// buildBasicAuthAlert Basic认证告警
func (b *alertBuilder) buildBasicAuthAlert() {
	auth := model.Header(b.trace.RequestHeaders, "Authorization")
	if auth == "" {
		return
	}
	if !strings.HasPrefix(strings.ToLower(auth), "basic ") {
		return
	}
	description := fmt.Sprintf("Basic authentication detected on endpoint %s %s%s", b.endpoint.Method, b.endpoint.Host, b.endpoint.Path)
	b.stage(model.AlertTypeBasicAuthDetected, description, b.traceContext())
}

// buildSensitiveParamAlerts 查询参数/路径参数敏感数据告警
// 敏感数据出现在URL中会进入访问日志和Referer，风险高于体内出现
func (b *alertBuilder) buildSensitiveParamAlerts(scan *FieldScan) {
	if scan == nil {
		return
	}
	if classes := scan.SensitiveMap[model.SectionRequestQuery]; len(classes) > 0 {
		description := fmt.Sprintf("Sensitive data of type(s) %s detected in query params of endpoint %s %s%s",
			joinClasses(classes), b.endpoint.Method, b.endpoint.Host, b.endpoint.Path)
		b.stage(model.AlertTypeQuerySensitiveData, description, b.traceContext())
	}
	if classes := scan.SensitiveMap[model.SectionRequestPath]; len(classes) > 0 {
		description := fmt.Sprintf("Sensitive data of type(s) %s detected in path params of endpoint %s %s%s",
			joinClasses(classes), b.endpoint.Method, b.endpoint.Host, b.endpoint.Path)
		b.stage(model.AlertTypePathSensitiveData, description, b.traceContext())
	}
}

// buildUnauthSensitiveAlert 未认证返回敏感数据告警
// 仅在会话元数据明确标记未提供认证时触发，缺省不判定
func (b *alertBuilder) buildUnauthSensitiveAlert(scan *FieldScan) {
	if scan == nil || b.trace.SessionMeta == nil || b.trace.SessionMeta.AuthenticationProvided == nil {
		return
	}
	if *b.trace.SessionMeta.AuthenticationProvided {
		return
	}
	classes := scan.SensitiveMap[model.SectionResponseBody]
	if len(classes) == 0 {
		return
	}
	description := fmt.Sprintf("Unauthenticated endpoint %s %s%s returning sensitive data of type(s) %s",
		b.endpoint.Method, b.endpoint.Host, b.endpoint.Path, joinClasses(classes))
	b.stage(model.AlertTypeUnauthSensitiveData, description, b.traceContext())
}

// buildMissingHSTSAlert 缺失HSTS头告警 [只检查成功响应]
func (b *alertBuilder) buildMissingHSTSAlert() {
	if b.trace.ResponseStatus <= 0 || b.trace.ResponseStatus >= 400 {
		return
	}
	if model.Header(b.trace.ResponseHeaders, "Strict-Transport-Security") != "" {
		return
	}
	description := fmt.Sprintf("Endpoint %s %s%s does not set a Strict-Transport-Security header", b.endpoint.Method, b.endpoint.Host, b.endpoint.Path)
	b.stage(model.AlertTypeMissingHSTS, description, b.traceContext())
}

// joinClasses 分类列表的确定性字符串表示 [排序保证同一组合产出同一描述]
func joinClasses(classes []model.DataClass) string {
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
