// 流量分析引擎
// 单条流量的完整处理管线：脱敏 → 端点解析 → 字段提取分类 → 文档比对 →
// 告警构建 → 端点元数据更新 → 事务写入 → 告警外发。
// 引擎本身无状态，持久化全部通过仓储接口完成，便于多进程水平扩展。
package analyzer

import (
	"context"
	"fmt"
	"time"

	"traceguard/internal/config"
	"traceguard/internal/detector"
	"traceguard/internal/inference"
	"traceguard/internal/model"
	"traceguard/internal/pkg/logger"
	"traceguard/internal/redact"
	"traceguard/internal/specdiff"
)

// RegistryProvider 检测器注册表提供者 [可带缓存]
type RegistryProvider interface {
	Registry(ctx context.Context) (*detector.Registry, error)
}

// EndpointRepository 端点仓储
type EndpointRepository interface {
	// FindMatching 按主机+方法定位能匹配该具体路径的端点，参数最少者优先
	FindMatching(ctx context.Context, host string, method model.RestMethod, path string) (*model.ApiEndpoint, error)
	// Create 插入新端点，唯一键冲突时返回 duplicate=true 而非错误
	Create(ctx context.Context, endpoint *model.ApiEndpoint) (duplicate bool, err error)
	// FindByTemplate 按模板路径精确查找端点
	FindByTemplate(ctx context.Context, host string, method model.RestMethod, path string) (*model.ApiEndpoint, error)
}

// DataFieldRepository 数据字段仓储
type DataFieldRepository interface {
	ListByEndpoint(ctx context.Context, endpointUUID string) ([]*model.DataField, error)
}

// SpecRepository OpenAPI文档仓储
type SpecRepository interface {
	GetByName(ctx context.Context, name string) (*model.OpenApiSpec, error)
}

// HostRepository 主机仓储
type HostRepository interface {
	Exists(ctx context.Context, host string) (bool, error)
}

// TraceWriter 分析结果事务写入器
type TraceWriter interface {
	SaveAnalyzedTrace(ctx context.Context, result *model.AnalysisResult) error
}

// WebhookDispatcher 告警外发器 [投递失败不影响流量处理]
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, alerts []*model.Alert, host string)
}

// Engine 流量分析引擎
type Engine struct {
	cfg        *config.AnalyzerConfig
	registries RegistryProvider
	endpoints  EndpointRepository
	fields     DataFieldRepository
	alerts     AlertRepository
	specs      SpecRepository
	hosts      HostRepository
	writer     TraceWriter
	webhooks   WebhookDispatcher
	policy     redact.PolicyStore
	now        func() time.Time
}

// NewEngine 创建分析引擎
func NewEngine(
	cfg *config.AnalyzerConfig,
	registries RegistryProvider,
	endpoints EndpointRepository,
	fields DataFieldRepository,
	alerts AlertRepository,
	specs SpecRepository,
	hosts HostRepository,
	writer TraceWriter,
	webhooks WebhookDispatcher,
	policy redact.PolicyStore,
) *Engine {
	return &Engine{
		cfg:        cfg,
		registries: registries,
		endpoints:  endpoints,
		fields:     fields,
		alerts:     alerts,
		specs:      specs,
		hosts:      hosts,
		writer:     writer,
		webhooks:   webhooks,
		policy:     policy,
		now:        time.Now,
	}
}

// ProcessTrace 处理一条队列流量
// 返回错误表示该条流量处理失败，由调用方决定记录并继续；
// 不存在的路由(404/405)不产生端点，直接丢弃。
func (e *Engine) ProcessTrace(ctx context.Context, qt *model.QueuedTrace) error {
	if err := validateTrace(qt); err != nil {
		return err
	}
	if qt.ResponseStatus == 404 || qt.ResponseStatus == 405 {
		logger.Debugf("dropping trace for unmatched route: %s %s%s status=%d", qt.Method, qt.Host, qt.Path, qt.ResponseStatus)
		return nil
	}

	now := e.now()
	partial := qt.AnalysisType == model.AnalysisPartial

	// 脱敏必须发生在任何持久化和扫描之前；已脱敏的流量不重复处理
	if !qt.Redacted && !partial && e.policy != nil {
		disabled := e.policy.Lookup(qt.Host, qt.Method, qt.Path)
		redact.RedactTrace(qt, disabled)
	}

	registry, err := e.registries.Registry(ctx)
	if err != nil {
		return fmt.Errorf("failed to load detector registry: %w", err)
	}

	endpoint, newEndpoint, err := e.resolveEndpoint(ctx, qt, now)
	if err != nil {
		return err
	}

	existingFields, err := e.fields.ListByEndpoint(ctx, endpoint.UUID)
	if err != nil {
		return fmt.Errorf("failed to load data fields: %w", err)
	}

	scan := ExtractDataFields(registry, endpoint, existingFields, qt,
		e.cfg.DataFieldLimit, e.cfg.FieldUpdateInterval, now)

	// 文档比对 [失败只告警日志，不中断流量处理]
	var specDiffs []string
	var spec *model.OpenApiSpec
	if endpoint.HasSpec() && !partial {
		spec, err = e.specs.GetByName(ctx, endpoint.SpecName)
		if err != nil {
			logger.Warnf("failed to load spec %s for endpoint %s: %v", endpoint.SpecName, endpoint.UUID, err)
		} else if spec != nil {
			specDiffs, err = specdiff.FindDiffs(spec, endpoint, qt)
			if err != nil {
				logger.Warnf("failed to diff trace against spec %s: %v", endpoint.SpecName, err)
				specDiffs = nil
			}
		}
	}

	alerts, specChanged, err := BuildAlerts(ctx, e.alerts, endpoint, qt, newEndpoint, specDiffs, spec, scan)
	if err != nil {
		return err
	}

	endpointChanged := e.updateEndpointMeta(endpoint, qt, existingFields, scan, newEndpoint, now)

	newHost := false
	if newEndpoint {
		exists, err := e.hosts.Exists(ctx, endpoint.Host)
		if err != nil {
			return fmt.Errorf("failed to check host %s: %w", endpoint.Host, err)
		}
		newHost = !exists
	}

	result := &model.AnalysisResult{
		Trace:           qt.ToApiTrace(endpoint.UUID),
		Endpoint:        endpoint,
		EndpointChanged: endpointChanged,
		NewHost:         newHost,
		DataFields:      scan.Fields,
		Alerts:          alerts,
		Spec:            spec,
		SpecChanged:     specChanged,
	}
	if err := e.writer.SaveAnalyzedTrace(ctx, result); err != nil {
		return fmt.Errorf("failed to persist analyzed trace: %w", err)
	}

	if len(alerts) > 0 && e.webhooks != nil {
		e.webhooks.Dispatch(ctx, alerts, endpoint.Host)
	}
	return nil
}

// resolveEndpoint 定位或创建流量所属端点
// 命中已有端点直接返回；否则推断参数化模板新建，并发创建撞唯一键时
// 回退为查询获胜进程写入的记录
func (e *Engine) resolveEndpoint(ctx context.Context, qt *model.QueuedTrace, now time.Time) (*model.ApiEndpoint, bool, error) {
	endpoint, err := e.endpoints.FindMatching(ctx, qt.Host, qt.Method, qt.Path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find matching endpoint: %w", err)
	}
	if endpoint != nil {
		return endpoint, false, nil
	}

	graphQLPaths := e.cfg.GraphQLPaths
	if qt.ProcessedTraceData != nil && len(qt.ProcessedTraceData.GraphQLPaths) > 0 {
		graphQLPaths = qt.ProcessedTraceData.GraphQLPaths
	}
	inferred := inference.InferEndpoint(qt.Path, graphQLPaths)

	endpoint = &model.ApiEndpoint{
		Host:          qt.Host,
		Method:        qt.Method,
		Path:          inferred.Path,
		PathRegex:     inferred.PathRegex,
		NumberParams:  inferred.NumberParams,
		IsGraphQL:     inferred.IsGraphQL,
		RiskScore:     model.RiskNone,
		FirstDetected: now,
		LastActive:    now,
	}
	duplicate, err := e.endpoints.Create(ctx, endpoint)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create endpoint: %w", err)
	}
	if !duplicate {
		logger.Infof("new endpoint detected: %s %s%s", endpoint.Method, endpoint.Host, endpoint.Path)
		return endpoint, true, nil
	}

	// 另一个进程抢先创建了同模板端点
	endpoint, err = e.endpoints.FindByTemplate(ctx, qt.Host, qt.Method, inferred.Path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to refetch endpoint after duplicate create: %w", err)
	}
	if endpoint == nil {
		return nil, false, fmt.Errorf("endpoint %s %s%s vanished after duplicate create", qt.Method, qt.Host, inferred.Path)
	}
	return endpoint, false, nil
}

// updateEndpointMeta 更新端点的风险等级、活跃时间和IP映射
// 返回端点行是否需要落库。活跃时间带最小更新间隔，高频端点不逐条刷新
func (e *Engine) updateEndpointMeta(
	endpoint *model.ApiEndpoint,
	qt *model.QueuedTrace,
	existingFields []*model.DataField,
	scan *FieldScan,
	newEndpoint bool,
	now time.Time,
) bool {
	changed := newEndpoint

	// 风险聚合覆盖端点全部字段 [已有的和本次新增的]
	allFields := make([]*model.DataField, 0, len(existingFields)+len(scan.Fields))
	allFields = append(allFields, existingFields...)
	allFields = append(allFields, scan.Fields...)
	risk := model.AggregateRiskScore(DistinctClasses(allFields))
	if risk != endpoint.RiskScore {
		endpoint.RiskScore = risk
		changed = true
	}

	if now.Sub(endpoint.LastActive) > e.cfg.EndpointUpdateGap {
		endpoint.LastActive = now
		changed = true
	}

	if UpdateIPs(endpoint, qt.Meta, e.cfg.IPMapMaxSize, e.cfg.IPDebounceWindow, now) {
		changed = true
	}
	return changed
}

// validateTrace 流量必填字段校验
func validateTrace(qt *model.QueuedTrace) error {
	switch {
	case qt == nil:
		return fmt.Errorf("trace is nil")
	case qt.Host == "":
		return fmt.Errorf("trace missing host")
	case qt.Method == "":
		return fmt.Errorf("trace missing method")
	case qt.Path == "":
		return fmt.Errorf("trace missing path")
	default:
		return nil
	}
}
