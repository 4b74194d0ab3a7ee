package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceguard/internal/model"
)

func sampleResult(t *testing.T, endpoint *model.ApiEndpoint, capturedAt time.Time) *model.AnalysisResult {
	t.Helper()
	return &model.AnalysisResult{
		Trace: &model.ApiTrace{
			Host:            endpoint.Host,
			Method:          endpoint.Method,
			Path:            "/api/users/42",
			APIEndpointUUID: endpoint.UUID,
			ResponseStatus:  200,
			CapturedAt:      capturedAt,
		},
		Endpoint: endpoint,
		DataFields: []*model.DataField{
			{
				APIEndpointUUID: endpoint.UUID,
				DataSection:     model.SectionResponseBody,
				DataPath:        "user.email",
				StatusCode:      200,
				ContentType:     "application/json",
				DataClasses:     []model.DataClass{model.DataClassEmail},
				DataTag:         model.DataTagPII,
				DataType:        model.DataTypeString,
			},
		},
		Alerts: []*model.Alert{
			model.NewAlert(endpoint.UUID, model.AlertTypeNewEndpoint,
				"New endpoint detected: GET api.example.com/api/users/{param1}", nil),
		},
	}
}

func TestTraceWriter_SaveAnalyzedTrace(t *testing.T) {
	db := newTestDB(t)
	repo := NewEndpointRepository(db)
	writer := NewTraceWriter(db, RetryPolicy{MaxRetries: 1, MinDelay: time.Millisecond, MaxDelay: time.Millisecond})
	ctx := context.Background()

	endpoint := makeEndpoint("api.example.com", model.MethodGet, "/api/users/{param1}", `^/api/users/[^/]+(/)*$`, 1)
	_, err := repo.Create(ctx, endpoint)
	require.NoError(t, err)

	capturedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	result := sampleResult(t, endpoint, capturedAt)
	result.NewHost = true
	require.NoError(t, writer.SaveAnalyzedTrace(ctx, result))

	var traceCount, fieldCount, alertCount int64
	require.NoError(t, db.Model(&model.ApiTrace{}).Count(&traceCount).Error)
	require.NoError(t, db.Model(&model.DataField{}).Count(&fieldCount).Error)
	require.NoError(t, db.Model(&model.Alert{}).Count(&alertCount).Error)
	assert.Equal(t, int64(1), traceCount)
	assert.Equal(t, int64(1), fieldCount)
	assert.Equal(t, int64(1), alertCount)

	var hourly model.AggregateTraceDataHourly
	require.NoError(t, db.Where("api_endpoint_uuid = ?", endpoint.UUID).First(&hourly).Error)
	assert.Equal(t, "2026-03-14T15", hourly.Hour)
	assert.Equal(t, uint64(1), hourly.NumCalls)

	var host model.Host
	require.NoError(t, db.Where("host = ?", endpoint.Host).First(&host).Error)
}

func TestTraceWriter_HourlyIncrementAndFieldUpsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewEndpointRepository(db)
	writer := NewTraceWriter(db, RetryPolicy{MaxRetries: 1, MinDelay: time.Millisecond, MaxDelay: time.Millisecond})
	ctx := context.Background()

	endpoint := makeEndpoint("api.example.com", model.MethodGet, "/api/users/{param1}", `^/api/users/[^/]+(/)*$`, 1)
	_, err := repo.Create(ctx, endpoint)
	require.NoError(t, err)

	capturedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	// 同一小时内写入三条流量，聚合计数累加而非新开行
	for i := 0; i < 3; i++ {
		result := sampleResult(t, endpoint, capturedAt.Add(time.Duration(i)*time.Minute))
		// 第二次起同一字段带上新增分类，upsert覆盖分类列表；
		// 告警去重由分析侧完成，这里只在首条带告警
		if i > 0 {
			result.DataFields[0].DataClasses = []model.DataClass{model.DataClassEmail, model.DataClassSSN}
			result.Alerts = nil
		}
		require.NoError(t, writer.SaveAnalyzedTrace(ctx, result))
	}

	var hourlies []model.AggregateTraceDataHourly
	require.NoError(t, db.Where("api_endpoint_uuid = ?", endpoint.UUID).Find(&hourlies).Error)
	require.Len(t, hourlies, 1)
	assert.Equal(t, uint64(3), hourlies[0].NumCalls)

	// 跨小时新开一行
	next := sampleResult(t, endpoint, capturedAt.Add(time.Hour))
	next.Alerts = nil
	require.NoError(t, writer.SaveAnalyzedTrace(ctx, next))
	require.NoError(t, db.Where("api_endpoint_uuid = ?", endpoint.UUID).Order("hour ASC").Find(&hourlies).Error)
	require.Len(t, hourlies, 2)
	assert.Equal(t, "2026-03-14T16", hourlies[1].Hour)
	assert.Equal(t, uint64(1), hourlies[1].NumCalls)

	// 五元组唯一，字段仍只有一行且分类被覆盖
	var fields []model.DataField
	require.NoError(t, db.Where("api_endpoint_uuid = ?", endpoint.UUID).Find(&fields).Error)
	require.Len(t, fields, 1)
	assert.ElementsMatch(t, []model.DataClass{model.DataClassEmail, model.DataClassSSN}, fields[0].DataClasses)
}

func TestTraceWriter_EndpointMetaUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewEndpointRepository(db)
	writer := NewTraceWriter(db, RetryPolicy{MaxRetries: 1, MinDelay: time.Millisecond, MaxDelay: time.Millisecond})
	ctx := context.Background()

	endpoint := makeEndpoint("api.example.com", model.MethodGet, "/api/users/{param1}", `^/api/users/[^/]+(/)*$`, 1)
	_, err := repo.Create(ctx, endpoint)
	require.NoError(t, err)

	lastActive := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
	endpoint.RiskScore = model.RiskHigh
	endpoint.LastActive = lastActive
	endpoint.SrcIPs = map[string]time.Time{"10.0.0.1": lastActive}

	result := sampleResult(t, endpoint, lastActive)
	result.Alerts = nil
	result.EndpointChanged = true
	require.NoError(t, writer.SaveAnalyzedTrace(ctx, result))

	stored, err := repo.GetByUUID(ctx, endpoint.UUID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.RiskHigh, stored.RiskScore)
	assert.Contains(t, stored.SrcIPs, "10.0.0.1")
	assert.Equal(t, lastActive.Unix(), stored.LastActive.UTC().Unix())
}

func TestTraceWriter_SpecLineContextWriteback(t *testing.T) {
	db := newTestDB(t)
	repo := NewEndpointRepository(db)
	specs := NewSpecRepository(db)
	writer := NewTraceWriter(db, RetryPolicy{MaxRetries: 1, MinDelay: time.Millisecond, MaxDelay: time.Millisecond})
	ctx := context.Background()

	endpoint := makeEndpoint("api.example.com", model.MethodGet, "/api/users/{param1}", `^/api/users/[^/]+(/)*$`, 1)
	_, err := repo.Create(ctx, endpoint)
	require.NoError(t, err)

	spec := &model.OpenApiSpec{Name: "users-api", Raw: "openapi: 3.0.0"}
	require.NoError(t, specs.Upsert(ctx, spec))

	spec.LineContexts = map[string]model.SpecExcerpt{
		"Undefined path /api/ghost": {LineNumber: 12, Excerpt: "12: /api/users:"},
	}
	result := sampleResult(t, endpoint, time.Now().UTC())
	result.Alerts = nil
	result.Spec = spec
	result.SpecChanged = true
	require.NoError(t, writer.SaveAnalyzedTrace(ctx, result))

	stored, err := specs.GetByName(ctx, "users-api")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 12, stored.LineContexts["Undefined path /api/ghost"].LineNumber)
}
