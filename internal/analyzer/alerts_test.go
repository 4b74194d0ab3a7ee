package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceguard/internal/model"
)

// fakeAlertRepo 内存告警查重
type fakeAlertRepo struct {
	unresolved map[string]bool
	err        error
}

func (f *fakeAlertRepo) ExistsUnresolved(_ context.Context, endpointUUID string, alertType model.AlertType, description string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.unresolved[endpointUUID+"|"+string(alertType)+"|"+description], nil
}

func alertTrace() *model.QueuedTrace {
	return &model.QueuedTrace{
		Host:           "api.example.com",
		Method:         model.MethodGet,
		Path:           "/api/users/42",
		ResponseStatus: 200,
		ResponseHeaders: []model.PairObject{
			{Name: "Strict-Transport-Security", Value: "max-age=31536000"},
		},
	}
}

func alertTypes(alerts []*model.Alert) []model.AlertType {
	types := make([]model.AlertType, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.Type)
	}
	return types
}

func TestBuildAlerts_NewEndpoint(t *testing.T) {
	repo := &fakeAlertRepo{unresolved: map[string]bool{}}
	endpoint := testEndpoint()

	alerts, _, err := BuildAlerts(context.Background(), repo, endpoint, alertTrace(), true, nil, nil, &FieldScan{})
	require.NoError(t, err)

	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertTypeNewEndpoint, alerts[0].Type)
	assert.Equal(t, model.RiskLow, alerts[0].RiskScore)
	assert.Equal(t, model.AlertStatusOpen, alerts[0].Status)
	assert.Equal(t, endpoint.UUID, alerts[0].APIEndpointUUID)
}

func TestBuildAlerts_BasicAuth(t *testing.T) {
	repo := &fakeAlertRepo{unresolved: map[string]bool{}}
	trace := alertTrace()
	trace.RequestHeaders = []model.PairObject{{Name: "Authorization", Value: "Basic dXNlcjpwYXNz"}}

	alerts, _, err := BuildAlerts(context.Background(), repo, testEndpoint(), trace, false, nil, nil, &FieldScan{})
	require.NoError(t, err)

	assert.Contains(t, alertTypes(alerts), model.AlertTypeBasicAuthDetected)
}

func TestBuildAlerts_BearerIsNotBasic(t *testing.T) {
	repo := &fakeAlertRepo{unresolved: map[string]bool{}}
	trace := alertTrace()
	trace.RequestHeaders = []model.PairObject{{Name: "Authorization", Value: "Bearer token"}}

	alerts, _, err := BuildAlerts(context.Background(), repo, testEndpoint(), trace, false, nil, nil, &FieldScan{})
	require.NoError(t, err)

	assert.NotContains(t, alertTypes(alerts), model.AlertTypeBasicAuthDetected)
}

func TestBuildAlerts_MissingHSTS(t *testing.T) {
	repo := &fakeAlertRepo{unresolved: map[string]bool{}}
	trace := alertTrace()
	trace.ResponseHeaders = nil

	alerts, _, err := BuildAlerts(context.Background(), repo, testEndpoint(), trace, false, nil, nil, &FieldScan{})
	require.NoError(t, err)
	assert.Contains(t, alertTypes(alerts), model.AlertTypeMissingHSTS)

	// 错误响应不检查HSTS
	trace.ResponseStatus = 500
	alerts, _, err = BuildAlerts(context.Background(), repo, testEndpoint(), trace, false, nil, nil, &FieldScan{})
	require.NoError(t, err)
	assert.NotContains(t, alertTypes(alerts), model.AlertTypeMissingHSTS)
}

func TestBuildAlerts_SensitiveQueryAndPath(t *testing.T) {
	repo := &fakeAlertRepo{unresolved: map[string]bool{}}
	scan := &FieldScan{
		SensitiveMap: map[model.DataSection][]model.DataClass{
			model.SectionRequestQuery: {model.DataClassEmail, model.DataClassSSN},
			model.SectionRequestPath:  {model.DataClassSSN},
		},
	}

	alerts, _, err := BuildAlerts(context.Background(), repo, testEndpoint(), alertTrace(), false, nil, nil, scan)
	require.NoError(t, err)

	types := alertTypes(alerts)
	assert.Contains(t, types, model.AlertTypeQuerySensitiveData)
	assert.Contains(t, types, model.AlertTypePathSensitiveData)

	for _, a := range alerts {
		if a.Type == model.AlertTypeQuerySensitiveData {
			// 描述中的分类按字典序排列，保证同组合去重
			assert.Contains(t, a.Description, "Email, Social Security Number")
			assert.Equal(t, model.RiskHigh, a.RiskScore)
		}
	}
}

func TestBuildAlerts_UnauthSensitiveData(t *testing.T) {
	repo := &fakeAlertRepo{unresolved: map[string]bool{}}
	scan := &FieldScan{
		SensitiveMap: map[model.DataSection][]model.DataClass{
			model.SectionResponseBody: {model.DataClassSSN},
		},
	}

	// 未声明认证状态时不触发
	alerts, _, err := BuildAlerts(context.Background(), repo, testEndpoint(), alertTrace(), false, nil, nil, scan)
	require.NoError(t, err)
	assert.NotContains(t, alertTypes(alerts), model.AlertTypeUnauthSensitiveData)

	// 明确未认证时触发
	authProvided := false
	trace := alertTrace()
	trace.SessionMeta = &model.SessionMeta{AuthenticationProvided: &authProvided}
	alerts, _, err = BuildAlerts(context.Background(), repo, testEndpoint(), trace, false, nil, nil, scan)
	require.NoError(t, err)
	assert.Contains(t, alertTypes(alerts), model.AlertTypeUnauthSensitiveData)

	// 已认证时不触发
	authProvided = true
	alerts, _, err = BuildAlerts(context.Background(), repo, testEndpoint(), trace, false, nil, nil, scan)
	require.NoError(t, err)
	assert.NotContains(t, alertTypes(alerts), model.AlertTypeUnauthSensitiveData)
}

func TestBuildAlerts_SpecDiffs(t *testing.T) {
	repo := &fakeAlertRepo{unresolved: map[string]bool{}}

	diffs := []string{
		"Request Body: property email is missing",
		"Response Body: undefined status code 502",
	}
	alerts, _, err := BuildAlerts(context.Background(), repo, testEndpoint(), alertTrace(), false, diffs, nil, &FieldScan{})
	require.NoError(t, err)

	count := 0
	for _, a := range alerts {
		if a.Type == model.AlertTypeOpenAPISpecDiff {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestBuildAlerts_DatabaseDedup(t *testing.T) {
	endpoint := testEndpoint()
	trace := alertTrace()
	trace.RequestHeaders = []model.PairObject{{Name: "Authorization", Value: "Basic xyz"}}

	// 先存一条未解决的Basic认证告警
	first, _, err := BuildAlerts(context.Background(), &fakeAlertRepo{unresolved: map[string]bool{}}, endpoint, trace, false, nil, nil, &FieldScan{})
	require.NoError(t, err)
	require.Contains(t, alertTypes(first), model.AlertTypeBasicAuthDetected)

	unresolved := map[string]bool{}
	for _, a := range first {
		unresolved[a.DedupKey()] = true
	}

	// 相同流量再来一次，全部被查重过滤
	second, _, err := BuildAlerts(context.Background(), &fakeAlertRepo{unresolved: unresolved}, endpoint, trace, false, nil, nil, &FieldScan{})
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestBuildAlerts_BatchDedup(t *testing.T) {
	repo := &fakeAlertRepo{unresolved: map[string]bool{}}

	// 同一批里的重复差异描述只产生一条告警
	diffs := []string{
		"Request Body: property email is missing",
		"Request Body: property email is missing",
	}
	alerts, _, err := BuildAlerts(context.Background(), repo, testEndpoint(), alertTrace(), false, diffs, nil, &FieldScan{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}
