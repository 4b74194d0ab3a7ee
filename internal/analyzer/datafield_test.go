package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceguard/internal/config"
	"traceguard/internal/detector"
	"traceguard/internal/model"
)

func testRegistry(t *testing.T) *detector.Registry {
	t.Helper()
	registry, err := detector.NewRegistry(&config.DetectorConfig{})
	require.NoError(t, err)
	return registry
}

func testEndpoint() *model.ApiEndpoint {
	e := &model.ApiEndpoint{
		Host:         "api.example.com",
		Method:       model.MethodGet,
		Path:         "/api/users/{param1}",
		NumberParams: 1,
	}
	e.UUID = "endpoint-uuid"
	return e
}

func jsonTrace(status int, responseBody string) *model.QueuedTrace {
	return &model.QueuedTrace{
		Host:           "api.example.com",
		Method:         model.MethodGet,
		Path:           "/api/users/42",
		ResponseStatus: status,
		ResponseHeaders: []model.PairObject{
			{Name: "Content-Type", Value: "application/json"},
		},
		ResponseBody: responseBody,
	}
}

func findField(fields []*model.DataField, section model.DataSection, path string) *model.DataField {
	for _, f := range fields {
		if f.DataSection == section && f.DataPath == path {
			return f
		}
	}
	return nil
}

func TestExtractDataFields_ResponseBody(t *testing.T) {
	trace := jsonTrace(200, `{"user":{"email":"alice@example.com","age":30,"tags":["a","b"]}}`)

	scan := ExtractDataFields(testRegistry(t), testEndpoint(), nil, trace, 200, 0, time.Now())

	email := findField(scan.Fields, model.SectionResponseBody, "user.email")
	require.NotNil(t, email)
	assert.Equal(t, 200, email.StatusCode)
	assert.Equal(t, "application/json", email.ContentType)
	assert.Contains(t, email.DataClasses, model.DataClassEmail)
	assert.Equal(t, model.DataTagPII, email.DataTag)
	assert.Equal(t, model.DataTypeString, email.DataType)

	age := findField(scan.Fields, model.SectionResponseBody, "user.age")
	require.NotNil(t, age)
	assert.Equal(t, model.DataTypeInteger, age.DataType)
	assert.Empty(t, age.DataClasses)

	// 数组层级产生[]token，两个元素归并到同一字段
	tag := findField(scan.Fields, model.SectionResponseBody, "user.tags.[]")
	require.NotNil(t, tag)
	assert.Equal(t, model.DataTypeString, tag.DataType)
}

func TestExtractDataFields_RequestSideKeys(t *testing.T) {
	trace := jsonTrace(200, "")
	trace.RequestParameters = []model.PairObject{{Name: "email", Value: "alice@example.com"}}
	trace.RequestHeaders = []model.PairObject{{Name: "X-Trace", Value: "abc"}}

	scan := ExtractDataFields(testRegistry(t), testEndpoint(), nil, trace, 200, 0, time.Now())

	query := findField(scan.Fields, model.SectionRequestQuery, "email")
	require.NotNil(t, query)
	// 请求侧字段与响应变体无关，状态码/内容类型取占位值
	assert.Equal(t, -1, query.StatusCode)
	assert.Equal(t, "", query.ContentType)
	assert.Contains(t, query.DataClasses, model.DataClassEmail)

	header := findField(scan.Fields, model.SectionRequestHeader, "X-Trace")
	require.NotNil(t, header)
	assert.Equal(t, -1, header.StatusCode)
}

func TestExtractDataFields_PathParams(t *testing.T) {
	trace := jsonTrace(200, "")
	trace.Path = "/api/users/212-09-9999"

	scan := ExtractDataFields(testRegistry(t), testEndpoint(), nil, trace, 200, 0, time.Now())

	param := findField(scan.Fields, model.SectionRequestPath, "param1")
	require.NotNil(t, param)
	assert.Contains(t, param.DataClasses, model.DataClassSSN)
}

func TestExtractDataFields_ErrorResponseSkipsRequestSide(t *testing.T) {
	trace := jsonTrace(401, `{"error":"unauthorized"}`)
	trace.RequestParameters = []model.PairObject{{Name: "email", Value: "alice@example.com"}}

	scan := ExtractDataFields(testRegistry(t), testEndpoint(), nil, trace, 200, 0, time.Now())

	// 被拒绝的请求不学习请求侧字段，响应侧照常记录
	assert.Nil(t, findField(scan.Fields, model.SectionRequestQuery, "email"))
	assert.NotNil(t, findField(scan.Fields, model.SectionResponseBody, "error"))
}

func TestExtractDataFields_StatusVariantsAreDistinct(t *testing.T) {
	endpoint := testEndpoint()
	registry := testRegistry(t)
	now := time.Now()

	scan200 := ExtractDataFields(registry, endpoint, nil, jsonTrace(200, `{"id":1}`), 200, 0, now)
	field200 := findField(scan200.Fields, model.SectionResponseBody, "id")
	require.NotNil(t, field200)
	assert.Equal(t, 200, field200.StatusCode)

	scan500 := ExtractDataFields(registry, endpoint, scan200.Fields, jsonTrace(500, `{"id":1}`), 200, 0, now)
	field500 := findField(scan500.Fields, model.SectionResponseBody, "id")
	require.NotNil(t, field500)
	// 同一路径不同状态码是两条独立记录
	assert.Equal(t, 500, field500.StatusCode)
	assert.NotSame(t, field200, field500)
}

func TestExtractDataFields_FieldLimit(t *testing.T) {
	trace := jsonTrace(200, `{"a":1,"b":2,"c":3,"d":4,"e":5}`)

	scan := ExtractDataFields(testRegistry(t), testEndpoint(), nil, trace, 3, 0, time.Now())

	assert.Len(t, scan.Fields, 3)
}

func TestExtractDataFields_FalsePositiveStaysSuppressed(t *testing.T) {
	existing := &model.DataField{
		APIEndpointUUID: "endpoint-uuid",
		DataSection:     model.SectionResponseBody,
		DataPath:        "contact",
		StatusCode:      200,
		ContentType:     "application/json",
		DataType:        model.DataTypeString,
		FalsePositives:  []model.DataClass{model.DataClassEmail},
	}
	existing.UpdatedAt = time.Now()

	trace := jsonTrace(200, `{"contact":"alice@example.com"}`)
	scan := ExtractDataFields(testRegistry(t), testEndpoint(), []*model.DataField{existing}, trace, 200, time.Hour, time.Now())

	// 误报分类不重新出现，字段无其他变化时不落库
	assert.Nil(t, findField(scan.Fields, model.SectionResponseBody, "contact"))
	assert.Empty(t, existing.DataClasses)
	assert.NotContains(t, scan.SensitiveMap[model.SectionResponseBody], model.DataClassEmail)
}

func TestExtractDataFields_RetouchStaleField(t *testing.T) {
	existing := &model.DataField{
		APIEndpointUUID: "endpoint-uuid",
		DataSection:     model.SectionResponseBody,
		DataPath:        "id",
		StatusCode:      200,
		ContentType:     "application/json",
		DataType:        model.DataTypeInteger,
	}
	now := time.Now()

	// 一天内无变化的字段不重复落库
	existing.UpdatedAt = now.Add(-time.Hour)
	scan := ExtractDataFields(testRegistry(t), testEndpoint(), []*model.DataField{existing}, jsonTrace(200, `{"id":1}`), 200, 24*time.Hour, now)
	assert.Empty(t, scan.Fields)

	// 超过重落间隔时落一次，让UpdatedAt前移
	existing.UpdatedAt = now.Add(-25 * time.Hour)
	scan = ExtractDataFields(testRegistry(t), testEndpoint(), []*model.DataField{existing}, jsonTrace(200, `{"id":1}`), 200, 24*time.Hour, now)
	assert.Len(t, scan.Fields, 1)
}

func TestExtractDataFields_Deterministic(t *testing.T) {
	trace := jsonTrace(200, `{"email":"alice@example.com","phone":"415-555-0123","nested":{"ssn":"212-09-9999"}}`)

	first := ExtractDataFields(testRegistry(t), testEndpoint(), nil, trace, 200, 0, time.Now())
	second := ExtractDataFields(testRegistry(t), testEndpoint(), nil, trace, 200, 0, time.Now())

	require.Equal(t, len(first.Fields), len(second.Fields))
	for i := range first.Fields {
		assert.Equal(t, first.Fields[i].DataPath, second.Fields[i].DataPath)
		assert.Equal(t, first.Fields[i].DataClasses, second.Fields[i].DataClasses)
	}
}

func TestExtractDataFields_NonJSONBodyIsOpaque(t *testing.T) {
	trace := jsonTrace(200, "id=1&mail=alice@example.com")
	trace.ResponseHeaders = []model.PairObject{{Name: "Content-Type", Value: "text/plain"}}

	scan := ExtractDataFields(testRegistry(t), testEndpoint(), nil, trace, 200, 0, time.Now())

	body := findField(scan.Fields, model.SectionResponseBody, "")
	require.NotNil(t, body)
	assert.Equal(t, "text/plain", body.ContentType)
}
