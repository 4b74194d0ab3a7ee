package specdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceguard/internal/model"
)

const sampleSpec = `openapi: 3.0.0
info:
  title: Users API
  version: "1.0"
paths:
  /api/users/{id}:
    get:
      parameters:
        - name: verbose
          in: query
          required: true
          schema:
            type: string
      responses:
        "200":
          description: OK
          content:
            application/json:
              schema:
                type: object
                additionalProperties: false
                required: [id, email]
                properties:
                  id:
                    type: integer
                  email:
                    type: string
`

func specRecord() *model.OpenApiSpec {
	return &model.OpenApiSpec{
		Name:      "users-api",
		Raw:       sampleSpec,
		Extension: "yaml",
	}
}

func specEndpoint() *model.ApiEndpoint {
	return &model.ApiEndpoint{
		Host:     "api.example.com",
		Method:   model.MethodGet,
		Path:     "/api/users/{id}",
		SpecName: "users-api",
	}
}

func conformingTrace() *model.QueuedTrace {
	return &model.QueuedTrace{
		Host:           "api.example.com",
		Method:         model.MethodGet,
		Path:           "/api/users/42",
		ResponseStatus: 200,
		RequestParameters: []model.PairObject{
			{Name: "verbose", Value: "true"},
		},
		ResponseBody: `{"id":42,"email":"alice@example.com"}`,
	}
}

func TestFindDiffs_Conforming(t *testing.T) {
	diffs, err := FindDiffs(specRecord(), specEndpoint(), conformingTrace())
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestFindDiffs_UndefinedPath(t *testing.T) {
	endpoint := specEndpoint()
	endpoint.Path = "/api/orders/{id}"

	diffs, err := FindDiffs(specRecord(), endpoint, conformingTrace())
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Contains(t, diffs[0], "/api/orders/{id}")
	assert.Contains(t, diffs[0], "not defined")
}

func TestFindDiffs_UndefinedMethod(t *testing.T) {
	endpoint := specEndpoint()
	endpoint.Method = model.MethodDelete

	diffs, err := FindDiffs(specRecord(), endpoint, conformingTrace())
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Contains(t, diffs[0], "DELETE")
}

func TestFindDiffs_MissingRequiredQueryParam(t *testing.T) {
	trace := conformingTrace()
	trace.RequestParameters = nil

	diffs, err := FindDiffs(specRecord(), specEndpoint(), trace)
	require.NoError(t, err)
	assert.Contains(t, diffs, "Request Query Params: required property 'verbose' is missing")
}

func TestFindDiffs_ResponseSchemaViolations(t *testing.T) {
	trace := conformingTrace()
	trace.ResponseBody = `{"id":"not-an-int","extra":true}`

	diffs, err := FindDiffs(specRecord(), specEndpoint(), trace)
	require.NoError(t, err)

	joined := ""
	for _, d := range diffs {
		joined += d + "\n"
	}
	// 类型不符、未声明属性、缺失必填属性都被收集
	assert.Contains(t, joined, "Response Body")
	assert.Contains(t, joined, "id")
	assert.NotEmpty(t, diffs)
}

func TestFindDiffs_UndefinedStatusCode(t *testing.T) {
	trace := conformingTrace()
	trace.ResponseStatus = 502
	trace.ResponseBody = `{"error":"bad gateway"}`

	diffs, err := FindDiffs(specRecord(), specEndpoint(), trace)
	require.NoError(t, err)
	assert.Contains(t, diffs, "Response Body: status code 502 is not defined in the specification")
}

func TestFindDiffs_SameViolationDeduped(t *testing.T) {
	trace := conformingTrace()
	trace.ResponseStatus = 502
	trace.ResponseBody = `{"error":"bad gateway"}`

	first, err := FindDiffs(specRecord(), specEndpoint(), trace)
	require.NoError(t, err)
	second, err := FindDiffs(specRecord(), specEndpoint(), trace)
	require.NoError(t, err)
	// 同一差异在不同流量里产生相同描述，告警去重依赖这一点
	assert.Equal(t, first, second)
}

func TestLocateOperation(t *testing.T) {
	excerpt, ok := LocateOperation(specRecord(), "/api/users/{id}", model.MethodGet)
	require.True(t, ok)

	// get: 在样例文档的第7行
	assert.Equal(t, 7, excerpt.LineNumber)
	assert.Contains(t, excerpt.Excerpt, "get:")
	assert.Contains(t, excerpt.Excerpt, "7: ")
}

func TestLocateOperation_NotFound(t *testing.T) {
	_, ok := LocateOperation(specRecord(), "/api/missing", model.MethodGet)
	assert.False(t, ok)
}

func TestContextForMessage_CachesOnce(t *testing.T) {
	spec := specRecord()

	excerpt, updated := ContextForMessage(spec, "some diff message", "/api/users/{id}", model.MethodGet)
	assert.True(t, updated)
	assert.Equal(t, 7, excerpt.LineNumber)

	// 第二次命中缓存，不再标记更新
	cached, updated := ContextForMessage(spec, "some diff message", "/api/users/{id}", model.MethodGet)
	assert.False(t, updated)
	assert.Equal(t, excerpt, cached)
}
