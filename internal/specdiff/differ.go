// OpenAPI契约比对
// 把流量的请求参数/请求体/响应体与端点关联的OpenAPI文档做校验，
// 每个校验错误映射为一条人类可读的描述，作为候选告警去重键。
package specdiff

import (
	"encoding/json"
	"fmt"
	"strings"

	"traceguard/internal/model"

	"github.com/getkin/kin-openapi/openapi3"
)

// 校验错误所属的流量区段标签
const (
	sectionRequestQuery  = "Request Query Params"
	sectionRequestHeader = "Request Headers"
	sectionRequestBody   = "Request Body"
	sectionResponseBody  = "Response Body"
)

// FindDiffs 比对一条流量与OpenAPI文档，返回去重后的差异描述列表
// 文档不含该路径或方法时返回单条描述；文档本身非法时返回错误
func FindDiffs(spec *model.OpenApiSpec, endpoint *model.ApiEndpoint, trace *model.QueuedTrace) ([]string, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData([]byte(spec.Raw))
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec %s: %w", spec.Name, err)
	}

	pathItem := doc.Paths.Find(endpoint.Path)
	if pathItem == nil {
		return []string{fmt.Sprintf("Path %s is not defined in the specification", endpoint.Path)}, nil
	}

	operation := pathItem.GetOperation(string(endpoint.Method))
	if operation == nil {
		return []string{fmt.Sprintf("Method %s is not defined in the specification for path %s",
			endpoint.Method, endpoint.Path)}, nil
	}

	var diffs []string
	seen := make(map[string]bool)
	add := func(msg string) {
		if msg != "" && !seen[msg] {
			seen[msg] = true
			diffs = append(diffs, msg)
		}
	}

	checkRequestParameters(operation, trace, add)
	checkRequestBody(operation, trace, add)
	checkResponseBody(operation, trace, add)

	return diffs, nil
}

// checkRequestParameters 校验必填的查询参数和头部
func checkRequestParameters(op *openapi3.Operation, trace *model.QueuedTrace, add func(string)) {
	for _, ref := range op.Parameters {
		param := ref.Value
		if param == nil || !param.Required {
			continue
		}
		switch param.In {
		case openapi3.ParameterInQuery:
			if !hasPair(trace.RequestParameters, param.Name) {
				add(fmt.Sprintf("%s: required property '%s' is missing", sectionRequestQuery, param.Name))
			}
		case openapi3.ParameterInHeader:
			if !hasPair(trace.RequestHeaders, param.Name) {
				add(fmt.Sprintf("%s: required property '%s' is missing", sectionRequestHeader, param.Name))
			}
		}
	}
}

// checkRequestBody 按JSON schema校验请求体
func checkRequestBody(op *openapi3.Operation, trace *model.QueuedTrace, add func(string)) {
	if op.RequestBody == nil || op.RequestBody.Value == nil || trace.RequestBody == "" {
		return
	}
	schema := jsonSchemaOf(op.RequestBody.Value.Content)
	if schema == nil {
		return
	}
	validateAgainstSchema(schema, trace.RequestBody, sectionRequestBody, add)
}

// checkResponseBody 按声明的响应schema校验响应体
func checkResponseBody(op *openapi3.Operation, trace *model.QueuedTrace, add func(string)) {
	if op.Responses == nil || trace.ResponseBody == "" {
		return
	}
	responseRef := op.Responses.Status(trace.ResponseStatus)
	if responseRef == nil {
		responseRef = op.Responses.Default()
	}
	if responseRef == nil || responseRef.Value == nil {
		add(fmt.Sprintf("%s: status code %d is not defined in the specification",
			sectionResponseBody, trace.ResponseStatus))
		return
	}
	schema := jsonSchemaOf(responseRef.Value.Content)
	if schema == nil {
		return
	}
	validateAgainstSchema(schema, trace.ResponseBody, sectionResponseBody, add)
}

// jsonSchemaOf 取内容声明中JSON媒体类型的schema
func jsonSchemaOf(content openapi3.Content) *openapi3.Schema {
	media := content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil
	}
	return media.Schema.Value
}

// validateAgainstSchema 校验JSON文本并收集全部差异
// 体不是合法JSON时按类型不符处理
func validateAgainstSchema(schema *openapi3.Schema, body, section string, add func(string)) {
	var value interface{}
	if err := json.Unmarshal([]byte(body), &value); err != nil {
		add(fmt.Sprintf("%s: body is not valid JSON", section))
		return
	}

	err := schema.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return
	}

	var multi openapi3.MultiError
	if ok := asMultiError(err, &multi); ok {
		for _, e := range multi {
			add(describeError(e, section))
		}
		return
	}
	add(describeError(err, section))
}

// asMultiError 展开MultiError
func asMultiError(err error, target *openapi3.MultiError) bool {
	if multi, ok := err.(openapi3.MultiError); ok {
		*target = multi
		return true
	}
	return false
}

// describeError 把schema校验错误映射为告警描述
// 按错误类别(required/type/additionalProperties/format)给出固定措辞，
// 同类差异在不同流量里生成相同文本，保证告警去重生效
func describeError(err error, section string) string {
	schemaErr, ok := err.(*openapi3.SchemaError)
	if !ok {
		return fmt.Sprintf("%s: %s", section, err.Error())
	}

	pointer := strings.Join(schemaErr.JSONPointer(), ".")
	if pointer == "" {
		pointer = "(root)"
	}

	switch schemaErr.SchemaField {
	case "required":
		return fmt.Sprintf("%s: %s", section, schemaErr.Reason)
	case "type":
		return fmt.Sprintf("%s: property '%s' must be of type %s",
			section, pointer, strings.Join(schemaErr.Schema.Type.Slice(), " or "))
	case "additionalProperties":
		return fmt.Sprintf("%s: property '%s' is not defined in the specification", section, pointer)
	case "format":
		return fmt.Sprintf("%s: property '%s' must match format '%s'",
			section, pointer, schemaErr.Schema.Format)
	default:
		return fmt.Sprintf("%s: property '%s' %s", section, pointer, schemaErr.Reason)
	}
}

// hasPair 键值对列表中是否存在指定名字 [不区分大小写]
func hasPair(pairs []model.PairObject, name string) bool {
	for _, p := range pairs {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}
