// 队列消息信封
// 摄取侧入队的JSON结构，v1为单条流量，v2为批量
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueuedTrace 队列中的一条待分析流量
type QueuedTrace struct {
	Path               string              `json:"path"`
	Method             RestMethod          `json:"method"`
	Host               string              `json:"host"`
	RequestParameters  []PairObject        `json:"requestParameters"`
	RequestHeaders     []PairObject        `json:"requestHeaders"`
	RequestBody        string              `json:"requestBody"`
	ResponseStatus     int                 `json:"responseStatus"`
	ResponseHeaders    []PairObject        `json:"responseHeaders"`
	ResponseBody       string              `json:"responseBody"`
	Meta               TraceMeta           `json:"meta"`
	SessionMeta        *SessionMeta        `json:"sessionMeta,omitempty"`
	ProcessedTraceData *ProcessedTraceData `json:"processedTraceData,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	Redacted           bool                `json:"redacted"`
	AnalysisType       AnalysisType        `json:"analysisType"`
}

// TraceEnvelope 队列消息信封
type TraceEnvelope struct {
	Version int            `json:"version"`
	Trace   *QueuedTrace   `json:"trace,omitempty"`
	Traces  []*QueuedTrace `json:"traces,omitempty"`
}

// DecodeEnvelope 解析队列消息并抽取流量列表
// v1信封只带单条trace，v2及以上带traces批量；两者都为空视为非法消息
func DecodeEnvelope(payload []byte) ([]*QueuedTrace, error) {
	var envelope TraceEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace envelope: %w", err)
	}

	switch {
	case len(envelope.Traces) > 0:
		return envelope.Traces, nil
	case envelope.Trace != nil:
		return []*QueuedTrace{envelope.Trace}, nil
	default:
		return nil, fmt.Errorf("trace envelope carries no trace (version=%d)", envelope.Version)
	}
}

// ToApiTrace 转换为入库模型
func (t *QueuedTrace) ToApiTrace(endpointUUID string) *ApiTrace {
	capturedAt := t.CreatedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	return &ApiTrace{
		Host:              t.Host,
		Method:            t.Method,
		Path:              t.Path,
		APIEndpointUUID:   endpointUUID,
		RequestParameters: t.RequestParameters,
		RequestHeaders:    t.RequestHeaders,
		RequestBody:       t.RequestBody,
		ResponseStatus:    t.ResponseStatus,
		ResponseHeaders:   t.ResponseHeaders,
		ResponseBody:      t.ResponseBody,
		Meta:              t.Meta,
		SessionMeta:       t.SessionMeta,
		CapturedAt:        capturedAt,
		Redacted:          t.Redacted,
	}
}
