// JSON标签变体树
// 把解析后的JSON表示为显式的六类节点(Null/Bool/Number/String/Array/Object)，
// 脱敏和分类的递归遍历都基于该结构，避免在业务代码里散落动态类型判断。
// 对象成员保持原始顺序，重新序列化后字段顺序不变。
package jsontree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind 节点类型
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// Member 对象成员 [有序]
type Member struct {
	Key   string
	Value *Value
}

// Value JSON节点
type Value struct {
	Kind    Kind
	BoolVal bool
	NumVal  json.Number
	StrVal  string
	Items   []*Value
	Members []Member
}

// NewString 构造字符串节点
func NewString(s string) *Value {
	return &Value{Kind: String, StrVal: s}
}

// IsScalar 是否为标量节点(Null/Bool/Number/String)
func (v *Value) IsScalar() bool {
	switch v.Kind {
	case Null, Bool, Number, String:
		return true
	default:
		return false
	}
}

// ScalarString 标量节点的字符串表示 [供检测器扫描]
func (v *Value) ScalarString() string {
	switch v.Kind {
	case String:
		return v.StrVal
	case Number:
		return v.NumVal.String()
	case Bool:
		if v.BoolVal {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Parse 解析JSON文本为标签变体树
// 数字保留原始字面量(json.Number)，避免精度丢失
func Parse(raw string) (*Value, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}
	value, err := valueFromToken(dec, tok)
	if err != nil {
		return nil, err
	}
	// 顶层值之后不允许再有内容
	if _, err := dec.Token(); err == nil {
		return nil, fmt.Errorf("failed to parse json: trailing content after top-level value")
	}
	return value, nil
}

// valueFromToken 从当前token递归构造节点
func valueFromToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &Value{Kind: Object}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("failed to parse json object key: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected json object key token: %v", keyTok)
				}
				valTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("failed to parse json object value: %w", err)
				}
				val, err := valueFromToken(dec, valTok)
				if err != nil {
					return nil, err
				}
				obj.Members = append(obj.Members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // 消费 '}'
				return nil, fmt.Errorf("failed to parse json object end: %w", err)
			}
			return obj, nil
		case '[':
			arr := &Value{Kind: Array}
			for dec.More() {
				itemTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("failed to parse json array item: %w", err)
				}
				item, err := valueFromToken(dec, itemTok)
				if err != nil {
					return nil, err
				}
				arr.Items = append(arr.Items, item)
			}
			if _, err := dec.Token(); err != nil { // 消费 ']'
				return nil, fmt.Errorf("failed to parse json array end: %w", err)
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected json delimiter: %v", t)
		}
	case string:
		return &Value{Kind: String, StrVal: t}, nil
	case json.Number:
		return &Value{Kind: Number, NumVal: t}, nil
	case bool:
		return &Value{Kind: Bool, BoolVal: t}, nil
	case nil:
		return &Value{Kind: Null}, nil
	default:
		return nil, fmt.Errorf("unexpected json token: %v", tok)
	}
}

// Encode 序列化回JSON文本 [对象成员保持解析时顺序]
func (v *Value) Encode() (string, error) {
	var sb strings.Builder
	if err := encodeValue(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func encodeValue(sb *strings.Builder, v *Value) error {
	switch v.Kind {
	case Null:
		sb.WriteString("null")
	case Bool:
		if v.BoolVal {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case Number:
		sb.WriteString(v.NumVal.String())
	case String:
		encoded, err := json.Marshal(v.StrVal)
		if err != nil {
			return fmt.Errorf("failed to encode json string: %w", err)
		}
		sb.Write(encoded)
	case Array:
		sb.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := encodeValue(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case Object:
		sb.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				sb.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return fmt.Errorf("failed to encode json key: %w", err)
			}
			sb.Write(key)
			sb.WriteByte(':')
			if err := encodeValue(sb, m.Value); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	default:
		return fmt.Errorf("unknown json node kind: %d", v.Kind)
	}
	return nil
}
