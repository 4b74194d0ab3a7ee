package jsontree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreservesMemberOrder(t *testing.T) {
	node, err := Parse(`{"z":1,"a":2,"m":3}`)
	require.NoError(t, err)
	require.Equal(t, Object, node.Kind)

	keys := make([]string, 0, len(node.Members))
	for _, m := range node.Members {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"z", "a", "m"}, keys)

	encoded, err := node.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, encoded)
}

func TestParse_NumberKeepsLiteral(t *testing.T) {
	node, err := Parse(`{"big":12345678901234567890,"frac":0.100}`)
	require.NoError(t, err)

	encoded, err := node.Encode()
	require.NoError(t, err)
	// 数字按原始字面量往返，不经过float64
	assert.Equal(t, `{"big":12345678901234567890,"frac":0.100}`, encoded)
}

func TestParse_Scalars(t *testing.T) {
	for raw, kind := range map[string]Kind{
		`"hello"`: String,
		`42`:      Number,
		`true`:    Bool,
		`null`:    Null,
	} {
		node, err := Parse(raw)
		require.NoError(t, err, "raw=%s", raw)
		assert.Equal(t, kind, node.Kind, "raw=%s", raw)
		assert.True(t, node.IsScalar())
	}
}

func TestParse_RejectsTrailingContent(t *testing.T) {
	_, err := Parse(`{"a":1} extra`)
	assert.Error(t, err)
}

func TestParse_RejectsInvalid(t *testing.T) {
	_, err := Parse(`{broken`)
	assert.Error(t, err)
	_, err = Parse(``)
	assert.Error(t, err)
}

func TestScalarString(t *testing.T) {
	cases := map[string]string{
		`"text"`: "text",
		`3.25`:   "3.25",
		`true`:   "true",
		`false`:  "false",
		`null`:   "",
	}
	for raw, want := range cases {
		node, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, node.ScalarString(), "raw=%s", raw)
	}
}

func TestEncode_EscapesStrings(t *testing.T) {
	node, err := Parse(`{"msg":"line1\nline2 \"quoted\""}`)
	require.NoError(t, err)

	encoded, err := node.Encode()
	require.NoError(t, err)

	reparsed, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2 \"quoted\"", reparsed.Members[0].Value.StrVal)
}
