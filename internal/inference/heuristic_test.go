package inference

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggestPaths_Empty(t *testing.T) {
	assert.Nil(t, SuggestPaths(nil))
}

func TestSuggestPaths_CollapsesVariablePosition(t *testing.T) {
	// 第二个位置全是不同用户ID，每个值占比1/20，远低于阈值
	var paths []string
	for i := 0; i < 20; i++ {
		paths = append(paths, fmt.Sprintf("/users/%d/profile", i))
	}

	suggestions := SuggestPaths(paths)

	assert.Len(t, suggestions, 1)
	assert.Equal(t, "/users/{param1}/profile", suggestions[0].Path)
	assert.Equal(t, 20, suggestions[0].NumTraces)
}

func TestSuggestPaths_StablePositionStaysLiteral(t *testing.T) {
	// 所有流量走同一条字面路径，任何位置都不会被判成参数
	paths := []string{"/health", "/health", "/health"}

	suggestions := SuggestPaths(paths)

	assert.Len(t, suggestions, 1)
	assert.Equal(t, "/health", suggestions[0].Path)
	assert.InDelta(t, 1.0, suggestions[0].Stability, 0.001)
}

func TestSuggestPaths_DifferentShapesIndependent(t *testing.T) {
	// token数不同的路径各自统计，互不拉低频率
	var paths []string
	for i := 0; i < 20; i++ {
		paths = append(paths, fmt.Sprintf("/orders/%d", i))
	}
	paths = append(paths, "/orders")

	suggestions := SuggestPaths(paths)

	templates := make(map[string]bool)
	for _, s := range suggestions {
		templates[s.Path] = true
	}
	assert.True(t, templates["/orders/{param1}"])
	assert.True(t, templates["/orders"])
}

func TestSuggestPaths_SortedByStability(t *testing.T) {
	var paths []string
	// 稳定模板
	for i := 0; i < 30; i++ {
		paths = append(paths, "/static/resource")
	}
	// 含参数位的模板
	for i := 0; i < 30; i++ {
		paths = append(paths, fmt.Sprintf("/static/%d", i))
	}

	suggestions := SuggestPaths(paths)

	assert.GreaterOrEqual(t, len(suggestions), 2)
	for i := 1; i < len(suggestions); i++ {
		assert.GreaterOrEqual(t, suggestions[i-1].Stability, suggestions[i].Stability)
	}
}
