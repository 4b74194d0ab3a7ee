// 离线路径聚类启发式
// 基于历史流量的token频率给出备选模板，仅供人工复核，
// 不回写实时推断结果，两套启发式独立存在、允许不一致。
package inference

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// suggestTraceLimit 单次分析最多取的历史路径数
	suggestTraceLimit = 10000
	// paramFrequencyThreshold 该位置最高频值占比低于此阈值时视为参数位
	paramFrequencyThreshold = 0.1
	// maxSuggestions 返回的备选模板上限
	maxSuggestions = 100
)

// PathSuggestion 备选模板
type PathSuggestion struct {
	Path      string  // 参数化模板
	Stability float64 // 平均token稳定度 [越高越像固定路径]
	NumTraces int     // 支撑该模板的流量数
}

// positionKey 计数键 [token数不同的路径各自独立统计]
type positionKey struct {
	tokenCount int
	position   int
}

// SuggestPaths 对一个端点的历史路径做频率聚类，返回排序后的备选模板
// 每个token位置统计各字面值的出现频率，最高频值占比不足阈值的位置判为参数位；
// 模板按平均token稳定度降序排列，最多返回100条。
func SuggestPaths(paths []string) []PathSuggestion {
	if len(paths) > suggestTraceLimit {
		paths = paths[:suggestTraceLimit]
	}
	if len(paths) == 0 {
		return nil
	}

	// 第一遍: 按(token数,位置)统计每个字面值的出现次数
	valueCounts := make(map[positionKey]map[string]int)
	shapeTotals := make(map[int]int)
	tokenized := make([][]string, 0, len(paths))
	for _, path := range paths {
		tokens := splitPath(path)
		tokenized = append(tokenized, tokens)
		shapeTotals[len(tokens)]++
		for pos, token := range tokens {
			key := positionKey{tokenCount: len(tokens), position: pos}
			if valueCounts[key] == nil {
				valueCounts[key] = make(map[string]int)
			}
			valueCounts[key][token]++
		}
	}

	// 第二遍: 判定参数位并归并模板
	type aggregate struct {
		stabilitySum float64
		numTraces    int
	}
	templates := make(map[string]*aggregate)
	for _, tokens := range tokenized {
		total := shapeTotals[len(tokens)]
		var parts []string
		paramCount := 0
		stability := 0.0
		for pos, token := range tokens {
			key := positionKey{tokenCount: len(tokens), position: pos}
			counts := valueCounts[key]
			topFreq := 0.0
			for _, c := range counts {
				if f := float64(c) / float64(total); f > topFreq {
					topFreq = f
				}
			}
			if topFreq < paramFrequencyThreshold {
				paramCount++
				parts = append(parts, fmt.Sprintf("{param%d}", paramCount))
			} else {
				parts = append(parts, token)
			}
			stability += float64(counts[token]) / float64(total)
		}
		if len(tokens) > 0 {
			stability /= float64(len(tokens))
		}

		template := "/" + strings.Join(parts, "/")
		agg := templates[template]
		if agg == nil {
			agg = &aggregate{}
			templates[template] = agg
		}
		agg.stabilitySum += stability
		agg.numTraces++
	}

	suggestions := make([]PathSuggestion, 0, len(templates))
	for template, agg := range templates {
		suggestions = append(suggestions, PathSuggestion{
			Path:      template,
			Stability: agg.stabilitySum / float64(agg.numTraces),
			NumTraces: agg.numTraces,
		})
	}

	// 稳定度降序，同分按路径字典序保证结果确定
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Stability != suggestions[j].Stability {
			return suggestions[i].Stability > suggestions[j].Stability
		}
		return suggestions[i].Path < suggestions[j].Path
	})

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// splitPath 切分路径为非空token
func splitPath(path string) []string {
	var tokens []string
	for _, t := range strings.Split(path, "/") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
