// 脱敏策略存储
// 策略以显式的PolicyStore注入管线，不走进程级全局状态；
// 文件实现支持热加载，配置监听器变化时调用Reload刷新。
package redact

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"traceguard/internal/model"

	"gopkg.in/yaml.v3"
)

// MethodAll 策略条目匹配全部HTTP方法的占位值
const MethodAll = "ALL"

// PolicyStore 脱敏策略查询接口
type PolicyStore interface {
	// Lookup 返回该请求命中的全部禁用路径 [未命中返回nil]
	Lookup(host string, method model.RestMethod, path string) []string
}

// BlockFieldsEntry 策略文件中的一条配置
type BlockFieldsEntry struct {
	Host          string   `yaml:"host"`           // 主机名
	Method        string   `yaml:"method"`         // HTTP方法或ALL
	Path          string   `yaml:"path"`           // 路径模板，{xxx}为参数位
	DisabledPaths []string `yaml:"disabled_paths"` // 禁用路径列表
}

// policyFile 策略文件结构
type policyFile struct {
	Entries []BlockFieldsEntry `yaml:"entries"`
}

// compiledEntry 编译后的策略条目
type compiledEntry struct {
	method        string
	pathRegex     *regexp.Regexp
	literalCount  int // 模板中字面token数，数值大者更具体
	disabledPaths []string
}

// FilePolicyStore 基于YAML文件的策略存储
type FilePolicyStore struct {
	mu      sync.RWMutex
	path    string
	entries map[string][]compiledEntry // 按host分桶
}

// NewFilePolicyStore 创建文件策略存储并完成首次加载
// path为空表示无脱敏策略，所有查询返回空
func NewFilePolicyStore(path string) (*FilePolicyStore, error) {
	store := &FilePolicyStore{
		path:    path,
		entries: make(map[string][]compiledEntry),
	}
	if path == "" {
		return store, nil
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Reload 重新加载策略文件 [加载失败保留旧策略]
func (s *FilePolicyStore) Reload() error {
	if s.path == "" {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read redaction policy %s: %w", s.path, err)
	}

	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse redaction policy %s: %w", s.path, err)
	}

	entries := make(map[string][]compiledEntry)
	for _, e := range file.Entries {
		compiled, err := compileEntry(e)
		if err != nil {
			return err
		}
		host := strings.ToLower(e.Host)
		entries[host] = append(entries[host], compiled)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// compileEntry 把路径模板编译为匹配正则
// 模板中 {xxx} token 对应 /[^/]+，其余token按字面量匹配
func compileEntry(e BlockFieldsEntry) (compiledEntry, error) {
	var regexParts []string
	literalCount := 0
	for _, token := range strings.Split(e.Path, "/") {
		if token == "" {
			continue
		}
		if strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
			regexParts = append(regexParts, "/[^/]+")
		} else {
			literalCount++
			regexParts = append(regexParts, "/"+regexp.QuoteMeta(token))
		}
	}
	pattern := "^" + strings.Join(regexParts, "") + "(/)*$"

	re, err := regexp.Compile(pattern)
	if err != nil {
		return compiledEntry{}, fmt.Errorf("failed to compile block fields path %q: %w", e.Path, err)
	}

	method := strings.ToUpper(strings.TrimSpace(e.Method))
	if method == "" {
		method = MethodAll
	}

	return compiledEntry{
		method:        method,
		pathRegex:     re,
		literalCount:  literalCount,
		disabledPaths: e.DisabledPaths,
	}, nil
}

// Lookup 返回请求命中的禁用路径
// ALL条目和方法条目都参与匹配，多条命中时合并去重
func (s *FilePolicyStore) Lookup(host string, method model.RestMethod, path string) []string {
	s.mu.RLock()
	entries := s.entries[strings.ToLower(host)]
	s.mu.RUnlock()

	if len(entries) == 0 {
		return nil
	}

	var disabled []string
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.method != MethodAll && e.method != string(method) {
			continue
		}
		if !e.pathRegex.MatchString(path) {
			continue
		}
		for _, p := range e.disabledPaths {
			folded := strings.ToLower(p)
			if !seen[folded] {
				seen[folded] = true
				disabled = append(disabled, p)
			}
		}
	}
	return disabled
}
