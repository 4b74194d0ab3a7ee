// 端点IP映射维护
// 每个端点维护来源IP和目标IP两张映射(IP→最近出现时间)，
// 时间戳更新带防抖窗口，映射大小超过两倍上限时按最旧淘汰到上限。
package analyzer

import (
	"sort"
	"time"

	"traceguard/internal/model"
)

// UpdateIPs 把流量的来源/目标IP合并进端点映射
// 返回映射是否发生了需要落库的变化。窗口内的重复出现不更新时间戳，
// 避免高频端点每条流量都触发端点行更新。
func UpdateIPs(endpoint *model.ApiEndpoint, meta model.TraceMeta, maxSize int, debounce time.Duration, now time.Time) bool {
	changed := false
	if meta.Source != "" {
		if endpoint.SrcIPs == nil {
			endpoint.SrcIPs = make(map[string]time.Time)
		}
		if touchIP(endpoint.SrcIPs, meta.Source, debounce, now) {
			changed = true
		}
	}
	if meta.Destination != "" {
		if endpoint.HostIPs == nil {
			endpoint.HostIPs = make(map[string]time.Time)
		}
		if touchIP(endpoint.HostIPs, meta.Destination, debounce, now) {
			changed = true
		}
	}
	if maxSize > 0 {
		if evictOldest(endpoint.SrcIPs, maxSize) {
			changed = true
		}
		if evictOldest(endpoint.HostIPs, maxSize) {
			changed = true
		}
	}
	return changed
}

// touchIP 更新单个IP的时间戳，窗口内已有记录时不动
func touchIP(ips map[string]time.Time, ip string, debounce time.Duration, now time.Time) bool {
	if last, ok := ips[ip]; ok && now.Sub(last) < debounce {
		return false
	}
	ips[ip] = now
	return true
}

// evictOldest 映射超过两倍上限时按时间戳淘汰最旧的条目到上限
// 淘汰阈值取两倍是为了摊薄排序成本，不必每次插入都整理
func evictOldest(ips map[string]time.Time, maxSize int) bool {
	if len(ips) <= maxSize*2 {
		return false
	}
	type entry struct {
		ip string
		at time.Time
	}
	entries := make([]entry, 0, len(ips))
	for ip, at := range ips {
		entries = append(entries, entry{ip: ip, at: at})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].at.Equal(entries[j].at) {
			return entries[i].ip < entries[j].ip
		}
		return entries[i].at.Before(entries[j].at)
	})
	for _, e := range entries[:len(entries)-maxSize] {
		delete(ips, e.ip)
	}
	return true
}
