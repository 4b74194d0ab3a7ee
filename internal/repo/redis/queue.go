// 流量队列
// 摄取侧RPUSH入队，分析进程LPOP出队，多个进程消费同一队列天然分片。
// 队列深度超过上限时丢弃新流量保护数据库，丢弃行为记录日志。
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"traceguard/internal/pkg/logger"
)

// ErrQueueEmpty 队列为空
var ErrQueueEmpty = errors.New("trace queue is empty")

// TraceQueue Redis流量队列
type TraceQueue struct {
	client   *redis.Client
	key      string
	maxDepth int64
}

// NewTraceQueue 创建流量队列实例
// maxDepth<=0 表示不限制深度
func NewTraceQueue(client *redis.Client, key string, maxDepth int64) *TraceQueue {
	return &TraceQueue{
		client:   client,
		key:      key,
		maxDepth: maxDepth,
	}
}

// Push 入队一条消息
// 队列深度达到上限时丢弃该消息并返回nil，背压丢弃不是错误
func (q *TraceQueue) Push(ctx context.Context, payload []byte) error {
	if q.maxDepth > 0 {
		depth, err := q.client.LLen(ctx, q.key).Result()
		if err != nil {
			return fmt.Errorf("failed to check queue depth: %w", err)
		}
		if depth >= q.maxDepth {
			logger.Warnf("trace queue %s is full (depth=%d), dropping incoming trace", q.key, depth)
			return nil
		}
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push trace: %w", err)
	}
	return nil
}

// Pop 出队一条消息，队列空时返回 ErrQueueEmpty
func (q *TraceQueue) Pop(ctx context.Context) ([]byte, error) {
	payload, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop trace: %w", err)
	}
	return payload, nil
}

// Len 当前队列深度
func (q *TraceQueue) Len(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return depth, nil
}
