// 队列消费循环
// 单协程串行消费流量队列，水平扩展靠多进程共享同一队列而非进程内并发，
// 单条流量的处理失败和panic都只影响该条流量，循环本身永不退出。
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"traceguard/internal/config"
	"traceguard/internal/model"
	"traceguard/internal/pkg/logger"
	redisrepo "traceguard/internal/repo/redis"
)

// TraceQueue 流量队列
type TraceQueue interface {
	Pop(ctx context.Context) ([]byte, error)
}

// TraceProcessor 单条流量处理器
type TraceProcessor interface {
	ProcessTrace(ctx context.Context, trace *model.QueuedTrace) error
}

// Consumer 流量队列消费者
type Consumer struct {
	queue        TraceQueue
	processor    TraceProcessor
	pollInterval time.Duration
}

// NewConsumer 创建消费者实例
func NewConsumer(cfg *config.AnalyzerConfig, queue TraceQueue, processor TraceProcessor) *Consumer {
	return &Consumer{
		queue:        queue,
		processor:    processor,
		pollInterval: cfg.PollInterval,
	}
}

// Run 消费循环，阻塞直到ctx取消
// 队列空时按轮询间隔休眠；非法消息和处理失败记录日志后继续下一条
func (c *Consumer) Run(ctx context.Context) error {
	logger.Info("trace consumer started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("trace consumer stopped")
			return ctx.Err()
		default:
		}

		payload, err := c.queue.Pop(ctx)
		if errors.Is(err, redisrepo.ErrQueueEmpty) {
			select {
			case <-ctx.Done():
				logger.Info("trace consumer stopped")
				return ctx.Err()
			case <-time.After(c.pollInterval):
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("trace consumer stopped")
				return ctx.Err()
			}
			logger.Errorf("failed to pop trace from queue: %v", err)
			time.Sleep(c.pollInterval)
			continue
		}

		c.handlePayload(ctx, payload)
	}
}

// handlePayload 处理一条队列消息
func (c *Consumer) handlePayload(ctx context.Context, payload []byte) {
	traces, err := model.DecodeEnvelope(payload)
	if err != nil {
		logger.Errorf("dropping malformed queue message: %v", err)
		return
	}
	for _, trace := range traces {
		if err := c.processTrace(ctx, trace); err != nil {
			logger.Errorf("failed to process trace %s %s%s: %v", trace.Method, trace.Host, trace.Path, err)
		}
	}
}

// processTrace 处理单条流量，panic转为错误，不拖垮消费循环
func (c *Consumer) processTrace(ctx context.Context, trace *model.QueuedTrace) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing trace: %v", r)
		}
	}()
	return c.processor.ProcessTrace(ctx, trace)
}
