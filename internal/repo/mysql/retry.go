// 事务冲突重试
// 多个分析进程并发写同一端点的记录时会出现死锁(1213)和锁等待超时(1205)，
// 这类错误随机退避后重试即可成功，不属于业务失败。
package mysql

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"traceguard/internal/pkg/logger"
)

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxRetries int           // 首次之外的最大重试次数
	MinDelay   time.Duration // 退避下限
	MaxDelay   time.Duration // 退避上限
}

// WithRetry 执行fn，遇到可重试的数据库冲突时随机退避后重试
// 总尝试次数为 1+MaxRetries；不可重试的错误立即返回
func WithRetry(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(policy)
			logger.Warnf("%s hit retryable conflict (attempt %d/%d), backing off %v: %v",
				op, attempt, policy.MaxRetries, delay, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
	}
	return err
}

// retryDelay 取 [MinDelay, MaxDelay] 内的随机退避
func retryDelay(policy RetryPolicy) time.Duration {
	if policy.MaxDelay <= policy.MinDelay {
		return policy.MinDelay
	}
	span := policy.MaxDelay - policy.MinDelay
	return policy.MinDelay + time.Duration(rand.Int63n(int64(span)+1))
}

// isRetryable 是否为可重试的冲突错误
// MySQL 1213(死锁)/1205(锁等待超时)，以及SQLSTATE 40001(序列化失败)
func isRetryable(err error) bool {
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1213, 1205:
			return true
		}
		return string(mysqlErr.SQLState[:2]) == "40"
	}
	return false
}

// isDuplicateKey 是否为唯一键冲突 (MySQL 1062)
// 测试环境的SQLite报UNIQUE约束错误文本，一并识别
func isDuplicateKey(err error) bool {
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
