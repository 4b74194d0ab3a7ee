package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		MinDelay:   time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}
}

func deadlockErr() error {
	return &gomysql.MySQLError{Number: 1213, SQLState: [5]byte{'4', '0', '0', '0', '1'}, Message: "Deadlock found"}
}

func TestWithRetry_SuccessFirstTry(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), testPolicy(), "op", func() error {
		attempts++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), testPolicy(), "op", func() error {
		attempts++
		return deadlockErr()
	})
	assert.Error(t, err)
	// 首次 + 5次重试 = 恰好6次
	assert.Equal(t, 6, attempts)
}

func TestWithRetry_RecoversMidway(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), testPolicy(), "op", func() error {
		attempts++
		if attempts < 3 {
			return deadlockErr()
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_NonRetryableFailsFast(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), testPolicy(), "op", func() error {
		attempts++
		return errors.New("constraint violation")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithRetry(ctx, testPolicy(), "op", func() error {
		attempts++
		cancel()
		return deadlockErr()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&gomysql.MySQLError{Number: 1213}))
	assert.True(t, isRetryable(&gomysql.MySQLError{Number: 1205}))
	assert.True(t, isRetryable(&gomysql.MySQLError{Number: 9999, SQLState: [5]byte{'4', '0', '0', '0', '1'}}))
	assert.False(t, isRetryable(&gomysql.MySQLError{Number: 1062}))
	assert.False(t, isRetryable(errors.New("plain error")))
	assert.False(t, isRetryable(nil))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(&gomysql.MySQLError{Number: 1062}))
	assert.True(t, isDuplicateKey(errors.New("UNIQUE constraint failed: api_endpoints.host")))
	assert.False(t, isDuplicateKey(&gomysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateKey(nil))
}
