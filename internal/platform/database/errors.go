package database

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// IsDuplicateKeyError 判断一个错误是否由唯一约束冲突引起。
// 开奖互斥锁的抢占和幂等键的唯一索引都依赖这个判断。
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	// SQLite与PostgreSQL的驱动在gorm转换失败时会透传原始文本
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// IsRetryableError 判断一个错误是否是短暂的、可以重试的。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "deadlock detected")
}

// RunWithRetry 执行fn，遇到短暂性数据库错误时带退避地重试。
// 业务错误和其他错误原样返回，不会被重试。
func RunWithRetry(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !IsRetryableError(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
	}
	return err
}
