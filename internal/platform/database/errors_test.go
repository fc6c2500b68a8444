package database

import (
	"errors"
	"testing"
)

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Fatal("nil不应被判定为可重试")
	}
	if !IsRetryableError(errors.New("database is locked")) {
		t.Fatal("SQLite busy错误应可重试")
	}
	if !IsRetryableError(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")) {
		t.Fatal("PostgreSQL死锁应可重试")
	}
	if IsRetryableError(errors.New("record not found")) {
		t.Fatal("业务错误不应可重试")
	}
}

func TestRunWithRetryRecoversFromTransientErrors(t *testing.T) {
	calls := 0
	err := RunWithRetry(3, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("短暂错误耗尽前恢复应成功, 实际 %v", err)
	}
	if calls != 3 {
		t.Fatalf("应调用3次, 实际 %d", calls)
	}
}

func TestRunWithRetryStopsOnNonRetryableError(t *testing.T) {
	wantErr := errors.New("唯一约束冲突")
	calls := 0
	err := RunWithRetry(3, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("非短暂错误应原样返回, 实际 %v", err)
	}
	if calls != 1 {
		t.Fatalf("非短暂错误不应重试, 实际调用 %d 次", calls)
	}
}

func TestRunWithRetryExhaustsAttempts(t *testing.T) {
	transient := errors.New("database is locked")
	calls := 0
	err := RunWithRetry(3, func() error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("重试耗尽后应返回最后的错误, 实际 %v", err)
	}
	if calls != 3 {
		t.Fatalf("应尝试3次, 实际 %d", calls)
	}
}
