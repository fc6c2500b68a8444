package purchase

import (
	"bytes"
	"strings"
	"testing"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis 用内嵌的miniredis替换全局Redis客户端，
// 让幂等守卫以"Redis健康"的完整路径运行。
func setupTestRedis(t *testing.T) {
	t.Helper()

	mr := miniredis.RunT(t)
	database.RDB = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	database.UpdateStatus(true, "test-run-id")
	t.Cleanup(func() {
		database.UpdateStatus(false, "")
	})
}

func TestDeriveKeyStableWithClientToken(t *testing.T) {
	a := DeriveKey("user-1", "reserve:1", "tok-abc", []byte(`{"quantity":1}`))
	b := DeriveKey("user-1", "reserve:1", "tok-abc", []byte(`{"quantity":2}`))
	if a != b {
		t.Fatal("提供客户端令牌时，键不应依赖请求体")
	}
	if !strings.HasPrefix(a, "idem:reserve:1:user-1:") {
		t.Fatalf("键格式不符合预期: %s", a)
	}
}

func TestDeriveKeyFallsBackToPayloadHash(t *testing.T) {
	a := DeriveKey("user-1", "reserve:1", "", []byte(`{"quantity":1}`))
	b := DeriveKey("user-1", "reserve:1", "", []byte(`{"quantity":1}`))
	c := DeriveKey("user-1", "reserve:1", "", []byte(`{"quantity":2}`))
	if a != b {
		t.Fatal("相同请求体应派生相同的键")
	}
	if a == c {
		t.Fatal("不同请求体应派生不同的键")
	}
}

func TestDeriveKeyScopedToUserAndOperation(t *testing.T) {
	base := DeriveKey("user-1", "reserve:1", "tok", nil)
	otherUser := DeriveKey("user-2", "reserve:1", "tok", nil)
	otherOp := DeriveKey("user-1", "reserve:2", "tok", nil)
	if base == otherUser || base == otherOp {
		t.Fatal("不同买家或不同操作不应共享幂等键")
	}
}

func TestAcquireLockRejectsConcurrentDuplicate(t *testing.T) {
	setupTestRedis(t)

	release, ok, err := AcquireLock("idem:test:mutex")
	if err != nil || !ok {
		t.Fatalf("首个请求应拿到幂等锁, ok=%v err=%v", ok, err)
	}

	// 锁被持有期间，相同键的并发请求必须被拒绝
	_, ok, err = AcquireLock("idem:test:mutex")
	if err != nil {
		t.Fatalf("竞争加锁报错: %v", err)
	}
	if ok {
		t.Fatal("并发的重复请求应被幂等锁拒绝")
	}

	// 不同的键互不影响
	otherRelease, ok, err := AcquireLock("idem:test:other")
	if err != nil || !ok {
		t.Fatalf("不同键应能正常加锁, ok=%v err=%v", ok, err)
	}
	otherRelease()

	// 释放后同一个键可以再次获取
	release()
	release2, ok, err := AcquireLock("idem:test:mutex")
	if err != nil || !ok {
		t.Fatalf("释放后应可重新加锁, ok=%v err=%v", ok, err)
	}
	release2()
}

func TestCachedResponseReplaysOriginalBody(t *testing.T) {
	setupTestRedis(t)
	key := "idem:test:replay"

	// 第一次请求之前：缓存未命中
	if _, found := GetCachedResponse(key); found {
		t.Fatal("未写入时不应命中响应缓存")
	}

	// 先后到达的重复请求拿到的是逐字节相同的原始响应
	body := []byte(`{"purchases":[{"id":"p-1","status":"processing"}]}`)
	StoreCachedResponse(key, body)

	got, found := GetCachedResponse(key)
	if !found {
		t.Fatal("写入后应命中响应缓存")
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("缓存应原样返回响应体: %s", got)
	}

	// 其他键不受影响
	if _, found := GetCachedResponse("idem:test:unrelated"); found {
		t.Fatal("其他键不应命中缓存")
	}
}

func TestIdempotencyGuardFailsOpenWithoutRedis(t *testing.T) {
	// Redis标记为不可用：守卫必须放行而不是拒绝服务
	database.UpdateStatus(false, "")

	release, ok, err := AcquireLock("idem:test:failopen")
	if err != nil || !ok {
		t.Fatalf("Redis降级时应fail-open, ok=%v err=%v", ok, err)
	}
	release()

	if _, found := GetCachedResponse("idem:test:failopen"); found {
		t.Fatal("Redis降级时不应命中响应缓存")
	}
	// 写入降级为无操作，不能panic
	StoreCachedResponse("idem:test:failopen", []byte("{}"))
}
