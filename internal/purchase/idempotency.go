package purchase

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"github.com/redis/go-redis/v9"
)

// 幂等守卫把重试的客户端请求和重复投递的回调折叠为单次效果。
// 两种机制分别针对不同的重复形态：
//  1. 短时互斥锁（SetNX + TTL）拒绝"并发的"重复请求；
//  2. 较长时效的响应缓存让"先后到达的"重复请求直接拿到原始结果。
// Redis不可用时守卫fail-open：放行底层操作，用可用性换取
// 一点重复副作用的风险（数据库唯一索引仍然兜底）。

const (
	idemLockTTL     = 30 * time.Second
	idemResponseTTL = 24 * time.Hour
)

// ErrConflict 表示检测到并发的重复请求。
var ErrConflict = errors.New("相同的请求正在处理中，请勿重复提交")

// DeriveKey 从调用方身份、目标操作和客户端令牌派生稳定的幂等键。
// 客户端没有提供令牌时，退化为请求体的确定性哈希。
func DeriveKey(userID, operation, clientToken string, payload []byte) string {
	token := clientToken
	if token == "" {
		sum := sha256.Sum256(payload)
		token = hex.EncodeToString(sum[:16])
	}
	return fmt.Sprintf("idem:%s:%s:%s", operation, userID, token)
}

// AcquireLock 尝试获取幂等互斥锁。
// 返回的release函数必须在处理结束后调用（通常defer）。
// ok为false表示另一个持有相同键的请求正在处理中。
func AcquireLock(key string) (release func(), ok bool, err error) {
	noop := func() {}

	// fail-open: Redis降级时直接放行
	if !database.IsRedisHealthy() {
		return noop, true, nil
	}

	lockKey := key + ":lock"
	acquired, err := database.RDB.SetNX(database.Ctx, lockKey, 1, idemLockTTL).Result()
	if err != nil {
		fmt.Printf("警告: 幂等锁获取失败，降级放行: %v\n", err)
		return noop, true, nil
	}
	if !acquired {
		return noop, false, nil
	}

	release = func() {
		if err := database.RDB.Del(database.Ctx, lockKey).Err(); err != nil {
			// 锁会随TTL自动过期，删除失败只记录
			fmt.Printf("警告: 幂等锁释放失败 (key=%s): %v\n", lockKey, err)
		}
	}
	return release, true, nil
}

// GetCachedResponse 查询此前成功请求的缓存响应。
func GetCachedResponse(key string) ([]byte, bool) {
	if !database.IsRedisHealthy() {
		return nil, false
	}
	body, err := database.RDB.Get(database.Ctx, key+":resp").Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			fmt.Printf("警告: 幂等响应缓存读取失败: %v\n", err)
		}
		return nil, false
	}
	return body, true
}

// StoreCachedResponse 把成功请求的响应体写入缓存，供后续重试原样返回。
func StoreCachedResponse(key string, body []byte) {
	if !database.IsRedisHealthy() {
		return
	}
	if err := database.RDB.Set(database.Ctx, key+":resp", body, idemResponseTTL).Err(); err != nil {
		fmt.Printf("警告: 幂等响应缓存写入失败: %v\n", err)
	}
}
