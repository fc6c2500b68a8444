package database

import (
	"context"
	"fmt"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// RDB 是一个全局的Redis客户端实例，供项目其他部分使用
var RDB *redis.Client

// Ctx 是一个全局的上下文，用于Redis操作
var Ctx = context.Background()

// InitRedis 初始化与Redis数据库的连接
// Redis在本项目中承载幂等锁与幂等响应缓存，属于可降级依赖
func InitRedis(cfg config.RedisConfig) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 使用Ping命令来测试连接是否成功
	_, err := RDB.Ping(Ctx).Result()
	if err != nil {
		// Redis不可用不阻止启动：幂等守卫会以fail-open方式降级
		fmt.Println("警告: 无法连接到Redis，幂等保护将降级运行:", err)
		UpdateStatus(false, "")
		return
	}

	fmt.Println("Redis 连接成功！")
}
