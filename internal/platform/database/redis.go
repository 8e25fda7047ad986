package database

import (
	"context"
	"fmt"

	"github.com/SlpAus/warcry-match-backend/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// RDB 是一个全局的Redis客户端实例，供项目其他部分使用
var RDB *redis.Client

// Ctx 是一个全局的上下文，用于Redis操作
var Ctx = context.Background()

// InitRedis 初始化与Redis数据库的连接。
// 连接失败不会使进程退出：排名缓存不可用时，所有读取都会回退到SQLite，
// 后台健康检查器会在Redis恢复后重建缓存。
func InitRedis(cfg config.Redis) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 使用Ping命令来测试连接是否成功
	if _, err := RDB.Ping(Ctx).Result(); err != nil {
		fmt.Printf("警告: 无法连接到Redis: %v，排名缓存暂不可用\n", err)
		SetRedisHealthy(false)
		return
	}

	SetRedisHealthy(true)
	fmt.Println("Redis 连接成功！")
}
