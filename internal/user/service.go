package user

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
	"gorm.io/gorm"
)

// ErrUserNotFound 表示引用的用户不存在
var ErrUserNotFound = errors.New("找不到该用户")

// GetByID 按主键查询用户。
func GetByID(id uint) (*User, error) {
	var u User
	if err := database.DB.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// NicknameByID 返回用户昵称；用户不存在时返回空字符串。
// 供其他模块在组装响应时使用。
func NicknameByID(id uint) string {
	var nickname string
	err := database.DB.Model(&User{}).Select("nickname").Where("id = ?", id).Scan(&nickname).Error
	if err != nil {
		return ""
	}
	return nickname
}

// IsKnown 检查一个用户ID是否已经被确认存在。
// 它只查询Redis缓存，以获得最高性能；缓存不可用或未命中时返回false。
func IsKnown(id uint) bool {
	if !database.IsRedisHealthy() {
		return false
	}
	exists, err := database.RDB.SIsMember(database.Ctx, KnownUsersKey, strconv.FormatUint(uint64(id), 10)).Result()
	if err != nil {
		return false
	}
	return exists
}

// MarkKnown 将一个已确认存在的用户ID写入Redis缓存。
// 缓存写入失败只影响后续请求的快速路径，不影响正确性。
func MarkKnown(id uint) {
	if !database.IsRedisHealthy() {
		return
	}
	if err := database.RDB.SAdd(database.Ctx, KnownUsersKey, strconv.FormatUint(uint64(id), 10)).Err(); err != nil {
		fmt.Printf("警告: 无法将用户 %d 写入Redis缓存: %v\n", id, err)
	}
}

// WarmupCache 从SQLite加载全部用户ID到Redis的已知用户集合。
// 注意：此函数不包含锁，调用方需要确保在安全的时机调用。
func WarmupCache() error {
	var ids []uint
	if err := database.DB.Model(&User{}).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取用户ID: %w", err)
	}

	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, KnownUsersKey)
	for _, id := range ids {
		pipe.SAdd(database.Ctx, KnownUsersKey, strconv.FormatUint(uint64(id), 10))
	}
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热已知用户集合到Redis失败: %w", err)
	}

	fmt.Printf("成功预热 %d 个用户ID到Redis。\n", len(ids))
	return nil
}
