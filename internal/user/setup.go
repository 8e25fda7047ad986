package user

import (
	"fmt"

	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
)

// PrimeCachedDB 负责初始化user模块的数据库表和Redis缓存
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if database.IsRedisHealthy() {
		if err := WarmupCache(); err != nil {
			return err
		}
	}
	return nil
}

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("无法迁移user表: %w", err)
	}
	fmt.Println("User数据库表迁移成功。")
	return nil
}
