package rating

import (
	"fmt"

	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
)

// migrateDB 负责rating模块的数据库表迁移
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Rating{}, &RatingHistory{}, &DailyStats{}); err != nil {
		return fmt.Errorf("无法迁移rating相关表: %w", err)
	}
	fmt.Println("Rating数据库表迁移成功。")
	return nil
}

// PrimeCachedDB 初始化rating模块：迁移数据库表，并在Redis可用时预热排名缓存
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
