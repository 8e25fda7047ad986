package match

import (
	"fmt"

	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
)

// PrimeDB 负责match模块的数据库表迁移
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Match{}, &MatchUser{}); err != nil {
		return fmt.Errorf("无法迁移match相关表: %w", err)
	}
	fmt.Println("Match数据库表迁移成功。")
	return nil
}
