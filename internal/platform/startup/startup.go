package startup

import (
	"fmt"

	"github.com/SlpAus/warcry-match-backend/internal/gameserver"
	"github.com/SlpAus/warcry-match-backend/internal/match"
	"github.com/SlpAus/warcry-match-backend/internal/rating"
	"github.com/SlpAus/warcry-match-backend/internal/user"
)

// InitializeApplication 是应用首次启动时执行的总入口
func InitializeApplication() error {
	fmt.Println("开始应用首次初始化...")

	if err := user.PrimeCachedDB(); err != nil {
		return err
	}
	if err := gameserver.PrimeDB(); err != nil {
		return err
	}
	if err := match.PrimeDB(); err != nil {
		return err
	}
	if err := rating.PrimeCachedDB(); err != nil {
		return err
	}

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 是一个专门用于在运行时热重建Redis缓存的函数。
// SQLite是唯一权威数据源，重建只是把它重新加载进Redis。
func RebuildCache() error {
	fmt.Println("开始缓存热重建...")

	if err := user.WarmupCache(); err != nil {
		return err
	}
	if err := rating.WarmupCache(); err != nil {
		return err
	}

	fmt.Println("缓存热重建完成。")
	return nil
}
